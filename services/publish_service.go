package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/pilab-dev/pagepost/cache"
	"github.com/pilab-dev/pagepost/internal/audit"
	"github.com/pilab-dev/pagepost/internal/linkedin"
	"github.com/pilab-dev/pagepost/internal/metrics"
	"github.com/pilab-dev/pagepost/log"
	"golang.org/x/oauth2"
)

// LinkedInAPI is the subset of *linkedin.Client the flows depend on.
type LinkedInAPI interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code, redirectURI string, opts ...linkedin.CallOption) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, accessToken string, opts ...linkedin.CallOption) (linkedin.Profile, error)
	ListAdministeredPages(ctx context.Context, accessToken string, opts ...linkedin.CallOption) ([]linkedin.Organization, error)
	UploadImage(ctx context.Context, accessToken, orgID, path, filename string, opts ...linkedin.CallOption) (string, error)
	Publish(ctx context.Context, accessToken string, payload linkedin.PostPayload, opts ...linkedin.CallOption) (json.RawMessage, error)
}

var _ LinkedInAPI = (*linkedin.Client)(nil)

// PublishConfig holds the flow settings taken from config.ServerConfig.
type PublishConfig struct {
	RedirectURI   string
	ValidateState bool
	StateTTL      time.Duration

	// AutoPost publishes AutoPostText to the first administered page from
	// the callback itself.
	AutoPost     bool
	AutoPostText string
}

// PublishService sequences the OAuth callback and publish flows. It keeps no
// per-member state; the only shared state is the CSRF state store.
type PublishService struct {
	api    LinkedInAPI
	states cache.StateStore
	cfg    PublishConfig
	logger log.Logger
	audit  *audit.Logger
}

// NewPublishService creates a new PublishService. states may be nil when
// state validation is disabled.
func NewPublishService(api LinkedInAPI, states cache.StateStore, cfg PublishConfig, logger log.Logger, auditor *audit.Logger) *PublishService {
	if logger == nil {
		logger = log.Nop()
	}
	if auditor == nil {
		auditor = audit.Nop()
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = 10 * time.Minute
	}

	return &PublishService{
		api:    api,
		states: states,
		cfg:    cfg,
		logger: logger.With(log.Fields{"component": "publish_service"}),
		audit:  auditor,
	}
}

// CallbackRequest carries the query parameters LinkedIn redirects back with.
type CallbackRequest struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackResult is what the member gets back after a completed login.
type CallbackResult struct {
	AccessToken string
	Profile     linkedin.Profile
	Pages       []linkedin.Organization

	// AutoPost is set when the callback published to the first page.
	AutoPost *PublishResult
}

// PublishRequest is one post on behalf of an organization.
type PublishRequest struct {
	AccessToken string
	OrgID       string
	Text        string

	// ImagePath is a local file owned by the caller; empty for text posts.
	ImagePath string
	ImageName string
}

// PublishResult holds LinkedIn's response verbatim.
type PublishResult struct {
	Response      json.RawMessage
	AssetID       string
	MediaCategory string
}

// StartAuthorization issues a state value and returns the LinkedIn consent URL.
func (s *PublishService) StartAuthorization(ctx context.Context) (string, error) {
	entry, err := cache.NewStateEntry(s.cfg.RedirectURI, s.cfg.StateTTL)
	if err != nil {
		return "", err
	}

	if s.cfg.ValidateState && s.states != nil {
		if err := s.states.Save(ctx, entry); err != nil {
			s.logger.Error(ctx, "failed to store oauth state", err)
			return "", err
		}
	}

	s.audit.Log(audit.ActionAuthorize, "", "", true, nil)

	return s.api.AuthCodeURL(entry.State), nil
}

// CompleteAuthorization runs the callback chain: state check, code exchange,
// profile, pages and, when enabled, the auto post to the first page. The
// calls run strictly in that order and the first failure ends the chain.
func (s *PublishService) CompleteAuthorization(ctx context.Context, req CallbackRequest) (res *CallbackResult, err error) {
	defer func() {
		if err != nil {
			metrics.LoginFailureTotal.Inc()
			details := ""
			var denied *AuthorizationDeniedError
			if errors.As(err, &denied) {
				details = denied.Reason()
			}
			s.audit.Log(audit.ActionCallback, "", details, false, err)
			return
		}
		metrics.LoginSuccessTotal.Inc()
		s.audit.Log(audit.ActionCallback, "", "", true, nil)
	}()

	if req.Error != "" {
		denied := &AuthorizationDeniedError{Code: req.Error, Description: req.ErrorDescription}
		fields := log.Fields{"error_code": denied.Code, "reason": denied.Reason()}
		if denied.Cancelled() {
			s.logger.Info(ctx, "member cancelled authorization", fields)
		} else {
			s.logger.Warn(ctx, "authorization denied by linkedin", fields)
		}
		return nil, denied
	}
	if req.Code == "" {
		return nil, ErrMissingCode
	}

	redirectURI := s.cfg.RedirectURI
	if s.cfg.ValidateState && s.states != nil {
		entry, err := s.states.Consume(ctx, req.State)
		if err != nil {
			if !errors.Is(err, cache.ErrStateNotFound) {
				s.logger.Error(ctx, "state lookup failed", err)
			}
			return nil, ErrInvalidState
		}
		if entry.RedirectURI != "" {
			redirectURI = entry.RedirectURI
		}
	}

	tok, err := s.api.ExchangeCode(ctx, req.Code, redirectURI)
	if err != nil {
		return nil, err
	}

	profile, err := s.api.FetchProfile(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}

	pages, err := s.api.ListAdministeredPages(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}

	res = &CallbackResult{
		AccessToken: tok.AccessToken,
		Profile:     profile,
		Pages:       pages,
	}

	s.logger.Info(ctx, "member authorized", log.Fields{"pages": len(pages)})

	if !s.cfg.AutoPost || len(pages) == 0 {
		return res, nil
	}

	res.AutoPost, err = s.PublishPost(ctx, PublishRequest{
		AccessToken: tok.AccessToken,
		OrgID:       pages[0].ID,
		Text:        s.cfg.AutoPostText,
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// Validate reports every missing required field at once.
func (r PublishRequest) Validate() error {
	var missing []string
	if r.AccessToken == "" {
		missing = append(missing, "accessToken")
	}
	if r.OrgID == "" {
		missing = append(missing, "orgId")
	}
	if r.Text == "" {
		missing = append(missing, "text")
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}

// PublishPost uploads the optional image and publishes the post. Upload and
// publish are not atomic: if publishing fails after a successful upload the
// asset stays orphaned on LinkedIn, which is logged and counted.
func (s *PublishService) PublishPost(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	orgID := linkedin.OrganizationID(req.OrgID)

	var assetID string
	if req.ImagePath != "" {
		var err error
		assetID, err = s.api.UploadImage(ctx, req.AccessToken, orgID, req.ImagePath, req.ImageName)
		s.audit.Log(audit.ActionUpload, orgID, uploadDetails(req), err == nil, err)
		if err != nil {
			metrics.PublishFailuresTotal.Inc()
			return nil, err
		}
	}

	payload := linkedin.BuildPostPayload(orgID, req.Text, assetID, req.ImageName)
	category := payload.SpecificContent.ShareContent.ShareMediaCategory

	resp, err := s.api.Publish(ctx, req.AccessToken, payload)
	s.audit.Log(audit.ActionPublish, orgID, category, err == nil, err)
	if err != nil {
		metrics.PublishFailuresTotal.Inc()
		if assetID != "" {
			metrics.OrphanedAssetsTotal.Inc()
			s.logger.Warn(ctx, "uploaded asset left unused after failed publish", log.Fields{
				"org_id": orgID,
				"asset":  assetID,
			})
		}
		return nil, err
	}

	metrics.PostsPublishedTotal.WithLabelValues(category).Inc()
	s.logger.Info(ctx, "post published", log.Fields{
		"org_id":         orgID,
		"media_category": category,
	})

	return &PublishResult{
		Response:      resp,
		AssetID:       assetID,
		MediaCategory: category,
	}, nil
}

// uploadDetails names the uploaded file and its sniffed media type.
func uploadDetails(req PublishRequest) string {
	details := req.ImageName
	if mediaType := linkedin.DetectMediaType(req.ImagePath); mediaType != "" {
		details += " (" + mediaType + ")"
	}
	return details
}
