package linkedin

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	ErrMissingAccessToken = errors.New("access token is required")
	ErrMissingOrgID       = errors.New("organization id is required")
)

// UpstreamError is the single failure kind surfaced by the client. Network
// failures, timeouts and non-2xx responses all end up here.
type UpstreamError struct {
	Op         string // human readable operation, e.g. "Error fetching user profile"
	StatusCode int    // 0 when no response was received
	Body       string // provider error body, verbatim
	Err        error  // transport or decoding failure
}

func (e *UpstreamError) Error() string {
	return e.Op + ": " + e.Detail()
}

// Detail is the provider body when there is one, else the transport message.
func (e *UpstreamError) Detail() string {
	switch {
	case e.Body != "":
		return e.Body
	case e.Err != nil:
		return e.Err.Error()
	case e.StatusCode != 0:
		return http.StatusText(e.StatusCode)
	default:
		return "unknown error"
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err (or anything it wraps) is an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// OAuth error codes LinkedIn uses on the token endpoint and the callback.
const (
	InvalidRequest         = "invalid_request"
	InvalidGrant           = "invalid_grant"
	InvalidClient          = "invalid_client"
	UnauthorizedScopeError = "unauthorized_scope_error"
	UserCancelledLogin     = "user_cancelled_login"
	UserCancelledAuthorize = "user_cancelled_authorize"
)

// ProviderError is the decoded form of a LinkedIn error body. OAuth endpoints
// answer {error, error_description}; REST endpoints answer
// {serviceErrorCode, message, status}.
type ProviderError struct {
	Code             string `json:"error,omitempty"`
	Description      string `json:"error_description,omitempty"`
	ServiceErrorCode int    `json:"serviceErrorCode,omitempty"`
	Message          string `json:"message,omitempty"`
	Status           int    `json:"status,omitempty"`
}

// Provider decodes Body. It returns nil when the body is not a LinkedIn
// error document.
func (e *UpstreamError) Provider() *ProviderError {
	if e.Body == "" {
		return nil
	}

	var pe ProviderError
	if err := json.Unmarshal([]byte(e.Body), &pe); err != nil {
		return nil
	}
	if pe.Code == "" && pe.Message == "" && pe.ServiceErrorCode == 0 {
		return nil
	}

	return &pe
}

// Summary is a one line description suitable for logs.
func (p *ProviderError) Summary() string {
	switch {
	case p.Code != "" && p.Description != "":
		return p.Code + ": " + p.Description
	case p.Code != "":
		return p.Code
	default:
		return p.Message
	}
}
