package services_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pilab-dev/pagepost/cache"
	"github.com/pilab-dev/pagepost/internal/audit"
	"github.com/pilab-dev/pagepost/internal/linkedin"
	"github.com/pilab-dev/pagepost/internal/metrics"
	"github.com/pilab-dev/pagepost/log"
	"github.com/pilab-dev/pagepost/services"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type mockLinkedIn struct {
	mock.Mock
}

func (m *mockLinkedIn) AuthCodeURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *mockLinkedIn) ExchangeCode(ctx context.Context, code, redirectURI string, _ ...linkedin.CallOption) (*oauth2.Token, error) {
	args := m.Called(ctx, code, redirectURI)
	tok, _ := args.Get(0).(*oauth2.Token)
	return tok, args.Error(1)
}

func (m *mockLinkedIn) FetchProfile(ctx context.Context, accessToken string, _ ...linkedin.CallOption) (linkedin.Profile, error) {
	args := m.Called(ctx, accessToken)
	p, _ := args.Get(0).(linkedin.Profile)
	return p, args.Error(1)
}

func (m *mockLinkedIn) ListAdministeredPages(ctx context.Context, accessToken string, _ ...linkedin.CallOption) ([]linkedin.Organization, error) {
	args := m.Called(ctx, accessToken)
	pages, _ := args.Get(0).([]linkedin.Organization)
	return pages, args.Error(1)
}

func (m *mockLinkedIn) UploadImage(ctx context.Context, accessToken, orgID, path, filename string, _ ...linkedin.CallOption) (string, error) {
	args := m.Called(ctx, accessToken, orgID, path, filename)
	return args.String(0), args.Error(1)
}

func (m *mockLinkedIn) Publish(ctx context.Context, accessToken string, payload linkedin.PostPayload, _ ...linkedin.CallOption) (json.RawMessage, error) {
	args := m.Called(ctx, accessToken, payload)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

const redirectURI = "http://localhost:3000/linkedin/callback"

func newService(api services.LinkedInAPI, states cache.StateStore, cfg services.PublishConfig) *services.PublishService {
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = redirectURI
	}
	return services.NewPublishService(api, states, cfg, nil, nil)
}

func TestPublishService_StateRoundTrip(t *testing.T) {
	ctx := context.Background()
	states := cache.NewMemoryStateStore(time.Minute)
	defer states.Close()

	api := new(mockLinkedIn)
	var issued string
	api.On("AuthCodeURL", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { issued = args.String(0) }).
		Return("https://linkedin.test/authorize")
	api.On("ExchangeCode", mock.Anything, "code", redirectURI).Return(&oauth2.Token{AccessToken: "tok"}, nil).Once()
	api.On("FetchProfile", mock.Anything, "tok").Return(linkedin.Profile(`{"id":"me"}`), nil).Once()
	api.On("ListAdministeredPages", mock.Anything, "tok").Return([]linkedin.Organization{{ID: "1", Name: "Acme"}}, nil).Once()

	svc := newService(api, states, services.PublishConfig{ValidateState: true})

	u, err := svc.StartAuthorization(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://linkedin.test/authorize", u)
	require.NotEmpty(t, issued)

	res, err := svc.CompleteAuthorization(ctx, services.CallbackRequest{Code: "code", State: issued})
	require.NoError(t, err)
	assert.Equal(t, "tok", res.AccessToken)
	assert.JSONEq(t, `{"id":"me"}`, string(res.Profile))
	require.Len(t, res.Pages, 1)
	assert.Nil(t, res.AutoPost)

	_, err = svc.CompleteAuthorization(ctx, services.CallbackRequest{Code: "code", State: issued})
	assert.ErrorIs(t, err, services.ErrInvalidState, "a state is accepted only once")

	api.AssertExpectations(t)
}

func TestPublishService_CompleteAuthorization_RejectsBeforeUpstream(t *testing.T) {
	states := cache.NewMemoryStateStore(time.Minute)
	defer states.Close()

	tests := []struct {
		name    string
		req     services.CallbackRequest
		wantErr error
	}{
		{name: "missing code", req: services.CallbackRequest{State: "s"}, wantErr: services.ErrMissingCode},
		{name: "unknown state", req: services.CallbackRequest{Code: "c", State: "forged"}, wantErr: services.ErrInvalidState},
		{name: "provider error", req: services.CallbackRequest{Error: "user_cancelled_login", ErrorDescription: "The user cancelled"}, wantErr: services.ErrMissingCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := new(mockLinkedIn)
			svc := newService(api, states, services.PublishConfig{ValidateState: true})

			_, err := svc.CompleteAuthorization(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			api.AssertNotCalled(t, "ExchangeCode", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestPublishService_CompleteAuthorization_WithoutStateValidation(t *testing.T) {
	api := new(mockLinkedIn)
	api.On("ExchangeCode", mock.Anything, "code", redirectURI).Return(&oauth2.Token{AccessToken: "tok"}, nil)
	api.On("FetchProfile", mock.Anything, "tok").Return(linkedin.Profile(`{}`), nil)
	api.On("ListAdministeredPages", mock.Anything, "tok").Return([]linkedin.Organization{}, nil)

	svc := newService(api, nil, services.PublishConfig{})

	res, err := svc.CompleteAuthorization(context.Background(), services.CallbackRequest{Code: "code"})
	require.NoError(t, err)
	assert.Empty(t, res.Pages)
}

func TestPublishService_CompleteAuthorization_StopsAtFirstFailure(t *testing.T) {
	upstream := &linkedin.UpstreamError{Op: "Error fetching user profile", Body: "expired"}

	api := new(mockLinkedIn)
	api.On("ExchangeCode", mock.Anything, "code", redirectURI).Return(&oauth2.Token{AccessToken: "tok"}, nil)
	api.On("FetchProfile", mock.Anything, "tok").Return(nil, upstream)

	svc := newService(api, nil, services.PublishConfig{})

	_, err := svc.CompleteAuthorization(context.Background(), services.CallbackRequest{Code: "code"})
	assert.ErrorIs(t, err, upstream)
	api.AssertNotCalled(t, "ListAdministeredPages", mock.Anything, mock.Anything)
}

func TestPublishService_CompleteAuthorization_AutoPost(t *testing.T) {
	api := new(mockLinkedIn)
	api.On("ExchangeCode", mock.Anything, "code", redirectURI).Return(&oauth2.Token{AccessToken: "tok"}, nil)
	api.On("FetchProfile", mock.Anything, "tok").Return(linkedin.Profile(`{}`), nil)
	api.On("ListAdministeredPages", mock.Anything, "tok").Return([]linkedin.Organization{
		{ID: "111", Name: "First"},
		{ID: "222", Name: "Second"},
	}, nil)
	api.On("Publish", mock.Anything, "tok", linkedin.BuildPostPayload("111", "Hello from LinkedIn API!", "", "")).
		Return(json.RawMessage(`{"id":"urn:li:share:1"}`), nil).Once()

	svc := newService(api, nil, services.PublishConfig{AutoPost: true, AutoPostText: "Hello from LinkedIn API!"})

	res, err := svc.CompleteAuthorization(context.Background(), services.CallbackRequest{Code: "code"})
	require.NoError(t, err)
	require.NotNil(t, res.AutoPost)
	assert.JSONEq(t, `{"id":"urn:li:share:1"}`, string(res.AutoPost.Response))
	api.AssertExpectations(t)
}

func TestPublishService_PublishPost_MissingFields(t *testing.T) {
	api := new(mockLinkedIn)
	svc := newService(api, nil, services.PublishConfig{})

	_, err := svc.PublishPost(context.Background(), services.PublishRequest{OrgID: "1"})

	var missing *services.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"accessToken", "text"}, missing.Fields)
	assert.Empty(t, api.Calls)
}

func TestPublishService_PublishPost_TextOnly(t *testing.T) {
	api := new(mockLinkedIn)
	api.On("Publish", mock.Anything, "tok", mock.MatchedBy(func(p linkedin.PostPayload) bool {
		c := p.SpecificContent.ShareContent
		return p.Author == "urn:li:organization:12345" && c.ShareMediaCategory == "NONE" && len(c.Media) == 0
	})).Return(json.RawMessage(`{"id":"urn:li:share:1"}`), nil)

	svc := newService(api, nil, services.PublishConfig{})

	res, err := svc.PublishPost(context.Background(), services.PublishRequest{AccessToken: "tok", OrgID: "12345", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "NONE", res.MediaCategory)
	assert.Empty(t, res.AssetID)
	api.AssertNotCalled(t, "UploadImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishService_PublishPost_WithImage(t *testing.T) {
	api := new(mockLinkedIn)
	api.On("UploadImage", mock.Anything, "tok", "12345", "/tmp/cat.png", "cat.png").Return("urn:li:digitalmediaAsset:C1", nil)
	api.On("Publish", mock.Anything, "tok", mock.MatchedBy(func(p linkedin.PostPayload) bool {
		c := p.SpecificContent.ShareContent
		return c.ShareMediaCategory == "IMAGE" && len(c.Media) == 1 && c.Media[0].Media == "urn:li:digitalmediaAsset:C1"
	})).Return(json.RawMessage(`{"id":"urn:li:share:2"}`), nil)

	svc := newService(api, nil, services.PublishConfig{})

	res, err := svc.PublishPost(context.Background(), services.PublishRequest{
		AccessToken: "tok",
		OrgID:       "urn:li:organization:12345",
		Text:        "hello",
		ImagePath:   "/tmp/cat.png",
		ImageName:   "cat.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "IMAGE", res.MediaCategory)
	assert.Equal(t, "urn:li:digitalmediaAsset:C1", res.AssetID)
	api.AssertExpectations(t)
}

func TestPublishService_PublishPost_UploadFailureSkipsPublish(t *testing.T) {
	api := new(mockLinkedIn)
	api.On("UploadImage", mock.Anything, "tok", "1", "/tmp/cat.png", "cat.png").
		Return("", &linkedin.UpstreamError{Op: "Error registering image upload", Body: "denied"})

	svc := newService(api, nil, services.PublishConfig{})

	_, err := svc.PublishPost(context.Background(), services.PublishRequest{
		AccessToken: "tok", OrgID: "1", Text: "hi", ImagePath: "/tmp/cat.png", ImageName: "cat.png",
	})
	require.Error(t, err)
	assert.True(t, linkedin.IsUpstream(err))
	api.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishService_PublishPost_PublishFailureAfterUpload(t *testing.T) {
	api := new(mockLinkedIn)
	api.On("UploadImage", mock.Anything, "tok", "1", "/tmp/cat.png", "cat.png").Return("urn:li:digitalmediaAsset:C1", nil)
	api.On("Publish", mock.Anything, "tok", mock.Anything).Return(nil, errors.New("Error posting on LinkedIn: boom"))

	var logs bytes.Buffer
	svc := services.NewPublishService(api, nil, services.PublishConfig{RedirectURI: redirectURI},
		log.NewWriterLogger(&logs, zerolog.WarnLevel), nil)
	orphansBefore := testutil.ToFloat64(metrics.OrphanedAssetsTotal)

	res, err := svc.PublishPost(context.Background(), services.PublishRequest{
		AccessToken: "tok", OrgID: "1", Text: "hi", ImagePath: "/tmp/cat.png", ImageName: "cat.png",
	})
	assert.Nil(t, res)
	assert.EqualError(t, err, "Error posting on LinkedIn: boom")

	assert.Equal(t, orphansBefore+1, testutil.ToFloat64(metrics.OrphanedAssetsTotal))
	assert.Contains(t, logs.String(), "urn:li:digitalmediaAsset:C1")
	assert.Contains(t, logs.String(), `"level":"warn"`)
}

func TestAuthorizationDeniedError_Reason(t *testing.T) {
	tests := []struct {
		code      string
		cancelled bool
		reason    string
	}{
		{code: linkedin.UserCancelledLogin, cancelled: true, reason: "cancelled"},
		{code: linkedin.UserCancelledAuthorize, cancelled: true, reason: "cancelled"},
		{code: linkedin.UnauthorizedScopeError, reason: "scope"},
		{code: "access_denied", reason: "denied"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := &services.AuthorizationDeniedError{Code: tt.code}
			assert.Equal(t, tt.cancelled, err.Cancelled())
			assert.Equal(t, tt.reason, err.Reason())
			assert.ErrorIs(t, err, services.ErrMissingCode)
		})
	}
}

func TestPublishService_CompleteAuthorization_DeniedIsClassified(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		wantLevel string
		wantMsg   string
		reason    string
	}{
		{name: "cancelled", code: linkedin.UserCancelledAuthorize, wantLevel: `"level":"info"`, wantMsg: "member cancelled authorization", reason: "cancelled"},
		{name: "scope", code: linkedin.UnauthorizedScopeError, wantLevel: `"level":"warn"`, wantMsg: "authorization denied by linkedin", reason: "scope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := new(mockLinkedIn)
			var logs, trail bytes.Buffer
			svc := services.NewPublishService(api, nil, services.PublishConfig{RedirectURI: redirectURI},
				log.NewWriterLogger(&logs, zerolog.InfoLevel), audit.New(&trail))

			_, err := svc.CompleteAuthorization(context.Background(), services.CallbackRequest{Error: tt.code})
			require.Error(t, err)

			assert.Contains(t, logs.String(), tt.wantLevel)
			assert.Contains(t, logs.String(), tt.wantMsg)
			assert.Contains(t, trail.String(), `"details":"`+tt.reason+`"`)
			api.AssertNotCalled(t, "ExchangeCode", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}
