package linkedin_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pilab-dev/pagepost/config"
	"github.com/pilab-dev/pagepost/internal/linkedin"
)

// recordedCall is one request seen by the fake LinkedIn server.
type recordedCall struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

type fakeLinkedIn struct {
	*httptest.Server

	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeLinkedIn) record(r *http.Request, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})
}

func (f *fakeLinkedIn) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// pointEndpointsAt redirects every LinkedIn endpoint to base for the duration of the test.
func pointEndpointsAt(t *testing.T, base string) {
	t.Helper()

	orig := []string{
		linkedin.AuthorizationEndpoint,
		linkedin.TokenEndpoint,
		linkedin.ProfileEndpoint,
		linkedin.OrganizationACLsURL,
		linkedin.RegisterUploadEndpoint,
		linkedin.UGCPostsEndpoint,
	}
	linkedin.AuthorizationEndpoint = base + "/oauth/v2/authorization"
	linkedin.TokenEndpoint = base + "/oauth/v2/accessToken"
	linkedin.ProfileEndpoint = base + "/v2/me"
	linkedin.OrganizationACLsURL = base + "/v2/organizationAcls"
	linkedin.RegisterUploadEndpoint = base + "/v2/assets?action=registerUpload"
	linkedin.UGCPostsEndpoint = base + "/v2/ugcPosts"

	t.Cleanup(func() {
		linkedin.AuthorizationEndpoint = orig[0]
		linkedin.TokenEndpoint = orig[1]
		linkedin.ProfileEndpoint = orig[2]
		linkedin.OrganizationACLsURL = orig[3]
		linkedin.RegisterUploadEndpoint = orig[4]
		linkedin.UGCPostsEndpoint = orig[5]
	})
}

func newFake(t *testing.T, h func(w http.ResponseWriter, r *http.Request, body []byte)) *fakeLinkedIn {
	t.Helper()

	f := &fakeLinkedIn{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := readAll(r)
		f.record(r, body)
		h(w, r, body)
	}))
	t.Cleanup(f.Close)
	pointEndpointsAt(t, f.URL)

	return f
}

func testCredentials() config.Credentials {
	return config.Credentials{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:3000/linkedin/callback",
		Scopes:       []string{"openid", "w_organization_social"},
	}
}

func readAll(r *http.Request) []byte {
	if r.Body == nil {
		return nil
	}
	b, _ := io.ReadAll(r.Body)
	return b
}
