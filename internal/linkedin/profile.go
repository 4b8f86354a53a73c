package linkedin

import (
	"context"
	"encoding/json"
	"net/http"
)

// Profile is the member profile exactly as LinkedIn returned it.
type Profile = json.RawMessage

// FetchProfile returns the authenticated member's profile. It does not retry.
func (c *Client) FetchProfile(ctx context.Context, accessToken string, opts ...CallOption) (Profile, error) {
	if accessToken == "" {
		return nil, &UpstreamError{Op: opProfile.desc, Err: ErrMissingAccessToken}
	}
	o := applyCallOptions(callOptions{}, opts)

	resp, err := c.send(ctx, request{
		op:          opProfile,
		method:      http.MethodGet,
		url:         ProfileEndpoint,
		accessToken: accessToken,
		timeout:     o.timeout,
	})
	if err != nil {
		return nil, err
	}

	if !json.Valid(resp.body) {
		return nil, &UpstreamError{Op: opProfile.desc, StatusCode: resp.statusCode, Body: string(resp.body)}
	}

	return Profile(resp.body), nil
}
