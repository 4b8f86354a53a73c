package linkedin

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pilab-dev/pagepost/internal/metrics"
	"github.com/pilab-dev/pagepost/log"
	"golang.org/x/oauth2"
)

// OAuth2Config builds the oauth2.Config for the given redirect URI. LinkedIn
// expects the client credentials in the form body, not in a Basic header.
func (c *Client) OAuth2Config(redirectURI string) *oauth2.Config {
	if redirectURI == "" {
		redirectURI = c.creds.RedirectURI
	}

	return &oauth2.Config{
		ClientID:     c.creds.ClientID,
		ClientSecret: c.creds.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       c.creds.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   AuthorizationEndpoint,
			TokenURL:  TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL returns the authorization screen URL for state. LinkedIn takes
// the scope list comma separated.
func (c *Client) AuthCodeURL(state string) string {
	conf := c.OAuth2Config("")
	conf.Scopes = nil

	opts := []oauth2.AuthCodeOption{}
	if len(c.creds.Scopes) > 0 {
		opts = append(opts, oauth2.SetAuthURLParam("scope", strings.Join(c.creds.Scopes, ",")))
	}

	return conf.AuthCodeURL(state, opts...)
}

// ExchangeCode trades an authorization code for an access token. redirectURI
// must be the one the authorization request was made with.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string, opts ...CallOption) (tok *oauth2.Token, err error) {
	o := applyCallOptions(callOptions{}, opts)

	ctx, span := c.tracer.Start(ctx, "linkedin."+opExchange.name)
	start := time.Now()
	defer func() {
		metrics.UpstreamRequestDuration.WithLabelValues(opExchange.name).Observe(time.Since(start).Seconds())
		recordOutcome(opExchange, err)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.clientFor(o.timeout))

	tok, err = c.OAuth2Config(redirectURI).Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			ue := &UpstreamError{
				Op:         opExchange.desc,
				StatusCode: retrieveErr.Response.StatusCode,
				Body:       string(retrieveErr.Body),
				Err:        err,
			}
			c.logExchangeFailure(ctx, ue)
			return nil, ue
		}
		return nil, &UpstreamError{Op: opExchange.desc, Err: err}
	}

	if tok.AccessToken == "" {
		return nil, &UpstreamError{Op: opExchange.desc, Err: errors.New("response missing access_token")}
	}

	c.logger.Debug(ctx, "authorization code exchanged", log.Fields{
		"expires_at": tok.Expiry,
	})

	return tok, nil
}

// logExchangeFailure separates a rejected app registration, which needs an
// operator, from a rejected code, which the member can retry.
func (c *Client) logExchangeFailure(ctx context.Context, ue *UpstreamError) {
	pe := ue.Provider()
	if pe == nil {
		return
	}

	fields := log.Fields{"status": ue.StatusCode, "provider_error": pe.Summary()}
	switch pe.Code {
	case InvalidClient:
		c.logger.Error(ctx, "linkedin rejected the client credentials", ue, fields)
	case InvalidGrant, InvalidRequest:
		c.logger.Warn(ctx, "authorization code rejected", fields)
	}
}
