// Package linkedin talks to the LinkedIn REST API on behalf of a member:
// the OAuth code exchange, profile and organization lookups, image asset
// uploads and UGC post publishing.
package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pilab-dev/pagepost/config"
	"github.com/pilab-dev/pagepost/internal/metrics"
	"github.com/pilab-dev/pagepost/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Upstream endpoints. They are variables so tests can point them at a fake server.
var (
	AuthorizationEndpoint  = "https://www.linkedin.com/oauth/v2/authorization"
	TokenEndpoint          = "https://www.linkedin.com/oauth/v2/accessToken"
	ProfileEndpoint        = "https://api.linkedin.com/v2/me"
	OrganizationACLsURL    = "https://api.linkedin.com/v2/organizationAcls"
	RegisterUploadEndpoint = "https://api.linkedin.com/v2/assets?action=registerUpload"
	UGCPostsEndpoint       = "https://api.linkedin.com/v2/ugcPosts"
)

const (
	DefaultTimeout       = 5 * time.Second
	DefaultUploadTimeout = 10 * time.Second

	restliProtocolHeader  = "X-Restli-Protocol-Version"
	restliProtocolVersion = "2.0.0"
	restliIDHeader        = "X-RestLi-Id"

	tracerName = "github.com/pilab-dev/pagepost/internal/linkedin"
)

// operation names one kind of upstream call: a metric label and the prefix of
// the error message returned to callers.
type operation struct {
	name string
	desc string
}

var (
	opExchange = operation{"token_exchange", "Error fetching access token"}
	opProfile  = operation{"profile", "Error fetching user profile"}
	opPages    = operation{"organization_acls", "Error fetching LinkedIn pages"}
	opRegister = operation{"register_upload", "Error registering image upload"}
	opUpload   = operation{"upload_asset", "Error uploading image"}
	opPublish  = operation{"publish", "Error posting on LinkedIn"}
)

// Client is safe for concurrent use; it holds no per-member state.
type Client struct {
	creds         config.Credentials
	httpClient    *http.Client
	uploadTimeout time.Duration
	logger        log.Logger
	tracer        trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport client. Its Timeout becomes the default per-call timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithDefaultTimeout sets the timeout applied to every call without an
// override. A client passed through WithHTTPClient is copied, not modified.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.httpClient
			hc.Timeout = d
			c.httpClient = &hc
		}
	}
}

// WithUploadTimeout sets the override used by the two image upload steps.
func WithUploadTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.uploadTimeout = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient builds a client for the given app registration.
func NewClient(creds config.Credentials, opts ...Option) *Client {
	c := &Client{
		creds:         creds,
		httpClient:    &http.Client{Timeout: DefaultTimeout},
		uploadTimeout: DefaultUploadTimeout,
		logger:        log.Nop(),
		tracer:        otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(log.Fields{"component": "linkedin"})

	return c
}

// Credentials returns the app registration the client was built with.
func (c *Client) Credentials() config.Credentials {
	return c.creds
}

// CallOption tweaks a single upstream call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout time.Duration
}

// WithTimeout overrides the transport timeout for one call.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
	}
}

func applyCallOptions(defaults callOptions, opts []CallOption) callOptions {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}

// clientFor returns the transport client honouring a per-call timeout.
func (c *Client) clientFor(timeout time.Duration) *http.Client {
	if timeout <= 0 || timeout == c.httpClient.Timeout {
		return c.httpClient
	}
	hc := *c.httpClient
	hc.Timeout = timeout
	return &hc
}

type request struct {
	op            operation
	method        string
	url           string
	accessToken   string
	contentType   string
	body          io.Reader
	contentLength int64
	headers       map[string]string
	timeout       time.Duration
}

type response struct {
	statusCode int
	header     http.Header
	body       []byte
}

// send performs one upstream round trip. Any transport failure or non-2xx
// status becomes an *UpstreamError carrying the provider body.
func (c *Client) send(ctx context.Context, r request) (resp *response, err error) {
	ctx, span := c.tracer.Start(ctx, "linkedin."+r.op.name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.method", r.method)),
	)
	start := time.Now()
	defer func() {
		metrics.UpstreamRequestDuration.WithLabelValues(r.op.name).Observe(time.Since(start).Seconds())
		recordOutcome(r.op, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, r.op.desc)
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, r.body)
	if err != nil {
		return nil, &UpstreamError{Op: r.op.desc, Err: err}
	}
	if r.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.accessToken)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.contentLength > 0 {
		req.ContentLength = r.contentLength
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	httpResp, err := c.clientFor(r.timeout).Do(req)
	if err != nil {
		c.logger.Warn(ctx, "linkedin request failed", log.Fields{"operation": r.op.name, "error": err.Error()})
		return nil, &UpstreamError{Op: r.op.desc, Err: err}
	}
	defer httpResp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", httpResp.StatusCode))

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &UpstreamError{Op: r.op.desc, StatusCode: httpResp.StatusCode, Err: fmt.Errorf("reading response body: %w", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		ue := &UpstreamError{Op: r.op.desc, StatusCode: httpResp.StatusCode, Body: string(body)}
		fields := log.Fields{
			"operation": r.op.name,
			"status":    httpResp.StatusCode,
		}
		if pe := ue.Provider(); pe != nil {
			fields["provider_error"] = pe.Summary()
		}
		c.logger.Warn(ctx, "linkedin returned an error status", fields)
		return nil, ue
	}

	c.logger.Debug(ctx, "linkedin request completed", log.Fields{
		"operation": r.op.name,
		"status":    httpResp.StatusCode,
		"latency":   time.Since(start).String(),
	})

	return &response{statusCode: httpResp.StatusCode, header: httpResp.Header, body: body}, nil
}

func recordOutcome(op operation, err error) {
	metrics.UpstreamRequestsTotal.WithLabelValues(op.name, metrics.Outcome(err)).Inc()
}

// sendJSON marshals in (when non-nil) as the request body and decodes the
// response into out (when non-nil).
func (c *Client) sendJSON(ctx context.Context, r request, in, out interface{}) (*response, error) {
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, &UpstreamError{Op: r.op.desc, Err: fmt.Errorf("encoding request: %w", err)}
		}
		r.body = bytes.NewReader(payload)
		r.contentType = "application/json"
	}

	resp, err := c.send(ctx, r)
	if err != nil {
		return nil, err
	}

	if out != nil && len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, out); err != nil {
			return nil, &UpstreamError{Op: r.op.desc, StatusCode: resp.statusCode, Err: fmt.Errorf("decoding response: %w", err)}
		}
	}

	return resp, nil
}
