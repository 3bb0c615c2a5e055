// Package api is the HTTP transport to the devquote backend and the typed
// endpoint wrappers built on it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/devquote/internal/errors"
	"github.com/felixgeelhaar/devquote/internal/log"
	"github.com/felixgeelhaar/devquote/internal/metrics"
)

const (
	// DefaultTimeout bounds every request attempt.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent is sent when Config.UserAgent is empty.
	DefaultUserAgent = "devquote-cli"

	// RequestIDHeader carries a fresh UUID per attempt.
	RequestIDHeader = "X-Request-ID"

	maxResponseBytes = 10 << 20
)

const tracerName = "github.com/felixgeelhaar/devquote/internal/api"

// TokenSource supplies the access token attached to outgoing requests.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Doer sends a Request. Client implements it directly; the session
// coordinator wraps a Client and adds the refresh-and-replay rule.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON encoded unless it is a []byte or json.RawMessage.
	Body   any
	Header http.Header

	// SkipAuth suppresses the Authorization header (login, refresh).
	SkipAuth bool

	// BearerOverride pins the token instead of reading the token source.
	BearerOverride string

	// Retried is set once the request was replayed after a refresh.
	Retried bool
}

// Clone returns a copy that can be modified without touching r.
func (r *Request) Clone() *Request {
	c := *r
	if r.Query != nil {
		c.Query = make(url.Values, len(r.Query))
		for k, v := range r.Query {
			c.Query[k] = append([]string(nil), v...)
		}
	}
	if r.Header != nil {
		c.Header = r.Header.Clone()
	}
	return &c
}

// Response is a successful (2xx) reply.
type Response struct {
	Data       []byte
	StatusCode int
	Header     http.Header
}

// Decode unmarshals the body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Data)) == 0 || v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
	Tokens     TokenSource
	Logger     *log.Logger
	Metrics    *metrics.Metrics
}

// Client is the devquote backend HTTP client.
//
// It attaches the bearer token, normalizes failures into *APIError and never
// touches session state.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
	tokens     TokenSource
	logger     *log.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// NewClient creates a new API client
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.NewConfigInvalidError(fmt.Sprintf("api.base_url %q is not an absolute URL", cfg.BaseURL))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		userAgent:  ua,
		tokens:     cfg.Tokens,
		logger:     log.OrDefault(cfg.Logger).With("component", "api"),
		metrics:    cfg.Metrics,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Do sends req once. Non-2xx replies and transport failures are returned
// as *APIError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	ctx, span := c.tracer.Start(ctx, "api.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", req.Path),
			attribute.Bool("devquote.retried", req.Retried),
		),
	)
	defer span.End()

	requestID := uuid.NewString()
	start := time.Now()

	resp, err := c.send(ctx, method, req, requestID)
	elapsed := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	} else if apiErr, ok := AsAPIError(err); ok {
		status = apiErr.Status
	}
	c.metrics.ObserveRequest(method, status, elapsed)
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	c.logger.DebugContext(ctx, "api request",
		"method", method,
		"path", req.Path,
		"status", status,
		"duration_ms", elapsed.Milliseconds(),
		"request_id", requestID,
		"retried", req.Retried,
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.ObserveError(string(errors.CodeOf(err)), "api")
		return nil, err
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method string, req *Request, requestID string) (*Response, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, "failed to encode request body", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.resolve(req), body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, "failed to create request", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(RequestIDHeader, requestID)
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if token := c.bearer(ctx, req); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, req.Path, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(ctx, req.Path, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, parseAPIError(httpResp.StatusCode, req.Path, data)
	}

	return &Response{
		Data:       data,
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
	}, nil
}

// bearer picks the token for req. A failed token read is logged and the
// request goes out unauthenticated.
func (c *Client) bearer(ctx context.Context, req *Request) string {
	if req.SkipAuth {
		return ""
	}
	if req.BearerOverride != "" {
		return req.BearerOverride
	}
	if c.tokens == nil {
		return ""
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		c.logger.WithError(err).WarnContext(ctx, "failed to read access token, sending unauthenticated", "path", req.Path)
		return ""
	}
	return token
}

func (c *Client) resolve(req *Request) string {
	u := *c.baseURL
	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	rawPath, rawQuery, _ := strings.Cut(path, "?")
	u.Path = strings.TrimRight(u.Path, "/") + rawPath

	q, _ := url.ParseQuery(rawQuery)
	for k, vs := range req.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	}
}

// Get, Post, Put, Patch and Delete are shorthands over any Doer.

func Get(ctx context.Context, d Doer, path string, query url.Values) (*Response, error) {
	return d.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

func Post(ctx context.Context, d Doer, path string, body any) (*Response, error) {
	return d.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

func Put(ctx context.Context, d Doer, path string, body any) (*Response, error) {
	return d.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

func Patch(ctx context.Context, d Doer, path string, body any) (*Response, error) {
	return d.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

func Delete(ctx context.Context, d Doer, path string, body any) (*Response, error) {
	return d.Do(ctx, &Request{Method: http.MethodDelete, Path: path, Body: body})
}

// doJSON sends req and decodes a successful body into out.
func doJSON(ctx context.Context, d Doer, req *Request, out any) error {
	resp, err := d.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}
