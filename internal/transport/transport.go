package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/dbaas/internal/metrics"
)

const (
	DefaultRetries      = 3
	DefaultRetryDelay   = 100 * time.Millisecond
	DefaultRetryFactor  = 2
	DefaultTimeout      = 30 * time.Second
	tokenHeader         = "X-Auth-Token"
	redactedPlaceholder = "***"
)

// Session is the authenticated state the transport signs requests with:
// a bearer token and the resolved service endpoint. Sessions are immutable
// values; re-authentication swaps in a fresh one.
type Session struct {
	Token    string
	Endpoint string
}

// ReauthFunc produces a fresh Session after the current one is rejected
// with a 401. It is called at most once per failing request.
type ReauthFunc func(ctx context.Context) (Session, error)

type Options struct {
	Session  Session
	Reauth   ReauthFunc
	Retries  int
	Timeout  time.Duration
	Insecure bool
	CABundle string
	Logger   zerolog.Logger
}

// Client is the signed HTTP transport under every resource manager.
// The session swap on re-auth happens behind the client's mutex; the
// client itself is the single ownership boundary for the Session.
type Client struct {
	httpClient *http.Client
	reauth     ReauthFunc
	retries    int
	timeout    time.Duration
	logger     zerolog.Logger

	mu      sync.Mutex
	session Session
}

// Response carries the status, headers, and raw body of a completed request.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func New(opts Options) (*Client, error) {
	tlsConfig, err := buildTLSConfig(opts.Insecure, opts.CABundle)
	if err != nil {
		return nil, err
	}

	retries := opts.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
			// Redirects are only followed during identity exchange,
			// never on service calls.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		reauth:  opts.Reauth,
		retries: retries,
		timeout: timeout,
		logger:  opts.Logger.With().Str("component", "transport").Logger(),
		session: opts.Session,
	}, nil
}

func buildTLSConfig(insecure bool, caBundle string) (*tls.Config, error) {
	cfg := &tls.Config{InsecureSkipVerify: insecure}
	if caBundle != "" {
		pem, err := os.ReadFile(caBundle)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("CA bundle %s contains no certificates", caBundle)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// Session returns the current session value.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SetSession swaps in a new session value.
func (c *Client) SetSession(s Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Request(ctx, http.MethodGet, path, nil, query)
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Request(ctx, http.MethodPost, path, body, nil)
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Request(ctx, http.MethodPut, path, body, nil)
}

func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Request(ctx, http.MethodPatch, path, body, nil)
}

func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Request(ctx, http.MethodDelete, path, nil, nil)
}

// idempotent verbs may be retried on connection errors; POST and PATCH never are.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodHead:
		return true
	}
	return false
}

// Request performs a signed JSON request against the session endpoint.
// Non-2xx responses are mapped into the error taxonomy; the *Response is
// returned alongside the error so callers can still inspect it.
func (c *Client) Request(ctx context.Context, method, path string, body any, query url.Values) (*Response, error) {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	var lastErr error
	delay := DefaultRetryDelay
	attempts := 1
	if idempotent(method) {
		attempts = c.retries
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctxError(ctx.Err())
			}
			delay *= DefaultRetryFactor
		}

		resp, err := c.once(ctx, method, path, encoded, query, true)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// Only transport-level connection failures are retried. Anything
		// that produced an HTTP status is final.
		if !IsKind(err, KindConnectionError) {
			return resp, err
		}
	}
	return nil, lastErr
}

// once runs a single request, replaying exactly one time after a 401 if a
// re-auth hook is configured.
func (c *Client) once(ctx context.Context, method, path string, body []byte, query url.Values, allowReauth bool) (*Response, error) {
	session := c.Session()
	resp, err := c.do(ctx, session, method, path, body, query)
	if err != nil {
		return nil, err
	}

	if resp.Status == http.StatusUnauthorized && allowReauth && c.reauth != nil {
		fresh, reauthErr := c.reauth(ctx)
		if reauthErr != nil {
			return nil, &Error{Kind: KindAuthorizationFailure, Status: http.StatusUnauthorized,
				Message: fmt.Sprintf("re-authentication failed: %v", reauthErr)}
		}
		c.SetSession(fresh)
		return c.once(ctx, method, path, body, query, false)
	}

	if resp.Status >= 400 {
		return resp, ErrorFromResponse(resp.Status, resp.Header, resp.Body)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, session Session, method, path string, body []byte, query url.Values) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := strings.TrimRight(session.Endpoint, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session.Token != "" {
		req.Header.Set(tokenHeader, session.Token)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveRequest(method, 0, duration)
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, &Error{Kind: KindTimeout, Message: fmt.Sprintf("%s %s: deadline exceeded", method, path)}
		}
		if errors.Is(err, context.Canceled) {
			return nil, ctxError(context.Canceled)
		}
		return nil, &Error{Kind: KindConnectionError, Message: fmt.Sprintf("%s %s: %v", method, path, err)}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		metrics.ObserveRequest(method, httpResp.StatusCode, duration)
		return nil, &Error{Kind: KindConnectionError, Message: fmt.Sprintf("read response body: %v", err)}
	}

	metrics.ObserveRequest(method, httpResp.StatusCode, duration)
	c.logRequest(method, path, body, httpResp.StatusCode, respBody, duration)

	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   respBody,
	}, nil
}

// logRequest dumps the exchange at debug level. The auth token never appears:
// only the redaction placeholder is logged for it.
func (c *Client) logRequest(method, path string, reqBody []byte, status int, respBody []byte, duration time.Duration) {
	if c.logger.GetLevel() > zerolog.DebugLevel {
		return
	}
	ev := c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Str(strings.ToLower(tokenHeader), redactedPlaceholder).
		Int("status", status).
		Dur("duration", duration)
	if len(reqBody) > 0 {
		ev = ev.RawJSON("request", reqBody)
	}
	if len(respBody) > 0 && json.Valid(respBody) {
		ev = ev.RawJSON("response", respBody)
	}
	ev.Msg("api request")
}

func ctxError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "deadline exceeded"}
	}
	return &Error{Kind: KindConnectionError, Message: err.Error()}
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Decode unmarshals the response body. A non-empty body that fails to decode
// is a ResponseFormatError.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return &Error{Kind: KindResponseFormatError, Status: r.Status, Message: "empty response body"}
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &Error{Kind: KindResponseFormatError, Status: r.Status,
			Message: fmt.Sprintf("undecodable response body: %v", err), RequestID: requestID(r.Header)}
	}
	return nil
}
