package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/evalix/core"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoffStep = 400 * time.Millisecond
	DefaultTimeout     = 30 * time.Second
)

// outcome of a single attempt
type outcome int

const (
	success outcome = iota
	retryableFailure
	terminalFailure
)

type attempt struct {
	status int
	body   []byte
	err    error
}

func (a attempt) outcome() outcome {
	switch {
	case a.err != nil:
		return retryableFailure
	case a.status >= http.StatusOK && a.status < http.StatusMultipleChoices:
		return success
	case a.status >= http.StatusInternalServerError:
		return retryableFailure
	default:
		return terminalFailure
	}
}

// Client talks to a hosted REST collection laid out as `{baseURL}/{resource}[/{id}]`.
// Transient failures (network errors & 5xx) are retried with a linear backoff; 4xx responses are not.
type Client struct {
	baseURL     string
	resource    string
	client      *http.Client
	tokens      TokenProvider
	maxAttempts int
	backoffStep time.Duration
	userAgent   string
	logger      core.Logger
}

type Option func(*Client)

// WithHTTPClient sets the http.Client used for requests. It should not carry a cookie jar.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func WithTokenProvider(tp TokenProvider) Option {
	return func(c *Client) { c.tokens = tp }
}

func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithBackoffStep(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.backoffStep = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func WithLogger(logger core.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(baseURL, resource string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		resource:    strings.Trim(resource, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		maxAttempts: DefaultMaxAttempts,
		backoffStep: DefaultBackoffStep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List fetches the collection. params are sent as query string values; the store does the filtering.
func (c *Client) List(ctx context.Context, params map[string]interface{}, out interface{}) error {
	return c.do(ctx, http.MethodGet, c.url("", params), nil, out)
}

func (c *Client) Get(ctx context.Context, id string, out interface{}) error {
	return c.do(ctx, http.MethodGet, c.url(id, nil), nil, out)
}

func (c *Client) Create(ctx context.Context, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, c.url("", nil), body, out)
}

func (c *Client) Update(ctx context.Context, id string, body, out interface{}) error {
	return c.do(ctx, http.MethodPut, c.url(id, nil), body, out)
}

func (c *Client) Delete(ctx context.Context, id string, out interface{}) error {
	return c.do(ctx, http.MethodDelete, c.url(id, nil), nil, out)
}

func (c *Client) url(id string, params map[string]interface{}) string {
	u := c.baseURL + "/" + c.resource
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		q := make(url.Values, len(params))
		for _, k := range keys {
			if v := params[k]; v != nil {
				q.Set(k, fmt.Sprint(v))
			}
		}
		if len(q) > 0 {
			u += "?" + q.Encode()
		}
	}
	return u
}

func (c *Client) headers(ctx context.Context, hasBody bool) (http.Header, error) {
	h := make(http.Header)
	h.Set("Accept", "application/json")
	if hasBody {
		h.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		h.Set("User-Agent", c.userAgent)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "getting auth token")
		}
		if token != "" {
			h.Set("Authorization", "Bearer "+token)
		}
	}
	return h, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.Wrapf(err, "encoding %s %s body", method, rawURL)
		}
	}
	header, err := c.headers(ctx, payload != nil)
	if err != nil {
		return err
	}

	var (
		last     attempt
		attempts int
	)
	for attempts < c.maxAttempts {
		attempts++
		last = c.roundTrip(ctx, method, rawURL, header, payload)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		switch last.outcome() {
		case success:
			return decode(last.body, out, method, rawURL)
		case terminalFailure:
			return &RequestError{Method: method, URL: rawURL, Status: last.status, Attempts: attempts, Kind: KindClient}
		}

		if attempts == c.maxAttempts {
			break
		}
		delay := c.backoffStep * time.Duration(attempts)
		c.warn(fmt.Sprintf("%s %s failed (attempt %d/%d), retrying in %v", method, rawURL, attempts, c.maxAttempts, delay),
			map[string]interface{}{"status": last.status, "error": fmt.Sprint(last.err)})
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	if attempts == 0 {
		return &RequestError{Method: method, URL: rawURL, Err: errRequestFailed}
	}
	kind := KindExhausted
	if attempts == 1 {
		kind = KindTransient
	}
	return &RequestError{Method: method, URL: rawURL, Status: last.status, Attempts: attempts, Kind: kind, Err: last.err}
}

func (c *Client) roundTrip(ctx context.Context, method, rawURL string, header http.Header, payload []byte) attempt {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return attempt{err: err}
	}
	req.Header = header.Clone()

	resp, err := c.client.Do(req)
	if err != nil {
		return attempt{err: err}
	}
	defer ensureReaderClosed(resp)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return attempt{status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return attempt{err: errors.Wrap(err, "reading response body")}
	}
	return attempt{status: resp.StatusCode, body: data}
}

func (c *Client) warn(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func decode(data []byte, out interface{}, method, rawURL string) error {
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decoding %s %s response", method, rawURL)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func ensureReaderClosed(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		// drain so the Transport can reuse the connection
		_, _ = io.CopyN(io.Discard, resp.Body, 512)
		_ = resp.Body.Close()
	}
}
