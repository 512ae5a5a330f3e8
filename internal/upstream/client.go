package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	eventbus "github.com/hanpama/usergraph/internal/eventbus"
	events "github.com/hanpama/usergraph/internal/events"
	"google.golang.org/grpc/metadata"
)

// maxErrorBody bounds how much of a failed response is drained.
const maxErrorBody = 64 << 10

// Client reads users and companies from the REST backend. Every call issues
// exactly one request; nothing is cached or retried.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithTimeout bounds each request. 0 disables the bound.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

// New returns a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("upstream url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("upstream url %q: scheme must be http or https", baseURL)
	}
	c := &Client{baseURL: strings.TrimRight(u.String(), "/"), http: http.DefaultClient}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// User fetches GET /users/{id}.
func (c *Client) User(ctx context.Context, id string) (map[string]any, error) {
	var out map[string]any
	if err := c.get(ctx, "/users/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Company fetches GET /companies/{id}.
func (c *Client) Company(ctx context.Context, id string) (map[string]any, error) {
	var out map[string]any
	if err := c.get(ctx, "/companies/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CompanyUsers fetches GET /companies/{id}/users, keeping upstream order.
func (c *Client) CompanyUsers(ctx context.Context, companyID string) ([]map[string]any, error) {
	var out []map[string]any
	if err := c.get(ctx, "/companies/"+url.PathEscape(companyID)+"/users", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) (err error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &FetchError{Method: http.MethodGet, URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	// Inbound headers selected by the server travel as outgoing metadata.
	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		for k, vs := range md {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}

	id := uuid.NewString()
	start := time.Now()
	status := 0
	eventbus.Publish(ctx, events.FetchStart{ID: id, Method: req.Method, URL: target})
	defer func() {
		eventbus.Publish(ctx, events.FetchFinish{
			ID:       id,
			Method:   req.Method,
			URL:      target,
			Status:   status,
			Err:      err,
			Duration: time.Since(start),
		})
	}()

	resp, err := c.http.Do(req)
	if err != nil {
		return &FetchError{Method: req.Method, URL: target, Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return &FetchError{Method: req.Method, URL: target, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Method: req.Method, URL: target, Status: resp.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}
	return nil
}
