package esapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second

	// DefaultPollInterval is the first delay between task status checks
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultTaskTimeout bounds how long Content waits for a pending task
	DefaultTaskTimeout = 10 * time.Minute

	// APIKeyHeader carries a user's api_key
	APIKeyHeader = "ES-API-KEY"

	// DCHeader is the response header naming the datacenter of a call
	DCHeader = "es_dc"

	maxResponseSize = 10 * 1024 * 1024
)

// Client talks to the Erigones SDDC API on behalf of a single user. It is safe
// for concurrent use.
type Client struct {
	apiURL       string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
	taskTimeout  time.Duration

	mu    sync.RWMutex
	token string
}

// Option configures a Client
type Option func(*Client)

// WithAPIKey authenticates every request with an api_key instead of a login token
func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTaskPolling sets the initial poll interval and the overall wait for pending tasks
func WithTaskPolling(interval, timeout time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
		if timeout > 0 {
			c.taskTimeout = timeout
		}
	}
}

// New creates a client for the API rooted at apiURL
func New(apiURL string, opts ...Option) *Client {
	c := &Client{
		apiURL:       strings.TrimRight(apiURL, "/"),
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		pollInterval: DefaultPollInterval,
		taskTimeout:  DefaultTaskTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// String identifies the client in log lines
func (c *Client) String() string {
	return c.apiURL
}

// IsAuthenticated reports whether requests carry an api_key or a login token
func (c *Client) IsAuthenticated() bool {
	if c.apiKey != "" {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// Login signs in with username and password and keeps the returned token for
// subsequent requests. A non-nil error means the client is not authenticated.
func (c *Client) Login(ctx context.Context, username, password string) (*Response, error) {
	resp, err := c.send(ctx, http.MethodPost, "/accounts/login/", map[string]interface{}{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	content, err := resp.Content(ctx)
	if err != nil {
		c.setToken("")
		return resp, err
	}

	token := tokenFrom(content)
	if token == "" {
		c.setToken("")
		return resp, &APIError{StatusCode: resp.StatusCode, Detail: "login response did not contain a token"}
	}

	c.setToken(token)
	return resp, nil
}

// Logout ends the server-side session and forgets the token
func (c *Client) Logout(ctx context.Context) (*Response, error) {
	resp, err := c.send(ctx, http.MethodGet, "/accounts/logout/", nil)
	if err != nil {
		return nil, err
	}
	if _, err := resp.Content(ctx); err != nil {
		return resp, err
	}
	c.setToken("")
	return resp, nil
}

// Request issues method on resource. Transport failures are returned as errors;
// API failures surface when the response Content is read.
func (c *Client) Request(ctx context.Context, method, resource string, params map[string]interface{}) (*Response, error) {
	return c.send(ctx, strings.ToUpper(method), resource, params)
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) send(ctx context.Context, method, resource string, params map[string]interface{}) (*Response, error) {
	u, err := url.Parse(c.apiURL + resource)
	if err != nil {
		return nil, fmt.Errorf("parsing resource URL: %w", err)
	}

	var body io.Reader
	switch method {
	case http.MethodGet, http.MethodDelete:
		q := u.Query()
		for k, v := range params {
			if s, ok := queryValue(v); ok {
				q.Set(k, s)
			}
		}
		u.RawQuery = q.Encode()
	default:
		if params == nil {
			params = map[string]interface{}{}
		}
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	} else {
		c.mu.RLock()
		token := c.token
		c.mu.RUnlock()
		if token != "" {
			req.Header.Set("Authorization", "Token "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if len(data) > maxResponseSize {
		return nil, fmt.Errorf("%w of %d bytes", ErrResponseTooLarge, maxResponseSize)
	}

	head := peek(data)
	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		TaskID:     head.TaskID,
		DC:         head.DC,
		client:     c,
		body:       data,
	}
	if out.DC == "" {
		out.DC = resp.Header.Get(DCHeader)
	}
	if out.DC == "" {
		if dc, ok := params["dc"].(string); ok {
			out.DC = dc
		}
	}
	out.Stream = resp.StatusCode == http.StatusCreated && out.TaskID != ""

	return out, nil
}

// waitForTask polls the task status until the API stops answering 201 Created
func (c *Client) waitForTask(ctx context.Context, taskID string) (*Response, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.pollInterval
	b.MaxInterval = 8 * c.pollInterval
	b.MaxElapsedTime = c.taskTimeout

	var final *Response
	op := func() error {
		resp, err := c.send(ctx, http.MethodGet, "/task/"+url.PathEscape(taskID)+"/status/", nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if resp.StatusCode == http.StatusCreated {
			return ErrTaskPending
		}
		final = resp
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, ErrTaskPending) {
			return nil, fmt.Errorf("task %s: %w after %s", taskID, err, c.taskTimeout)
		}
		return nil, err
	}
	return final, nil
}

func queryValue(v interface{}) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case json.Number:
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val), true
		}
		return string(data), true
	}
}

func tokenFrom(content *Content) string {
	if content.Token != "" {
		return content.Token
	}
	for _, v := range []interface{}{content.Result, content.Detail} {
		if m, ok := v.(map[string]interface{}); ok {
			if token, ok := m["token"].(string); ok && token != "" {
				return token
			}
		}
	}
	return ""
}
