package esapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// Content is the decoded body of an API response
type Content struct {
	Status string      `json:"status,omitempty"`
	Result interface{} `json:"result,omitempty"`
	TaskID string      `json:"task_id,omitempty"`
	DC     string      `json:"dc,omitempty"`
	Detail interface{} `json:"detail,omitempty"`
	Token  string      `json:"token,omitempty"`
}

// Response is the answer to a single API call. The body is decoded lazily by
// Content, which also waits for pending tasks to finish.
type Response struct {
	StatusCode int
	Header     http.Header
	DC         string
	TaskID     string
	Stream     bool

	client *Client
	body   []byte

	mu       sync.Mutex
	resolved bool
	content  *Content
	err      error
}

// OK reports whether the initial status code is 2xx
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Content returns the decoded body. Non-2xx answers yield an *APIError. For a
// pending task the task status is polled until it completes.
func (r *Response) Content(ctx context.Context) (*Content, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved {
		return r.content, r.err
	}

	content, err := r.resolve(ctx)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil, err
	}

	r.content, r.err, r.resolved = content, err, true
	return content, err
}

func (r *Response) resolve(ctx context.Context) (*Content, error) {
	status, body := r.StatusCode, r.body

	if r.Stream && r.client != nil {
		final, err := r.client.waitForTask(ctx, r.TaskID)
		if err != nil {
			return nil, err
		}
		status, body = final.StatusCode, final.body
		if final.DC != "" {
			r.DC = final.DC
		}
	}

	return decodeContent(status, body)
}

func decodeContent(status int, body []byte) (*Content, error) {
	if status < 200 || status >= 300 {
		return nil, &APIError{StatusCode: status, Detail: detailFromBody(body)}
	}

	content := &Content{}
	if len(body) == 0 {
		return content, nil
	}
	if err := json.Unmarshal(body, content); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return content, nil
}

// peek reads the routing fields of a body without failing on non-JSON input
func peek(body []byte) Content {
	var c Content
	_ = json.Unmarshal(body, &c)
	return c
}
