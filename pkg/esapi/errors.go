package esapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DetailNoCredentials is the detail returned with 403 when the request carried no
// valid credentials, which is what an expired server-side session looks like.
const DetailNoCredentials = "Authentication credentials were not provided."

var (
	// ErrTaskPending is returned when a task did not finish within the task timeout
	ErrTaskPending = errors.New("task is still pending")

	// ErrResponseTooLarge is returned when a response body exceeds maxResponseSize
	ErrResponseTooLarge = errors.New("response exceeds maximum size")
)

// APIError is a non-2xx answer from the API
type APIError struct {
	StatusCode int
	Detail     interface{}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ESAPIError %d: %v", e.StatusCode, e.Detail)
}

// NoCredentials reports whether the error is the 403 sent for a missing or expired session
func (e *APIError) NoCredentials() bool {
	if e.StatusCode != http.StatusForbidden {
		return false
	}
	detail, ok := e.Detail.(string)
	return ok && detail == DetailNoCredentials
}

// detailFromBody extracts the error detail: the body's "detail" field when present,
// otherwise the whole decoded JSON document, otherwise the raw text.
func detailFromBody(body []byte) interface{} {
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return strings.TrimSpace(string(body))
	}
	if m, ok := decoded.(map[string]interface{}); ok {
		if detail, exists := m["detail"]; exists {
			return detail
		}
	}
	return decoded
}
