package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSessionUnavailable is returned when the acting user has no stored credential
var ErrSessionUnavailable = errors.New("API is not available - use es-login to enable API access for your account")

// AuthenticationError is returned when signing in to the API fails
type AuthenticationError struct {
	User string
	URL  string
	Err  error
}

func (e *AuthenticationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("user %s authentication against %s failed", e.User, e.URL)
	}
	return fmt.Sprintf("user %s authentication against %s failed: %v", e.User, e.URL, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// APIError is a failed API call. Status is 0 when no HTTP response was received.
type APIError struct {
	Status int
	Detail interface{}
	Err    error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("APIError: %s", FormatDetail(e.Detail))
	}
	return fmt.Sprintf("APIError %d: %s", e.Status, FormatDetail(e.Detail))
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// FormatDetail renders structured details as indented JSON and anything else as text
func FormatDetail(detail interface{}) string {
	switch detail.(type) {
	case map[string]interface{}, []interface{}:
		data, err := json.MarshalIndent(detail, "", "    ")
		if err == nil {
			return string(data)
		}
	}
	return fmt.Sprint(detail)
}

func unavailable(user string) error {
	return fmt.Errorf("%w (%s)", ErrSessionUnavailable, user)
}
