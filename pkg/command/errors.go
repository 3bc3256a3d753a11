package command

import (
	"errors"
	"fmt"

	"github.com/harun/erigo/pkg/params"
	"github.com/harun/erigo/pkg/session"
)

// InvalidActionError is returned for an es action with no HTTP method mapping
type InvalidActionError struct {
	Action string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("Invalid action or method: %s", e.Action)
}

// InvalidResourceError is returned for an es resource not starting with '/'
type InvalidResourceError struct {
	Resource string
}

func (e *InvalidResourceError) Error() string {
	return fmt.Sprintf("Invalid resource: %s", e.Resource)
}

// UsageError is returned when a command receives the wrong number of arguments
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string {
	return "Usage: " + e.Usage
}

// Message renders err as the text shown to the user
func Message(err error, apiURL string) string {
	var (
		authErr  *session.AuthenticationError
		paramErr *params.ParameterError
	)

	switch {
	case errors.As(err, &authErr):
		return fmt.Sprintf("User %s authentication against Erigones SDDC API (%s) failed", authErr.User, apiURL)
	case errors.As(err, &paramErr):
		return "Invalid json parameter " + paramErr.Key + " (" + paramErr.Message + ")"
	default:
		return err.Error()
	}
}
