package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/harun/erigo/pkg/credentials"
	"github.com/harun/erigo/pkg/params"
	"github.com/harun/erigo/pkg/session"
	"github.com/rs/zerolog"
)

// Command names
const (
	Login  = "es-login"
	Logout = "es-logout"
	ES     = "es"
	VM     = "vm"
)

var actions = map[string]string{
	"get":    http.MethodGet,
	"post":   http.MethodPost,
	"create": http.MethodPost,
	"put":    http.MethodPut,
	"set":    http.MethodPut,
	"delete": http.MethodDelete,
}

// Call is a single command invocation
type Call struct {
	User string
	Args []string

	// Notify delivers progress messages sent before the final reply. May be nil.
	Notify func(text string)
}

// Func runs a command and returns the reply text
type Func func(ctx context.Context, call Call) (string, error)

// Spec describes a registered command
type Spec struct {
	Name        string
	Usage       string
	Description string
	Admin       bool
	Run         Func
}

// Handler implements the API commands on top of a session manager
type Handler struct {
	manager *session.Manager
	logger  zerolog.Logger
}

// New creates a command handler
func New(manager *session.Manager, logger zerolog.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger.With().Str("component", "command").Logger(),
	}
}

// Specs returns the commands sorted by name
func (h *Handler) Specs() []Spec {
	specs := []Spec{
		{
			Name:        Login,
			Usage:       "es-login <api_key> | es-login <username> <password>",
			Description: "Sign in to Erigones SDDC API and save your credentials",
			Run:         h.Login,
		},
		{
			Name:        Logout,
			Usage:       "es-logout",
			Description: "Sign out of Erigones SDDC API and delete your credentials",
			Run:         h.Logout,
		},
		{
			Name:        ES,
			Usage:       "es <get|create|set|delete> </resource> [-param value ...]",
			Description: "Call any Erigones SDDC API resource",
			Admin:       true,
			Run:         h.ES,
		},
		{
			Name:        VM,
			Usage:       "vm [dc]",
			Description: "Show a list of all servers",
			Admin:       true,
			Run:         h.VM,
		},
	}

	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Login handles es-login
func (h *Handler) Login(ctx context.Context, call Call) (string, error) {
	var cred credentials.Credential
	switch len(call.Args) {
	case 1:
		cred = credentials.NewAPIKey(call.Args[0])
	case 2:
		cred = credentials.NewPassword(call.Args[0], call.Args[1])
	default:
		return "", &UsageError{Usage: "es-login <api_key> | es-login <username> <password>"}
	}

	if err := h.manager.Login(ctx, call.User, cred); err != nil {
		return "", err
	}

	return fmt.Sprintf("Successfully signed in to Erigones SDDC API (%s) and saved your (%s) credentials",
		h.manager.APIURL(), call.User), nil
}

// Logout handles es-logout
func (h *Handler) Logout(ctx context.Context, call Call) (string, error) {
	if _, err := h.manager.Logout(ctx, call.User); err != nil {
		if errors.Is(err, session.ErrSessionUnavailable) {
			return "", fmt.Errorf("User %s logout from Erigones SDDC API (%s) failed: user was never logged in",
				call.User, h.manager.APIURL())
		}
		return "", err
	}

	return fmt.Sprintf("Successfully signed out of Erigones SDDC API (%s) and removed your (%s) credentials",
		h.manager.APIURL(), call.User), nil
}

// esReply is the es command output; field order is the display order
type esReply struct {
	Action   string      `json:"action"`
	Resource string      `json:"resource"`
	DC       interface{} `json:"dc"`
	TaskID   interface{} `json:"task_id"`
	Status   int         `json:"status"`
	Result   interface{} `json:"result"`
}

// ES handles es <action> </resource> [params]
func (h *Handler) ES(ctx context.Context, call Call) (string, error) {
	if len(call.Args) < 2 {
		return "", &UsageError{Usage: "es <get|create|set|delete> </resource> [-param value ...]"}
	}
	action, resource := call.Args[0], call.Args[1]

	method, ok := actions[strings.ToLower(action)]
	if !ok {
		return "", &InvalidActionError{Action: action}
	}
	if !strings.HasPrefix(resource, "/") {
		return "", &InvalidResourceError{Resource: resource}
	}

	p, err := params.Parse(call.Args[2:])
	if err != nil {
		return "", err
	}

	h.logger.Debug().
		Str("user", call.User).
		Str("method", method).
		Str("resource", resource).
		Int("params", len(p)).
		Msg("Dispatching es command")

	resp, err := h.manager.Execute(ctx, call.User, session.Request{
		Method:    method,
		Resource:  resource,
		Params:    p.Map(),
		OnPending: pendingNotifier(call),
	})
	if err != nil {
		return "", err
	}

	content, err := resp.Content(ctx)
	if err != nil {
		return "", err
	}

	return renderJSON(esReply{
		Action:   action,
		Resource: resource,
		DC:       nullable(resp.DC),
		TaskID:   nullable(resp.TaskID),
		Status:   resp.StatusCode,
		Result:   content.Result,
	})
}

// VM handles vm [dc]
func (h *Handler) VM(ctx context.Context, call Call) (string, error) {
	if len(call.Args) > 1 {
		return "", &UsageError{Usage: "vm [dc]"}
	}

	query := map[string]interface{}{"full": true}
	if len(call.Args) == 1 {
		query["dc"] = call.Args[0]
	}

	resp, err := h.manager.Execute(ctx, call.User, session.Request{
		Method:    http.MethodGet,
		Resource:  "/vm",
		Params:    query,
		OnPending: pendingNotifier(call),
	})
	if err != nil {
		return "", err
	}

	content, err := resp.Content(ctx)
	if err != nil {
		return "", err
	}

	servers, _ := content.Result.([]interface{})
	lines := make([]string, 0, len(servers)+2)
	for _, s := range servers {
		vm, _ := s.(map[string]interface{})
		lines = append(lines, fmt.Sprintf("%v (%v)\t%v", vm["hostname"], vm["alias"], vm["status"]))
	}
	lines = append(lines, "", fmt.Sprintf("%d servers are shown in %s datacenter.", len(servers), resp.DC))

	return strings.Join(lines, "\n"), nil
}

func pendingNotifier(call Call) func(string) {
	if call.Notify == nil {
		return nil
	}
	return func(taskID string) {
		call.Notify(fmt.Sprintf("Waiting for pending task %s ...", taskID))
	}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func renderJSON(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("rendering reply: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
