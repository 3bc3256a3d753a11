// Package command implements the chat commands that drive the Erigones SDDC API:
// es-login, es-logout, es and vm. Handlers are transport agnostic; they take a
// user identity and argument tokens and return the reply text.
package command
