// Package credentials stores per-user API credentials.
//
// Invariants:
// - A user has at most one credential, either an api_key or a username/secret pair.
// - Every mutation is followed by a Save of the full map; Save errors are logged only.
// - The backend is loaded exactly once, when the Store is created.
package credentials
