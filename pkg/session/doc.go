// Package session manages per-user authenticated sessions against the Erigones SDDC API.
//
// Invariants:
// - A user has at most one cached Session; it exists only while a credential is stored.
// - Execute, Login and Logout for the same user are serialized.
// - A request re-authenticates at most once; an expired password session (403 with
//   "Authentication credentials were not provided.") is re-logged in and the call retried once.
// - Logout drops the credential and the session together.
//
// Usage:
//
//	mgr, _ := session.NewManager(session.Options{Store: store, Factory: session.NewClientFactory(apiURL)})
//	_ = mgr.Login(ctx, "tg:1", credentials.NewPassword("admin", "secret"))
//	resp, err := mgr.Execute(ctx, "tg:1", session.Request{Method: "GET", Resource: "/vm"})
//	_, _ = resp, err
package session
