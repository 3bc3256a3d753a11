// Package params parses command arguments into typed API parameters.
//
// Grammar:
//   - `-key` starts a new key whose value defaults to true.
//   - A following token overrides it: true/false/null (any case), `json::<doc>`
//     decoded as JSON, anything else kept as a string.
//   - Tokens appearing before the first key are ignored.
//
// Usage:
//
//	p, err := params.Parse([]string{"-dc", "main", "-full"})
//	if err != nil {
//		return err
//	}
//	resp, err := mgr.Execute(ctx, user, session.Request{Method: "GET", Resource: "/vm", Params: p.Map()})
package params
