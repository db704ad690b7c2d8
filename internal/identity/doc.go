// Package identity turns recipient input into a resolved wallet address.
//
// A Resolver wraps an external NameService. Raw addresses resolve to
// themselves; dotted names such as "alice.example" are looked up; anything
// else is not a valid recipient. Results are reported as a Resolution:
//
//	res := resolver.Resolve(ctx, "alice.example")
//	if res.Valid {
//	    fmt.Println(res.Name, "->", res.Address)
//	}
//
// While a lookup is outstanding callers should present Pending(raw), whose
// Loading flag tells them not to declare the input invalid yet.
//
// Lookup failures (timeouts, provider errors) and unknown names both produce
// Valid=false. The failure is kept in Resolution.Err for logging only.
package identity
