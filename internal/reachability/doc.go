// Package reachability checks whether a wallet address is provisioned on
// the messaging network.
//
// Checker wraps the messaging client's CanMessage query with a timeout and
// an optional memo of recently confirmed addresses. Negative answers and
// failures are never remembered, so the next check asks the network again.
package reachability
