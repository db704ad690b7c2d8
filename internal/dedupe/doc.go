// Package dedupe provides a time- and size-bounded set of recently seen keys.
//
// The reachability checker uses it to remember addresses that were recently
// confirmed reachable, so re-entering a known recipient does not repeat the
// network query within the configured window.
package dedupe
