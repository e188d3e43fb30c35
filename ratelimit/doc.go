// Package ratelimit gates outbound API calls against a rolling hourly
// budget, per-endpoint concurrency limits, and per-zone health.
//
// Callers ask for permission before each request and report back when
// it completes. Requests that cannot proceed immediately wait in a
// priority queue with a bounded size and a per-request timeout; both
// overflow and timeout are distinct, caller-visible errors. All state
// is in-process and lost on restart.
package ratelimit
