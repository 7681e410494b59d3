// Package backoff implements the reconnection delay policy.
//
// The policy is a fixed, ordered schedule of waits indexed by retry
// attempt. Attempts past the end of the schedule reuse the last entry, so
// worst-case reconnection latency is bounded by the final value.
//
// Default schedule: 1s, 2s, 5s, 10s, 30s.
package backoff
