// Package bus implements the per-target listener bus.
//
// A Bus holds the handlers subscribed to one target and fans every
// decoded message out to all of them. Handlers are keyed by a unique
// token, so registering the same function twice yields two independent
// subscriptions. A handler that returns an error or panics is isolated:
// the failure is logged and the remaining handlers still run.
package bus
