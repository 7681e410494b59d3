// Package registry is the entry point consumers use to receive telemetry.
//
// A Registry owns one Bus and at most one Connection per target. The first
// Subscribe for a target creates both and starts the connection; later
// subscribers share them. When the last subscriber leaves, the connection
// is released after a grace period so that a component that unsubscribes
// and immediately resubscribes (a re-render, say) keeps its socket.
//
//	reg, err := registry.New(cfg, dialer, logger)
//	sub, err := reg.Subscribe("7", func(msg router.Message) error { ... })
//	defer reg.Unsubscribe(sub)
package registry
