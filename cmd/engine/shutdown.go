package main

import (
	"context"
	"os/signal"
	"syscall"
)

// signalContext returns a context canceled on SIGINT/SIGTERM so a
// long-running `optimize` invocation can be interrupted cleanly.
func (a *app) signalContext() context.Context {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	_ = stop
	return ctx
}
