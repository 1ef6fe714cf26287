// Package signalhandler wires SIGINT/SIGTERM to context cancellation so
// long-running batch matches and indexing runs stop between units of work
// instead of dying mid-write.
package signalhandler

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
)

// WithCancellation returns a context cancelled on SIGINT or SIGTERM. A second
// signal exits immediately. Calling the returned CancelFunc stops the watcher
// goroutine, so a deferred cancel releases it even after a first signal has
// already fired.
func WithCancellation(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	stop := make(chan struct{})

	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			cancel()
		case <-stop:
			return
		}
		select {
		case <-sigChan:
			os.Exit(1)
		case <-stop:
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() { close(stop) })
		cancel()
	}
}

// GetOptimalProcs returns the worker count for parallel indexing. Image
// decoding is memory-hungry, so a quarter of the CPUs is held back.
func GetOptimalProcs() int {
	numCPU := runtime.NumCPU()

	maxProcs := (numCPU * 3) / 4
	if maxProcs < 1 {
		maxProcs = 1
	}
	return maxProcs
}
