package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// job is a long running measurement task that stops when its context is cancelled
type job interface {
	Run(ctx context.Context) error
}

// Runner is the struct that is responsible for running the program
type Runner struct {
	job    job
	cancel context.CancelFunc
	sigch  chan os.Signal
	endch  chan error
}

// newRunner creates a runner with the initialized values
func newRunner(j job) *Runner {
	return &Runner{
		job:    j,
		cancel: func() {},
		sigch:  make(chan os.Signal, 1),
		endch:  make(chan error, 1),
	}
}

// Start starts the runner
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.handleSignals(ctx)

	go func() {
		err := r.job.Run(ctx)
		r.endch <- err
	}()
}

// RequestStop requests the stop of the job
func (r *Runner) RequestStop() {
	r.cancel()
}

// Wait blocks the caller until the runner finishes
func (r *Runner) Wait() error {
	err := <-r.endch
	signal.Stop(r.sigch)
	r.cancel()
	return err
}

// handleSignals stops the job on SIGINT or SIGTERM
func (r *Runner) handleSignals(ctx context.Context) {
	signal.Notify(r.sigch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-r.sigch:
			r.RequestStop()
		case <-ctx.Done():
		}
	}()
}
