package reconcile

import "github.com/okian/tourneyrank/pkg/logger"

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithWorkers sets the number of concurrent writers. One or less writes
// inline.
func WithWorkers(n int) Option {
	return func(r *Reconciler) {
		r.workers = n
	}
}

// WithProgressEvery sets how many records pass between progress logs.
func WithProgressEvery(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.progressEvery = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRunID sets the id reported and logged by Run, so one pipeline run
// shares a single id. Without it every Run draws a fresh one.
func WithRunID(id string) Option {
	return func(r *Reconciler) {
		r.runID = id
	}
}
