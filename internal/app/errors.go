package service

import "errors"

// Sentinel kinds for service errors.
var (
	// ErrNoRun is returned by read operations before the first run finished.
	ErrNoRun = errors.New("no completed run")
	// ErrNotFound is returned for unknown events and players.
	ErrNotFound = errors.New("not found")
	// ErrInterrupted is returned when a run stopped early. Exports still
	// cover every game processed before the stop.
	ErrInterrupted = errors.New("run interrupted")
	// ErrNilLedger is returned when Run is called without a ledger.
	ErrNilLedger = errors.New("ledger is nil")
)
