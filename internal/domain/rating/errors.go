package rating

import "errors"

// Sentinel errors of the rating model. All of them are fatal for a run.
var (
	ErrArity        = errors.New("rating model arity mismatch")
	ErrInvalidRank  = errors.New("invalid rank")
	ErrInvalidSigma = errors.New("invalid sigma")
)
