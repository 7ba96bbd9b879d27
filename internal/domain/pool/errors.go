package pool

import "errors"

var (
	// ErrUnknownPlayer is returned when a game is applied to a pool before
	// one of its participants was ensured there.
	ErrUnknownPlayer = errors.New("player not in pool")
	// ErrModelArity is returned when the rating model answers with a
	// different number of posteriors than priors.
	ErrModelArity = errors.New("rating model returned wrong number of posteriors")
)
