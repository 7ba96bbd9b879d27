package ledger

import "errors"

var (
	// ErrMalformedRow covers wrong column counts, non-integer ranks and
	// participant counts outside 2..4.
	ErrMalformedRow = errors.New("malformed row")
	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("missing column")
	// ErrUnknownEvent is returned for a ledger row naming an event that is
	// not in the event table.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrUnknownPlayer is returned for a ledger row naming a player that is
	// not in the player table.
	ErrUnknownPlayer = errors.New("unknown player")
	// ErrDuplicateGame is returned when a game name repeats within an event.
	ErrDuplicateGame = errors.New("duplicate game")
)
