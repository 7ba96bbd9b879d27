package export

import "errors"

var (
	// ErrNoSource is returned when Write is called without replay results.
	ErrNoSource = errors.New("export source is nil")
	// ErrUnknownGame is returned when a participation fact references a game
	// missing from the exported game list.
	ErrUnknownGame = errors.New("participation references unknown game")
)
