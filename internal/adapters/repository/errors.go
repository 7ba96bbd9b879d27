package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound  = errors.New("record not found")
	ErrBadRating = errors.New("stored rating is not valid JSON")
	ErrNoGameID  = errors.New("game has no stored id")
)
