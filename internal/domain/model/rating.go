package model

// RatingState is a player's skill belief in one pool. Ordinal is derived
// from Mu and Sigma on the display scale and is never authoritative.
type RatingState struct {
	Mu      float64 `json:"mu"`
	Sigma   float64 `json:"sigma"`
	Ordinal float64 `json:"ordinal"`
}
