package model

import "fmt"

// Pool names an independent rating accumulation scope. Per-event history is
// kept separately, keyed by EventID.
type Pool int

const (
	PoolAllTime Pool = iota
	PoolOneVsOne
	PoolThreeOrFourPlayer
)

// Pools lists every pool in export order.
var Pools = []Pool{PoolAllTime, PoolOneVsOne, PoolThreeOrFourPlayer}

func (p Pool) String() string {
	switch p {
	case PoolAllTime:
		return "all_time"
	case PoolOneVsOne:
		return "one_vs_one"
	case PoolThreeOrFourPlayer:
		return "three_or_four_player"
	default:
		return fmt.Sprintf("pool(%d)", int(p))
	}
}

// ParsePool maps a pool name back to its value.
func ParsePool(name string) (Pool, error) {
	for _, p := range Pools {
		if p.String() == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown pool %q", name)
}
