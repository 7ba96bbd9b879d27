// Package rating defines the contract of the skill-rating model and ships a
// Plackett-Luce implementation for one-player teams.
package rating

import (
	"fmt"
	"math"

	"github.com/okian/tourneyrank/internal/domain/model"
)

// Default model parameters.
const (
	defaultMu    = 25.0
	defaultSigma = defaultMu / 3
	defaultBeta  = defaultSigma / 2
	defaultTau   = defaultMu / 300
	defaultKappa = 0.0001
	defaultZ     = 3.0
)

// Model turns prior beliefs and a finishing order into posterior beliefs.
// Implementations must be deterministic and return one posterior per prior
// in input order.
type Model interface {
	// Prior is the belief assigned to a player on first appearance.
	Prior() model.RatingState
	// Rate returns posteriors aligned with priors. ranks use competition
	// ranking: lower is better, ties share a value.
	Rate(priors []model.RatingState, ranks []int) ([]model.RatingState, error)
	// Ordinal is the conservative raw score used for ranking.
	Ordinal(s model.RatingState) float64
}

// Option applies a configuration option to PlackettLuce.
type Option func(*PlackettLuce)

// WithMu sets the prior mean.
func WithMu(mu float64) Option {
	return func(pl *PlackettLuce) { pl.mu = mu }
}

// WithSigma sets the prior uncertainty; non-positive values are ignored.
func WithSigma(sigma float64) Option {
	return func(pl *PlackettLuce) {
		if sigma > 0 {
			pl.sigma = sigma
		}
	}
}

// WithBeta sets the per-game performance noise.
func WithBeta(beta float64) Option {
	return func(pl *PlackettLuce) {
		if beta > 0 {
			pl.beta = beta
		}
	}
}

// WithTau sets the per-application sigma inflation.
func WithTau(tau float64) Option {
	return func(pl *PlackettLuce) {
		if tau >= 0 {
			pl.tau = tau
		}
	}
}

// WithKappa sets the floor on the sigma shrink factor.
func WithKappa(kappa float64) Option {
	return func(pl *PlackettLuce) {
		if kappa > 0 {
			pl.kappa = kappa
		}
	}
}

// WithZ sets how many sigmas the ordinal subtracts from mu.
func WithZ(z float64) Option {
	return func(pl *PlackettLuce) {
		if z >= 0 {
			pl.z = z
		}
	}
}

// PlackettLuce is the Plackett-Luce ranking model with every team made of
// a single player.
type PlackettLuce struct {
	mu    float64
	sigma float64
	beta  float64
	tau   float64
	kappa float64
	z     float64
}

// NewPlackettLuce creates a model with the community defaults.
func NewPlackettLuce(opts ...Option) *PlackettLuce {
	pl := &PlackettLuce{
		mu:    defaultMu,
		sigma: defaultSigma,
		beta:  defaultBeta,
		tau:   defaultTau,
		kappa: defaultKappa,
		z:     defaultZ,
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Prior returns the default belief.
func (pl *PlackettLuce) Prior() model.RatingState {
	return model.RatingState{Mu: pl.mu, Sigma: pl.sigma}
}

// Ordinal returns mu - z*sigma.
func (pl *PlackettLuce) Ordinal(s model.RatingState) float64 {
	return s.Mu - pl.z*s.Sigma
}

// Rate applies one game. The computation only compares ranks, so the input
// order is preserved end to end and never sorted.
func (pl *PlackettLuce) Rate(priors []model.RatingState, ranks []int) ([]model.RatingState, error) {
	n := len(priors)
	if n != len(ranks) {
		return nil, fmt.Errorf("%w: %d priors, %d ranks", ErrArity, n, len(ranks))
	}
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 participants, got %d", ErrArity, n)
	}
	for i := range priors {
		if ranks[i] < 1 {
			return nil, fmt.Errorf("%w: rank %d at position %d", ErrInvalidRank, ranks[i], i)
		}
		if !(priors[i].Sigma > 0) || math.IsInf(priors[i].Sigma, 0) || math.IsNaN(priors[i].Mu) {
			return nil, fmt.Errorf("%w: sigma %v at position %d", ErrInvalidSigma, priors[i].Sigma, i)
		}
	}

	beta2 := pl.beta * pl.beta
	tau2 := pl.tau * pl.tau

	sigma2 := make([]float64, n)
	var cSum float64
	for i, p := range priors {
		sigma2[i] = p.Sigma*p.Sigma + tau2
		cSum += sigma2[i] + beta2
	}
	c := math.Sqrt(cSum)

	strength := make([]float64, n)
	for i, p := range priors {
		strength[i] = math.Exp(p.Mu / c)
	}

	// sumQ[q]: strengths of everyone who finished at or below q.
	// tied[q]: how many share q's rank.
	sumQ := make([]float64, n)
	tied := make([]float64, n)
	for q := 0; q < n; q++ {
		for i := 0; i < n; i++ {
			if ranks[i] >= ranks[q] {
				sumQ[q] += strength[i]
			}
			if ranks[i] == ranks[q] {
				tied[q]++
			}
		}
	}

	out := make([]model.RatingState, n)
	for i, p := range priors {
		var omega, delta float64
		for q := 0; q < n; q++ {
			if ranks[q] > ranks[i] {
				continue
			}
			share := strength[i] / sumQ[q]
			delta += share * (1 - share) / tied[q]
			if q == i {
				omega += (1 - share) / tied[q]
			} else {
				omega -= share / tied[q]
			}
		}
		omega *= sigma2[i] / c
		delta *= sigma2[i] / (c * c)
		delta *= math.Sqrt(sigma2[i]) / c

		out[i] = model.RatingState{
			Mu:    p.Mu + omega,
			Sigma: math.Sqrt(sigma2[i]) * math.Sqrt(math.Max(1-delta, pl.kappa)),
		}
	}
	return out, nil
}

// Transform rescales raw ordinals to the reporting range. The same value
// must be used for every ordinal of a deployment.
type Transform struct {
	Scale  float64
	Offset float64
}

// DefaultTransform maps a fresh player (raw ordinal 0) to 1200.
var DefaultTransform = Transform{Scale: 24, Offset: 1200}

// Apply rescales one raw ordinal.
func (t Transform) Apply(raw float64) float64 {
	return raw*t.Scale + t.Offset
}
