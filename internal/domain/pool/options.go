package pool

import (
	"github.com/okian/tourneyrank/internal/domain/rating"
	"github.com/okian/tourneyrank/pkg/logger"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithModel sets the rating model. Defaults to Plackett-Luce.
func WithModel(m rating.Model) Option {
	return func(pm *Manager) {
		if m != nil {
			pm.model = m
		}
	}
}

// WithTransform sets the display transform applied to every ordinal.
func WithTransform(t rating.Transform) Option {
	return func(pm *Manager) {
		if t.Scale > 0 {
			pm.transform = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(pm *Manager) {
		if l != nil {
			pm.logger = l
		}
	}
}
