package dedupe

type config struct {
	capacity int
}

// Option applies a configuration option to the in-memory deduper.
type Option func(*config)

// WithCapacity pre-sizes the underlying map. Negative values are ignored.
func WithCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.capacity = n
		}
	}
}
