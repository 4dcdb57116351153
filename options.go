package distq

import "github.com/hupe1980/distq/arena"

// Options configures a Resolver.
type Options struct {
	// Logger receives structured round diagnostics. Defaults to NoopLogger.
	Logger *Logger

	// Metrics collects per-round metrics. Defaults to NoopMetrics.
	Metrics MetricsCollector

	// Budget bounds scratch memory used by result truncation.
	// Nil means unlimited.
	Budget *arena.Budget
}

// WithLogger sets the resolver's logger.
func WithLogger(logger *Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// WithMetrics sets the resolver's metrics collector.
func WithMetrics(metrics MetricsCollector) func(o *Options) {
	return func(o *Options) { o.Metrics = metrics }
}

// WithBudget bounds the scratch memory available to truncation.
func WithBudget(budget *arena.Budget) func(o *Options) {
	return func(o *Options) { o.Budget = budget }
}
