package app

import (
	"math/rand"
	"time"

	"contest-service/internal/logger"
	"contest-service/internal/metrics"
)

const defaultMaxConflictRetries = 3

type options struct {
	now             Clock
	log             *logger.Logger
	metrics         *metrics.Metrics
	publisher       EventPublisher
	statusWriter    ContestStatusWriter
	listeners       []ScoreListener
	maxRetries      int
	defaultLanguage string
	newRand         func() *rand.Rand
}

// Option configures the application services.
type Option func(*options)

func buildOptions(opts []Option) options {
	o := options{
		now:        time.Now,
		log:        logger.Nop(),
		maxRetries: defaultMaxConflictRetries,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock is mostly for tests.
func WithClock(now Clock) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithPublisher(p EventPublisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithContestStatusWriter lets Enter persist automatic contest status changes.
func WithContestStatusWriter(w ContestStatusWriter) Option {
	return func(o *options) { o.statusWriter = w }
}

// WithScoreListeners registers listeners notified after score writes.
func WithScoreListeners(ls ...ScoreListener) Option {
	return func(o *options) { o.listeners = append(o.listeners, ls...) }
}

// WithMaxConflictRetries bounds how many times a lost conditional write is
// attempted in total. Values below 1 keep the default.
func WithMaxConflictRetries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

// WithDefaultLanguage sets the language used when a contest declares none.
func WithDefaultLanguage(lang string) Option {
	return func(o *options) { o.defaultLanguage = lang }
}

// WithRandSource replaces the per-call random source used for content sampling.
func WithRandSource(newRand func() *rand.Rand) Option {
	return func(o *options) {
		if newRand != nil {
			o.newRand = newRand
		}
	}
}
