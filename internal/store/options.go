package store

import (
	"log/slog"
	"time"
)

type options struct {
	cipher *TokenCipher
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a store.
type Option func(*options)

// WithCipher encrypts tokens at rest. Ignored by the memory store.
func WithCipher(c *TokenCipher) Option {
	return func(o *options) { o.cipher = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides time.Now for CreatedAt and UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cipher == nil {
		o.cipher, _ = NewTokenCipher(nil)
	}
	return o
}
