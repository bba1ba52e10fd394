// Package config defines retry configuration for fork provisioning.
package config

import (
	"time"
)

// RetryConfig holds the backoff policy applied within each fork
// provisioning strategy (zero-copy fork -> physical clone -> logical
// context). The composite-score upsert uses its own fixed retry-once.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts
	MaxRetries int `env:"RETRY_MAX_RETRIES" envDefault:"3"`
	// InitialDelay is the initial delay before first retry
	InitialDelay time.Duration `env:"RETRY_INITIAL_DELAY" envDefault:"2s"`
	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration `env:"RETRY_MAX_DELAY" envDefault:"30s"`
	// Multiplier is the exponential backoff multiplier
	Multiplier float64 `env:"RETRY_MULTIPLIER" envDefault:"2.0"`
	// Jitter adds randomness to prevent thundering herd
	Jitter bool `env:"RETRY_JITTER" envDefault:"true"`
}

// GetRetryConfig returns the retry configuration
func (c Config) GetRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   c.RetryMaxRetries,
		InitialDelay: c.RetryInitialDelay,
		MaxDelay:     c.RetryMaxDelay,
		Multiplier:   c.RetryMultiplier,
		Jitter:       c.RetryJitter,
	}
}
