package session

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// NextBackoffDelay returns the retry delay for attempt N (1-based).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 || cfg.InitialDelay <= 0 {
		return max(cfg.InitialDelay, 0)
	}
	mult := math.Max(cfg.Multiplier, 1.0)
	delay := float64(cfg.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if cfg.MaxDelay > 0 {
		delay = math.Min(delay, float64(cfg.MaxDelay))
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f += rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}

// DialRetry calls DialConfig up to attempts times, sleeping between tries as
// cfg.Backoff dictates. It gives up early when ctx is done.
func DialRetry(ctx context.Context, cfg Config, attempts int) (*Conn, error) {
	attempts = max(attempts, 1)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, retryAborted(err, lastErr)
		}
		c, err := DialConfig(cfg)
		if err == nil {
			return c, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		delay := NextBackoffDelay(cfg.Backoff, attempt, rng)
		log.Warn().
			Str("component", "session").
			Str("addr", cfg.Address).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Err(err).
			Msg("connect failed")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, retryAborted(ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func retryAborted(ctxErr, lastErr error) error {
	if lastErr == nil {
		return ctxErr
	}
	return fmt.Errorf("%w (last error: %v)", ctxErr, lastErr)
}
