package sms

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollTimeout  = 120 * time.Second
)

// Poller waits for a verification code with repeated single-shot polls
// spaced by Interval, bounded by Timeout.
type Poller struct {
	Provider Provider
	Interval time.Duration
	Timeout  time.Duration
	Clock    clock.Clock

	// OnMiss is called after every empty poll, for progress logging
	OnMiss func(attempt int, err error)
}

// NewPoller returns a poller on the wall clock
func NewPoller(p Provider, interval, timeout time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &Poller{Provider: p, Interval: interval, Timeout: timeout, Clock: clock.New()}
}

// Wait polls until a code arrives, ctx ends or the deadline passes.
// Transport errors on a single poll are treated like a miss.
func (p *Poller) Wait(ctx context.Context, pkey string) (string, error) {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	deadline := clk.Now().Add(p.Timeout)

	for attempt := 1; clk.Now().Before(deadline); attempt++ {
		code, err := p.Provider.Poll(ctx, pkey)
		if err == nil && code != "" {
			return code, nil
		}
		if p.OnMiss != nil {
			p.OnMiss(attempt, err)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-clk.After(p.Interval):
		}
	}

	return "", fmt.Errorf("%w after %s", ErrCodeTimeout, p.Timeout)
}
