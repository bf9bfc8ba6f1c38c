package sms

import (
	"context"
	"sync"
)

// Provider is the number-lease API the worker depends on
type Provider interface {
	Acquire(ctx context.Context) (*Lease, error)
	Poll(ctx context.Context, pkey string) (string, error)
	Confirm(ctx context.Context, pkey string, remark int) error
	Release(ctx context.Context, pkey string) error
}

// Lease is one leased phone number. Exactly one of Confirm or Release
// reaches the provider; later calls are no-ops.
type Lease struct {
	PKey  string
	Phone string

	mu      sync.Mutex
	settled bool
}

// Settled reports whether a terminal call was made
func (l *Lease) Settled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settled
}

func (l *Lease) settle(fn func() error) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.settled {
		return false, nil
	}
	l.settled = true
	return true, fn()
}

// Confirm settles the lease with a disposition. It reports whether this
// call was the terminal one.
func (l *Lease) Confirm(ctx context.Context, p Provider, remark int) (bool, error) {
	return l.settle(func() error { return p.Confirm(ctx, l.PKey, remark) })
}

// Release settles the lease by abandoning it
func (l *Lease) Release(ctx context.Context, p Provider) (bool, error) {
	return l.settle(func() error { return p.Release(ctx, l.PKey) })
}
