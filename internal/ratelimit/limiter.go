// Package ratelimit implements the per-provider, per-slot minimum-interval
// rate limiter (C5). Each concurrency slot gets its own golang.org/x/time/rate
// token bucket of burst 1: Reserve() immediately books the next completion
// "minInterval after the last one" and returns how long the caller must
// sleep, approximating the lastComplete[slotId] + minInterval model.
// If the downstream work then fails, the caller calls Forget(), which calls
// rate.Reservation.Cancel(). Cancel only restores budget for a reservation
// whose time to act is still in the future; WaitIfNeeded has already slept
// until that time, so Forget restores nothing and a failed attempt still
// counts against the slot's cadence.
//
// This anchors cadence at Reserve() (request start), not at completion.
// The two coincide when the downstream fetch is fast relative to
// minInterval. When a fetch itself takes longer than minInterval, the
// next reservation on that slot can still be granted as soon as
// minInterval has elapsed since the previous *start*, so two completions
// on the same slot can land closer together than minInterval. See
// DESIGN.md's Open Question decisions for why this approximation was
// kept rather than re-anchoring on completion.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter tracks per-slot cadence for one provider. A zero or negative
// minInterval disables the limiter entirely: WaitIfNeeded never sleeps and
// Reservation.RecordComplete/Forget are no-ops.
type Limiter struct {
	minInterval time.Duration

	mu      sync.Mutex
	perSlot map[int]*rate.Limiter
}

// New constructs a Limiter for one provider with the given minimum
// interval between completions sharing a slot.
func New(minInterval time.Duration) *Limiter {
	return &Limiter{
		minInterval: minInterval,
		perSlot:     make(map[int]*rate.Limiter),
	}
}

// Reservation is returned by WaitIfNeeded; the caller must resolve it with
// exactly one of RecordComplete (the happy path — already implied by the
// reservation, kept only for symmetry with the spec's API shape) or Forget
// (called when no request actually reached upstream; see Forget for what
// it restores).
type Reservation struct {
	inner *rate.Reservation
}

// RecordComplete marks the reservation as consumed by a request that
// actually ran against upstream (success or provider-determined not-found).
// No-op: Reserve already booked the slot at WaitIfNeeded time.
func (r *Reservation) RecordComplete() {}

// Forget cancels the reservation with rate.Reservation.Cancel. Cancel
// restores nothing once the reservation's time to act has passed, and
// WaitIfNeeded only returns after that time, so the attempt still counts:
// the next request on this slot waits a full minInterval from this
// reservation.
func (r *Reservation) Forget() {
	if r == nil || r.inner == nil {
		return
	}
	r.inner.Cancel()
}

// WaitIfNeeded sleeps until the slot's next completion is permitted,
// respecting ctx cancellation. If the slot has never completed a request,
// it returns immediately (the token bucket starts full).
func (l *Limiter) WaitIfNeeded(ctx context.Context, slotID int) (*Reservation, error) {
	if l.minInterval <= 0 {
		return &Reservation{}, nil
	}

	limiter := l.slotLimiter(slotID)
	reservation := limiter.Reserve()
	delay := reservation.Delay()

	if err := sleepCtx(ctx, delay); err != nil {
		reservation.Cancel()
		return nil, err
	}
	return &Reservation{inner: &reservation}, nil
}

func (l *Limiter) slotLimiter(slotID int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.perSlot[slotID]; ok {
		return existing
	}
	created := rate.NewLimiter(rate.Every(l.minInterval), 1)
	l.perSlot[slotID] = created
	return created
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
