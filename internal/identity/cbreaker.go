package identity

import (
	"sync"
	"time"
)

type breakerState int

const (
	stClosed breakerState = iota
	stOpen
	stHalfOpen
)

// breaker trips after a run of consecutive failures and stays open for a
// fixed window, then lets a single probe through.
type breaker struct {
	mu        sync.Mutex
	st        breakerState
	fails     int
	threshold int
	openFor   time.Duration
	nextTryAt time.Time
	probing   bool
}

func newBreaker(threshold int, openFor time.Duration) *breaker {
	return &breaker{threshold: threshold, openFor: openFor}
}

// allow reports whether a call may proceed now. In half-open state only
// one probe is admitted at a time.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.st {
	case stClosed:
		return true
	case stOpen:
		if time.Now().After(b.nextTryAt) && !b.probing {
			b.st = stHalfOpen
			b.probing = true
			return true
		}
		return false
	default: // half-open
		if !b.probing {
			b.probing = true
			return true
		}
		return false
	}
}

func (b *breaker) success() {
	b.mu.Lock()
	b.fails = 0
	b.st = stClosed
	b.probing = false
	b.mu.Unlock()
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.st == stHalfOpen {
		b.st = stOpen
		b.nextTryAt = time.Now().Add(b.openFor)
		b.probing = false
		return
	}

	b.fails++
	if b.fails >= b.threshold {
		b.st = stOpen
		b.nextTryAt = time.Now().Add(b.openFor)
	}
}
