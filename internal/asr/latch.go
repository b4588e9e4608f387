package asr

import "sync"

// doneLatch is the one-shot completion signal shared by the relay's inbound
// and outbound flows. It is set when recognition concludes for any reason
// (terminal status, upstream error, timeout) and never resets within the
// lifetime of one relay attempt.
type doneLatch struct {
	once sync.Once
	ch   chan struct{}
}

func newDoneLatch() *doneLatch {
	return &doneLatch{ch: make(chan struct{})}
}

// Set marks recognition as concluded. Idempotent and safe to call from
// multiple goroutines.
func (l *doneLatch) Set() {
	l.once.Do(func() { close(l.ch) })
}

// IsSet reports whether the latch has been set.
func (l *doneLatch) IsSet() bool {
	select {
	case <-l.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed once the latch is set, so waiters
// can block instead of polling.
func (l *doneLatch) Done() <-chan struct{} { return l.ch }
