package monitor

import "time"

// Backoff is an exponential retry delay: each Next doubles the delay up to
// the ceiling, Reset drops it back to the base. The zero delays are filled
// in from Base on first use. It is a plain value, not safe for concurrent
// use; the control loop owns it.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	next time.Duration
}

// Next returns the delay to wait before the upcoming retry and advances the
// schedule.
func (b *Backoff) Next() time.Duration {
	if b.next <= 0 {
		b.next = b.Base
	}
	d := b.next
	if d > b.Max {
		d = b.Max
	}
	b.next *= 2
	if b.next > b.Max {
		b.next = b.Max
	}
	return d
}

// Reset returns the schedule to the base delay. Call after a success.
func (b *Backoff) Reset() {
	b.next = 0
}
