package traffic

import (
	"sync"
	"time"
)

// Outcome classifies a finished /predict request.
type Outcome int

const (
	Success Outcome = iota
	Failure
	Denied
	numOutcomes
)

// Counts holds outcome totals for a window.
type Counts struct {
	Success int
	Failure int
	Denied  int
}

// Total returns all outcomes including denials.
func (c Counts) Total() int {
	return c.Success + c.Failure + c.Denied
}

type bucket struct {
	sec    int64
	counts [numOutcomes]int
}

// Tracker counts outcomes in one-second buckets over a fixed retention.
// Windows longer than the retention are truncated to it.
type Tracker struct {
	mu      sync.Mutex
	now     func() time.Time
	buckets []bucket
}

// New returns a Tracker that can answer windows up to retention.
func New(retention time.Duration) *Tracker {
	return newWithClock(retention, time.Now)
}

func newWithClock(retention time.Duration, now func() time.Time) *Tracker {
	n := int(retention / time.Second)
	if n < 1 {
		n = 1
	}
	return &Tracker{now: now, buckets: make([]bucket, n)}
}

// Record counts one outcome at the current second.
func (t *Tracker) Record(o Outcome) {
	if o < 0 || o >= numOutcomes {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	sec := t.now().Unix()
	b := &t.buckets[t.slot(sec)]
	if b.sec != sec {
		*b = bucket{sec: sec}
	}
	b.counts[o]++
}

// Counts returns outcome totals for the window ending now.
func (t *Tracker) Counts(window time.Duration) Counts {
	t.mu.Lock()
	defer t.mu.Unlock()
	span := int64((window + time.Second - 1) / time.Second)
	if span > int64(len(t.buckets)) {
		span = int64(len(t.buckets))
	}
	now := t.now().Unix()
	var c Counts
	for i := range t.buckets {
		b := &t.buckets[i]
		if b.sec <= now-span || b.sec > now {
			continue
		}
		c.Success += b.counts[Success]
		c.Failure += b.counts[Failure]
		c.Denied += b.counts[Denied]
	}
	return c
}

// ErrorRate returns (failures, successes+failures) in the window. Denials are excluded.
func (t *Tracker) ErrorRate(window time.Duration) (failures, total int) {
	c := t.Counts(window)
	return c.Failure, c.Success + c.Failure
}

// Reset clears all buckets.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.buckets {
		t.buckets[i] = bucket{}
	}
}

func (t *Tracker) slot(sec int64) int {
	n := int64(len(t.buckets))
	return int(((sec % n) + n) % n)
}
