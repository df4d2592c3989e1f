package stats

import (
	"sync"
	"time"
)

// Alert reports a normalized query that crossed the burst threshold.
type Alert struct {
	Query string
	Count int
}

// Burst detects a normalized query repeated many times in a short window,
// the shape left behind by N+1 access patterns.
type Burst struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	cooldown  time.Duration
	seen      map[string][]time.Time
	lastAlert map[string]time.Time
}

// NewBurst creates a Burst detector.
// threshold: occurrences that trigger a match (e.g., 5).
// window: time span they must fall within (e.g., 1s).
// cooldown: minimum time between alerts for the same query (e.g., 10s).
func NewBurst(threshold int, window, cooldown time.Duration) *Burst {
	return &Burst{
		threshold: max(threshold, 1),
		window:    window,
		cooldown:  cooldown,
		seen:      make(map[string][]time.Time),
		lastAlert: make(map[string]time.Time),
	}
}

// Result holds the outcome of a Record call.
type Result struct {
	// Matched is true while the query count is at or above the threshold
	// within the window.
	Matched bool
	// Alert is non-nil only when the threshold is crossed outside the
	// cooldown of a previous alert.
	Alert *Alert
}

// Record registers one occurrence of normalized at t.
func (b *Burst) Record(normalized string, t time.Time) Result {
	if normalized == "" {
		return Result{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	times := evict(b.seen[normalized], t.Add(-b.window))
	times = append(times, t)
	b.seen[normalized] = times

	if len(times) < b.threshold {
		return Result{}
	}

	res := Result{Matched: true}
	if last, ok := b.lastAlert[normalized]; !ok || t.Sub(last) >= b.cooldown {
		b.lastAlert[normalized] = t
		res.Alert = &Alert{Query: normalized, Count: len(times)}
	}
	return res
}

// Prune forgets queries with no occurrence inside the window ending at now
// and whose cooldown has passed.
func (b *Burst) Prune(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := now.Add(-b.window)
	for q, times := range b.seen {
		if times = evict(times, cutoff); len(times) > 0 {
			b.seen[q] = times
			continue
		}
		delete(b.seen, q)
	}
	for q, last := range b.lastAlert {
		if now.Sub(last) >= b.cooldown {
			delete(b.lastAlert, q)
		}
	}
}

// Tracked returns the number of queries currently held.
func (b *Burst) Tracked() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.seen)
}

func evict(times []time.Time, cutoff time.Time) []time.Time {
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
