package stats_test

import (
	"testing"
	"time"

	"github.com/fabriziomello/pg-normalize-query/stats"
)

const usersByID = "SELECT id, name FROM users WHERE id = $1"

// recordEvery records q n times, step apart, starting at from, and returns
// the last result.
func recordEvery(b *stats.Burst, q string, from time.Time, n int, step time.Duration) stats.Result {
	var r stats.Result
	for i := range n {
		r = b.Record(q, from.Add(time.Duration(i)*step))
	}
	return r
}

func TestBurst_Threshold(t *testing.T) {
	t.Parallel()

	b := stats.NewBurst(5, time.Second, 10*time.Second)
	now := time.Now()

	if r := recordEvery(b, usersByID, now, 4, 100*time.Millisecond); r.Matched || r.Alert != nil {
		t.Fatal("unexpected match before threshold")
	}

	r := b.Record(usersByID, now.Add(400*time.Millisecond))
	if !r.Matched || r.Alert == nil {
		t.Fatal("expected match and alert at threshold")
	}
	if r.Alert.Count != 5 || r.Alert.Query != usersByID {
		t.Fatalf("got alert %+v", *r.Alert)
	}

	// Still matched inside the window, but the cooldown holds the alert back.
	r = b.Record(usersByID, now.Add(500*time.Millisecond))
	if !r.Matched {
		t.Fatal("expected matched after threshold")
	}
	if r.Alert != nil {
		t.Fatal("expected cooldown to suppress alert")
	}
}

func TestBurst_WindowExpiry(t *testing.T) {
	t.Parallel()

	b := stats.NewBurst(5, time.Second, 10*time.Second)
	now := time.Now()

	recordEvery(b, usersByID, now, 3, 100*time.Millisecond)
	if r := recordEvery(b, usersByID, now.Add(2*time.Second), 3, 100*time.Millisecond); r.Matched {
		t.Fatal("unexpected match: only 3 in window")
	}
}

func TestBurst_CooldownExpiry(t *testing.T) {
	t.Parallel()

	b := stats.NewBurst(5, 2*time.Second, time.Second)
	now := time.Now()

	recordEvery(b, usersByID, now, 5, 100*time.Millisecond)
	r := b.Record(usersByID, now.Add(1500*time.Millisecond))
	if !r.Matched || r.Alert == nil {
		t.Fatal("expected a second alert after cooldown expired")
	}
}

func TestBurst_SeparateQueries(t *testing.T) {
	t.Parallel()

	b := stats.NewBurst(3, time.Second, 10*time.Second)
	now := time.Now()
	posts := "SELECT id, title FROM posts WHERE user_id = $1"

	b.Record(usersByID, now)
	b.Record(posts, now.Add(100*time.Millisecond))
	b.Record(usersByID, now.Add(200*time.Millisecond))
	b.Record(posts, now.Add(300*time.Millisecond))

	if r := b.Record(usersByID, now.Add(400*time.Millisecond)); r.Alert == nil || r.Alert.Query != usersByID {
		t.Fatalf("expected alert for users query, got %+v", r)
	}
	if r := b.Record(posts, now.Add(500*time.Millisecond)); r.Alert == nil || r.Alert.Query != posts {
		t.Fatalf("expected alert for posts query, got %+v", r)
	}
}

func TestBurst_EmptyQuery(t *testing.T) {
	t.Parallel()

	b := stats.NewBurst(1, time.Second, 10*time.Second)
	if r := b.Record("", time.Now()); r.Matched {
		t.Fatal("expected no match for empty query")
	}
}

func TestBurst_Prune(t *testing.T) {
	t.Parallel()

	b := stats.NewBurst(2, time.Second, 5*time.Second)
	now := time.Now()

	recordEvery(b, usersByID, now, 2, 10*time.Millisecond)
	b.Record("SELECT $1", now.Add(3*time.Second))
	if got := b.Tracked(); got != 2 {
		t.Fatalf("got %d tracked, want 2", got)
	}

	b.Prune(now.Add(3 * time.Second))
	if got := b.Tracked(); got != 1 {
		t.Fatalf("got %d tracked after prune, want 1", got)
	}

	// The users alert is still cooling down, so a new burst does not alert.
	if r := recordEvery(b, usersByID, now.Add(4*time.Second), 2, 10*time.Millisecond); r.Alert != nil {
		t.Fatal("expected cooldown to survive prune")
	}
}
