package stats

import (
	"cmp"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/fabriziomello/pg-normalize-query/query"
)

// maxSamples bounds the durations kept per group for percentiles.
const maxSamples = 1024

// SortMode orders the rows returned by Aggregator.Rows.
type SortMode int

const (
	SortTotal SortMode = iota
	SortCount
	SortAvg
	SortP95
)

func (s SortMode) String() string {
	switch s {
	case SortTotal:
		return "total"
	case SortCount:
		return "count"
	case SortAvg:
		return "avg"
	case SortP95:
		return "p95"
	}
	return "total"
}

// ParseSortMode converts "total", "count", "avg" or "p95" into a SortMode.
func ParseSortMode(s string) (SortMode, error) {
	for m := SortTotal; m <= SortP95; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return SortTotal, fmt.Errorf("stats: unknown sort mode %q", s)
}

// Row summarizes every query that normalized to the same text.
type Row struct {
	Query       string
	Fingerprint uint64
	Count       int
	Total       time.Duration
	Avg         time.Duration
	P95         time.Duration
	Max         time.Duration
}

type group struct {
	count     int
	total     time.Duration
	max       time.Duration
	durations []time.Duration // most recent maxSamples, ring order
	next      int
}

func (g *group) add(d time.Duration) {
	g.count++
	g.total += d
	g.max = max(g.max, d)
	if len(g.durations) < maxSamples {
		g.durations = append(g.durations, d)
		return
	}
	g.durations[g.next] = d
	g.next = (g.next + 1) % maxSamples
}

// Aggregator groups observed queries by their normalized text. It is safe
// for concurrent use.
type Aggregator struct {
	norm *query.Normalizer

	mu     sync.Mutex
	groups map[string]*group
}

// NewAggregator creates an Aggregator that normalizes with n.
func NewAggregator(n *query.Normalizer) *Aggregator {
	return &Aggregator{
		norm:   n,
		groups: make(map[string]*group),
	}
}

// Add records one execution of sql taking d and returns the normalized
// text it was grouped under.
func (a *Aggregator) Add(sql string, d time.Duration) (string, error) {
	nq, err := a.norm.Normalize(sql)
	if err != nil {
		return "", fmt.Errorf("stats: add: %w", err)
	}
	if nq == "" {
		return "", nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	g, ok := a.groups[nq]
	if !ok {
		g = &group{}
		a.groups[nq] = g
	}
	g.add(d)
	return nq, nil
}

// Len returns the number of distinct normalized queries.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups)
}

// Rows returns one row per group ordered by mode, largest first.
func (a *Aggregator) Rows(mode SortMode) []Row {
	a.mu.Lock()
	rows := summarize(a.groups)
	a.mu.Unlock()

	sortRows(rows, mode)
	return rows
}

// Take returns the rows like Rows and starts a new collection period.
func (a *Aggregator) Take(mode SortMode) []Row {
	a.mu.Lock()
	groups := a.groups
	a.groups = make(map[string]*group)
	a.mu.Unlock()

	rows := summarize(groups)
	sortRows(rows, mode)
	return rows
}

func summarize(groups map[string]*group) []Row {
	rows := make([]Row, 0, len(groups))
	for q, g := range groups {
		sorted := slices.Clone(g.durations)
		slices.SortFunc(sorted, cmp.Compare)
		rows = append(rows, Row{
			Query:       q,
			Fingerprint: query.Hash(q),
			Count:       g.count,
			Total:       g.total,
			Avg:         g.total / time.Duration(g.count),
			P95:         percentile(sorted, 0.95),
			Max:         g.max,
		})
	}
	return rows
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func sortRows(rows []Row, mode SortMode) {
	sort.SliceStable(rows, func(i, j int) bool {
		switch mode {
		case SortTotal:
			return rows[i].Total > rows[j].Total
		case SortCount:
			return rows[i].Count > rows[j].Count
		case SortAvg:
			return rows[i].Avg > rows[j].Avg
		case SortP95:
			return rows[i].P95 > rows[j].P95
		}
		return rows[i].Total > rows[j].Total
	})
}
