package search

import (
	"context"
	"sort"
	"strings"
	"sync"

	"telemetry-dashboard/internal/corpus"
	"telemetry-dashboard/internal/store"
	"telemetry-dashboard/pkg/logger"
)

const (
	MaxHistory  = 20
	MaxSearches = 100
	analyticsID = "analytics"
	// maxPreference bounds the learned per-kind preference.
	maxPreference = 0.5
)

type HistoryEntry struct {
	Query     string `json:"query"`
	Timestamp int64  `json:"timestamp"`
}

func (h HistoryEntry) RecordID() string  { return h.Query }
func (h HistoryEntry) RecordTime() int64 { return h.Timestamp }

type SearchRecord struct {
	Query     string `json:"query"`
	Timestamp int64  `json:"timestamp"`
	Results   int    `json:"results"`
}

// Analytics is the persisted relevance-feedback record.
type Analytics struct {
	Searches   []SearchRecord `json:"searches"`
	KindClicks map[string]int `json:"kindClicks"`
	Clicks     int            `json:"clicks"`
	UpdatedAt  int64          `json:"updatedAt"`
}

func (a Analytics) RecordID() string  { return analyticsID }
func (a Analytics) RecordTime() int64 { return a.UpdatedAt }

// Popular is a query and how often it was searched.
type Popular struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// Feedback keeps the rolling search history and click analytics, mirrored
// to the store.
type Feedback struct {
	store  store.Store
	logger logger.Logger

	mu        sync.RWMutex
	history   []HistoryEntry // most recent first
	analytics Analytics
	version   uint64
}

func NewFeedback(s store.Store, logger logger.Logger) *Feedback {
	return &Feedback{store: s, logger: logger, analytics: Analytics{KindClicks: map[string]int{}}}
}

// Load restores history and analytics from the store.
func (f *Feedback) Load(ctx context.Context) {
	if f.store == nil {
		return
	}
	history, _, err := store.GetAll[HistoryEntry](ctx, f.store, store.KindSearchHistory)
	if err != nil {
		f.logger.Warn("search: failed to load history: %v", err)
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Timestamp > history[j].Timestamp })
	if len(history) > MaxHistory {
		history = history[:MaxHistory]
	}
	a, ok, err := store.GetOne[Analytics](ctx, f.store, store.KindSearchAnalytics, analyticsID)
	if err != nil {
		f.logger.Warn("search: failed to load analytics: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = history
	if ok {
		if a.KindClicks == nil {
			a.KindClicks = map[string]int{}
		}
		f.analytics = a
	}
	f.version++
}

// RecordSearch moves query to the front of the history and appends it to
// the analytics log.
func (f *Feedback) RecordSearch(ctx context.Context, query string, results int, now int64) {
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}
	f.mu.Lock()
	history := make([]HistoryEntry, 0, MaxHistory)
	history = append(history, HistoryEntry{Query: query, Timestamp: now})
	for _, h := range f.history {
		if h.Query != query && len(history) < MaxHistory {
			history = append(history, h)
		}
	}
	f.history = history
	f.analytics.Searches = append(f.analytics.Searches, SearchRecord{Query: query, Timestamp: now, Results: results})
	if over := len(f.analytics.Searches) - MaxSearches; over > 0 {
		f.analytics.Searches = append([]SearchRecord(nil), f.analytics.Searches[over:]...)
	}
	f.analytics.UpdatedAt = now
	a := f.cloneAnalyticsLocked()
	f.mu.Unlock()

	f.persist(ctx, history, a)
}

// RecordClick counts a click on a result of the given kind. Clicks change
// ranking, so they bump Version.
func (f *Feedback) RecordClick(ctx context.Context, kind corpus.Kind, now int64) {
	f.mu.Lock()
	f.analytics.KindClicks[string(kind)]++
	f.analytics.Clicks++
	f.analytics.UpdatedAt = now
	f.version++
	a := f.cloneAnalyticsLocked()
	history := f.history
	f.mu.Unlock()

	f.persist(ctx, history, a)
}

func (f *Feedback) cloneAnalyticsLocked() Analytics {
	a := f.analytics
	a.Searches = append([]SearchRecord(nil), f.analytics.Searches...)
	a.KindClicks = make(map[string]int, len(f.analytics.KindClicks))
	for k, v := range f.analytics.KindClicks {
		a.KindClicks[k] = v
	}
	return a
}

func (f *Feedback) persist(ctx context.Context, history []HistoryEntry, a Analytics) {
	if f.store == nil {
		return
	}
	if err := f.store.Clear(ctx, store.KindSearchHistory); err != nil {
		f.logger.Warn("search: failed to clear history: %v", err)
	} else if err := store.StoreBatch(ctx, f.store, store.KindSearchHistory, history); err != nil {
		f.logger.Warn("search: failed to store history: %v", err)
	}
	if err := store.StoreBatch(ctx, f.store, store.KindSearchAnalytics, []Analytics{a}); err != nil {
		f.logger.Warn("search: failed to store analytics: %v", err)
	}
}

// History returns recent queries, most recent first.
func (f *Feedback) History() []HistoryEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]HistoryEntry(nil), f.history...)
}

// Popular returns the k most frequent queries in the analytics log.
func (f *Feedback) Popular(k int) []Popular {
	f.mu.RLock()
	counts := make(map[string]int)
	for _, s := range f.analytics.Searches {
		counts[s.Query]++
	}
	f.mu.RUnlock()

	out := make([]Popular, 0, len(counts))
	for q, n := range counts {
		out = append(out, Popular{Query: q, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Query < out[j].Query
	})
	if k >= 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// Preference is the kind's click share above or below an even split,
// bounded to ±0.5.
func (f *Feedback) Preference(kind corpus.Kind) float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.analytics.Clicks == 0 {
		return 0
	}
	share := float64(f.analytics.KindClicks[string(kind)]) / float64(f.analytics.Clicks)
	pref := (share - 1.0/3.0) * 1.5
	return max(-maxPreference, min(maxPreference, pref))
}

// Version changes whenever ranking inputs change.
func (f *Feedback) Version() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.version
}
