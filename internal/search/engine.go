// Package search is the hybrid query engine over the corpus index: BM25,
// weighted token overlap, TF-IDF cosine and fuzzy title matching, combined
// and boosted by recency and click feedback.
package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"telemetry-dashboard/internal/config"
	"telemetry-dashboard/internal/corpus"
	"telemetry-dashboard/internal/errs"
	"telemetry-dashboard/internal/metrics"
	"telemetry-dashboard/pkg/cache"
	"telemetry-dashboard/pkg/logger"
)

// Stage weights of the combined score.
const (
	WeightBM25     = 0.45
	WeightFulltext = 0.30
	WeightSemantic = 0.20
	WeightFuzzy    = 0.05
)

// Fulltext boosts per matched token.
const (
	titleBoost     = 10.0
	typeBoost      = 5.0
	workspaceBoost = 3.0
)

const (
	// Fewer candidates than this consult the semantic stage.
	thinResults = 20
	// Fewer candidates than this consult the fuzzy stage.
	veryThinResults = 5
	fuzzyThreshold  = 0.55
	tieWindow       = 0.05
	day             = 24 * time.Hour
)

// Scores are the per-stage scores after normalization to [0,1].
type Scores struct {
	BM25     float64 `json:"bm25"`
	Fulltext float64 `json:"fulltext"`
	Semantic float64 `json:"semantic"`
	Fuzzy    float64 `json:"fuzzy"`
}

type Result struct {
	Document corpus.Document `json:"document"`
	Score    float64         `json:"score"`
	Scores   Scores          `json:"scores"`
	Snippet  string          `json:"snippet"`
}

// Response is what every search returns. Error carries user_input problems
// or an internal failure; Results are still valid when it is set.
type Response struct {
	Query       Query        `json:"query"`
	Results     []Result     `json:"results"`
	Total       int          `json:"total"`
	Clusters    []Cluster    `json:"clusters,omitempty"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
	Generation  uint64       `json:"generation"`
	Cached      bool         `json:"cached"`
	Error       error        `json:"-"`
}

type Engine struct {
	corpus   *corpus.Corpus
	feedback *Feedback
	cfg      config.ConfigSearch
	cache    *cache.LRUCache[*Response]
	metrics  *metrics.Metrics
	logger   logger.Logger
	now      func() time.Time
}

func NewEngine(c *corpus.Corpus, fb *Feedback, cfg config.ConfigSearch, m *metrics.Metrics, logger logger.Logger) *Engine {
	return &Engine{
		corpus:   c,
		feedback: fb,
		cfg:      cfg,
		cache:    cache.NewLRUCache[*Response](max(cfg.CacheSize, 1), time.Duration(cfg.CacheTTLSeconds)*time.Second),
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

func (e *Engine) Feedback() *Feedback { return e.feedback }

// Search runs raw against the current index. It never panics and never
// returns a nil Response.
func (e *Engine) Search(ctx context.Context, raw string) *Response {
	start := time.Now()
	q, perr := ParseQuery(raw)
	if perr != nil {
		e.logger.Debug("search: %v", perr)
	}
	if q.Empty() {
		return &Response{Query: q, Suggestions: e.Suggest(raw), Error: perr}
	}

	idx := e.corpus.Current()
	key := fmt.Sprintf("%d|%d|%s", idx.Generation, e.feedback.Version(), Render(q))
	if cached, ok := e.cache.Get(key); ok {
		e.feedback.RecordSearch(ctx, Render(q), cached.Total, e.now().UnixMilli())
		e.metrics.Searched(ctx, time.Since(start), true)
		resp := *cached
		resp.Cached = true
		return &resp
	}

	results, err := e.safeRun(idx, q)
	if err != nil {
		// Retry once with the unparsed text and no filters.
		e.logger.Warn("search: query %q failed, retrying with raw text: %v", raw, err)
		results, err = e.safeRun(idx, Query{Text: strings.Join(strings.Fields(raw), " ")})
		if err != nil {
			e.logger.Error("search: raw retry for %q failed: %v", raw, err)
			results = nil
		}
	}

	total := len(results)
	if limit := e.cfg.MaxResults; limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	resp := &Response{
		Query:      q,
		Results:    results,
		Total:      total,
		Clusters:   ClusterResults(results),
		Generation: idx.Generation,
		Error:      perr,
	}
	if err != nil {
		resp.Error = errs.New(errs.KindInternal, "search", err)
	} else {
		e.cache.Put(key, resp)
	}
	e.feedback.RecordSearch(ctx, Render(q), total, e.now().UnixMilli())
	e.metrics.Searched(ctx, time.Since(start), false)
	return resp
}

func (e *Engine) safeRun(idx *corpus.Index, q Query) (results []Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			results, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return e.run(idx, q), nil
}

// RecordClick feeds a result click back into ranking.
func (e *Engine) RecordClick(ctx context.Context, docID string) {
	idx := e.corpus.Current()
	i, ok := idx.Lookup(docID)
	if !ok {
		return
	}
	e.feedback.RecordClick(ctx, idx.Docs[i].Kind, e.now().UnixMilli())
}

// Purge drops cached responses.
func (e *Engine) Purge() {
	e.cache.Purge()
}

func (e *Engine) run(idx *corpus.Index, q Query) []Result {
	now := e.now()
	tokens := corpus.Tokenize(q.Text)
	if len(tokens) == 0 {
		return e.filterOnly(idx, q, now)
	}
	expanded := expand(tokens)

	bm25 := idx.BM25(tokens)
	fulltext := e.fulltext(idx, expanded)
	candidates := make(map[int]struct{}, len(bm25)+len(fulltext))
	for d := range bm25 {
		candidates[d] = struct{}{}
	}
	for d := range fulltext {
		candidates[d] = struct{}{}
	}

	var semantic, fuzzy map[int]float64
	if e.cfg.EnableSemantic && len(candidates) < thinResults {
		semantic = e.semantic(idx, expanded, candidates)
	}
	if len(candidates) < veryThinResults {
		fuzzy = e.fuzzy(idx, tokens)
		for d := range fuzzy {
			candidates[d] = struct{}{}
		}
	}

	maxBM25, maxFull, maxSem, maxFuzzy := maxOf(bm25), maxOf(fulltext), maxOf(semantic), maxOf(fuzzy)
	rawLower := strings.ToLower(strings.TrimSpace(q.Text))

	results := make([]Result, 0, len(candidates))
	for d := range candidates {
		doc := idx.Docs[d]
		if !q.Filters.match(doc, now) {
			continue
		}
		s := Scores{
			BM25:     norm(bm25[d], maxBM25),
			Fulltext: norm(fulltext[d], maxFull),
			Semantic: norm(semantic[d], maxSem),
			Fuzzy:    norm(fuzzy[d], maxFuzzy),
		}
		score := WeightBM25*s.BM25 + WeightFulltext*s.Fulltext + WeightSemantic*s.Semantic + WeightFuzzy*s.Fuzzy
		if score <= 0 {
			continue
		}
		score *= e.boost(doc, rawLower, now)
		results = append(results, Result{Document: doc, Score: score, Scores: s, Snippet: Snippet(doc.Content, tokens)})
	}
	rank(results)
	return results
}

// filterOnly lists documents matching the filters, newest first.
func (e *Engine) filterOnly(idx *corpus.Index, q Query, now time.Time) []Result {
	var results []Result
	for _, doc := range idx.Docs {
		if q.Filters.match(doc, now) {
			results = append(results, Result{Document: doc, Snippet: Snippet(doc.Content, nil)})
		}
	}
	rank(results)
	return results
}

// fulltext scores token overlap: each matched token counts once, plus
// boosts when it also appears in the title, names the document type or
// appears in the workspace path.
func (e *Engine) fulltext(idx *corpus.Index, expanded map[string]float64) map[int]float64 {
	scores := make(map[int]float64)
	titles := make(map[int]map[string]struct{})
	spaces := make(map[int]map[string]struct{})
	for tok, weight := range expanded {
		for _, p := range idx.Postings(tok) {
			doc := idx.Docs[p.Doc]
			s := 1.0
			if _, ok := tokenSet(titles, p.Doc, doc.Title)[tok]; ok {
				s += titleBoost
			}
			if tok == string(doc.Kind) || tok == strings.ToLower(doc.Metadata.EventType) {
				s += typeBoost
			}
			if _, ok := tokenSet(spaces, p.Doc, doc.Workspace)[tok]; ok {
				s += workspaceBoost
			}
			scores[p.Doc] += s * weight
		}
	}
	return scores
}

func tokenSet(memo map[int]map[string]struct{}, doc int, text string) map[string]struct{} {
	if set, ok := memo[doc]; ok {
		return set
	}
	set := make(map[string]struct{})
	for _, t := range corpus.Tokenize(text) {
		set[t] = struct{}{}
	}
	memo[doc] = set
	return set
}

// semantic is TF-IDF cosine over the candidates plus any document sharing
// an expanded token.
func (e *Engine) semantic(idx *corpus.Index, expanded map[string]float64, candidates map[int]struct{}) map[int]float64 {
	tokens := make([]string, 0, len(expanded))
	for t := range expanded {
		tokens = append(tokens, t)
	}
	q, qNorm := idx.QueryVector(tokens, expanded)
	docs := make(map[int]struct{}, len(candidates))
	for d := range candidates {
		docs[d] = struct{}{}
	}
	for _, t := range tokens {
		for _, p := range idx.Postings(t) {
			docs[p.Doc] = struct{}{}
		}
	}
	scores := make(map[int]float64)
	for d := range docs {
		if c := idx.Cosine(d, q, qNorm); c > 0 {
			scores[d] = c
		}
	}
	return scores
}

// fuzzy compares each query token against title tokens and averages the
// best similarities. Documents below fuzzyThreshold are dropped.
func (e *Engine) fuzzy(idx *corpus.Index, tokens []string) map[int]float64 {
	scores := make(map[int]float64)
	for d, doc := range idx.Docs {
		title := corpus.Tokenize(doc.Title)
		if len(title) == 0 {
			continue
		}
		var sum float64
		for _, q := range tokens {
			best := 0.0
			for _, t := range title {
				best = max(best, Similarity(q, t))
			}
			sum += best
		}
		if s := sum / float64(len(tokens)); s >= fuzzyThreshold {
			scores[d] = s
		}
	}
	return scores
}

func (e *Engine) boost(doc corpus.Document, rawLower string, now time.Time) float64 {
	f := 1.0
	age := now.Sub(time.UnixMilli(doc.Timestamp))
	switch {
	case age < day:
		f *= 1.3
	case age < 7*day:
		f *= 1.15
	case age < 30*day:
		f *= 1.05
	}
	f *= 1 + 0.2*e.feedback.Preference(doc.Kind)
	if rawLower != "" && strings.Contains(strings.ToLower(doc.Title), rawLower) {
		f *= 1.4
	}
	if doc.Metadata.ContextUsage > 50 {
		f *= 1.1
	}
	if doc.Metadata.LinesAdded > 100 {
		f *= 1.08
	}
	if doc.Metadata.IsConversation {
		f *= 1.05
	}
	return f
}

// rank sorts by score, then reorders runs of scores within tieWindow of the
// run's leader by timestamp descending.
func rank(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})
	for i := 0; i < len(results); {
		j := i + 1
		for j < len(results) && results[i].Score-results[j].Score <= tieWindow {
			j++
		}
		group := results[i:j]
		sort.SliceStable(group, func(a, b int) bool {
			if group[a].Document.Timestamp != group[b].Document.Timestamp {
				return group[a].Document.Timestamp > group[b].Document.Timestamp
			}
			return group[a].Document.ID < group[b].Document.ID
		})
		i = j
	}
}

func maxOf(m map[int]float64) float64 {
	var out float64
	for _, v := range m {
		out = max(out, v)
	}
	return out
}

func norm(v, maxV float64) float64 {
	if maxV <= 0 || math.IsNaN(v) {
		return 0
	}
	return v / maxV
}
