package corpus

import (
	"context"
	"fmt"
	"math"
	"time"

	"telemetry-dashboard/pkg/yield"
)

// BM25 parameters.
const (
	K1 = 1.5
	B  = 0.75
)

// Posting lists the positions of one token within one document.
type Posting struct {
	Doc       int
	Positions []int
}

// Index is an immutable build of the corpus. Documents are addressed by
// their position in Docs.
type Index struct {
	Generation uint64
	BuiltAt    time.Time
	Docs       []Document

	byID         map[string]int
	postings     map[string][]Posting
	df           map[string]int
	lengths      []int
	tokenCounts  []map[string]int
	avgDocLength float64
	tfidf        []map[string]float64
	norms        []float64
}

func emptyIndex() *Index {
	return &Index{
		byID:     map[string]int{},
		postings: map[string][]Posting{},
		df:       map[string]int{},
	}
}

// Build indexes docs. The yielder is consulted after each of the three
// passes and cancellation aborts the build.
func Build(ctx context.Context, docs []Document, y *yield.Yielder) (*Index, error) {
	if y == nil {
		y = yield.New(yield.DefaultBudget)
	}
	idx := emptyIndex()
	idx.Docs = docs
	idx.lengths = make([]int, len(docs))
	idx.tokenCounts = make([]map[string]int, len(docs))

	for i, d := range docs {
		if _, dup := idx.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate document id %q", d.ID)
		}
		idx.byID[d.ID] = i
		tokens := Tokenize(d.Text())
		counts := make(map[string]int, len(tokens))
		positions := make(map[string][]int, len(tokens))
		for pos, tok := range tokens {
			counts[tok]++
			positions[tok] = append(positions[tok], pos)
		}
		for tok, ps := range positions {
			idx.postings[tok] = append(idx.postings[tok], Posting{Doc: i, Positions: ps})
			idx.df[tok]++
		}
		idx.lengths[i] = len(tokens)
		idx.tokenCounts[i] = counts
		if err := y.Every(ctx, i+1, 100); err != nil {
			return nil, err
		}
	}
	if err := y.Checkpoint(ctx); err != nil {
		return nil, err
	}

	total := 0
	for _, l := range idx.lengths {
		total += l
	}
	if len(docs) > 0 {
		idx.avgDocLength = float64(total) / float64(len(docs))
	}
	if err := y.Checkpoint(ctx); err != nil {
		return nil, err
	}

	idx.tfidf = make([]map[string]float64, len(docs))
	idx.norms = make([]float64, len(docs))
	for i, counts := range idx.tokenCounts {
		vec, norm := idx.weigh(counts)
		idx.tfidf[i] = vec
		idx.norms[i] = norm
		if err := y.Every(ctx, i+1, 100); err != nil {
			return nil, err
		}
	}
	if err := y.Checkpoint(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// weigh turns token counts into a TF-IDF vector: tf is count over the max
// count, idf is log(N/df).
func (idx *Index) weigh(counts map[string]int) (map[string]float64, float64) {
	maxCount := 0
	for _, c := range counts {
		maxCount = max(maxCount, c)
	}
	vec := make(map[string]float64, len(counts))
	var sum float64
	for tok, c := range counts {
		w := float64(c) / float64(maxCount) * idx.IDF(tok)
		if w == 0 {
			continue
		}
		vec[tok] = w
		sum += w * w
	}
	return vec, math.Sqrt(sum)
}

func (idx *Index) Len() int { return len(idx.Docs) }

// Lookup returns the position of the document with the given id.
func (idx *Index) Lookup(id string) (int, bool) {
	i, ok := idx.byID[id]
	return i, ok
}

func (idx *Index) Postings(token string) []Posting { return idx.postings[token] }

func (idx *Index) DocFreq(token string) int { return idx.df[token] }

func (idx *Index) AvgDocLength() float64 { return idx.avgDocLength }

func (idx *Index) DocLength(doc int) int { return idx.lengths[doc] }

// TokenCount is how often token occurs in doc.
func (idx *Index) TokenCount(doc int, token string) int { return idx.tokenCounts[doc][token] }

// BM25IDF is log((N - df + 0.5) / (df + 0.5) + 1).
func (idx *Index) BM25IDF(token string) float64 {
	n := float64(len(idx.Docs))
	df := float64(idx.df[token])
	return math.Log((n-df+0.5)/(df+0.5) + 1)
}

// IDF is the TF-IDF inverse document frequency log(N / df), zero for
// unknown tokens.
func (idx *Index) IDF(token string) float64 {
	df := idx.df[token]
	if df == 0 {
		return 0
	}
	return math.Log(float64(len(idx.Docs)) / float64(df))
}

// BM25 scores every document containing at least one of tokens.
func (idx *Index) BM25(tokens []string) map[int]float64 {
	scores := make(map[int]float64)
	if idx.avgDocLength == 0 {
		return scores
	}
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		idf := idx.BM25IDF(tok)
		for _, p := range idx.postings[tok] {
			tf := float64(len(p.Positions))
			norm := 1 - B + B*float64(idx.lengths[p.Doc])/idx.avgDocLength
			scores[p.Doc] += idf * tf * (K1 + 1) / (tf + K1*norm)
		}
	}
	return scores
}

// QueryVector weighs query tokens the same way documents are weighed.
// Weights scales individual tokens, e.g. to damp synonyms.
func (idx *Index) QueryVector(tokens []string, weights map[string]float64) (map[string]float64, float64) {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	if len(counts) == 0 {
		return map[string]float64{}, 0
	}
	vec, _ := idx.weigh(counts)
	var sum float64
	for tok, w := range vec {
		if f, ok := weights[tok]; ok {
			w *= f
			vec[tok] = w
		}
		sum += w * w
	}
	return vec, math.Sqrt(sum)
}

// Cosine is the cosine similarity between a query vector and doc's TF-IDF
// vector; zero when either is empty.
func (idx *Index) Cosine(doc int, q map[string]float64, qNorm float64) float64 {
	dNorm := idx.norms[doc]
	if qNorm == 0 || dNorm == 0 {
		return 0
	}
	dv := idx.tfidf[doc]
	var dot float64
	for tok, w := range q {
		dot += w * dv[tok]
	}
	return dot / (qNorm * dNorm)
}

// Vector returns the TF-IDF vector of doc. Callers must not modify it.
func (idx *Index) Vector(doc int) map[string]float64 { return idx.tfidf[doc] }
