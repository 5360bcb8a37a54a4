package navigator

import (
	"context"
	"hash/fnv"
	"sort"
	"strings"

	"telemetry-dashboard/internal/corpus"
	"telemetry-dashboard/internal/utils"
	"telemetry-dashboard/pkg/yield"
)

const (
	vocabularySize      = 50
	maxFeatureContent   = 10000
	conversationHashDim = 4
	maxConversationMsgs = 20.0
)

// Extensions encoded one-hot, in vector order.
var featureExtensions = []string{"js", "ts", "py", "go", "java", "html", "css", "json", "md"}

// FeatureSpace is the shared vocabulary feature vectors are expressed in.
type FeatureSpace struct {
	Vocabulary    []string
	Conversations bool
}

// Dim is the length of every vector in the space.
func (s FeatureSpace) Dim() int {
	d := vocabularySize + 2 + len(featureExtensions)
	if s.Conversations {
		d += conversationHashDim + 1
	}
	return d
}

func fileTokens(content string) []string {
	return corpus.Tokenize(utils.Truncate(content, maxFeatureContent))
}

// NewFeatureSpace picks the corpus-wide most frequent terms. Ties break
// alphabetically so the space depends only on the node set.
func NewFeatureSpace(nodes []FileNode) FeatureSpace {
	freq := make(map[string]int)
	conversations := false
	for _, n := range nodes {
		for _, t := range fileTokens(n.Content) {
			freq[t]++
		}
		conversations = conversations || len(n.Conversations) > 0
	}
	terms := make([]string, 0, len(freq))
	for t := range freq {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > vocabularySize {
		terms = terms[:vocabularySize]
	}
	return FeatureSpace{Vocabulary: terms, Conversations: conversations}
}

// Vector encodes one node: normalized term frequencies over the vocabulary,
// change and event activity, extension one-hot, then optional conversation
// features.
func (s FeatureSpace) Vector(n FileNode) []float64 {
	vec := make([]float64, s.Dim())
	counts := make(map[string]int)
	maxCount := 0
	for _, t := range fileTokens(n.Content) {
		counts[t]++
		maxCount = max(maxCount, counts[t])
	}
	for i, term := range s.Vocabulary {
		if maxCount > 0 {
			vec[i] = float64(counts[term]) / float64(maxCount)
		}
	}
	off := vocabularySize
	vec[off] = min(float64(n.ChangeCount)/100, 1)
	vec[off+1] = min(float64(n.EventCount)/50, 1)
	off += 2
	for i, ext := range featureExtensions {
		if n.Extension == ext {
			vec[off+i] = 1
		}
	}
	off += len(featureExtensions)
	if s.Conversations && len(n.Conversations) > 0 {
		ids := append([]string(nil), n.Conversations...)
		sort.Strings(ids)
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Join(ids, ",")))
		sum := h.Sum32()
		for i := 0; i < conversationHashDim; i++ {
			vec[off+i] = float64((sum>>(8*i))&0xff) / 255
		}
		vec[off+conversationHashDim] = min(float64(len(n.Conversations))/maxConversationMsgs, 1)
	}
	return vec
}

// AttachFeatures fills FeatureVector on every node.
func AttachFeatures(ctx context.Context, nodes []FileNode, y *yield.Yielder) (FeatureSpace, error) {
	space := NewFeatureSpace(nodes)
	for i := range nodes {
		nodes[i].FeatureVector = space.Vector(nodes[i])
		if err := y.Every(ctx, i+1, 50); err != nil {
			return space, err
		}
	}
	return space, nil
}
