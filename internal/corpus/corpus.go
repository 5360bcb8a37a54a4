// Package corpus builds the searchable document view of the activity data:
// an inverted index with positions, BM25 statistics and TF-IDF vectors.
package corpus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"telemetry-dashboard/internal/errs"
	"telemetry-dashboard/internal/metrics"
	"telemetry-dashboard/internal/model"
	"telemetry-dashboard/pkg/logger"
	"telemetry-dashboard/pkg/yield"
)

// Corpus holds the current Index. Readers call Current and keep the returned
// pointer for the duration of a query; rebuilds swap it atomically.
type Corpus struct {
	logger  logger.Logger
	metrics *metrics.Metrics

	current    atomic.Pointer[Index]
	generation atomic.Uint64
	buildMu    sync.Mutex
}

func New(logger logger.Logger, m *metrics.Metrics) *Corpus {
	c := &Corpus{logger: logger, metrics: m}
	c.current.Store(emptyIndex())
	return c
}

// Current returns the latest committed index; never nil.
func (c *Corpus) Current() *Index {
	return c.current.Load()
}

// Rebuild indexes the given records and swaps the result in. On failure the
// previous index stays current and an index_build error is returned.
func (c *Corpus) Rebuild(ctx context.Context, events []model.Event, prompts []model.Prompt, workspaces []model.Workspace) (*Index, error) {
	return c.RebuildDocuments(ctx, BuildDocuments(events, prompts, workspaces))
}

func (c *Corpus) RebuildDocuments(ctx context.Context, docs []Document) (idx *Index, err error) {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			idx, err = nil, fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			err = errs.New(errs.KindIndexBuild, "corpus.rebuild", err)
			c.logger.Warn("corpus: rebuild failed, keeping generation %d: %v", c.Current().Generation, err)
		}
		c.metrics.IndexBuilt(ctx, time.Since(start), err == nil)
	}()

	idx, err = Build(ctx, docs, yield.New(yield.DefaultBudget))
	if err != nil {
		return nil, err
	}
	idx.Generation = c.generation.Add(1)
	idx.BuiltAt = time.Now()
	c.current.Store(idx)
	c.logger.Info("corpus: generation %d built, %d documents, %d tokens in %s",
		idx.Generation, idx.Len(), len(idx.df), time.Since(start))
	return idx, nil
}
