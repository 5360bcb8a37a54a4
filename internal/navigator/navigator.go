// Package navigator derives the file-affinity graph from activity and lays
// it out twice: a force-directed physical layout over co-occurrence edges
// and a UMAP-style latent layout over file feature vectors. Results are
// published as immutable States.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"telemetry-dashboard/internal/config"
	"telemetry-dashboard/internal/errs"
	"telemetry-dashboard/internal/metrics"
	"telemetry-dashboard/internal/store"
	"telemetry-dashboard/internal/utils"
	"telemetry-dashboard/pkg/logger"
	"telemetry-dashboard/pkg/pool"
	"telemetry-dashboard/pkg/yield"
)

type Mode string

const (
	ModePhysical Mode = "physical"
	ModeLatent   Mode = "latent"
)

// ErrSuperseded is returned by Refresh when a newer refresh started before
// this one finished. Its result is discarded.
var ErrSuperseded = errors.New("navigator refresh superseded")

const annotateTimeout = 10 * time.Second

// State is one committed navigator computation. It is never modified after
// publication.
type State struct {
	Generation     uint64           `json:"generation"`
	Nodes          []FileNode       `json:"nodes"`
	Edges          []Edge           `json:"edges"`
	Physical       map[string]Point `json:"physical"`
	Latent         map[string]Point `json:"latent"`
	Clusters       []Cluster        `json:"clusters"`
	Hierarchy      []Group          `json:"hierarchy"`
	LatentCached   bool             `json:"latentCached"`
	LatentFallback bool             `json:"latentFallback"`
	Error          error            `json:"-"`
	ComputedAt     time.Time        `json:"computedAt"`
}

// Empty is the "no data" state.
func (s *State) Empty() bool {
	return s == nil || len(s.Nodes) == 0
}

// Positions returns the committed position map of a mode.
func (s *State) Positions(mode Mode) map[string]Point {
	if mode == ModeLatent {
		return s.Latent
	}
	return s.Physical
}

// Interpolate blends physical (t=0) into latent (t=1) positions.
func (s *State) Interpolate(t float64) map[string]Point {
	t = max(0, min(t, 1))
	out := make(map[string]Point, len(s.Physical))
	for id, p := range s.Physical {
		q, ok := s.Latent[id]
		if !ok {
			q = p
		}
		out[id] = p.Lerp(q, t)
	}
	return out
}

// latentEntry is the persisted latent layout of one file set.
type latentEntry struct {
	Fingerprint string           `json:"fingerprint"`
	CreatedAt   int64            `json:"createdAt"`
	Positions   map[string]Point `json:"positions"`
}

func (e latentEntry) RecordID() string  { return e.Fingerprint }
func (e latentEntry) RecordTime() int64 { return e.CreatedAt }

type Navigator struct {
	cfg       config.ConfigNavigator
	semantic  bool
	palette   []string
	store     store.Store
	pool      *pool.TaskPool
	annotator Annotator
	metrics   *metrics.Metrics
	logger    logger.Logger
	filter    *Filter
	now       func() time.Time

	generation atomic.Uint64
	state      atomic.Pointer[State]

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New wires a navigator. annotator may be nil.
func New(cfg config.ClientConfig, s store.Store, p *pool.TaskPool, annotator Annotator, m *metrics.Metrics, logger logger.Logger) *Navigator {
	n := &Navigator{
		cfg:       cfg.Navigator,
		semantic:  cfg.Search.EnableSemantic,
		palette:   cfg.View.ChartColors,
		store:     s,
		pool:      p,
		annotator: annotator,
		metrics:   m,
		logger:    logger,
		filter:    NewFilter(cfg.Navigator.IgnorePatterns),
		now:       time.Now,
	}
	n.state.Store(&State{})
	return n
}

// State returns the latest committed state; never nil.
func (n *Navigator) State() *State {
	return n.state.Load()
}

// Refresh recomputes the graph, both layouts and the clusters, and commits
// them as one State. Starting a refresh cancels the one in flight.
func (n *Navigator) Refresh(ctx context.Context, in Input) (*State, error) {
	gen := n.generation.Add(1)
	ctx, cancel := context.WithCancel(ctx)
	n.mu.Lock()
	if n.cancel != nil {
		n.cancel()
	}
	n.cancel = cancel
	n.mu.Unlock()
	defer func() {
		n.mu.Lock()
		if gen == n.generation.Load() {
			n.cancel = nil
		}
		n.mu.Unlock()
		cancel()
	}()

	st, err := n.compute(ctx, gen, in)
	if err != nil {
		if gen != n.generation.Load() {
			return n.State(), ErrSuperseded
		}
		return n.State(), err
	}
	if gen != n.generation.Load() {
		n.logger.Debug("navigator: discarding generation %d", gen)
		return n.State(), ErrSuperseded
	}
	n.state.Store(st)
	return st, nil
}

func (n *Navigator) compute(ctx context.Context, gen uint64, in Input) (*State, error) {
	y := yield.New(yield.DefaultBudget)
	st := &State{Generation: gen, ComputedAt: n.now()}

	nodes := BuildNodes(in, n.filter, n.cfg.MaxNodes)
	if len(nodes) == 0 {
		st.Physical = map[string]Point{}
		st.Latent = map[string]Point{}
		return st, nil
	}
	if _, err := AttachFeatures(ctx, nodes, y); err != nil {
		return nil, err
	}
	st.Nodes = nodes

	edges, err := BuildEdges(ctx, nodes, n.cfg.EdgeThreshold, y)
	if err != nil {
		return nil, err
	}
	st.Edges = edges

	start := time.Now()
	physical, err := PhysicalLayout(ctx, nodes, edges, PhysicalParams{Width: n.cfg.CanvasWidth, Height: n.cfg.CanvasHeight}, y)
	if err != nil {
		return nil, err
	}
	n.metrics.LayoutComputed(ctx, string(ModePhysical), time.Since(start))
	st.Physical = physical

	latent, cached, err := n.latent(ctx, nodes)
	switch {
	case err == nil:
		st.Latent, st.LatentCached = latent, cached
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		st.Error = errs.New(errs.KindLayout, "navigator.latent", err)
		st.Latent, st.LatentFallback = physical, true
		n.logger.Warn("navigator: latent layout failed, using physical positions: %v", err)
	}

	st.Hierarchy = Hierarchy(nodes, st.Latent, max(n.cfg.CanvasWidth, n.cfg.CanvasHeight))
	clusters, err := pool.Execute(ctx, n.pool, func(ctx context.Context) ([]Cluster, error) {
		return FlatClusters(ctx, nodes, st.Latent, n.semantic, n.cfg.Seed, n.palette, yield.New(yield.DefaultBudget))
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		n.logger.Warn("navigator: clustering failed: %v", err)
	}
	st.Clusters = n.annotate(ctx, clusters)

	n.logger.Info("navigator: generation %d, %d nodes, %d edges, %d clusters",
		gen, len(nodes), len(edges), len(st.Clusters))
	return st, nil
}

func (n *Navigator) fingerprint(nodes []FileNode) string {
	ids := make([]string, len(nodes))
	for i, node := range nodes {
		ids[i] = node.ID
	}
	return fmt.Sprintf("%s-%d-%gx%g", utils.Fingerprint(ids), n.cfg.Seed, n.cfg.CanvasWidth, n.cfg.CanvasHeight)
}

// latent returns cached positions for the file set when fresh, otherwise
// computes them on the worker pool and caches the result.
func (n *Navigator) latent(ctx context.Context, nodes []FileNode) (map[string]Point, bool, error) {
	key := n.fingerprint(nodes)
	if n.store != nil {
		entry, ok, err := store.GetOne[latentEntry](ctx, n.store, store.KindUmapCache, key)
		if err != nil {
			n.logger.Debug("navigator: latent cache read failed: %v", err)
		}
		if ok && n.now().Sub(time.UnixMilli(entry.CreatedAt)) < n.cfg.LatentCacheTTL() && len(entry.Positions) == len(nodes) {
			return entry.Positions, true, nil
		}
	}

	vecs := make([][]float64, len(nodes))
	for i, node := range nodes {
		vecs[i] = node.FeatureVector
	}
	params := DefaultLatentParams(n.cfg.Seed, n.cfg.CanvasWidth, n.cfg.CanvasHeight)
	start := time.Now()
	pts, err := pool.Execute(ctx, n.pool, func(ctx context.Context) ([]Point, error) {
		return LatentLayout(ctx, vecs, params, yield.New(yield.DefaultBudget))
	})
	if err != nil {
		return nil, false, err
	}
	n.metrics.LayoutComputed(ctx, string(ModeLatent), time.Since(start))

	positions := make(map[string]Point, len(nodes))
	for i, node := range nodes {
		positions[node.ID] = pts[i]
	}
	if n.store != nil {
		entry := latentEntry{Fingerprint: key, CreatedAt: n.now().UnixMilli(), Positions: positions}
		if err := store.StoreBatch(ctx, n.store, store.KindUmapCache, []latentEntry{entry}); err != nil {
			n.logger.Warn("navigator: failed to cache latent layout: %v", err)
		}
	}
	return positions, false, nil
}

func (n *Navigator) annotate(ctx context.Context, clusters []Cluster) []Cluster {
	if n.annotator == nil || len(clusters) == 0 {
		return clusters
	}
	actx, cancel := context.WithTimeout(ctx, annotateTimeout)
	defer cancel()
	names, err := n.annotator.Annotate(actx, clusters)
	if err != nil {
		n.logger.Debug("navigator: cluster annotation unavailable: %v", err)
		return clusters
	}
	out := make([]Cluster, len(clusters))
	for i, c := range clusters {
		if name, ok := names[c.ID]; ok && name != "" {
			c.Name = name
		}
		out[i] = c
	}
	return out
}
