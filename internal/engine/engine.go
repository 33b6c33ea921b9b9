// Package engine orchestrates the rehydration pipeline: entity
// extraction, parallel lexical/dense retrieval, entity-adjacent
// expansion, rank fusion, deduplication, and bundle assembly, all behind
// the TTL/LRU cache.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mnemohq/rehydrate/internal/assembler"
	"github.com/mnemohq/rehydrate/internal/cache"
	"github.com/mnemohq/rehydrate/internal/dedup"
	"github.com/mnemohq/rehydrate/internal/expander"
	"github.com/mnemohq/rehydrate/internal/extractor"
	"github.com/mnemohq/rehydrate/internal/fusion"
	"github.com/mnemohq/rehydrate/internal/retriever"
	"github.com/mnemohq/rehydrate/internal/roles"
	"github.com/mnemohq/rehydrate/pkg/types"
)

// ChunkSource resolves chunk ids to content and serves the recency feed.
// The backing index is owned by an external ingestion collaborator and is
// read-only from the engine's perspective.
type ChunkSource interface {
	GetChunk(ctx context.Context, chunkID int64) (*types.Chunk, error)
	RecentChunks(ctx context.Context, limit int) ([]*types.Chunk, error)
}

// Config tunes the pipeline.
type Config struct {
	// RRFConstant is the rank-discount constant k; 0 selects the default.
	RRFConstant float64
	// RequestTimeout bounds the whole pipeline run. A request that blows
	// the deadline fails cleanly; partial results are never assembled.
	RequestTimeout time.Duration
	// CandidateMultiplier widens the base retrievals relative to the
	// requested limit so fusion and dedup have material to work with.
	CandidateMultiplier int
	// RecencyLimit is how many recently-changed chunks feed the recency
	// slot.
	RecencyLimit int
	// EntityExpansion is the startup default for the expansion flag;
	// it can be flipped at runtime without a restart.
	EntityExpansion bool
	// Expander sizes entity-adjacent retrieval.
	Expander expander.Config
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		RRFConstant:         fusion.DefaultK,
		RequestTimeout:      5 * time.Second,
		CandidateMultiplier: 2,
		RecencyLimit:        10,
		EntityExpansion:     true,
		Expander:            expander.DefaultConfig(),
	}
}

// Request is one inbound rehydration call.
type Request struct {
	Role        string
	Task        string
	Limit       int
	TokenBudget int
	// Flags overrides the engine-level default when non-nil.
	Flags *types.FeatureFlags
}

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Engine runs the retrieval-fusion-assembly pipeline.
type Engine struct {
	roles     *roles.Store
	lexical   retriever.Retriever
	dense     retriever.Retriever
	chunks    ChunkSource
	extractor *extractor.Extractor
	fuser     *fusion.Fuser
	expander  *expander.Expander
	cache     *cache.Cache
	cfg       Config
	metrics   *Metrics
	logger    *zap.Logger

	expansionDefault atomic.Bool
}

// New wires the engine. cache may be nil, in which case every request
// computes fresh (the degraded mode used when the cache backend is
// unavailable).
func New(
	roleStore *roles.Store,
	lexical, dense retriever.Retriever,
	chunks ChunkSource,
	bundleCache *cache.Cache,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = DefaultConfig().CandidateMultiplier
	}
	if cfg.RecencyLimit < 0 {
		cfg.RecencyLimit = 0
	}

	e := &Engine{
		roles:     roleStore,
		lexical:   lexical,
		dense:     dense,
		chunks:    chunks,
		extractor: extractor.New(),
		fuser:     fusion.New(cfg.RRFConstant, logger),
		expander:  expander.New(dense, cfg.Expander, logger),
		cache:     bundleCache,
		cfg:       cfg,
		metrics:   newMetrics(),
		logger:    logger,
	}
	e.expansionDefault.Store(cfg.EntityExpansion)
	return e
}

// SetEntityExpansion flips the engine-level expansion default at runtime.
func (e *Engine) SetEntityExpansion(enabled bool) {
	e.expansionDefault.Store(enabled)
	e.logger.Info("entity expansion default changed", zap.Bool("enabled", enabled))
}

// EntityExpansion reports the current engine-level default.
func (e *Engine) EntityExpansion() bool {
	return e.expansionDefault.Load()
}

// Metrics returns a snapshot of engine counters.
func (e *Engine) Metrics() MetricsSnapshot {
	return e.metrics.snapshot()
}

// Rehydrate produces the context bundle for a (role, task) request. It
// serves from cache when possible, coalescing concurrent misses for the
// same key into a single pipeline run.
func (e *Engine) Rehydrate(ctx context.Context, req Request) (*types.Bundle, error) {
	start := time.Now()
	bundle, err := e.rehydrate(ctx, req)
	e.metrics.observe(time.Since(start), err)
	return bundle, err
}

func (e *Engine) rehydrate(ctx context.Context, req Request) (*types.Bundle, error) {
	if strings.TrimSpace(req.Task) == "" {
		return nil, types.NewError(types.ErrKindConfig, "task cannot be empty", nil)
	}
	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	if req.Limit > maxLimit {
		req.Limit = maxLimit
	}

	role, err := e.roles.Get(req.Role)
	if err != nil {
		return nil, err
	}

	budget := req.TokenBudget
	if budget <= 0 {
		budget = role.TokenBudget
	}

	flags := types.FeatureFlags{EntityExpansion: e.expansionDefault.Load()}
	if req.Flags != nil {
		flags = *req.Flags
	}

	compute := func() (*types.Bundle, error) {
		return e.runPipeline(ctx, req, role, budget, flags)
	}

	if e.cache == nil {
		// Degraded mode: cache backend unavailable, compute fresh.
		return compute()
	}

	key := cache.ComputeKey(req.Role, req.Task, req.Limit, budget, flags)
	bundle, hit, err := e.cache.GetOrCompute(key, compute)
	if err != nil {
		return nil, err
	}
	if hit {
		e.metrics.cacheHit()
	}
	return bundle, nil
}

// runPipeline executes the uncached pipeline under the request deadline.
func (e *Engine) runPipeline(ctx context.Context, req Request, role *types.RoleConfig, budget int, flags types.FeatureFlags) (*types.Bundle, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	// Anchor priors expand the retrieval query only; they are typed so
	// that nothing downstream can place them in the bundle.
	query := expandQuery(req.Task, role.Anchors)

	// Entities come from the raw task text, not the expanded query.
	entities := e.extractor.Extract(req.Task)

	topK := req.Limit * e.cfg.CandidateMultiplier

	var lexHits, denseHits []types.RetrievalHit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lexHits, err = e.lexical.Search(gctx, query, topK)
		return err
	})
	g.Go(func() error {
		var err error
		denseHits, err = e.dense.Search(gctx, query, topK)
		return err
	})

	// Entity-adjacent expansion joins the same barrier: fusion cannot
	// proceed until every constituent list is in (or the request died).
	var entityLists []fusion.List
	if flags.EntityExpansion && len(entities) > 0 {
		g.Go(func() error {
			var err error
			entityLists, err = e.expander.Expand(gctx, entities)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, e.classifyRetrievalErr(err)
	}

	lists := make([]fusion.List, 0, 2+len(entityLists))
	lists = append(lists,
		fusion.List{Channel: types.ChannelLexical, Hits: lexHits},
		fusion.List{Channel: types.ChannelDense, Hits: denseHits},
	)
	lists = append(lists, entityLists...)

	fused := e.fuser.Fuse(lists...)

	ranked, err := e.resolveChunks(ctx, fused, req.Limit*e.cfg.CandidateMultiplier)
	if err != nil {
		return nil, err
	}

	deduped := dedup.Apply(dedup.Config{
		KeepPerFile:     role.KeepPerFile,
		OverlapFraction: role.OverlapFraction,
	}, ranked)
	if len(deduped) > req.Limit {
		deduped = deduped[:req.Limit]
	}
	if len(deduped) == 0 {
		// Valid outcome: the bundle ships with an empty evidence slot.
		e.logger.Warn("no fused results after dedup",
			zap.String("role", req.Role), zap.String("task", req.Task))
	}

	evidence := make([]*types.Chunk, len(deduped))
	for i, r := range deduped {
		evidence[i] = r.Chunk
	}

	recent := e.recentChunks(ctx)

	return assembler.Assemble(assembler.Input{
		Role:        role,
		TokenBudget: budget,
		Evidence:    evidence,
		Recent:      recent,
	})
}

// resolveChunks loads chunk content for the top fused results. Chunks
// that can no longer be loaded are skipped rather than failing the
// request.
func (e *Engine) resolveChunks(ctx context.Context, fused []types.FusedResult, limit int) ([]dedup.Ranked, error) {
	if limit > len(fused) {
		limit = len(fused)
	}
	ranked := make([]dedup.Ranked, 0, limit)
	for _, fr := range fused[:limit] {
		chunk, err := e.chunks.GetChunk(ctx, fr.ChunkID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, e.classifyRetrievalErr(ctx.Err())
			}
			e.logger.Warn("skipping unloadable chunk",
				zap.Int64("chunk_id", fr.ChunkID), zap.Error(err))
			continue
		}
		ranked = append(ranked, dedup.Ranked{Result: fr, Chunk: chunk})
	}
	return ranked, nil
}

// recentChunks feeds the recency slot; failures degrade to an empty feed.
func (e *Engine) recentChunks(ctx context.Context) []*types.Chunk {
	if e.cfg.RecencyLimit == 0 {
		return nil
	}
	recent, err := e.chunks.RecentChunks(ctx, e.cfg.RecencyLimit)
	if err != nil {
		e.logger.Warn("recency feed unavailable", zap.Error(err))
		return nil
	}
	return recent
}

func (e *Engine) classifyRetrievalErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.ErrKindTimeout, "retrieval exceeded request deadline", err)
	}
	return err
}

// expandQuery appends the role's anchor priors to the task text. This is
// the only place anchor priors are consumed.
func expandQuery(task string, anchors []types.AnchorPrior) string {
	if len(anchors) == 0 {
		return task
	}
	var b strings.Builder
	b.WriteString(task)
	for _, a := range anchors {
		b.WriteString(" ")
		b.WriteString(string(a))
	}
	return b.String()
}
