package service

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/medsafety-mcp-server/internal/domain"
	"github.com/medsafety-mcp-server/internal/heuristic"
)

// ResolverConfig configures the tiered interaction resolver.
type ResolverConfig struct {
	// MemoSize bounds the in-memory memo of resolved pairs (entries).
	MemoSize int `json:"memo_size"`
	// MaxConcurrency limits concurrent pair resolutions in ResolveAll.
	MaxConcurrency int `json:"max_concurrency"`
}

// ResolverStats reports per-tier resolution counters.
type ResolverStats struct {
	MemoHits      int64 `json:"memo_hits"`
	CacheHits     int64 `json:"cache_hits"`
	CuratedHits   int64 `json:"curated_hits"`
	HeuristicHits int64 `json:"heuristic_hits"`
	Unresolved    int64 `json:"unresolved"`
	TierFailures  int64 `json:"tier_failures"`
}

// ResolutionOutcome is the result of resolving a pair set. PerPair holds
// one slot per input pair in enumeration order, nil where no tier had
// evidence; Records and Unresolved are the compacted views of the same
// outcome. Degraded is true when at least one tier lookup failed and
// resolution fell through on an error rather than a clean miss.
type ResolutionOutcome struct {
	PerPair        []*domain.InteractionRecord `json:"perPair"`
	Records        []domain.InteractionRecord  `json:"records"`
	Unresolved     []domain.DrugPair           `json:"unresolved"`
	PairsAttempted int                         `json:"pairsAttempted"`
	Degraded       bool                        `json:"degraded"`
}

// TieredResolver resolves drug pairs through the three-tier chain: live
// store by canonical code pair, curated knowledge table by canonical name
// pair, then the bundled heuristic fallback table. The first hit is
// terminal and each tier tries both pair orderings before falling through.
// A tier failure is logged and treated as a fallthrough, never as a request
// failure; only a miss in every tier yields nil ("unknown", which is not
// "no interaction").
//
// A small memo in front of the chain short-circuits repeat pairs within and
// across requests. Only hits are memoized: an unknown pair stays eligible
// for re-resolution once the backing stores learn about it.
type TieredResolver struct {
	directory domain.DrugDirectory
	table     *heuristic.Table

	memo      *lru.Cache
	semaphore chan struct{}

	logger  *logrus.Logger
	stats   ResolverStats
	statsMu sync.Mutex
}

// NewTieredResolver creates a resolver over the given directory and
// fallback table.
func NewTieredResolver(directory domain.DrugDirectory, table *heuristic.Table, config ResolverConfig, logger *logrus.Logger) (*TieredResolver, error) {
	if directory == nil {
		return nil, fmt.Errorf("resolver: drug directory is required")
	}
	if table == nil {
		return nil, fmt.Errorf("resolver: heuristic table is required")
	}
	if config.MemoSize <= 0 {
		config.MemoSize = 1024
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 5
	}
	if logger == nil {
		logger = logrus.New()
	}

	memo, err := lru.New(config.MemoSize)
	if err != nil {
		return nil, fmt.Errorf("resolver: create memo cache: %w", err)
	}

	return &TieredResolver{
		directory: directory,
		table:     table,
		memo:      memo,
		semaphore: make(chan struct{}, config.MaxConcurrency),
		logger:    logger,
	}, nil
}

// Resolve resolves a single pair through the tier chain. It returns
// (nil, nil) when no tier has evidence; the only error condition is
// context cancellation.
func (r *TieredResolver) Resolve(ctx context.Context, pair domain.DrugPair) (*domain.InteractionRecord, error) {
	rec, _, err := r.resolve(ctx, pair)
	return rec, err
}

// resolve runs the tier chain for one pair and reports whether any tier
// failed along the way.
func (r *TieredResolver) resolve(ctx context.Context, pair domain.DrugPair) (*domain.InteractionRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	memoKey := pair.Key()
	if v, ok := r.memo.Get(memoKey); ok {
		if rec, ok := v.(domain.InteractionRecord); ok {
			r.incrementStat(func(s *ResolverStats) { s.MemoHits++ })
			return cloneRecord(rec), false, nil
		}
	}

	degraded := false

	// Cache tier: canonical code pair against the live store. Skipped when
	// either drug lacks a code, which is a miss, not a failure.
	if pair.A.HasCode() && pair.B.HasCode() {
		rec, tierDegraded, err := r.lookupBothOrders(ctx, pair, domain.TierCache, func(ctx context.Context, p domain.DrugPair) (*domain.InteractionRecord, error) {
			return r.directory.LookupInteraction(ctx, p.A.CanonicalCode, p.B.CanonicalCode)
		})
		if err != nil {
			return nil, degraded, err
		}
		degraded = degraded || tierDegraded
		if rec != nil {
			r.incrementStat(func(s *ResolverStats) { s.CacheHits++ })
			r.memoize(ctx, memoKey, rec)
			return rec, degraded, nil
		}
	}

	// Curated tier: canonical name pair against the knowledge table.
	rec, tierDegraded, err := r.lookupBothOrders(ctx, pair, domain.TierCurated, func(ctx context.Context, p domain.DrugPair) (*domain.InteractionRecord, error) {
		return r.directory.LookupInteractionByName(ctx, p.A.CanonicalName, p.B.CanonicalName)
	})
	if err != nil {
		return nil, degraded, err
	}
	degraded = degraded || tierDegraded
	if rec != nil {
		r.incrementStat(func(s *ResolverStats) { s.CuratedHits++ })
		r.memoize(ctx, memoKey, rec)
		return rec, degraded, nil
	}

	// Heuristic tier: the bundled fallback table. Symmetric keying makes a
	// single lookup cover both orderings.
	if entry, ok := r.table.Lookup(pair.A.CanonicalName, pair.B.CanonicalName); ok {
		heuristicRec := entry.Record()
		r.incrementStat(func(s *ResolverStats) { s.HeuristicHits++ })
		r.logger.WithFields(logrus.Fields{
			"pair":          pair.String(),
			"severity":      string(heuristicRec.Severity),
			"table_version": r.table.Version(),
		}).Debug("Pair resolved from heuristic fallback table")
		r.memoize(ctx, memoKey, &heuristicRec)
		return &heuristicRec, degraded, nil
	}

	r.incrementStat(func(s *ResolverStats) { s.Unresolved++ })
	r.logger.WithField("pair", pair.String()).Debug("No tier had evidence for pair")
	return nil, degraded, nil
}

// lookupBothOrders runs one store-backed tier, trying (A,B) then (B,A).
// A hit is validated and stamped with the expected tier before it may enter
// aggregation; an invalid row is rejected and treated as a miss. Lookup
// errors mark the tier degraded and fall through unless the context itself
// is done.
func (r *TieredResolver) lookupBothOrders(
	ctx context.Context,
	pair domain.DrugPair,
	tier domain.SourceTier,
	lookup func(ctx context.Context, p domain.DrugPair) (*domain.InteractionRecord, error),
) (*domain.InteractionRecord, bool, error) {
	degraded := false

	for _, ordered := range []domain.DrugPair{pair, {A: pair.B, B: pair.A}} {
		rec, err := lookup(ctx, ordered)
		if err != nil {
			if ctx.Err() != nil {
				return nil, degraded, ctx.Err()
			}
			degraded = true
			r.incrementStat(func(s *ResolverStats) { s.TierFailures++ })
			r.logger.WithFields(logrus.Fields{
				"pair": ordered.String(),
				"tier": string(tier),
			}).WithError(err).Warn("Tier lookup failed, falling through")
			continue
		}
		if rec == nil {
			continue
		}
		if rec.SourceTier != tier {
			rec.SourceTier = tier
		}
		if err := rec.Validate(); err != nil {
			r.logger.WithFields(logrus.Fields{
				"pair": ordered.String(),
				"tier": string(tier),
			}).WithError(err).Warn("Rejecting invalid interaction record from tier")
			continue
		}
		return rec, degraded, nil
	}

	return nil, degraded, nil
}

// ResolveAll resolves every pair concurrently, bounded by the configured
// concurrency limit. Records come back in enumeration order. Cancellation
// abandons remaining pairs and returns the context error; nothing is
// memoized for abandoned work.
func (r *TieredResolver) ResolveAll(ctx context.Context, pairs []domain.DrugPair) (*ResolutionOutcome, error) {
	outcome := &ResolutionOutcome{PairsAttempted: len(pairs)}
	if len(pairs) == 0 {
		return outcome, nil
	}

	resolved := make([]*domain.InteractionRecord, len(pairs))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		degraded bool
	)

	r.logger.WithField("pair_count", len(pairs)).Debug("Starting pair resolution")

	for i, pair := range pairs {
		wg.Add(1)
		go func(idx int, pair domain.DrugPair) {
			defer wg.Done()

			select {
			case r.semaphore <- struct{}{}:
				defer func() { <-r.semaphore }()
			case <-ctx.Done():
				mu.Lock()
				if firstErr == nil {
					firstErr = ctx.Err()
				}
				mu.Unlock()
				return
			}

			rec, wasDegraded, err := r.resolve(ctx, pair)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			resolved[idx] = rec
			if wasDegraded {
				degraded = true
			}
		}(i, pair)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	outcome.PerPair = resolved
	for i, rec := range resolved {
		if rec != nil {
			outcome.Records = append(outcome.Records, *rec)
		} else {
			outcome.Unresolved = append(outcome.Unresolved, pairs[i])
		}
	}
	outcome.Degraded = degraded

	r.logger.WithFields(logrus.Fields{
		"pair_count": len(pairs),
		"resolved":   len(outcome.Records),
		"unresolved": len(outcome.Unresolved),
		"degraded":   degraded,
	}).Debug("Completed pair resolution")

	return outcome, nil
}

// Stats returns a snapshot of the per-tier counters.
func (r *TieredResolver) Stats() ResolverStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}

// memoize stores a resolved record unless the context was canceled, so an
// abandoned request cannot leave partial state behind.
func (r *TieredResolver) memoize(ctx context.Context, key string, rec *domain.InteractionRecord) {
	if ctx.Err() != nil {
		return
	}
	// Store a detached copy so callers mutating the returned record cannot
	// reach the memoized citations.
	r.memo.Add(key, *cloneRecord(*rec))
}

func (r *TieredResolver) incrementStat(update func(*ResolverStats)) {
	r.statsMu.Lock()
	update(&r.stats)
	r.statsMu.Unlock()
}

// cloneRecord returns an independent copy so memoized citations cannot be
// mutated through a returned record.
func cloneRecord(rec domain.InteractionRecord) *domain.InteractionRecord {
	rec.Citations = append([]string(nil), rec.Citations...)
	return &rec
}
