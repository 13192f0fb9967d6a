package service

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/medsafety-mcp-server/internal/domain"
)

// NormalizerConfig configures the drug normalizer.
type NormalizerConfig struct {
	// CacheSize bounds the in-memory alias cache (entries).
	CacheSize int `json:"cache_size"`
	// MaxConcurrency limits concurrent directory lookups during list
	// normalization.
	MaxConcurrency int `json:"max_concurrency"`
}

// NormalizerStats reports normalizer cache and degradation counters.
type NormalizerStats struct {
	CacheHits     int64 `json:"cache_hits"`
	CacheMisses   int64 `json:"cache_misses"`
	DirectoryHits int64 `json:"directory_hits"`
	Fallbacks     int64 `json:"fallbacks"`
	DegradedCalls int64 `json:"degraded_calls"`
	TotalRequests int64 `json:"total_requests"`
}

// Normalizer resolves free-text medication references to canonical drug
// identities through the drug directory, with an in-memory alias cache in
// front. Directory failures never fail a request: the drug degrades to its
// fallback identity (lowercase, trimmed) and the call is flagged so the
// caller can report reduced confidence.
type Normalizer struct {
	directory  domain.DrugDirectory
	aliasCache *lru.Cache[string, domain.AliasRecord]

	semaphore chan struct{}

	logger  *logrus.Logger
	stats   NormalizerStats
	statsMu sync.Mutex
}

// NormalizationOutcome is the result of normalizing a medication list.
// Drugs preserves input order. Degraded is true when at least one directory
// lookup failed and fell back to the lowercase-trim identity.
type NormalizationOutcome struct {
	Drugs    []domain.NormalizedDrug `json:"drugs"`
	Degraded bool                    `json:"degraded"`
}

// NewNormalizer creates a drug normalizer backed by the given directory.
func NewNormalizer(directory domain.DrugDirectory, config NormalizerConfig, logger *logrus.Logger) (*Normalizer, error) {
	if directory == nil {
		return nil, fmt.Errorf("normalizer: drug directory is required")
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 512
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 5
	}
	if logger == nil {
		logger = logrus.New()
	}

	aliasCache, err := lru.New[string, domain.AliasRecord](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("normalizer: create alias cache: %w", err)
	}

	return &Normalizer{
		directory:  directory,
		aliasCache: aliasCache,
		semaphore:  make(chan struct{}, config.MaxConcurrency),
		logger:     logger,
	}, nil
}

// Normalize resolves one medication reference to its canonical identity.
// A directory hit yields the canonical name and code; a clean miss or a
// directory failure yields the fallback identity. The returned bool is true
// when the directory failed and the result is degraded. The only error
// conditions are an unusable reference and context cancellation.
func (n *Normalizer) Normalize(ctx context.Context, ref domain.MedicationReference) (domain.NormalizedDrug, bool, error) {
	n.statsMu.Lock()
	n.stats.TotalRequests++
	n.statsMu.Unlock()

	fallback := domain.FallbackIdentity(ref.Name)
	if fallback == "" {
		return domain.NormalizedDrug{}, false, fmt.Errorf("normalize %q: %w: medication name is required", ref.Name, domain.ErrInvalidInput)
	}

	if err := ctx.Err(); err != nil {
		return domain.NormalizedDrug{}, false, err
	}

	if rec, ok := n.aliasCache.Get(fallback); ok {
		n.incrementCacheHit()
		return n.fromAlias(ref, rec), false, nil
	}
	n.incrementCacheMiss()

	rec, err := n.directory.LookupAlias(ctx, ref.Name)
	if err != nil {
		if ctx.Err() != nil {
			return domain.NormalizedDrug{}, false, ctx.Err()
		}
		n.incrementDegraded()
		n.logger.WithFields(logrus.Fields{
			"medication": ref.Name,
			"fallback":   fallback,
		}).WithError(err).Warn("Drug directory lookup failed, using fallback identity")
		return n.fallbackDrug(ref, fallback), true, nil
	}

	if rec == nil {
		n.incrementFallback()
		n.logger.WithFields(logrus.Fields{
			"medication": ref.Name,
			"fallback":   fallback,
		}).Debug("No directory alias for medication, using fallback identity")
		return n.fallbackDrug(ref, fallback), false, nil
	}

	n.incrementDirectoryHit()
	if ctx.Err() == nil {
		n.aliasCache.Add(fallback, *rec)
	}
	n.logger.WithFields(logrus.Fields{
		"medication":     ref.Name,
		"canonical_name": rec.CanonicalName,
		"canonical_code": rec.CanonicalCode,
	}).Debug("Resolved medication through drug directory")

	return n.fromAlias(ref, *rec), false, nil
}

// NormalizeAll normalizes a medication list concurrently, bounded by the
// configured concurrency limit. Output order matches input order so that
// downstream consolidation stays deterministic. Cancellation abandons
// remaining work and returns the context error without partial results.
func (n *Normalizer) NormalizeAll(ctx context.Context, refs []domain.MedicationReference) (*NormalizationOutcome, error) {
	outcome := &NormalizationOutcome{
		Drugs: make([]domain.NormalizedDrug, len(refs)),
	}
	if len(refs) == 0 {
		return outcome, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		degraded bool
	)

	n.logger.WithField("medication_count", len(refs)).Debug("Starting medication list normalization")

	for i, ref := range refs {
		wg.Add(1)
		go func(idx int, ref domain.MedicationReference) {
			defer wg.Done()

			select {
			case n.semaphore <- struct{}{}:
				defer func() { <-n.semaphore }()
			case <-ctx.Done():
				mu.Lock()
				if firstErr == nil {
					firstErr = ctx.Err()
				}
				mu.Unlock()
				return
			}

			drug, wasDegraded, err := n.Normalize(ctx, ref)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			outcome.Drugs[idx] = drug
			if wasDegraded {
				degraded = true
			}
		}(i, ref)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	outcome.Degraded = degraded

	n.logger.WithFields(logrus.Fields{
		"medication_count": len(refs),
		"degraded":         degraded,
	}).Debug("Completed medication list normalization")

	return outcome, nil
}

// Stats returns a snapshot of the normalizer counters.
func (n *Normalizer) Stats() NormalizerStats {
	n.statsMu.Lock()
	defer n.statsMu.Unlock()
	return n.stats
}

func (n *Normalizer) fromAlias(ref domain.MedicationReference, rec domain.AliasRecord) domain.NormalizedDrug {
	return domain.NormalizedDrug{
		OriginalReference: ref,
		CanonicalName:     rec.CanonicalName,
		CanonicalCode:     rec.CanonicalCode,
	}
}

func (n *Normalizer) fallbackDrug(ref domain.MedicationReference, fallback string) domain.NormalizedDrug {
	return domain.NormalizedDrug{
		OriginalReference: ref,
		CanonicalName:     fallback,
	}
}

func (n *Normalizer) incrementCacheHit() {
	n.statsMu.Lock()
	n.stats.CacheHits++
	n.statsMu.Unlock()
}

func (n *Normalizer) incrementCacheMiss() {
	n.statsMu.Lock()
	n.stats.CacheMisses++
	n.statsMu.Unlock()
}

func (n *Normalizer) incrementDirectoryHit() {
	n.statsMu.Lock()
	n.stats.DirectoryHits++
	n.statsMu.Unlock()
}

func (n *Normalizer) incrementFallback() {
	n.statsMu.Lock()
	n.stats.Fallbacks++
	n.statsMu.Unlock()
}

func (n *Normalizer) incrementDegraded() {
	n.statsMu.Lock()
	n.stats.DegradedCalls++
	n.statsMu.Unlock()
}
