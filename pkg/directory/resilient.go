package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/medsafety-mcp-server/internal/domain"
)

// ResilientDirectory wraps a directory with a circuit breaker so a failing
// remote service cannot stall every analysis. When the breaker is open, or an
// individual call fails, lookups are served from the fallback directory if
// one is configured; otherwise the error propagates and the resolver degrades
// to its remaining tiers.
type ResilientDirectory struct {
	inner    domain.DrugDirectory
	fallback domain.DrugDirectory
	breaker  *gobreaker.CircuitBreaker
	logger   *logrus.Logger
}

// ResilientOption customizes a ResilientDirectory.
type ResilientOption func(*ResilientDirectory)

// WithFallback configures a directory consulted when the primary fails or
// the breaker is open.
func WithFallback(fallback domain.DrugDirectory) ResilientOption {
	return func(r *ResilientDirectory) {
		r.fallback = fallback
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *logrus.Logger) ResilientOption {
	return func(r *ResilientDirectory) {
		r.logger = logger
	}
}

// NewResilientDirectory wraps inner with a circuit breaker.
func NewResilientDirectory(inner domain.DrugDirectory, opts ...ResilientOption) *ResilientDirectory {
	r := &ResilientDirectory{
		inner:  inner,
		logger: logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "DrugDirectory",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Drug directory circuit breaker state changed")
		},
	})

	return r
}

// LookupAlias resolves an alias through the breaker.
func (r *ResilientDirectory) LookupAlias(ctx context.Context, name string) (*domain.AliasRecord, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.LookupAlias(ctx, name)
	})
	if err != nil {
		if r.fallback != nil {
			r.logDegraded("alias", err)
			return r.fallback.LookupAlias(ctx, name)
		}
		return nil, fmt.Errorf("alias lookup unavailable: %w", err)
	}

	rec, _ := result.(*domain.AliasRecord)
	return rec, nil
}

// LookupInteraction resolves a code-pair interaction through the breaker.
func (r *ResilientDirectory) LookupInteraction(ctx context.Context, codeA, codeB string) (*domain.InteractionRecord, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.LookupInteraction(ctx, codeA, codeB)
	})
	if err != nil {
		if r.fallback != nil {
			r.logDegraded("interaction", err)
			return r.fallback.LookupInteraction(ctx, codeA, codeB)
		}
		return nil, fmt.Errorf("interaction lookup unavailable: %w", err)
	}

	rec, _ := result.(*domain.InteractionRecord)
	return rec, nil
}

// LookupInteractionByName resolves a name-pair interaction through the breaker.
func (r *ResilientDirectory) LookupInteractionByName(ctx context.Context, nameA, nameB string) (*domain.InteractionRecord, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.LookupInteractionByName(ctx, nameA, nameB)
	})
	if err != nil {
		if r.fallback != nil {
			r.logDegraded("interactionByName", err)
			return r.fallback.LookupInteractionByName(ctx, nameA, nameB)
		}
		return nil, fmt.Errorf("interaction lookup unavailable: %w", err)
	}

	rec, _ := result.(*domain.InteractionRecord)
	return rec, nil
}

// State reports the current breaker state for health checks.
func (r *ResilientDirectory) State() gobreaker.State {
	return r.breaker.State()
}

func (r *ResilientDirectory) logDegraded(op string, err error) {
	r.logger.WithError(err).WithFields(logrus.Fields{
		"operation": op,
		"breaker":   r.breaker.State().String(),
	}).Warn("Primary directory unavailable, serving from fallback")
}
