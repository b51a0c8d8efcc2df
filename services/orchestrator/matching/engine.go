// Package matching decides which schemes a profile qualifies for and ranks them.
//
// The engine holds no state of its own: given the same profile, catalog snapshot
// and clock it returns the same ordered result.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

var (
	ErrCatalogUnavailable = errors.New("scheme catalog unavailable")
	ErrSchemeNotFound     = errors.New("scheme not found")
)

// Catalog serves the current active version of every scheme.
type Catalog interface {
	ActiveSchemes(ctx context.Context) ([]models.Scheme, error)
	// Scheme returns ErrSchemeNotFound when id is unknown.
	Scheme(ctx context.Context, id string) (models.Scheme, error)
}

type Engine struct {
	catalog Catalog
	weights Weights
	now     func() time.Time
	log     *logger.Logger
}

type Option func(*Engine)

func WithWeights(w Weights) Option { return func(e *Engine) { e.weights = w } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func NewEngine(catalog Catalog, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		catalog: catalog,
		weights: DefaultWeights,
		now:     time.Now,
		log:     log.With("component", "matching"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FindEligibleSchemes returns every active scheme whose declared criteria all
// pass, ordered by descending score and then ascending scheme id.
func (e *Engine) FindEligibleSchemes(ctx context.Context, p models.Profile) ([]models.SchemeMatch, error) {
	schemes, err := e.catalog.ActiveSchemes(ctx)
	if err != nil {
		e.log.Warn("catalog read failed", "identity", p.Identity, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return Rank(p, schemes, e.weights, e.now()), nil
}

// Rank is the pure core of FindEligibleSchemes.
func Rank(p models.Profile, schemes []models.Scheme, w Weights, now time.Time) []models.SchemeMatch {
	active := make([]models.Scheme, 0, len(schemes))
	for _, s := range schemes {
		if s.Active {
			active = append(active, s)
		}
	}

	matches := make([]models.SchemeMatch, 0)
	for _, s := range active {
		results := Evaluate(p, s, now)
		if !allPassed(results) {
			continue
		}
		matches = append(matches, models.SchemeMatch{
			Scheme:   s,
			Criteria: results,
			Score:    w.score(p, s, active, now),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Scheme.ID < matches[j].Scheme.ID
	})
	for i := range matches {
		matches[i].Rank = i + 1
	}
	return matches
}

// CheckEligibility evaluates one scheme and reports every criterion, passed or not.
func (e *Engine) CheckEligibility(ctx context.Context, p models.Profile, schemeID string) (models.EligibilityResult, error) {
	s, err := e.catalog.Scheme(ctx, schemeID)
	if errors.Is(err, ErrSchemeNotFound) {
		return models.EligibilityResult{}, err
	}
	if err != nil {
		e.log.Warn("catalog read failed", "identity", p.Identity, "scheme_id", schemeID, "error", err)
		return models.EligibilityResult{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	results := Evaluate(p, s, e.now())
	return models.EligibilityResult{
		Scheme:   s,
		Eligible: s.Active && allPassed(results),
		Criteria: results,
	}, nil
}

// Scheme exposes a single catalog lookup to callers that only hold the engine.
func (e *Engine) Scheme(ctx context.Context, id string) (models.Scheme, error) {
	s, err := e.catalog.Scheme(ctx, id)
	if err != nil && !errors.Is(err, ErrSchemeNotFound) {
		return models.Scheme{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return s, err
}

// ActiveSchemes exposes the catalog listing, used for name lookups.
func (e *Engine) ActiveSchemes(ctx context.Context) ([]models.Scheme, error) {
	schemes, err := e.catalog.ActiveSchemes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return schemes, nil
}
