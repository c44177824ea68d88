// Package connectors defines the narrow SourceConnector boundary the
// Retrieve stage fans queries out to. spec.md §1 keeps real network
// connectors out of scope (no OpenAlex/arXiv HTTP client is implemented
// here); this package is the seam plus a rate-limiting decorator any
// concrete connector can be wrapped in, grounded on
// researchops_connectors/hybrid.py's keyword_search_multi_connector
// fan-out and the base.py RetrievedSource/CanonicalIdentifier shapes.
package connectors

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// CanonicalIdentifier mirrors researchops_connectors.base.CanonicalIdentifier:
// the identity fields a connector result is deduplicated on before it
// becomes a model.Source.
type CanonicalIdentifier struct {
	DOI        string
	ArXivID    string
	OpenAlexID string
	URL        string
}

// RetrievedSource is one hit from a connector's search call, grounded on
// researchops_connectors.base.RetrievedSource.
type RetrievedSource struct {
	CanonicalID  CanonicalIdentifier
	Title        string
	Authors      []string
	Year         *int
	Venue        string
	Abstract     string
	URL          string
	CitedByCount *int
	Connector    string
}

// SearchParams is one query fan-out to a single connector.
type SearchParams struct {
	Query      string
	MaxResults int
	YearFrom   *int
	YearTo     *int
}

// SourceConnector is implemented per upstream catalog (OpenAlex, arXiv,
// ...). Concrete network implementations are out of spec.md's scope; the
// Retrieve stage is built against this interface so a real implementation
// can be dropped in without touching pipeline code.
type SourceConnector interface {
	Name() string
	Search(ctx context.Context, params SearchParams) ([]RetrievedSource, error)
}

// RateLimited decorates a SourceConnector with a token-bucket limiter,
// grounded on x/time/rate the way correlator's connectors throttle
// upstream catalog calls — this spec has no connector-specific ingestion
// concern of its own, so the generic limiter decorator is the shape worth
// keeping from that pack repo.
type RateLimited struct {
	inner   SourceConnector
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with a limiter allowing burst requests
// immediately and then at most rps per second thereafter.
func NewRateLimited(inner SourceConnector, rps float64, burst int) *RateLimited {
	return &RateLimited{inner: inner, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Name() string { return r.inner.Name() }

func (r *RateLimited) Search(ctx context.Context, params SearchParams) ([]RetrievedSource, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Search(ctx, params)
}

var _ SourceConnector = (*RateLimited)(nil)

// nopConnector is a zero-result stand-in used where a deployment has not
// wired a real catalog client yet; it lets the Retrieve stage run (and its
// abstract-fallback snippet path exercise) without a live connector.
type nopConnector struct {
	name string
}

// NewNopConnector returns a SourceConnector that always yields zero
// results, useful for local development and for tests that only exercise
// ranking/persistence, not live catalog lookups.
func NewNopConnector(name string) SourceConnector { return &nopConnector{name: name} }

func (n *nopConnector) Name() string { return n.name }

func (n *nopConnector) Search(ctx context.Context, params SearchParams) ([]RetrievedSource, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(0):
	}
	return nil, nil
}
