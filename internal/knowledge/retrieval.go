package knowledge

import (
	"context"

	"github.com/rs/zerolog/log"
)

// DefaultMinScore filters out hits too weak to be worth surfacing.
const DefaultMinScore = 0.1

// Service chains retrieval strategies: semantic first when
// configured, lexical FTS next, an empty set last. It never surfaces
// an error to the orchestration layer; a broken tier is logged and
// skipped.
type Service struct {
	semantic Searcher // optional
	lexical  Searcher // optional
	MinScore float64
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithSemantic sets the embedding-backed searcher tried first.
func WithSemantic(s Searcher) ServiceOption {
	return func(svc *Service) { svc.semantic = s }
}

// WithLexical sets the full-text fallback searcher.
func WithLexical(s Searcher) ServiceOption {
	return func(svc *Service) { svc.lexical = s }
}

// NewService creates the retrieval service.
func NewService(opts ...ServiceOption) *Service {
	svc := &Service{MinScore: DefaultMinScore}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Retrieve implements Retriever. The worst case is an empty slice.
func (s *Service) Retrieve(ctx context.Context, query string, limit int) []RankedResult {
	if limit <= 0 {
		limit = 5
	}

	if s.semantic != nil {
		hits, err := s.semantic.Search(ctx, query, limit)
		if err != nil {
			log.Warn().Err(err).Msg("semantic retrieval failed; falling back to lexical")
		} else if kept := s.filter(hits); len(kept) > 0 {
			return kept
		}
	}

	if s.lexical != nil {
		hits, err := s.lexical.Search(ctx, query, limit)
		if err != nil {
			log.Warn().Err(err).Msg("lexical retrieval failed")
		} else if kept := s.filter(hits); len(kept) > 0 {
			return kept
		}
	}

	log.Debug().Str("query", query).Msg("no knowledge hits")
	return []RankedResult{}
}

func (s *Service) filter(hits []RankedResult) []RankedResult {
	kept := hits[:0]
	for _, h := range hits {
		if h.RelevanceScore >= s.MinScore {
			kept = append(kept, h)
		}
	}
	return kept
}
