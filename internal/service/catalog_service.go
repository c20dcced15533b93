package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/leetclash/backend/internal/domain"
	"github.com/leetclash/backend/internal/leetcode"
)

// catalogRefreshAfter is how old a cached catalog entry may be before
// a lookup refetches it from the judge. Difficulty almost never
// changes, so this is generous.
const catalogRefreshAfter = 7 * 24 * time.Hour

// CatalogService resolves problem slugs to catalog entries. Entries
// come from the judge API and are memoized in the problems table;
// difficulty falls back to Medium when the judge cannot resolve a slug.
type CatalogService struct {
	problemRepo domain.ProblemRepository
	judge       *leetcode.Client
	tracer      trace.Tracer
	logger      *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	problemRepo domain.ProblemRepository,
	judge *leetcode.Client,
	tracer trace.Tracer,
	logger *zap.Logger,
) *CatalogService {
	return &CatalogService{
		problemRepo: problemRepo,
		judge:       judge,
		tracer:      tracer,
		logger:      logger,
	}
}

// Resolve returns the catalog entry for a slug, fetching from the
// judge when the local cache is missing or stale. A judge failure on a
// stale-but-present entry serves the stale entry.
func (s *CatalogService) Resolve(ctx context.Context, slug string) (*domain.Problem, error) {
	ctx, span := s.tracer.Start(ctx, "CatalogService.Resolve")
	defer span.End()

	span.SetAttributes(attribute.String("problem.slug", slug))

	cached, err := s.problemRepo.FindBySlug(slug)
	if err == nil && time.Since(cached.FetchedAt) < catalogRefreshAfter {
		return cached, nil
	}
	if err != nil && err != domain.ErrProblemNotFound {
		return nil, err
	}

	question, fetchErr := s.judge.FetchQuestion(ctx, slug)
	if fetchErr != nil {
		if cached != nil {
			s.logger.Warn("Catalog refresh failed, serving stale entry",
				zap.String("slug", slug),
				zap.Error(fetchErr),
			)
			return cached, nil
		}
		return nil, fetchErr
	}

	problem := &domain.Problem{
		Slug:       question.Slug,
		Title:      question.Title,
		Difficulty: domain.ParseDifficulty(question.Difficulty),
		Topics:     question.Topics,
		FetchedAt:  time.Now(),
	}
	if err := s.problemRepo.Upsert(problem); err != nil {
		s.logger.Error("Failed to cache catalog entry",
			zap.String("slug", slug),
			zap.Error(err),
		)
		// The resolved entry is still good even if caching failed.
	}
	return problem, nil
}

// ResolveDifficulty returns the difficulty tier for a slug, defaulting
// to Medium when the slug cannot be resolved at all.
func (s *CatalogService) ResolveDifficulty(ctx context.Context, slug string) domain.Difficulty {
	problem, err := s.Resolve(ctx, slug)
	if err != nil {
		s.logger.Warn("Difficulty unresolved, defaulting to Medium",
			zap.String("slug", slug),
			zap.Error(err),
		)
		return domain.DifficultyMedium
	}
	return problem.Difficulty
}
