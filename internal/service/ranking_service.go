package service

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/leetclash/backend/internal/domain"
)

// RankingService recomputes ordinal ranks for a contest after any
// score-affecting update
type RankingService struct {
	participationRepo domain.ParticipationRepository
	tracer            trace.Tracer
	logger            *zap.Logger
}

// NewRankingService creates a new ranking service
func NewRankingService(
	participationRepo domain.ParticipationRepository,
	tracer trace.Tracer,
	logger *zap.Logger,
) *RankingService {
	return &RankingService{
		participationRepo: participationRepo,
		tracer:            tracer,
		logger:            logger,
	}
}

// RecomputeRanks rewrites ranks for every participation of a contest:
// score descending, penalty ascending, older enrollment first on full
// ties. Ranks form a dense 1..N sequence; only rows whose rank moved
// are written. Safe to call repeatedly, recompute is idempotent.
func (s *RankingService) RecomputeRanks(ctx context.Context, contestID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "RankingService.RecomputeRanks")
	defer span.End()

	span.SetAttributes(attribute.String("contest.id", contestID.String()))

	participations, err := s.participationRepo.FindByContestID(contestID)
	if err != nil {
		return err
	}
	if len(participations) == 0 {
		return nil
	}

	RankOrder(participations)

	changed := make(map[uuid.UUID]int)
	for i := range participations {
		rank := i + 1
		if participations[i].Rank == nil || *participations[i].Rank != rank {
			changed[participations[i].ID] = rank
		}
	}

	if err := s.participationRepo.UpdateRanks(changed); err != nil {
		return err
	}

	span.SetAttributes(attribute.Int("ranking.changed", len(changed)))
	s.logger.Debug("Ranks recomputed",
		zap.String("contest_id", contestID.String()),
		zap.Int("participants", len(participations)),
		zap.Int("changed", len(changed)),
	)
	return nil
}

// RankOrder sorts participations into competitive order in place:
// higher score first, then fewer penalty minutes, then enrollment time
// and ID so the residual order is deterministic.
func RankOrder(participations []domain.Participation) {
	sort.SliceStable(participations, func(i, j int) bool {
		a, b := &participations[i], &participations[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.TotalPenalty != b.TotalPenalty {
			return a.TotalPenalty < b.TotalPenalty
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}
