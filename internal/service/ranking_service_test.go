package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/leetclash/backend/internal/domain"
)

func participationWith(contestID uuid.UUID, score, penalty int, createdAt time.Time) domain.Participation {
	return domain.Participation{
		ID:           uuid.New(),
		ContestID:    contestID,
		UserID:       uuid.New(),
		Score:        score,
		TotalPenalty: penalty,
		CreatedAt:    createdAt,
	}
}

func TestRankOrder(t *testing.T) {
	contestID := uuid.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	high := participationWith(contestID, 10, 20, base.Add(3*time.Minute))
	lowPenalty := participationWith(contestID, 7, 5, base.Add(2*time.Minute))
	highPenalty := participationWith(contestID, 7, 15, base.Add(time.Minute))
	earlier := participationWith(contestID, 7, 15, base)

	ps := []domain.Participation{highPenalty, lowPenalty, high, earlier}
	RankOrder(ps)

	want := []uuid.UUID{high.ID, lowPenalty.ID, earlier.ID, highPenalty.ID}
	for i, id := range want {
		if ps[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, ps[i].ID, id)
		}
	}
}

func TestRankOrderFullTieFallsBackToID(t *testing.T) {
	contestID := uuid.New()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	a := participationWith(contestID, 5, 10, at)
	b := participationWith(contestID, 5, 10, at)

	ps := []domain.Participation{a, b}
	RankOrder(ps)
	if ps[0].ID.String() > ps[1].ID.String() {
		t.Error("full tie not broken by ID order")
	}
}

func TestRecomputeRanksDenseAndChangedOnly(t *testing.T) {
	repo := newMemParticipationRepo()
	svc := NewRankingService(repo, otel.Tracer("test"), zap.NewNop())
	contestID := uuid.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := participationWith(contestID, 9, 5, base)
	second := participationWith(contestID, 9, 10, base.Add(time.Minute))
	third := participationWith(contestID, 3, 0, base.Add(2*time.Minute))

	// first already holds the right rank; only the others should be
	// written.
	one := 1
	first.Rank = &one
	for _, p := range []domain.Participation{first, second, third} {
		stored := p
		repo.rows[p.ID] = &stored
	}

	if err := svc.RecomputeRanks(context.Background(), contestID); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}

	if len(repo.lastRanks) != 2 {
		t.Errorf("wrote %d ranks, want 2", len(repo.lastRanks))
	}
	if _, ok := repo.lastRanks[first.ID]; ok {
		t.Error("unchanged rank was rewritten")
	}

	wantRanks := map[uuid.UUID]int{first.ID: 1, second.ID: 2, third.ID: 3}
	for id, want := range wantRanks {
		got := repo.rows[id].Rank
		if got == nil || *got != want {
			t.Errorf("rank for %s = %v, want %d", id, got, want)
		}
	}
}

func TestRecomputeRanksEmptyContest(t *testing.T) {
	repo := newMemParticipationRepo()
	svc := NewRankingService(repo, otel.Tracer("test"), zap.NewNop())

	if err := svc.RecomputeRanks(context.Background(), uuid.New()); err != nil {
		t.Fatalf("recompute on empty contest failed: %v", err)
	}
	if repo.rankCalls != 0 {
		t.Error("UpdateRanks called for an empty contest")
	}
}
