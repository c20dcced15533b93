package service

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/leetclash/backend/internal/domain"
)

// codeAlphabet excludes lookalike characters so share codes survive
// being read aloud
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const codeLength = 6

// ContestService handles contest definition, enrollment, and the
// leaderboard read path
type ContestService struct {
	contestRepo       domain.ContestRepository
	participationRepo domain.ParticipationRepository
	catalog           *CatalogService
	tracer            trace.Tracer
	logger            *zap.Logger
	rng               *rand.Rand
	rngMu             sync.Mutex // Protects rng for concurrent access
}

// NewContestService creates a new contest service
func NewContestService(
	contestRepo domain.ContestRepository,
	participationRepo domain.ParticipationRepository,
	catalog *CatalogService,
	tracer trace.Tracer,
	logger *zap.Logger,
) *ContestService {
	return &ContestService{
		contestRepo:       contestRepo,
		participationRepo: participationRepo,
		catalog:           catalog,
		tracer:            tracer,
		logger:            logger,
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateContest creates a contest with its problem set resolved
// against the catalog. The creator is enrolled automatically.
func (s *ContestService) CreateContest(ctx context.Context, userID uuid.UUID, req *domain.CreateContestRequest) (*domain.Contest, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.CreateContest")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Int("problem.count", len(req.ProblemSlugs)),
	)

	if !req.EndTime.After(req.StartTime) {
		return nil, domain.ErrInvalidTimeWindow
	}

	scoring := domain.DefaultScoringConfig()
	if req.Scoring != nil {
		scoring = *req.Scoring
	}

	problems := make([]domain.ContestProblem, 0, len(req.ProblemSlugs))
	seen := make(map[string]bool, len(req.ProblemSlugs))
	for _, slug := range req.ProblemSlugs {
		if seen[slug] {
			continue
		}
		seen[slug] = true

		title := slug
		difficulty := domain.DifficultyMedium
		if resolved, err := s.catalog.Resolve(ctx, slug); err == nil {
			title = resolved.Title
			difficulty = resolved.Difficulty
		} else {
			s.logger.Warn("Problem unresolved at contest creation, defaulting to Medium",
				zap.String("slug", slug),
				zap.Error(err),
			)
		}
		problems = append(problems, domain.ContestProblem{
			Position:   len(problems) + 1,
			Slug:       slug,
			Title:      title,
			Difficulty: difficulty,
			Points:     scoring.PointsFor(difficulty),
		})
	}
	if len(problems) == 0 {
		return nil, domain.ErrBadRequest
	}

	contest := &domain.Contest{
		Code:      s.generateCode(),
		Title:     req.Title,
		CreatedBy: userID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Scoring:   scoring,
		Problems:  problems,
	}

	if err := s.contestRepo.Create(contest); err != nil {
		return nil, err
	}

	if _, err := s.Join(ctx, contest, userID); err != nil && err != domain.ErrAlreadyEnrolled {
		s.logger.Error("Failed to enroll creator", zap.Error(err))
	}

	s.logger.Info("Contest created",
		zap.String("contest_id", contest.ID.String()),
		zap.String("code", contest.Code),
		zap.Int("problem_count", len(problems)),
	)

	return contest, nil
}

// GetContestByRef resolves a contest by surrogate ID or share code
func (s *ContestService) GetContestByRef(ctx context.Context, ref string) (*domain.Contest, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.GetContestByRef")
	defer span.End()

	span.SetAttributes(attribute.String("contest.ref", ref))
	return s.contestRepo.FindByRef(ref)
}

// GetUserContests returns contests the user created or joined
func (s *ContestService) GetUserContests(ctx context.Context, userID uuid.UUID) ([]domain.Contest, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.GetUserContests")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))
	return s.contestRepo.FindByUserID(userID)
}

// Join enrolls a user: one participation with a PENDING progress row
// per contest problem. Enrollment closes once the contest finalizes.
func (s *ContestService) Join(ctx context.Context, contest *domain.Contest, userID uuid.UUID) (*domain.Participation, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.Join")
	defer span.End()

	span.SetAttributes(
		attribute.String("contest.id", contest.ID.String()),
		attribute.String("user.id", userID.String()),
	)

	if contest.Finalized {
		return nil, domain.ErrContestFinalized
	}

	if existing, err := s.participationRepo.FindByContestAndUser(contest.ID, userID); err == nil && existing != nil {
		return nil, domain.ErrAlreadyEnrolled
	}

	progress := make([]domain.ProblemProgress, len(contest.Problems))
	for i, p := range contest.Problems {
		progress[i] = domain.ProblemProgress{
			Slug:   p.Slug,
			Status: domain.ProgressPending,
		}
	}

	participation := &domain.Participation{
		ContestID: contest.ID,
		UserID:    userID,
		Progress:  progress,
	}
	if err := s.participationRepo.Create(participation); err != nil {
		return nil, err
	}

	s.logger.Info("User joined contest",
		zap.String("contest_id", contest.ID.String()),
		zap.String("user_id", userID.String()),
	)

	return participation, nil
}

// Finalize explicitly locks a contest. Creator-only, and only once the
// contest has ended; a live contest cannot be cut short this way.
func (s *ContestService) Finalize(ctx context.Context, contest *domain.Contest, userID uuid.UUID, now time.Time) error {
	ctx, span := s.tracer.Start(ctx, "ContestService.Finalize")
	defer span.End()

	span.SetAttributes(attribute.String("contest.id", contest.ID.String()))

	if contest.CreatedBy != userID {
		return domain.ErrNotContestCreator
	}
	if contest.Finalized {
		return domain.ErrContestFinalized
	}
	if phase := contest.Phase(now); phase == domain.PhaseUpcoming || phase == domain.PhaseLive {
		return domain.ErrContestRunning
	}

	if err := s.contestRepo.Finalize(contest.ID); err != nil {
		return err
	}
	contest.Finalized = true

	s.logger.Info("Contest finalized by creator",
		zap.String("contest_id", contest.ID.String()),
	)
	return nil
}

// Leaderboard returns the ranked board for a contest. Rows follow the
// stored ranks; total_time is display-only and derived here.
func (s *ContestService) Leaderboard(ctx context.Context, contest *domain.Contest) ([]domain.LeaderboardEntry, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.Leaderboard")
	defer span.End()

	span.SetAttributes(attribute.String("contest.id", contest.ID.String()))

	participations, err := s.participationRepo.FindByContestID(contest.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(participations))
	for i := range participations {
		p := &participations[i]

		rank := 0
		if p.Rank != nil {
			rank = *p.Rank
		}

		var totalTime int64
		if last := p.LastSolvedAt(); last != nil {
			totalTime = int64(last.Sub(contest.StartTime).Seconds()) + int64(p.TotalPenalty)*60
		}

		entries = append(entries, domain.LeaderboardEntry{
			Rank:             rank,
			Username:         p.User.Username,
			LeetCodeUsername: p.User.LeetCodeUsername,
			Score:            p.Score,
			TotalPenalty:     p.TotalPenalty,
			TotalTimeSeconds: totalTime,
			SolvedCount:      p.SolvedCount(),
			AttemptCount:     p.AttemptCount(),
			Progress:         p.ToResponse().Progress,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		// Unranked (never synced) rows sink to the bottom.
		ri, rj := entries[i].Rank, entries[j].Rank
		if ri == 0 {
			return false
		}
		if rj == 0 {
			return true
		}
		return ri < rj
	})

	return entries, nil
}

// generateCode returns a fresh share code
func (s *ContestService) generateCode() string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	code := make([]byte, codeLength)
	for i := range code {
		code[i] = codeAlphabet[s.rng.Intn(len(codeAlphabet))]
	}
	return string(code)
}
