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
	"github.com/leetclash/backend/internal/infrastructure"
	"github.com/leetclash/backend/internal/leetcode"
)

// SyncConfig holds the pacing and cooldown settings of the sync engine
type SyncConfig struct {
	UserCooldown      time.Duration // min gap between syncs of one participation
	BulkCooldown      time.Duration // min gap between bulk syncs of one contest
	GraceBulkCooldown time.Duration // bulk cooldown during the grace window
	FeedLimit         int           // recent-submission feed size per fetch
	PacingMin         time.Duration // min delay between participants in a batch
	PacingMax         time.Duration // max delay between participants in a batch
}

// DefaultSyncConfig returns the standard sync settings
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		UserCooldown:      30 * time.Second,
		BulkCooldown:      10 * time.Minute,
		GraceBulkCooldown: 2 * time.Minute,
		FeedLimit:         20,
		PacingMin:         2 * time.Second,
		PacingMax:         3 * time.Second,
	}
}

// SyncResult is the outcome of a single-participant sync
type SyncResult struct {
	Participation *domain.Participation
	Changed       bool
}

// BulkSyncResult is the outcome of a contest-wide sync
type BulkSyncResult struct {
	Synced            int  `json:"synced"`
	Errors            int  `json:"errors"`
	TotalParticipants int  `json:"total_participants"`
	InGrace           bool `json:"in_grace"`
	Finalized         bool `json:"finalized"`
}

// SyncService reconciles the judge's submission feed into contest
// score state: the sync engine, and the bulk orchestrator that runs it
// across a contest's participants.
type SyncService struct {
	contestRepo       domain.ContestRepository
	participationRepo domain.ParticipationRepository
	judge             *leetcode.Client
	ranking           *RankingService
	cfg               SyncConfig
	metrics           *infrastructure.TelemetryMetrics
	tracer            trace.Tracer
	logger            *zap.Logger
	now               func() time.Time
	rng               *rand.Rand
	rngMu             sync.Mutex // Protects rng for concurrent access
	sleep             func(time.Duration)
}

// NewSyncService creates a new sync service
func NewSyncService(
	contestRepo domain.ContestRepository,
	participationRepo domain.ParticipationRepository,
	judge *leetcode.Client,
	ranking *RankingService,
	cfg SyncConfig,
	metrics *infrastructure.TelemetryMetrics,
	tracer trace.Tracer,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		contestRepo:       contestRepo,
		participationRepo: participationRepo,
		judge:             judge,
		ranking:           ranking,
		cfg:               cfg,
		metrics:           metrics,
		tracer:            tracer,
		logger:            logger,
		now:               time.Now,
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:             time.Sleep,
	}
}

// SyncParticipant syncs one user's contest progress against their
// recent judge submissions.
func (s *SyncService) SyncParticipant(ctx context.Context, contest *domain.Contest, userID uuid.UUID) (*SyncResult, error) {
	ctx, span := s.tracer.Start(ctx, "SyncService.SyncParticipant")
	defer span.End()

	span.SetAttributes(
		attribute.String("contest.id", contest.ID.String()),
		attribute.String("user.id", userID.String()),
	)

	now := s.now()

	// Phase gates come before anything touches the upstream.
	switch contest.Phase(now) {
	case domain.PhaseFinalized:
		return nil, domain.ErrContestFinalized
	case domain.PhaseUpcoming:
		return nil, domain.ErrContestNotStarted
	case domain.PhaseEnded:
		return nil, domain.ErrContestEnded
	}

	participation, err := s.participationRepo.FindByContestAndUser(contest.ID, userID)
	if err != nil {
		return nil, err
	}

	if participation.LastSync != nil {
		if elapsed := now.Sub(*participation.LastSync); elapsed < s.cfg.UserCooldown {
			return nil, &domain.CooldownError{RetryAfter: s.cfg.UserCooldown - elapsed}
		}
	}

	if !participation.User.HasLinkedAccount() {
		return nil, domain.ErrNoLinkedAccount
	}

	feed, err := s.judge.FetchRecentSubmissions(ctx, participation.User.LeetCodeUsername, s.cfg.FeedLimit)
	if err != nil {
		return nil, err
	}

	scoreBefore := participation.Score
	solvedBefore := participation.SolvedCount()
	changed := applyFeed(participation, contest, feed)
	scoreChanged := participation.Score != scoreBefore
	s.recordSync(ctx, participation.SolvedCount()-solvedBefore, false)

	// last_sync moves on every successful pass, changed or not; it is
	// what the 30s cooldown is measured from.
	participation.LastSync = &now
	if err := s.participationRepo.Save(participation); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Bool("sync.changed", changed))
	s.logger.Info("Participant synced",
		zap.String("contest_id", contest.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int("feed_size", len(feed)),
		zap.Bool("changed", changed),
	)

	if scoreChanged {
		if err := s.ranking.RecomputeRanks(ctx, contest.ID); err != nil {
			s.logger.Error("Rank recompute failed after sync",
				zap.String("contest_id", contest.ID.String()),
				zap.Error(err),
			)
		}
	}

	return &SyncResult{Participation: participation, Changed: changed}, nil
}

// SyncAll runs the sync engine across every participant of a contest.
// Per-participant failures are isolated and counted; they never abort
// the batch.
func (s *SyncService) SyncAll(ctx context.Context, contest *domain.Contest) (*BulkSyncResult, error) {
	ctx, span := s.tracer.Start(ctx, "SyncService.SyncAll")
	defer span.End()

	span.SetAttributes(attribute.String("contest.id", contest.ID.String()))

	now := s.now()

	if contest.Finalized {
		return nil, domain.ErrContestFinalized
	}
	if contest.Phase(now) == domain.PhaseUpcoming {
		return nil, domain.ErrContestNotStarted
	}

	// Past the grace window the contest locks instead of syncing. The
	// collapse is lazy: no timer, just this check on each attempt.
	if contest.PastGrace(now) {
		if err := s.contestRepo.Finalize(contest.ID); err != nil {
			return nil, err
		}
		contest.Finalized = true
		s.logger.Info("Contest auto-finalized past grace window",
			zap.String("contest_id", contest.ID.String()),
		)
		return nil, domain.ErrContestFinalized
	}

	inGrace := contest.Phase(now) == domain.PhaseGrace
	cooldown := s.cfg.BulkCooldown
	if inGrace {
		cooldown = s.cfg.GraceBulkCooldown
	}

	// The cooldown check and the last_bulk_sync stamp are one
	// conditional write, so two concurrent sync-alls cannot both pass.
	remaining, err := s.contestRepo.ClaimBulkSync(contest.ID, now, cooldown)
	if err != nil {
		return nil, err
	}
	if remaining > 0 {
		return nil, &domain.CooldownError{RetryAfter: remaining}
	}

	participations, err := s.participationRepo.FindByContestID(contest.ID)
	if err != nil {
		return nil, err
	}

	result := &BulkSyncResult{
		TotalParticipants: len(participations),
		InGrace:           inGrace,
	}

	fetched := 0
	for i := range participations {
		p := &participations[i]
		if !p.User.HasLinkedAccount() {
			continue
		}

		// Pace fetches after the first so one batch does not trip the
		// upstream per-account rate limit.
		if fetched > 0 {
			s.sleep(s.pacingDelay())
		}
		fetched++

		if err := s.syncOne(ctx, contest, p); err != nil {
			result.Errors++
			s.logger.Error("Participant sync failed in batch",
				zap.String("contest_id", contest.ID.String()),
				zap.String("user_id", p.UserID.String()),
				zap.String("leetcode_username", p.User.LeetCodeUsername),
				zap.Error(err),
			)
			continue
		}
		result.Synced++
	}

	if err := s.contestRepo.TouchBulkSync(contest.ID, s.now()); err != nil {
		s.logger.Error("Failed to stamp bulk sync time",
			zap.String("contest_id", contest.ID.String()),
			zap.Error(err),
		)
	}

	// Recompute unconditionally; it is idempotent and covers both
	// changed and unchanged participants.
	if err := s.ranking.RecomputeRanks(ctx, contest.ID); err != nil {
		s.logger.Error("Rank recompute failed after bulk sync",
			zap.String("contest_id", contest.ID.String()),
			zap.Error(err),
		)
	}

	span.SetAttributes(
		attribute.Int("sync.synced", result.Synced),
		attribute.Int("sync.errors", result.Errors),
	)
	s.logger.Info("Bulk sync completed",
		zap.String("contest_id", contest.ID.String()),
		zap.Int("synced", result.Synced),
		zap.Int("errors", result.Errors),
		zap.Int("total", result.TotalParticipants),
		zap.Bool("grace", inGrace),
	)

	return result, nil
}

// syncOne fetches and applies one participant's feed within a batch
func (s *SyncService) syncOne(ctx context.Context, contest *domain.Contest, p *domain.Participation) error {
	feed, err := s.judge.FetchRecentSubmissions(ctx, p.User.LeetCodeUsername, s.cfg.FeedLimit)
	if err != nil {
		s.recordSync(ctx, 0, true)
		return err
	}
	solvedBefore := p.SolvedCount()
	applyFeed(p, contest, feed)
	s.recordSync(ctx, p.SolvedCount()-solvedBefore, false)
	now := s.now()
	p.LastSync = &now
	return s.participationRepo.Save(p)
}

// recordSync emits sync telemetry when a meter is wired in. Constructed
// without metrics (tests) this is a no-op.
func (s *SyncService) recordSync(ctx context.Context, accepted int, failed bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.SyncRuns.Add(ctx, 1)
	if failed {
		s.metrics.SyncErrors.Add(ctx, 1)
	}
	if accepted > 0 {
		s.metrics.ProblemsAccepted.Add(ctx, int64(accepted))
	}
}

func (s *SyncService) pacingDelay() time.Duration {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	spread := s.cfg.PacingMax - s.cfg.PacingMin
	if spread <= 0 {
		return s.cfg.PacingMin
	}
	return s.cfg.PacingMin + time.Duration(s.rng.Int63n(int64(spread)))
}

// applyFeed runs the sync engine over one participation: for each
// contest problem not already accepted, it derives status, fail count,
// and penalty from the in-window submissions and folds accepted
// problems into the aggregates exactly once. Returns whether anything
// changed.
func applyFeed(p *domain.Participation, contest *domain.Contest, feed []leetcode.Submission) bool {
	changed := false
	for i := range p.Progress {
		progress := &p.Progress[i]

		// ACCEPTED is terminal. Never re-evaluated, so repeated syncs
		// cannot double-score or rewrite solve history.
		if progress.Status == domain.ProgressAccepted {
			continue
		}

		problem := contest.ProblemBySlug(progress.Slug)
		if problem == nil {
			continue
		}

		outcome, ok := evaluateProblem(progress.Slug, contest, feed)
		if !ok {
			continue
		}

		if outcome.accepted {
			progress.Status = domain.ProgressAccepted
			solvedAt := outcome.solvedAt
			progress.SolvedAt = &solvedAt
			progress.FailCount = outcome.failCount
			progress.Penalty = outcome.failCount * contest.Scoring.PenaltyPerFail
			p.Score += problem.Points
			p.TotalPenalty += progress.Penalty
			changed = true
			continue
		}

		if outcome.failCount != progress.FailCount || progress.Status != domain.ProgressFail {
			progress.FailCount = outcome.failCount
			progress.Status = domain.ProgressFail
			changed = true
		}
	}
	return changed
}

// problemOutcome is the derived result of scanning one problem's
// in-window submissions
type problemOutcome struct {
	accepted  bool
	solvedAt  time.Time
	failCount int
}

// evaluateProblem filters the feed to one problem inside the contest
// window, recovers submission order by timestamp, and counts failed
// attempts up to the first accept. ok is false when no in-window
// submissions matched at all.
func evaluateProblem(slug string, contest *domain.Contest, feed []leetcode.Submission) (problemOutcome, bool) {
	var matched []leetcode.Submission
	for _, sub := range feed {
		if sub.TitleSlug != slug {
			continue
		}
		// Submissions outside [start, end] are invisible to scoring:
		// no credit for practice solves before or after the contest.
		if !contest.InWindow(sub.Timestamp) {
			continue
		}
		matched = append(matched, sub)
	}
	if len(matched) == 0 {
		return problemOutcome{}, false
	}

	// The upstream feed order is not trusted; sort oldest-first to
	// recover true submission order.
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})

	outcome := problemOutcome{}
	for _, sub := range matched {
		if sub.Accepted() {
			outcome.accepted = true
			outcome.solvedAt = sub.Timestamp
			break
		}
		outcome.failCount++
	}
	return outcome, true
}
