package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/leetclash/backend/internal/domain"
	"github.com/leetclash/backend/internal/leetcode"
)

var contestStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// In-memory repository fakes. They mirror the conditional-write
// semantics of the real postgres repositories closely enough for the
// service layer to behave identically.

type memContestRepo struct {
	mu       sync.Mutex
	contests map[uuid.UUID]*domain.Contest
}

func newMemContestRepo() *memContestRepo {
	return &memContestRepo{contests: make(map[uuid.UUID]*domain.Contest)}
}

func (r *memContestRepo) Create(c *domain.Contest) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	for i := range c.Problems {
		c.Problems[i].ContestID = c.ID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contests[c.ID] = c
	return nil
}

func (r *memContestRepo) FindByID(id uuid.UUID) (*domain.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contests[id]
	if !ok {
		return nil, domain.ErrContestNotFound
	}
	return c, nil
}

func (r *memContestRepo) FindByRef(ref string) (*domain.Contest, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return r.FindByID(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contests {
		if c.Code == ref {
			return c, nil
		}
	}
	return nil, domain.ErrContestNotFound
}

func (r *memContestRepo) FindByUserID(userID uuid.UUID) ([]domain.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Contest
	for _, c := range r.contests {
		if c.CreatedBy == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memContestRepo) ClaimBulkSync(id uuid.UUID, now time.Time, minGap time.Duration) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contests[id]
	if !ok {
		return 0, domain.ErrContestNotFound
	}
	if c.Finalized {
		return 0, domain.ErrContestFinalized
	}
	if c.LastBulkSync != nil {
		if next := c.LastBulkSync.Add(minGap); now.Before(next) {
			return next.Sub(now), nil
		}
	}
	t := now
	c.LastBulkSync = &t
	return 0, nil
}

func (r *memContestRepo) TouchBulkSync(id uuid.UUID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contests[id]
	if !ok {
		return domain.ErrContestNotFound
	}
	t := now
	c.LastBulkSync = &t
	return nil
}

func (r *memContestRepo) Finalize(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contests[id]
	if !ok {
		return domain.ErrContestNotFound
	}
	c.Finalized = true
	return nil
}

type memParticipationRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*domain.Participation
	saves     int
	lastRanks map[uuid.UUID]int
	rankCalls int
}

func newMemParticipationRepo() *memParticipationRepo {
	return &memParticipationRepo{rows: make(map[uuid.UUID]*domain.Participation)}
}

func (r *memParticipationRepo) Create(p *domain.Participation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.ContestID == p.ContestID && existing.UserID == p.UserID {
			return domain.ErrAlreadyEnrolled
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	for i := range p.Progress {
		if p.Progress[i].ID == uuid.Nil {
			p.Progress[i].ID = uuid.New()
		}
		p.Progress[i].ParticipationID = p.ID
	}
	r.rows[p.ID] = p
	return nil
}

func (r *memParticipationRepo) FindByContestAndUser(contestID, userID uuid.UUID) (*domain.Participation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if p.ContestID == contestID && p.UserID == userID {
			return p, nil
		}
	}
	return nil, domain.ErrNotEnrolled
}

func (r *memParticipationRepo) FindByContestID(contestID uuid.UUID) ([]domain.Participation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Participation
	for _, p := range r.rows {
		if p.ContestID == contestID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memParticipationRepo) Save(p *domain.Participation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *p
	r.rows[p.ID] = &stored
	r.saves++
	return nil
}

func (r *memParticipationRepo) UpdateRanks(ranks map[uuid.UUID]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rankCalls++
	r.lastRanks = ranks
	for id, rank := range ranks {
		if p, ok := r.rows[id]; ok {
			v := rank
			p.Rank = &v
		}
	}
	return nil
}

// feedServer is an httptest GraphQL stub serving per-username
// recent-submission feeds in the upstream wire format.

type feedEntry struct {
	Slug      string
	Status    string
	Timestamp string
}

type feedServer struct {
	mu    sync.Mutex
	feeds map[string][]feedEntry
	calls int
}

func (f *feedServer) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	username, _ := req.Variables["username"].(string)

	f.mu.Lock()
	feed, ok := f.feeds[username]
	f.mu.Unlock()
	if !ok {
		fmt.Fprintf(w, `{"errors":[{"message":"That user does not exist."}]}`)
		return
	}

	var b strings.Builder
	b.WriteString(`{"data":{"recentSubmissionList":[`)
	for i, e := range feed {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"titleSlug":%q,"statusDisplay":%q,"timestamp":%q}`, e.Slug, e.Status, e.Timestamp)
	}
	b.WriteString(`]}}`)
	fmt.Fprint(w, b.String())
}

func newTestJudge(t *testing.T, srv *httptest.Server) *leetcode.Client {
	t.Helper()
	return leetcode.NewClient(leetcode.Config{
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
		Retry:   leetcode.RetryConfig{MaxAttempts: 2, BaseBackoff: time.Millisecond},
	}, zap.NewNop())
}

func ts(offset time.Duration) string {
	return fmt.Sprintf("%d", contestStart.Add(offset).Unix())
}

func testContest() *domain.Contest {
	return &domain.Contest{
		ID:        uuid.New(),
		Code:      "ABC234",
		Title:     "Friday Night Clash",
		StartTime: contestStart,
		EndTime:   contestStart.Add(2 * time.Hour),
		Scoring:   domain.DefaultScoringConfig(),
		Problems: []domain.ContestProblem{
			{Position: 1, Slug: "two-sum", Title: "Two Sum", Difficulty: domain.DifficultyEasy, Points: 3},
			{Position: 2, Slug: "lru-cache", Title: "LRU Cache", Difficulty: domain.DifficultyMedium, Points: 4},
			{Position: 3, Slug: "word-ladder", Title: "Word Ladder", Difficulty: domain.DifficultyHard, Points: 6},
		},
	}
}

func pendingParticipation(contest *domain.Contest, username string) *domain.Participation {
	progress := make([]domain.ProblemProgress, len(contest.Problems))
	for i, p := range contest.Problems {
		progress[i] = domain.ProblemProgress{ID: uuid.New(), Slug: p.Slug, Status: domain.ProgressPending}
	}
	return &domain.Participation{
		ID:        uuid.New(),
		ContestID: contest.ID,
		UserID:    uuid.New(),
		User:      domain.User{Username: username, LeetCodeUsername: username},
		Progress:  progress,
	}
}

type syncFixture struct {
	contests       *memContestRepo
	participations *memParticipationRepo
	feeds          *feedServer
	svc            *SyncService
}

func newSyncFixture(t *testing.T, now time.Time) *syncFixture {
	t.Helper()
	feeds := &feedServer{feeds: make(map[string][]feedEntry)}
	srv := httptest.NewServer(http.HandlerFunc(feeds.handler))
	t.Cleanup(srv.Close)

	contests := newMemContestRepo()
	participations := newMemParticipationRepo()
	tracer := otel.Tracer("test")
	logger := zap.NewNop()
	ranking := NewRankingService(participations, tracer, logger)

	cfg := SyncConfig{
		UserCooldown:      30 * time.Second,
		BulkCooldown:      10 * time.Minute,
		GraceBulkCooldown: 2 * time.Minute,
		FeedLimit:         20,
	}
	svc := NewSyncService(contests, participations, newTestJudge(t, srv), ranking, cfg, nil, tracer, logger)
	svc.now = func() time.Time { return now }
	svc.sleep = func(time.Duration) {}

	return &syncFixture{contests: contests, participations: participations, feeds: feeds, svc: svc}
}

func submission(slug, status string, offset time.Duration) leetcode.Submission {
	return leetcode.Submission{TitleSlug: slug, Status: status, Timestamp: contestStart.Add(offset)}
}

func TestApplyFeedScoresFirstAccept(t *testing.T) {
	contest := testContest()
	p := pendingParticipation(contest, "alice")

	feed := []leetcode.Submission{
		submission("two-sum", "Wrong Answer", 10*time.Minute),
		submission("two-sum", "Time Limit Exceeded", 20*time.Minute),
		submission("two-sum", leetcode.VerdictAccepted, 30*time.Minute),
		submission("two-sum", leetcode.VerdictAccepted, 40*time.Minute),
	}

	if changed := applyFeed(p, contest, feed); !changed {
		t.Fatal("expected a change")
	}

	progress := p.ProgressBySlug("two-sum")
	if progress.Status != domain.ProgressAccepted {
		t.Errorf("status = %s, want ACCEPTED", progress.Status)
	}
	if progress.FailCount != 2 {
		t.Errorf("fail count = %d, want 2", progress.FailCount)
	}
	if progress.Penalty != 10 {
		t.Errorf("penalty = %d, want 10", progress.Penalty)
	}
	if want := contestStart.Add(30 * time.Minute); progress.SolvedAt == nil || !progress.SolvedAt.Equal(want) {
		t.Errorf("solved at = %v, want %v", progress.SolvedAt, want)
	}
	if p.Score != 3 {
		t.Errorf("score = %d, want 3", p.Score)
	}
	if p.TotalPenalty != 10 {
		t.Errorf("total penalty = %d, want 10", p.TotalPenalty)
	}
}

func TestApplyFeedFailsAfterAcceptDoNotCount(t *testing.T) {
	contest := testContest()
	p := pendingParticipation(contest, "alice")

	feed := []leetcode.Submission{
		submission("two-sum", leetcode.VerdictAccepted, 15*time.Minute),
		submission("two-sum", "Wrong Answer", 25*time.Minute),
		submission("two-sum", "Runtime Error", 35*time.Minute),
	}
	applyFeed(p, contest, feed)

	progress := p.ProgressBySlug("two-sum")
	if progress.FailCount != 0 {
		t.Errorf("fail count = %d, want 0", progress.FailCount)
	}
	if p.TotalPenalty != 0 {
		t.Errorf("total penalty = %d, want 0", p.TotalPenalty)
	}
	if p.Score != 3 {
		t.Errorf("score = %d, want 3", p.Score)
	}
}

func TestApplyFeedUnsortedFeedOrder(t *testing.T) {
	contest := testContest()
	p := pendingParticipation(contest, "alice")

	// Upstream sends most-recent-first; order must not matter.
	feed := []leetcode.Submission{
		submission("two-sum", leetcode.VerdictAccepted, 30*time.Minute),
		submission("two-sum", "Wrong Answer", 20*time.Minute),
		submission("two-sum", "Wrong Answer", 10*time.Minute),
	}
	applyFeed(p, contest, feed)

	progress := p.ProgressBySlug("two-sum")
	if progress.FailCount != 2 {
		t.Errorf("fail count = %d, want 2", progress.FailCount)
	}
	if progress.Penalty != 10 {
		t.Errorf("penalty = %d, want 10", progress.Penalty)
	}
}

func TestApplyFeedWindowIsInclusive(t *testing.T) {
	contest := testContest()

	cases := []struct {
		name   string
		offset time.Duration
		want   domain.ProgressStatus
	}{
		{"before start", -time.Second, domain.ProgressPending},
		{"exactly at start", 0, domain.ProgressAccepted},
		{"exactly at end", 2 * time.Hour, domain.ProgressAccepted},
		{"after end", 2*time.Hour + time.Second, domain.ProgressPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := pendingParticipation(contest, "alice")
			feed := []leetcode.Submission{submission("two-sum", leetcode.VerdictAccepted, tc.offset)}
			applyFeed(p, contest, feed)
			if got := p.ProgressBySlug("two-sum").Status; got != tc.want {
				t.Errorf("status = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestApplyFeedAcceptedIsTerminal(t *testing.T) {
	contest := testContest()
	p := pendingParticipation(contest, "alice")

	first := []leetcode.Submission{submission("two-sum", leetcode.VerdictAccepted, 30*time.Minute)}
	applyFeed(p, contest, first)
	if p.Score != 3 {
		t.Fatalf("score = %d, want 3", p.Score)
	}

	// A later feed with extra fails before the accept must not rewrite
	// the solve or double-score.
	second := []leetcode.Submission{
		submission("two-sum", "Wrong Answer", 5*time.Minute),
		submission("two-sum", leetcode.VerdictAccepted, 30*time.Minute),
	}
	if changed := applyFeed(p, contest, second); changed {
		t.Error("expected no change on an already accepted problem")
	}
	progress := p.ProgressBySlug("two-sum")
	if p.Score != 3 || progress.FailCount != 0 || p.TotalPenalty != 0 {
		t.Errorf("solve rewritten: score=%d failCount=%d penalty=%d", p.Score, progress.FailCount, p.TotalPenalty)
	}
}

func TestApplyFeedIsIdempotent(t *testing.T) {
	contest := testContest()
	p := pendingParticipation(contest, "alice")

	feed := []leetcode.Submission{
		submission("two-sum", "Wrong Answer", 10*time.Minute),
		submission("two-sum", leetcode.VerdictAccepted, 30*time.Minute),
		submission("lru-cache", "Wrong Answer", 40*time.Minute),
	}
	applyFeed(p, contest, feed)
	score, penalty := p.Score, p.TotalPenalty

	if changed := applyFeed(p, contest, feed); changed {
		t.Error("second pass over the same feed reported a change")
	}
	if p.Score != score || p.TotalPenalty != penalty {
		t.Errorf("aggregates moved: score %d->%d penalty %d->%d", score, p.Score, penalty, p.TotalPenalty)
	}
}

func TestApplyFeedFailsOnlyNoPenaltyYet(t *testing.T) {
	contest := testContest()
	p := pendingParticipation(contest, "alice")

	feed := []leetcode.Submission{
		submission("lru-cache", "Wrong Answer", 10*time.Minute),
		submission("lru-cache", "Wrong Answer", 20*time.Minute),
	}
	if changed := applyFeed(p, contest, feed); !changed {
		t.Fatal("expected a change")
	}

	progress := p.ProgressBySlug("lru-cache")
	if progress.Status != domain.ProgressFail {
		t.Errorf("status = %s, want FAIL", progress.Status)
	}
	if progress.FailCount != 2 {
		t.Errorf("fail count = %d, want 2", progress.FailCount)
	}
	// Penalty only materializes on accept.
	if progress.Penalty != 0 || p.TotalPenalty != 0 || p.Score != 0 {
		t.Errorf("premature scoring: penalty=%d total=%d score=%d", progress.Penalty, p.TotalPenalty, p.Score)
	}
}

func TestApplyFeedIgnoresUntrackedSlugs(t *testing.T) {
	contest := testContest()
	p := pendingParticipation(contest, "alice")

	feed := []leetcode.Submission{
		submission("median-of-two-sorted-arrays", leetcode.VerdictAccepted, 30*time.Minute),
	}
	if changed := applyFeed(p, contest, feed); changed {
		t.Error("submission for a problem outside the contest changed state")
	}
	if p.Score != 0 {
		t.Errorf("score = %d, want 0", p.Score)
	}
}

func TestApplyFeedMultipleProblems(t *testing.T) {
	contest := testContest()
	p := pendingParticipation(contest, "alice")

	feed := []leetcode.Submission{
		submission("two-sum", leetcode.VerdictAccepted, 10*time.Minute),
		submission("lru-cache", "Wrong Answer", 20*time.Minute),
		submission("word-ladder", "Wrong Answer", 30*time.Minute),
		submission("word-ladder", leetcode.VerdictAccepted, 50*time.Minute),
	}
	applyFeed(p, contest, feed)

	if p.Score != 9 {
		t.Errorf("score = %d, want 9 (easy 3 + hard 6)", p.Score)
	}
	if p.TotalPenalty != 5 {
		t.Errorf("total penalty = %d, want 5", p.TotalPenalty)
	}
	if got := p.SolvedCount(); got != 2 {
		t.Errorf("solved count = %d, want 2", got)
	}
	if got := p.ProgressBySlug("lru-cache").Status; got != domain.ProgressFail {
		t.Errorf("lru-cache status = %s, want FAIL", got)
	}
}

func TestEvaluateProblemNoMatches(t *testing.T) {
	contest := testContest()
	feed := []leetcode.Submission{
		submission("lru-cache", leetcode.VerdictAccepted, 10*time.Minute),
	}
	if _, ok := evaluateProblem("two-sum", contest, feed); ok {
		t.Error("expected no outcome for a slug absent from the feed")
	}
}

func TestSyncParticipantAppliesFeed(t *testing.T) {
	now := contestStart.Add(45 * time.Minute)
	f := newSyncFixture(t, now)

	contest := testContest()
	f.contests.Create(contest)
	p := pendingParticipation(contest, "alice")
	f.participations.rows[p.ID] = p

	f.feeds.feeds["alice"] = []feedEntry{
		{"two-sum", "Wrong Answer", ts(10 * time.Minute)},
		{"two-sum", "Accepted", ts(30 * time.Minute)},
	}

	result, err := f.svc.SyncParticipant(context.Background(), contest, p.UserID)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if !result.Changed {
		t.Error("expected changed result")
	}
	if result.Participation.Score != 3 {
		t.Errorf("score = %d, want 3", result.Participation.Score)
	}
	if result.Participation.TotalPenalty != 5 {
		t.Errorf("total penalty = %d, want 5", result.Participation.TotalPenalty)
	}
	if result.Participation.LastSync == nil || !result.Participation.LastSync.Equal(now) {
		t.Errorf("last sync = %v, want %v", result.Participation.LastSync, now)
	}

	saved, err := f.participations.FindByContestAndUser(contest.ID, p.UserID)
	if err != nil {
		t.Fatalf("saved participation missing: %v", err)
	}
	if saved.Rank == nil || *saved.Rank != 1 {
		t.Errorf("rank = %v, want 1", saved.Rank)
	}
}

func TestSyncParticipantCooldown(t *testing.T) {
	now := contestStart.Add(45 * time.Minute)
	f := newSyncFixture(t, now)

	contest := testContest()
	f.contests.Create(contest)
	p := pendingParticipation(contest, "alice")
	last := now.Add(-10 * time.Second)
	p.LastSync = &last
	f.participations.rows[p.ID] = p

	_, err := f.svc.SyncParticipant(context.Background(), contest, p.UserID)
	ce, ok := domain.AsCooldown(err)
	if !ok {
		t.Fatalf("expected cooldown error, got %v", err)
	}
	if ce.RetryAfter != 20*time.Second {
		t.Errorf("retry after = %v, want 20s", ce.RetryAfter)
	}
	if ce.RetryAfterSeconds() != 20 {
		t.Errorf("retry after seconds = %d, want 20", ce.RetryAfterSeconds())
	}
	if f.feeds.calls != 0 {
		t.Errorf("judge was called %d times during cooldown", f.feeds.calls)
	}
}

func TestSyncParticipantPhaseGates(t *testing.T) {
	cases := []struct {
		name      string
		now       time.Time
		finalized bool
		wantErr   error
	}{
		{"upcoming", contestStart.Add(-time.Minute), false, domain.ErrContestNotStarted},
		{"past grace", contestStart.Add(2*time.Hour + domain.GracePeriod + time.Minute), false, domain.ErrContestEnded},
		{"finalized", contestStart.Add(30 * time.Minute), true, domain.ErrContestFinalized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newSyncFixture(t, tc.now)
			contest := testContest()
			contest.Finalized = tc.finalized
			f.contests.Create(contest)
			p := pendingParticipation(contest, "alice")
			f.participations.rows[p.ID] = p

			_, err := f.svc.SyncParticipant(context.Background(), contest, p.UserID)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestSyncParticipantAllowedInGrace(t *testing.T) {
	now := contestStart.Add(2*time.Hour + 30*time.Minute)
	f := newSyncFixture(t, now)

	contest := testContest()
	f.contests.Create(contest)
	p := pendingParticipation(contest, "alice")
	f.participations.rows[p.ID] = p
	f.feeds.feeds["alice"] = []feedEntry{
		{"two-sum", "Accepted", ts(90 * time.Minute)},
	}

	result, err := f.svc.SyncParticipant(context.Background(), contest, p.UserID)
	if err != nil {
		t.Fatalf("sync in grace window failed: %v", err)
	}
	if result.Participation.Score != 3 {
		t.Errorf("score = %d, want 3", result.Participation.Score)
	}
}

func TestSyncParticipantRequiresLinkedAccount(t *testing.T) {
	now := contestStart.Add(45 * time.Minute)
	f := newSyncFixture(t, now)

	contest := testContest()
	f.contests.Create(contest)
	p := pendingParticipation(contest, "alice")
	p.User.LeetCodeUsername = ""
	f.participations.rows[p.ID] = p

	_, err := f.svc.SyncParticipant(context.Background(), contest, p.UserID)
	if !errors.Is(err, domain.ErrNoLinkedAccount) {
		t.Errorf("err = %v, want ErrNoLinkedAccount", err)
	}
}

func TestSyncParticipantNotEnrolled(t *testing.T) {
	now := contestStart.Add(45 * time.Minute)
	f := newSyncFixture(t, now)

	contest := testContest()
	f.contests.Create(contest)

	_, err := f.svc.SyncParticipant(context.Background(), contest, uuid.New())
	if !errors.Is(err, domain.ErrNotEnrolled) {
		t.Errorf("err = %v, want ErrNotEnrolled", err)
	}
}

func TestSyncAllCooldownReportsRemaining(t *testing.T) {
	now := contestStart.Add(45 * time.Minute)
	f := newSyncFixture(t, now)

	contest := testContest()
	last := now.Add(-5 * time.Minute)
	contest.LastBulkSync = &last
	f.contests.Create(contest)

	_, err := f.svc.SyncAll(context.Background(), contest)
	ce, ok := domain.AsCooldown(err)
	if !ok {
		t.Fatalf("expected cooldown error, got %v", err)
	}
	if ce.RetryAfter != 5*time.Minute {
		t.Errorf("retry after = %v, want 5m", ce.RetryAfter)
	}
	if ce.RetryAfterSeconds() != 300 {
		t.Errorf("retry after seconds = %d, want 300", ce.RetryAfterSeconds())
	}
}

func TestSyncAllGraceShortensCooldown(t *testing.T) {
	// 30 minutes into grace: the 10m gap would refuse, the 2m grace gap
	// lets it through.
	now := contestStart.Add(2*time.Hour + 30*time.Minute)
	f := newSyncFixture(t, now)

	contest := testContest()
	last := now.Add(-3 * time.Minute)
	contest.LastBulkSync = &last
	f.contests.Create(contest)

	result, err := f.svc.SyncAll(context.Background(), contest)
	if err != nil {
		t.Fatalf("bulk sync in grace failed: %v", err)
	}
	if !result.InGrace {
		t.Error("expected in_grace result")
	}
}

func TestSyncAllAutoFinalizesPastGrace(t *testing.T) {
	now := contestStart.Add(2*time.Hour + domain.GracePeriod + 10*time.Minute)
	f := newSyncFixture(t, now)

	contest := testContest()
	f.contests.Create(contest)

	_, err := f.svc.SyncAll(context.Background(), contest)
	if !errors.Is(err, domain.ErrContestFinalized) {
		t.Fatalf("err = %v, want ErrContestFinalized", err)
	}
	stored, _ := f.contests.FindByID(contest.ID)
	if !stored.Finalized {
		t.Error("contest not finalized in store")
	}
}

func TestSyncAllRefusesUpcomingAndFinalized(t *testing.T) {
	t.Run("upcoming", func(t *testing.T) {
		f := newSyncFixture(t, contestStart.Add(-time.Hour))
		contest := testContest()
		f.contests.Create(contest)
		if _, err := f.svc.SyncAll(context.Background(), contest); !errors.Is(err, domain.ErrContestNotStarted) {
			t.Errorf("err = %v, want ErrContestNotStarted", err)
		}
	})
	t.Run("finalized", func(t *testing.T) {
		f := newSyncFixture(t, contestStart.Add(30*time.Minute))
		contest := testContest()
		contest.Finalized = true
		f.contests.Create(contest)
		if _, err := f.svc.SyncAll(context.Background(), contest); !errors.Is(err, domain.ErrContestFinalized) {
			t.Errorf("err = %v, want ErrContestFinalized", err)
		}
	})
}

func TestSyncAllBatch(t *testing.T) {
	now := contestStart.Add(45 * time.Minute)
	f := newSyncFixture(t, now)

	contest := testContest()
	f.contests.Create(contest)

	alice := pendingParticipation(contest, "alice")
	alice.CreatedAt = now.Add(-3 * time.Minute)
	bob := pendingParticipation(contest, "bob")
	bob.CreatedAt = now.Add(-2 * time.Minute)
	ghost := pendingParticipation(contest, "ghost") // unknown upstream
	ghost.CreatedAt = now.Add(-time.Minute)
	unlinked := pendingParticipation(contest, "unlinked")
	unlinked.User.LeetCodeUsername = ""
	unlinked.CreatedAt = now

	for _, p := range []*domain.Participation{alice, bob, ghost, unlinked} {
		f.participations.rows[p.ID] = p
	}

	f.feeds.feeds["alice"] = []feedEntry{
		{"two-sum", "Wrong Answer", ts(10 * time.Minute)},
		{"two-sum", "Accepted", ts(30 * time.Minute)},
		{"word-ladder", "Accepted", ts(40 * time.Minute)},
	}
	f.feeds.feeds["bob"] = []feedEntry{
		{"two-sum", "Accepted", ts(20 * time.Minute)},
	}

	var paced int
	f.svc.sleep = func(time.Duration) { paced++ }

	result, err := f.svc.SyncAll(context.Background(), contest)
	if err != nil {
		t.Fatalf("bulk sync failed: %v", err)
	}
	if result.TotalParticipants != 4 {
		t.Errorf("total = %d, want 4", result.TotalParticipants)
	}
	if result.Synced != 2 {
		t.Errorf("synced = %d, want 2", result.Synced)
	}
	if result.Errors != 1 {
		t.Errorf("errors = %d, want 1", result.Errors)
	}
	// Pacing sleeps between the linked participants only.
	if paced != 2 {
		t.Errorf("paced %d times, want 2", paced)
	}

	savedAlice, _ := f.participations.FindByContestAndUser(contest.ID, alice.UserID)
	savedBob, _ := f.participations.FindByContestAndUser(contest.ID, bob.UserID)
	if savedAlice.Score != 9 {
		t.Errorf("alice score = %d, want 9", savedAlice.Score)
	}
	if savedBob.Score != 3 {
		t.Errorf("bob score = %d, want 3", savedBob.Score)
	}
	if savedAlice.Rank == nil || *savedAlice.Rank != 1 {
		t.Errorf("alice rank = %v, want 1", savedAlice.Rank)
	}
	if savedBob.Rank == nil || *savedBob.Rank != 2 {
		t.Errorf("bob rank = %v, want 2", savedBob.Rank)
	}

	stored, _ := f.contests.FindByID(contest.ID)
	if stored.LastBulkSync == nil || !stored.LastBulkSync.Equal(now) {
		t.Errorf("last bulk sync = %v, want %v", stored.LastBulkSync, now)
	}
}
