package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContestPhase represents where a contest sits in its lifecycle.
// Phases are derived lazily from wall-clock time; only finalization
// is stored.
type ContestPhase string

const (
	PhaseUpcoming  ContestPhase = "upcoming"
	PhaseLive      ContestPhase = "live"
	PhaseGrace     ContestPhase = "grace"
	PhaseEnded     ContestPhase = "ended"
	PhaseFinalized ContestPhase = "finalized"
)

// GracePeriod is how long after end_time syncing is still permitted
// before a contest locks.
const GracePeriod = time.Hour

// ScoringConfig holds the per-contest point and penalty settings
type ScoringConfig struct {
	EasyPoints     int `json:"easy_points" gorm:"not null;default:3"`
	MediumPoints   int `json:"medium_points" gorm:"not null;default:4"`
	HardPoints     int `json:"hard_points" gorm:"not null;default:6"`
	PenaltyPerFail int `json:"penalty_per_fail" gorm:"not null;default:5"` // minutes
}

// PointsFor returns the point value for a difficulty tier
func (s ScoringConfig) PointsFor(d Difficulty) int {
	switch d {
	case DifficultyEasy:
		return s.EasyPoints
	case DifficultyHard:
		return s.HardPoints
	default:
		return s.MediumPoints
	}
}

// DefaultScoringConfig returns the standard contest scoring settings
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{EasyPoints: 3, MediumPoints: 4, HardPoints: 6, PenaltyPerFail: 5}
}

// Contest represents a time-boxed scored competition over a fixed
// problem set. The definition is immutable once the contest starts;
// only last_bulk_sync and finalized are written afterwards.
type Contest struct {
	ID           uuid.UUID     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Code         string        `json:"code" gorm:"uniqueIndex;not null"`
	Title        string        `json:"title" gorm:"not null"`
	CreatedBy    uuid.UUID     `json:"created_by" gorm:"type:uuid;not null;index"`
	StartTime    time.Time     `json:"start_time" gorm:"not null"`
	EndTime      time.Time     `json:"end_time" gorm:"not null"`
	Scoring      ScoringConfig `json:"scoring" gorm:"embedded;embeddedPrefix:scoring_"`
	LastBulkSync *time.Time    `json:"last_bulk_sync"`
	Finalized    bool          `json:"finalized" gorm:"not null;default:false"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`

	// Relationships
	Creator        User             `json:"-" gorm:"foreignKey:CreatedBy"`
	Problems       []ContestProblem `json:"problems,omitempty" gorm:"foreignKey:ContestID"`
	Participations []Participation  `json:"-" gorm:"foreignKey:ContestID"`
}

// TableName specifies the table name for GORM
func (Contest) TableName() string {
	return "contests"
}

// ContestProblem is one slot in a contest's ordered problem set.
// Difficulty and points are resolved from the catalog at creation time
// so later catalog changes cannot move a running contest's scoring.
type ContestProblem struct {
	ContestID  uuid.UUID  `json:"contest_id" gorm:"type:uuid;primaryKey"`
	Position   int        `json:"position" gorm:"primaryKey"`
	Slug       string     `json:"slug" gorm:"not null;index"`
	Title      string     `json:"title"`
	Difficulty Difficulty `json:"difficulty" gorm:"type:varchar(10);not null"`
	Points     int        `json:"points" gorm:"not null"`
}

// TableName specifies the table name for GORM
func (ContestProblem) TableName() string {
	return "contest_problems"
}

// Phase computes the lifecycle phase at the given instant
func (c *Contest) Phase(now time.Time) ContestPhase {
	if c.Finalized {
		return PhaseFinalized
	}
	switch {
	case now.Before(c.StartTime):
		return PhaseUpcoming
	case !now.After(c.EndTime):
		return PhaseLive
	case !now.After(c.EndTime.Add(GracePeriod)):
		return PhaseGrace
	default:
		return PhaseEnded
	}
}

// InWindow reports whether a submission timestamp counts toward this
// contest. The window is inclusive on both ends.
func (c *Contest) InWindow(t time.Time) bool {
	return !t.Before(c.StartTime) && !t.After(c.EndTime)
}

// SyncAllowed reports whether single-participant sync is legal now.
// Sync runs during live play and the grace window only.
func (c *Contest) SyncAllowed(now time.Time) bool {
	phase := c.Phase(now)
	return phase == PhaseLive || phase == PhaseGrace
}

// PastGrace reports whether the grace window has elapsed, meaning the
// next bulk sync attempt must finalize the contest instead of running.
func (c *Contest) PastGrace(now time.Time) bool {
	return now.After(c.EndTime.Add(GracePeriod))
}

// ProblemBySlug returns the contest problem with the given slug, if any
func (c *Contest) ProblemBySlug(slug string) *ContestProblem {
	for i := range c.Problems {
		if c.Problems[i].Slug == slug {
			return &c.Problems[i]
		}
	}
	return nil
}

// ContestRepository defines the interface for contest data access
type ContestRepository interface {
	Create(contest *Contest) error
	FindByID(id uuid.UUID) (*Contest, error)
	FindByRef(ref string) (*Contest, error)
	FindByUserID(userID uuid.UUID) ([]Contest, error)
	// ClaimBulkSync atomically checks the bulk cooldown and stamps
	// last_bulk_sync in one conditional write. It returns the remaining
	// cooldown when the claim is refused.
	ClaimBulkSync(id uuid.UUID, now time.Time, minGap time.Duration) (time.Duration, error)
	TouchBulkSync(id uuid.UUID, now time.Time) error
	// Finalize flips finalized from false to true exactly once.
	Finalize(id uuid.UUID) error
}

// CreateContestRequest represents the data needed to create a contest
type CreateContestRequest struct {
	Title        string         `json:"title" binding:"required,min=3,max=120"`
	StartTime    time.Time      `json:"start_time" binding:"required"`
	EndTime      time.Time      `json:"end_time" binding:"required"`
	ProblemSlugs []string       `json:"problem_slugs" binding:"required,min=1,max=20"`
	Scoring      *ScoringConfig `json:"scoring"`
}

// ContestResponse represents a contest in API responses
type ContestResponse struct {
	ID           uuid.UUID                `json:"id"`
	Code         string                   `json:"code"`
	Title        string                   `json:"title"`
	StartTime    time.Time                `json:"start_time"`
	EndTime      time.Time                `json:"end_time"`
	Phase        ContestPhase             `json:"phase"`
	Scoring      ScoringConfig            `json:"scoring"`
	Finalized    bool                     `json:"finalized"`
	LastBulkSync *time.Time               `json:"last_bulk_sync"`
	Problems     []ContestProblemResponse `json:"problems"`
}

// ContestProblemResponse represents a problem slot in API responses
type ContestProblemResponse struct {
	Position   int        `json:"position"`
	Slug       string     `json:"slug"`
	Title      string     `json:"title"`
	Difficulty Difficulty `json:"difficulty"`
	Points     int        `json:"points"`
}

// ToResponse converts a Contest to a ContestResponse
func (c *Contest) ToResponse(now time.Time) ContestResponse {
	problems := make([]ContestProblemResponse, len(c.Problems))
	for i, p := range c.Problems {
		problems[i] = ContestProblemResponse{
			Position:   p.Position,
			Slug:       p.Slug,
			Title:      p.Title,
			Difficulty: p.Difficulty,
			Points:     p.Points,
		}
	}
	return ContestResponse{
		ID:           c.ID,
		Code:         c.Code,
		Title:        c.Title,
		StartTime:    c.StartTime,
		EndTime:      c.EndTime,
		Phase:        c.Phase(now),
		Scoring:      c.Scoring,
		Finalized:    c.Finalized,
		LastBulkSync: c.LastBulkSync,
		Problems:     problems,
	}
}
