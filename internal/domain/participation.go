package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProgressStatus is the per-problem state within a participation
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "PENDING"
	ProgressFail     ProgressStatus = "FAIL"
	ProgressAccepted ProgressStatus = "ACCEPTED"
)

// Participation is one user's enrollment and score state in one
// contest; unique per (contest, user) pair. Mutated only by the sync
// and ranking engines.
type Participation struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ContestID    uuid.UUID  `json:"contest_id" gorm:"type:uuid;not null;uniqueIndex:idx_contest_user"`
	UserID       uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_contest_user"`
	Score        int        `json:"score" gorm:"not null;default:0"`
	TotalPenalty int        `json:"total_penalty" gorm:"not null;default:0"` // minutes
	Rank         *int       `json:"rank"`
	LastSync     *time.Time `json:"last_sync"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Relationships
	User     User              `json:"-" gorm:"foreignKey:UserID"`
	Progress []ProblemProgress `json:"problem_progress,omitempty" gorm:"foreignKey:ParticipationID"`
}

// TableName specifies the table name for GORM
func (Participation) TableName() string {
	return "participations"
}

// ProblemProgress tracks one contest problem within a participation.
// ACCEPTED is terminal: later syncs never revisit the row.
type ProblemProgress struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ParticipationID uuid.UUID      `json:"participation_id" gorm:"type:uuid;not null;uniqueIndex:idx_participation_slug"`
	Slug            string         `json:"slug" gorm:"not null;uniqueIndex:idx_participation_slug"`
	Status          ProgressStatus `json:"status" gorm:"type:varchar(10);not null;default:'PENDING'"`
	FailCount       int            `json:"fail_count" gorm:"not null;default:0"`
	SolvedAt        *time.Time     `json:"solved_at"`
	Penalty         int            `json:"penalty" gorm:"not null;default:0"` // minutes
}

// TableName specifies the table name for GORM
func (ProblemProgress) TableName() string {
	return "problem_progress"
}

// ProgressBySlug returns the progress row for a slug, if any
func (p *Participation) ProgressBySlug(slug string) *ProblemProgress {
	for i := range p.Progress {
		if p.Progress[i].Slug == slug {
			return &p.Progress[i]
		}
	}
	return nil
}

// SolvedCount returns how many problems this participation has accepted
func (p *Participation) SolvedCount() int {
	n := 0
	for i := range p.Progress {
		if p.Progress[i].Status == ProgressAccepted {
			n++
		}
	}
	return n
}

// AttemptCount returns the total failed attempts across all problems
func (p *Participation) AttemptCount() int {
	n := 0
	for i := range p.Progress {
		n += p.Progress[i].FailCount
	}
	return n
}

// LastSolvedAt returns the latest accepted timestamp, or nil when
// nothing has been solved
func (p *Participation) LastSolvedAt() *time.Time {
	var last *time.Time
	for i := range p.Progress {
		t := p.Progress[i].SolvedAt
		if p.Progress[i].Status == ProgressAccepted && t != nil {
			if last == nil || t.After(*last) {
				last = t
			}
		}
	}
	return last
}

// ParticipationRepository defines the interface for participation data access
type ParticipationRepository interface {
	Create(participation *Participation) error
	FindByContestAndUser(contestID, userID uuid.UUID) (*Participation, error)
	FindByContestID(contestID uuid.UUID) ([]Participation, error)
	// Save persists the participation and its progress rows in one
	// transaction.
	Save(participation *Participation) error
	// UpdateRanks writes the given rank values in a single transaction;
	// the map holds only participations whose rank changed.
	UpdateRanks(ranks map[uuid.UUID]int) error
}

// ProblemProgressResponse represents per-problem state in API responses
type ProblemProgressResponse struct {
	Slug      string         `json:"slug"`
	Status    ProgressStatus `json:"status"`
	FailCount int            `json:"fail_count"`
	SolvedAt  *time.Time     `json:"solved_at"`
	Penalty   int            `json:"penalty"`
}

// ParticipationResponse represents a participation in API responses
type ParticipationResponse struct {
	ID           uuid.UUID                 `json:"id"`
	ContestID    uuid.UUID                 `json:"contest_id"`
	Score        int                       `json:"score"`
	TotalPenalty int                       `json:"total_penalty"`
	Rank         *int                      `json:"rank"`
	LastSync     *time.Time                `json:"last_sync"`
	Progress     []ProblemProgressResponse `json:"problem_progress"`
}

// ToResponse converts a Participation to a ParticipationResponse
func (p *Participation) ToResponse() ParticipationResponse {
	progress := make([]ProblemProgressResponse, len(p.Progress))
	for i, pp := range p.Progress {
		progress[i] = ProblemProgressResponse{
			Slug:      pp.Slug,
			Status:    pp.Status,
			FailCount: pp.FailCount,
			SolvedAt:  pp.SolvedAt,
			Penalty:   pp.Penalty,
		}
	}
	return ParticipationResponse{
		ID:           p.ID,
		ContestID:    p.ContestID,
		Score:        p.Score,
		TotalPenalty: p.TotalPenalty,
		Rank:         p.Rank,
		LastSync:     p.LastSync,
		Progress:     progress,
	}
}

// LeaderboardEntry is one row of a contest leaderboard
type LeaderboardEntry struct {
	Rank             int                       `json:"rank"`
	Username         string                    `json:"username"`
	LeetCodeUsername string                    `json:"leetcode_username"`
	Score            int                       `json:"score"`
	TotalPenalty     int                       `json:"total_penalty"`
	TotalTimeSeconds int64                     `json:"total_time_seconds"`
	SolvedCount      int                       `json:"solved_count"`
	AttemptCount     int                       `json:"attempt_count"`
	Progress         []ProblemProgressResponse `json:"problem_progress"`
}
