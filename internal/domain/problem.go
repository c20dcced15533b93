package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Difficulty represents the difficulty tier of a problem
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// ParseDifficulty normalizes a judge-reported difficulty label.
// Anything unrecognized defaults to Medium.
func ParseDifficulty(s string) Difficulty {
	switch s {
	case string(DifficultyEasy):
		return DifficultyEasy
	case string(DifficultyHard):
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// Problem is a locally cached catalog entry for a judge problem.
// Rows are created on demand when a slug is first resolved.
type Problem struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Slug       string         `json:"slug" gorm:"uniqueIndex;not null"`
	Title      string         `json:"title" gorm:"not null"`
	Difficulty Difficulty     `json:"difficulty" gorm:"type:varchar(10);not null"`
	Topics     pq.StringArray `json:"topics" gorm:"type:text[]"`
	FetchedAt  time.Time      `json:"fetched_at" gorm:"not null"`
}

// TableName specifies the table name for GORM
func (Problem) TableName() string {
	return "problems"
}

// ProblemRepository defines the interface for catalog cache access
type ProblemRepository interface {
	Upsert(problem *Problem) error
	FindBySlug(slug string) (*Problem, error)
	FindBySlugs(slugs []string) ([]Problem, error)
	Count() (int64, error)
}

// ProblemResponse represents a catalog entry in API responses
type ProblemResponse struct {
	Slug       string     `json:"slug"`
	Title      string     `json:"title"`
	Difficulty Difficulty `json:"difficulty"`
	Topics     []string   `json:"topics"`
}

// ToResponse converts a Problem to a ProblemResponse
func (p *Problem) ToResponse() ProblemResponse {
	return ProblemResponse{
		Slug:       p.Slug,
		Title:      p.Title,
		Difficulty: p.Difficulty,
		Topics:     p.Topics,
	}
}
