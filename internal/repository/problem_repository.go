package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/leetclash/backend/internal/domain"
)

// problemRepository implements domain.ProblemRepository using GORM.
// The problems table is a local cache of judge-resolved catalog
// entries, filled on demand.
type problemRepository struct {
	db *gorm.DB
}

// NewProblemRepository creates a new problem catalog repository
func NewProblemRepository(db *gorm.DB) domain.ProblemRepository {
	return &problemRepository{db: db}
}

// Upsert inserts or refreshes a catalog entry keyed by slug
func (r *problemRepository) Upsert(problem *domain.Problem) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "difficulty", "topics", "fetched_at"}),
	}).Create(problem).Error
}

// FindBySlug finds a cached catalog entry by slug
func (r *problemRepository) FindBySlug(slug string) (*domain.Problem, error) {
	var problem domain.Problem
	result := r.db.Where("slug = ?", slug).First(&problem)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProblemNotFound
		}
		return nil, result.Error
	}
	return &problem, nil
}

// FindBySlugs returns the cached entries for the given slugs; missing
// slugs are simply absent from the result
func (r *problemRepository) FindBySlugs(slugs []string) ([]domain.Problem, error) {
	var problems []domain.Problem
	result := r.db.Where("slug IN ?", slugs).Find(&problems)
	return problems, result.Error
}

// Count returns the number of cached catalog entries
func (r *problemRepository) Count() (int64, error) {
	var count int64
	result := r.db.Model(&domain.Problem{}).Count(&count)
	return count, result.Error
}
