package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leetclash/backend/internal/domain"
)

// contestRepository implements domain.ContestRepository using GORM
type contestRepository struct {
	db *gorm.DB
}

// NewContestRepository creates a new contest repository
func NewContestRepository(db *gorm.DB) domain.ContestRepository {
	return &contestRepository{db: db}
}

// Create creates a contest and its problem rows in one transaction
func (r *contestRepository) Create(contest *domain.Contest) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		problems := contest.Problems
		contest.Problems = nil
		if err := tx.Create(contest).Error; err != nil {
			return err
		}
		for i := range problems {
			problems[i].ContestID = contest.ID
		}
		if err := tx.Create(&problems).Error; err != nil {
			return err
		}
		contest.Problems = problems
		return nil
	})
}

// FindByID finds a contest with its problem set loaded
func (r *contestRepository) FindByID(id uuid.UUID) (*domain.Contest, error) {
	var contest domain.Contest
	result := r.preloaded().Where("id = ?", id).First(&contest)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrContestNotFound
		}
		return nil, result.Error
	}
	return &contest, nil
}

// FindByRef resolves a contest by surrogate ID or by share code
func (r *contestRepository) FindByRef(ref string) (*domain.Contest, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return r.FindByID(id)
	}
	var contest domain.Contest
	result := r.preloaded().Where("code = ?", ref).First(&contest)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrContestNotFound
		}
		return nil, result.Error
	}
	return &contest, nil
}

// FindByUserID returns contests the user created or is enrolled in
func (r *contestRepository) FindByUserID(userID uuid.UUID) ([]domain.Contest, error) {
	var contests []domain.Contest
	result := r.preloaded().
		Where("created_by = ? OR id IN (?)",
			userID,
			r.db.Model(&domain.Participation{}).Select("contest_id").Where("user_id = ?", userID),
		).
		Order("start_time DESC").
		Find(&contests)
	return contests, result.Error
}

// ClaimBulkSync stamps last_bulk_sync in a single conditional UPDATE so
// concurrent bulk syncs cannot both pass the cooldown gate. When the
// claim is refused the remaining cooldown is returned.
func (r *contestRepository) ClaimBulkSync(id uuid.UUID, now time.Time, minGap time.Duration) (time.Duration, error) {
	cutoff := now.Add(-minGap)
	result := r.db.Model(&domain.Contest{}).
		Where("id = ? AND finalized = ? AND (last_bulk_sync IS NULL OR last_bulk_sync <= ?)", id, false, cutoff).
		Update("last_bulk_sync", now)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		return 0, nil
	}

	// Claim refused: report how long the caller must wait.
	var contest domain.Contest
	if err := r.db.Select("last_bulk_sync", "finalized").Where("id = ?", id).First(&contest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, domain.ErrContestNotFound
		}
		return 0, err
	}
	if contest.Finalized {
		return 0, domain.ErrContestFinalized
	}
	if contest.LastBulkSync == nil {
		// Raced with a concurrent claim that has not committed yet.
		return minGap, nil
	}
	remaining := contest.LastBulkSync.Add(minGap).Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// TouchBulkSync refreshes last_bulk_sync after a completed batch
func (r *contestRepository) TouchBulkSync(id uuid.UUID, now time.Time) error {
	return r.db.Model(&domain.Contest{}).
		Where("id = ?", id).
		Update("last_bulk_sync", now).Error
}

// Finalize flips the finalized flag exactly once. Finalizing an
// already-finalized contest is a no-op, not an error: the caller only
// cares that the contest is locked.
func (r *contestRepository) Finalize(id uuid.UUID) error {
	result := r.db.Model(&domain.Contest{}).
		Where("id = ? AND finalized = ?", id, false).
		Update("finalized", true)
	return result.Error
}

func (r *contestRepository) preloaded() *gorm.DB {
	return r.db.Preload("Problems", func(db *gorm.DB) *gorm.DB {
		return db.Order("contest_problems.position ASC")
	})
}
