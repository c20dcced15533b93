package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leetclash/backend/internal/domain"
)

// participationRepository implements domain.ParticipationRepository using GORM
type participationRepository struct {
	db *gorm.DB
}

// NewParticipationRepository creates a new participation repository
func NewParticipationRepository(db *gorm.DB) domain.ParticipationRepository {
	return &participationRepository{db: db}
}

// Create creates a participation and its initial PENDING progress rows
func (r *participationRepository) Create(participation *domain.Participation) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		progress := participation.Progress
		participation.Progress = nil
		if err := tx.Create(participation).Error; err != nil {
			return err
		}
		for i := range progress {
			progress[i].ParticipationID = participation.ID
		}
		if len(progress) > 0 {
			if err := tx.Create(&progress).Error; err != nil {
				return err
			}
		}
		participation.Progress = progress
		return nil
	})
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrAlreadyEnrolled
	}
	return err
}

// FindByContestAndUser finds one participation with progress and user loaded
func (r *participationRepository) FindByContestAndUser(contestID, userID uuid.UUID) (*domain.Participation, error) {
	var participation domain.Participation
	result := r.preloaded().
		Where("contest_id = ? AND user_id = ?", contestID, userID).
		First(&participation)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotEnrolled
		}
		return nil, result.Error
	}
	return &participation, nil
}

// FindByContestID returns all participations for a contest, progress
// and users loaded, in enrollment order
func (r *participationRepository) FindByContestID(contestID uuid.UUID) ([]domain.Participation, error) {
	var participations []domain.Participation
	result := r.preloaded().
		Where("contest_id = ?", contestID).
		Order("created_at ASC").
		Find(&participations)
	return participations, result.Error
}

// Save persists a synced participation and its progress rows in one
// transaction, so a reader never sees score and progress out of step
func (r *participationRepository) Save(participation *domain.Participation) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Participation{}).
			Where("id = ?", participation.ID).
			Updates(map[string]any{
				"score":         participation.Score,
				"total_penalty": participation.TotalPenalty,
				"last_sync":     participation.LastSync,
			}).Error; err != nil {
			return err
		}
		for i := range participation.Progress {
			p := &participation.Progress[i]
			if err := tx.Model(&domain.ProblemProgress{}).
				Where("id = ?", p.ID).
				Updates(map[string]any{
					"status":     p.Status,
					"fail_count": p.FailCount,
					"solved_at":  p.SolvedAt,
					"penalty":    p.Penalty,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateRanks writes changed ranks in a single transaction
func (r *participationRepository) UpdateRanks(ranks map[uuid.UUID]int) error {
	if len(ranks) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		for id, rank := range ranks {
			if err := tx.Model(&domain.Participation{}).
				Where("id = ?", id).
				Update("rank", rank).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *participationRepository) preloaded() *gorm.DB {
	return r.db.
		Preload("Progress", func(db *gorm.DB) *gorm.DB {
			return db.Order("problem_progress.slug ASC")
		}).
		Preload("User")
}
