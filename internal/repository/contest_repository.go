package repository

import (
	"gorm.io/gorm"

	"github.com/wikicontest/wikicontest/internal/apperr"
	"github.com/wikicontest/wikicontest/internal/models"
)

// ContestRepository handles contest-related database operations.
type ContestRepository struct {
	db *DB
}

// NewContestRepository creates a new contest repository.
func NewContestRepository(db *DB) *ContestRepository {
	return &ContestRepository{db: db}
}

// Create creates a new contest.
func (r *ContestRepository) Create(contest *models.Contest) error {
	if err := r.db.Create(contest).Error; err != nil {
		return translate(err, "create", "contest")
	}
	return nil
}

// GetByID retrieves a contest by ID.
func (r *ContestRepository) GetByID(id uint) (*models.Contest, error) {
	var contest models.Contest
	if err := r.db.First(&contest, id).Error; err != nil {
		return nil, translate(err, "get", "contest")
	}
	return &contest, nil
}

// GetBySlug retrieves a contest by its URL slug.
func (r *ContestRepository) GetBySlug(slug string) (*models.Contest, error) {
	var contest models.Contest
	if err := r.db.Where("slug = ?", slug).First(&contest).Error; err != nil {
		return nil, translate(err, "get", "contest")
	}
	return &contest, nil
}

// List retrieves all contests, newest first.
func (r *ContestRepository) List() ([]models.Contest, error) {
	var contests []models.Contest
	if err := r.db.Order("created_at DESC, id DESC").Find(&contests).Error; err != nil {
		return nil, translate(err, "list", "contests")
	}
	return contests, nil
}

// ListByCreator retrieves the contests created by a user, newest first.
func (r *ContestRepository) ListByCreator(creatorID uint) ([]models.Contest, error) {
	var contests []models.Contest
	if err := r.db.Where("creator_id = ?", creatorID).
		Order("created_at DESC, id DESC").
		Find(&contests).Error; err != nil {
		return nil, translate(err, "list", "contests")
	}
	return contests, nil
}

// ListByJuryMember retrieves the contests whose jury includes username.
// Jury lists are JSON columns whose query syntax differs between drivers,
// so membership is checked in Go.
func (r *ContestRepository) ListByJuryMember(username string) ([]models.Contest, error) {
	all, err := r.List()
	if err != nil {
		return nil, err
	}

	contests := make([]models.Contest, 0)
	for i := range all {
		if all[i].IsJury(username) {
			contests = append(contests, all[i])
		}
	}
	return contests, nil
}

// NameTaken reports whether another contest already uses name or slug.
func (r *ContestRepository) NameTaken(name, slug string, excludeID uint) (bool, error) {
	var count int64
	query := r.db.Model(&models.Contest{}).Where("(LOWER(name) = LOWER(?) OR slug = ?)", name, slug)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, translate(err, "count", "contests")
	}
	return count > 0, nil
}

// Update saves all fields of a contest.
func (r *ContestRepository) Update(contest *models.Contest) error {
	if err := r.db.Save(contest).Error; err != nil {
		return translate(err, "update", "contest")
	}
	return nil
}

// Delete removes a contest and all of its submissions in one transaction.
func (r *ContestRepository) Delete(id uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("contest_id = ?", id).Delete(&models.Submission{}).Error; err != nil {
			return translate(err, "delete", "submissions")
		}

		result := tx.Delete(&models.Contest{}, id)
		if result.Error != nil {
			return translate(result.Error, "delete", "contest")
		}
		if result.RowsAffected == 0 {
			return apperr.NotFound("contest not found")
		}
		return nil
	})
	return err
}
