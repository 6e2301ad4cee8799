package repository

import (
	"time"

	"github.com/wikicontest/wikicontest/internal/apperr"
	"github.com/wikicontest/wikicontest/internal/models"
)

// SubmissionRepository handles submission-related database operations.
type SubmissionRepository struct {
	db *DB
}

// NewSubmissionRepository creates a new submission repository.
func NewSubmissionRepository(db *DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// StatusCount is the number of submissions and their summed score for one status.
type StatusCount struct {
	Status models.SubmissionStatus `json:"status"`
	Count  int64                   `json:"count"`
	Score  int64                   `json:"score"`
}

// Create creates a new submission.
func (r *SubmissionRepository) Create(submission *models.Submission) error {
	if err := r.db.Create(submission).Error; err != nil {
		return translate(err, "create", "submission")
	}
	return nil
}

// GetByID retrieves a submission with its contest and author.
func (r *SubmissionRepository) GetByID(id uint) (*models.Submission, error) {
	var submission models.Submission
	if err := r.db.Preload("Contest").Preload("User").First(&submission, id).Error; err != nil {
		return nil, translate(err, "get", "submission")
	}
	return &submission, nil
}

// ListByContest retrieves the submissions of a contest in submission order.
func (r *SubmissionRepository) ListByContest(contestID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.Preload("User").
		Where("contest_id = ?", contestID).
		Order("submitted_at ASC, id ASC").
		Find(&submissions).Error; err != nil {
		return nil, translate(err, "list", "submissions")
	}
	return submissions, nil
}

// ListByUser retrieves every submission made by a user with its contest.
func (r *SubmissionRepository) ListByUser(userID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.Preload("Contest").
		Where("user_id = ?", userID).
		Order("submitted_at ASC, id ASC").
		Find(&submissions).Error; err != nil {
		return nil, translate(err, "list", "submissions")
	}
	return submissions, nil
}

// ListPending retrieves pending submissions of the given contests, oldest first.
// A nil slice means every contest.
func (r *SubmissionRepository) ListPending(contestIDs []uint) ([]models.Submission, error) {
	if contestIDs != nil && len(contestIDs) == 0 {
		return []models.Submission{}, nil
	}

	query := r.db.Preload("Contest").Preload("User").
		Where("status = ?", models.SubmissionStatusPending)
	if contestIDs != nil {
		query = query.Where("contest_id IN ?", contestIDs)
	}

	var submissions []models.Submission
	if err := query.Order("submitted_at ASC, id ASC").Find(&submissions).Error; err != nil {
		return nil, translate(err, "list", "pending submissions")
	}
	return submissions, nil
}

// CountPendingByContest counts the pending submissions of a contest.
func (r *SubmissionRepository) CountPendingByContest(contestID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.Submission{}).
		Where("contest_id = ? AND status = ?", contestID, models.SubmissionStatusPending).
		Count(&count).Error; err != nil {
		return 0, translate(err, "count", "pending submissions")
	}
	return count, nil
}

// ExistsInContest reports whether the article link was already submitted to the contest.
func (r *SubmissionRepository) ExistsInContest(contestID uint, articleLink string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Submission{}).
		Where("contest_id = ? AND article_link = ?", contestID, articleLink).
		Count(&count).Error; err != nil {
		return false, translate(err, "count", "submissions")
	}
	return count > 0, nil
}

// Review records a decision on a pending submission. The update only
// applies while the submission is still pending, so of two concurrent
// reviews exactly one succeeds and the other gets a state error.
func (r *SubmissionRepository) Review(
	id uint,
	status models.SubmissionStatus,
	score int,
	reviewerID uint,
	comment string,
	reviewedAt time.Time,
) error {
	result := r.db.Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, models.SubmissionStatusPending).
		Updates(map[string]interface{}{
			"status":         status,
			"score":          score,
			"reviewed_by":    reviewerID,
			"reviewed_at":    reviewedAt,
			"review_comment": comment,
		})
	if result.Error != nil {
		return translate(result.Error, "review", "submission")
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := r.db.Model(&models.Submission{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return translate(err, "get", "submission")
	}
	if count == 0 {
		return apperr.NotFound("submission not found")
	}
	return apperr.State("submission already reviewed")
}

// UpdateMetadata stores fetched article metadata without touching review fields.
func (r *SubmissionRepository) UpdateMetadata(submission *models.Submission) error {
	err := r.db.Model(submission).
		Select(
			"article_author",
			"article_created_at",
			"article_size",
			"article_word_count",
			"latest_revision_author",
			"latest_revision_at",
			"metadata_fetched_at",
		).
		Updates(submission).Error
	if err != nil {
		return translate(err, "update", "submission metadata")
	}
	return nil
}

// CountByStatusForUser groups a user's submissions by status.
func (r *SubmissionRepository) CountByStatusForUser(userID uint) ([]StatusCount, error) {
	var counts []StatusCount
	if err := r.db.Model(&models.Submission{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(score), 0) AS score").
		Where("user_id = ?", userID).
		Group("status").
		Order("status").
		Scan(&counts).Error; err != nil {
		return nil, translate(err, "count", "submissions")
	}
	return counts, nil
}
