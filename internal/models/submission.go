package models

import (
	"fmt"
	"strings"
	"time"
)

// SubmissionStatus is the review state of a submission.
type SubmissionStatus string

// SubmissionStatus constants.
const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusAccepted SubmissionStatus = "accepted"
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

// ParseDecision validates a review decision; only accepted and rejected are decisions.
func ParseDecision(s string) (SubmissionStatus, error) {
	switch d := SubmissionStatus(strings.ToLower(strings.TrimSpace(s))); d {
	case SubmissionStatusAccepted, SubmissionStatusRejected:
		return d, nil
	default:
		return "", fmt.Errorf("invalid decision %q (valid: accepted, rejected)", s)
	}
}

// Submission is one participant's article entry in a contest.
type Submission struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	ContestID    uint             `gorm:"not null;index;uniqueIndex:idx_contest_article" json:"contest_id"`
	Contest      *Contest         `gorm:"foreignKey:ContestID" json:"contest,omitempty"`
	UserID       uint             `gorm:"not null;index" json:"user_id"`
	User         *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ArticleTitle string           `gorm:"not null;size:500" json:"article_title"`
	ArticleLink  string           `gorm:"not null;size:1000;uniqueIndex:idx_contest_article" json:"article_link"`
	Status       SubmissionStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	Score        int              `gorm:"not null;default:0" json:"score"`
	SubmittedAt  time.Time        `gorm:"not null" json:"submitted_at"`

	ReviewedBy    *uint      `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	ReviewComment string     `gorm:"type:text" json:"review_comment,omitempty"`

	ArticleAuthor        string     `gorm:"size:255" json:"article_author,omitempty"`
	ArticleCreatedAt     *time.Time `json:"article_created_at,omitempty"`
	ArticleSize          *int       `json:"article_size,omitempty"` // bytes
	ArticleWordCount     *int       `json:"article_word_count,omitempty"`
	LatestRevisionAuthor string     `gorm:"size:255" json:"latest_revision_author,omitempty"`
	LatestRevisionAt     *time.Time `json:"latest_revision_at,omitempty"`
	MetadataFetchedAt    *time.Time `json:"metadata_fetched_at,omitempty"`
}

// TableName specifies the table name for Submission model.
func (Submission) TableName() string {
	return "submissions"
}

// IsReviewed reports whether a decision has been recorded.
func (s *Submission) IsReviewed() bool {
	return s.Status != SubmissionStatusPending
}
