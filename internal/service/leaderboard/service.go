// Package leaderboard provides contest rankings and per-user dashboards.
package leaderboard

import (
	"context"
	"sort"
	"time"

	"github.com/wikicontest/wikicontest/internal/models"
	"github.com/wikicontest/wikicontest/internal/repository"
	"github.com/wikicontest/wikicontest/pkg/logger"
)

// SubmissionRepository interface for submission reads.
type SubmissionRepository interface {
	ListByContest(contestID uint) ([]models.Submission, error)
	ListByUser(userID uint) ([]models.Submission, error)
}

// ContestRepository interface for contest reads.
type ContestRepository interface {
	GetByID(id uint) (*models.Contest, error)
	ListByCreator(creatorID uint) ([]models.Contest, error)
	ListByJuryMember(username string) ([]models.Contest, error)
}

// Entry represents a single participant in a contest leaderboard.
type Entry struct {
	Rank             int       `json:"rank"`
	UserID           uint      `json:"user_id"`
	Username         string    `json:"username"`
	TotalScore       int       `json:"total_score"`
	Submissions      int       `json:"submissions"`
	Accepted         int       `json:"accepted"`
	Rejected         int       `json:"rejected"`
	Pending          int       `json:"pending"`
	FirstSubmittedAt time.Time `json:"first_submitted_at"`
}

// Service handles leaderboard generation and user dashboards.
type Service struct {
	submissions SubmissionRepository
	contests    ContestRepository
	now         func() time.Time
	log         *logger.Logger
}

// NewService creates a new leaderboard service with concrete repository types.
func NewService(
	submissions *repository.SubmissionRepository,
	contests *repository.ContestRepository,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(submissions, contests, time.Now, log)
}

// NewServiceWithInterfaces creates a new leaderboard service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	submissions SubmissionRepository,
	contests ContestRepository,
	now func() time.Time,
	log *logger.Logger,
) *Service {
	return &Service{
		submissions: submissions,
		contests:    contests,
		now:         now,
		log:         log,
	}
}

// ContestLeaderboard ranks the participants of a contest by their summed
// score across all of their submissions.
func (s *Service) ContestLeaderboard(_ context.Context, contestID uint) ([]Entry, error) {
	contest, err := s.contests.GetByID(contestID)
	if err != nil {
		return nil, err
	}

	submissions, err := s.submissions.ListByContest(contest.ID)
	if err != nil {
		return nil, err
	}

	entries := aggregateByUser(submissions)
	rank(entries)

	s.log.Debug().
		Uint("contest_id", contest.ID).
		Int("participants", len(entries)).
		Msg("Built contest leaderboard")

	return entries, nil
}

// aggregateByUser folds submissions into one entry per submitting user.
func aggregateByUser(submissions []models.Submission) []Entry {
	byUser := make(map[uint]*Entry)
	order := make([]uint, 0)

	for i := range submissions {
		sub := &submissions[i]
		entry, ok := byUser[sub.UserID]
		if !ok {
			entry = &Entry{UserID: sub.UserID, FirstSubmittedAt: sub.SubmittedAt}
			if sub.User != nil {
				entry.Username = sub.User.Username
			}
			byUser[sub.UserID] = entry
			order = append(order, sub.UserID)
		}

		entry.TotalScore += sub.Score
		entry.Submissions++
		switch sub.Status {
		case models.SubmissionStatusAccepted:
			entry.Accepted++
		case models.SubmissionStatusRejected:
			entry.Rejected++
		default:
			entry.Pending++
		}
		if sub.SubmittedAt.Before(entry.FirstSubmittedAt) {
			entry.FirstSubmittedAt = sub.SubmittedAt
		}
	}

	entries := make([]Entry, 0, len(order))
	for _, id := range order {
		entries = append(entries, *byUser[id])
	}
	return entries
}

// rank orders entries by score, then more accepted submissions, then the
// earlier first submission, then the lower user id, and numbers them 1..n.
func rank(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.Accepted != b.Accepted {
			return a.Accepted > b.Accepted
		}
		if !a.FirstSubmittedAt.Equal(b.FirstSubmittedAt) {
			return a.FirstSubmittedAt.Before(b.FirstSubmittedAt)
		}
		return a.UserID < b.UserID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
}
