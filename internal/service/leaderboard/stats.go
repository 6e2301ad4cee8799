package leaderboard

import (
	"context"
	"time"

	"github.com/wikicontest/wikicontest/internal/models"
)

// ContestSummary is the short form of a contest shown on dashboards.
type ContestSummary struct {
	ID     uint                 `json:"id"`
	Name   string               `json:"name"`
	Slug   string               `json:"slug"`
	Status models.ContestStatus `json:"status"`
}

// ContestSubmissions groups a user's submissions to one contest.
type ContestSubmissions struct {
	Contest     ContestSummary      `json:"contest"`
	Score       int                 `json:"score"` // accepted submissions only
	Accepted    int                 `json:"accepted"`
	Rejected    int                 `json:"rejected"`
	Pending     int                 `json:"pending"`
	Submissions []models.Submission `json:"submissions"`
}

// Dashboard is everything a user sees on their own dashboard.
type Dashboard struct {
	UserID          uint                 `json:"user_id"`
	Username        string               `json:"username"`
	Role            models.Role          `json:"role"`
	TotalScore      int                  `json:"total_score"`
	CreatedContests []ContestSummary     `json:"created_contests"`
	JuryContests    []ContestSummary     `json:"jury_contests"`
	Contests        []ContestSubmissions `json:"submissions_by_contest"`
}

// UserDashboard aggregates a user's contests and submissions. The total
// score sums accepted submissions across all contests.
func (s *Service) UserDashboard(_ context.Context, user *models.User) (*Dashboard, error) {
	created, err := s.contests.ListByCreator(user.ID)
	if err != nil {
		return nil, err
	}

	jury, err := s.contests.ListByJuryMember(user.Username)
	if err != nil {
		return nil, err
	}

	submissions, err := s.submissions.ListByUser(user.ID)
	if err != nil {
		return nil, err
	}

	dashboard := &Dashboard{
		UserID:          user.ID,
		Username:        user.Username,
		Role:            user.Role,
		CreatedContests: s.summarize(created),
		JuryContests:    s.summarize(jury),
		Contests:        s.groupByContest(submissions),
	}
	for _, group := range dashboard.Contests {
		dashboard.TotalScore += group.Score
	}

	s.log.Debug().
		Uint("user_id", user.ID).
		Int("total_score", dashboard.TotalScore).
		Msg("Built user dashboard")

	return dashboard, nil
}

func (s *Service) summarize(contests []models.Contest) []ContestSummary {
	now := s.now()
	out := make([]ContestSummary, 0, len(contests))
	for i := range contests {
		out = append(out, summaryOf(&contests[i], now))
	}
	return out
}

// groupByContest keeps the order in which the user first submitted to each contest.
func (s *Service) groupByContest(submissions []models.Submission) []ContestSubmissions {
	now := s.now()
	index := make(map[uint]int)
	groups := make([]ContestSubmissions, 0)

	for _, sub := range submissions {
		i, ok := index[sub.ContestID]
		if !ok {
			summary := ContestSummary{ID: sub.ContestID}
			if sub.Contest != nil {
				summary = summaryOf(sub.Contest, now)
			}
			groups = append(groups, ContestSubmissions{Contest: summary, Submissions: []models.Submission{}})
			i = len(groups) - 1
			index[sub.ContestID] = i
		}

		group := &groups[i]
		switch sub.Status {
		case models.SubmissionStatusAccepted:
			group.Accepted++
			group.Score += sub.Score
		case models.SubmissionStatusRejected:
			group.Rejected++
		default:
			group.Pending++
		}

		sub.Contest = nil
		group.Submissions = append(group.Submissions, sub)
	}
	return groups
}

func summaryOf(c *models.Contest, now time.Time) ContestSummary {
	return ContestSummary{ID: c.ID, Name: c.Name, Slug: c.Slug, Status: c.Status(now)}
}
