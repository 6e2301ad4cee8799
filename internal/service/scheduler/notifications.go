package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/wikicontest/wikicontest/internal/mattermost"
	"github.com/wikicontest/wikicontest/internal/models"
)

// buildReminders turns running contests with pending submissions into
// jury reminders. Contests without pending work are skipped.
func buildReminders(contests []models.Contest, pending PendingCounter, now time.Time, frontendURL string) ([]mattermost.JuryReminder, error) {
	reminders := make([]mattermost.JuryReminder, 0)

	for i := range contests {
		contest := &contests[i]
		if contest.Status(now) != models.ContestStatusCurrent {
			continue
		}

		count, err := pending.CountPendingByContest(contest.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count pending submissions for contest %d: %w", contest.ID, err)
		}
		if count == 0 {
			continue
		}

		reminders = append(reminders, mattermost.JuryReminder{
			ContestName: contest.Name,
			ContestURL:  contestURL(frontendURL, contest.Slug),
			Pending:     count,
			Jury:        contest.JuryMembers,
		})
	}

	return reminders, nil
}

func contestURL(frontendURL, slug string) string {
	if frontendURL == "" || slug == "" {
		return ""
	}
	return strings.TrimRight(frontendURL, "/") + "/contest/" + slug
}
