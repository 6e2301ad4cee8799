// Package permission decides what a caller may do with a contest.
// The predicates are pure; callers turn a false result into a forbidden error.
package permission

import (
	"strings"

	"github.com/wikicontest/wikicontest/internal/models"
)

// IsCreator reports whether user created the contest. The creator id decides
// when set; the username, ignoring case, only for rows without one.
func IsCreator(user *models.User, contest *models.Contest) bool {
	if user == nil || contest == nil {
		return false
	}
	if contest.CreatorID != 0 {
		return contest.CreatorID == user.ID
	}
	return contest.CreatedBy != "" && strings.EqualFold(contest.CreatedBy, user.Username)
}

// CanViewSubmissions allows the creator and jury members. An admin role
// alone does not grant it.
func CanViewSubmissions(user *models.User, contest *models.Contest) bool {
	if user == nil || contest == nil {
		return false
	}
	return IsCreator(user, contest) || contest.IsJury(user.Username)
}

// CanEditOrDelete allows the creator and admins.
func CanEditOrDelete(user *models.User, contest *models.Contest) bool {
	if user == nil || contest == nil {
		return false
	}
	return IsCreator(user, contest) || user.Capabilities().ManageContests
}

// CanReview allows jury members and admins.
func CanReview(user *models.User, contest *models.Contest) bool {
	if user == nil || contest == nil {
		return false
	}
	return contest.IsJury(user.Username) || user.Capabilities().ReviewAny
}
