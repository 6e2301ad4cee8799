package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// ContestStatus is the temporal phase of a contest. It is derived, never stored.
type ContestStatus string

// ContestStatus constants.
const (
	ContestStatusUpcoming ContestStatus = "upcoming"
	ContestStatusCurrent  ContestStatus = "current"
	ContestStatusPast     ContestStatus = "past"
	ContestStatusUnknown  ContestStatus = "unknown"
)

// SubmissionType constrains which articles a contest accepts.
type SubmissionType string

// SubmissionType constants.
const (
	SubmissionTypeNew       SubmissionType = "new"
	SubmissionTypeExpansion SubmissionType = "expansion"
	SubmissionTypeBoth      SubmissionType = "both"
)

// ParseSubmissionType validates a submission type; empty means both.
func ParseSubmissionType(s string) (SubmissionType, error) {
	switch t := SubmissionType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return SubmissionTypeBoth, nil
	case SubmissionTypeNew, SubmissionTypeExpansion, SubmissionTypeBoth:
		return t, nil
	default:
		return "", fmt.Errorf("unknown submission type %q", s)
	}
}

// Contest is an editing competition.
type Contest struct {
	ID                    uint                        `gorm:"primaryKey" json:"id"`
	Name                  string                      `gorm:"uniqueIndex;not null;size:255" json:"name"`
	Slug                  string                      `gorm:"uniqueIndex;not null;size:255" json:"slug"`
	ProjectName           string                      `gorm:"not null;size:255" json:"project_name"`
	Description           string                      `gorm:"type:text" json:"description"`
	Rules                 string                      `gorm:"type:text" json:"rules"`
	CodeLink              string                      `gorm:"size:500" json:"code_link,omitempty"`
	StartDate             *time.Time                  `json:"start_date"`
	EndDate               *time.Time                  `json:"end_date"`
	CreatorID             uint                        `gorm:"not null;index" json:"creator_id"`
	CreatedBy             string                      `gorm:"not null;size:255;index" json:"created_by"` // creator username
	JuryMembers           datatypes.JSONSlice[string] `gorm:"not null" json:"jury_members"`
	MarksSettingAccepted  int                         `gorm:"not null" json:"marks_setting_accepted"`
	MarksSettingRejected  int                         `gorm:"not null" json:"marks_setting_rejected"`
	AllowedSubmissionType SubmissionType              `gorm:"size:20;not null" json:"allowed_submission_type"`
	CreatedAt             time.Time                   `json:"created_at"`
	UpdatedAt             time.Time                   `json:"updated_at"`

	Submissions []Submission `gorm:"foreignKey:ContestID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Contest model.
func (Contest) TableName() string {
	return "contests"
}

// Status derives the phase of the contest at now. Both boundaries count as current.
func (c *Contest) Status(now time.Time) ContestStatus {
	if c.StartDate == nil && c.EndDate == nil {
		return ContestStatusUnknown
	}
	if c.StartDate != nil && now.Before(*c.StartDate) {
		return ContestStatusUpcoming
	}
	if c.EndDate != nil && now.After(*c.EndDate) {
		return ContestStatusPast
	}
	return ContestStatusCurrent
}

// IsJury reports whether username is on the jury, ignoring case.
func (c *Contest) IsJury(username string) bool {
	if username == "" {
		return false
	}
	for _, member := range c.JuryMembers {
		if strings.EqualFold(member, username) {
			return true
		}
	}
	return false
}

// MarksFor returns the configured points for a review decision.
func (c *Contest) MarksFor(status SubmissionStatus) int {
	switch status {
	case SubmissionStatusAccepted:
		return c.MarksSettingAccepted
	case SubmissionStatusRejected:
		return c.MarksSettingRejected
	default:
		return 0
	}
}

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives the URL slug of a contest name.
func Slugify(name string) string {
	return strings.Trim(slugSeparators.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// NormalizeJury trims names, drops blanks and removes case-insensitive duplicates
// while keeping the first spelling.
func NormalizeJury(members []string) []string {
	seen := make(map[string]bool, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		m = strings.TrimSpace(m)
		key := strings.ToLower(m)
		if m == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}
