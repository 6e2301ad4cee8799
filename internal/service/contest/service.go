// Package contest provides the contest lifecycle: creation, partial updates,
// deletion and status-based browsing.
package contest

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wikicontest/wikicontest/internal/apperr"
	"github.com/wikicontest/wikicontest/internal/models"
	"github.com/wikicontest/wikicontest/internal/repository"
	"github.com/wikicontest/wikicontest/internal/service/permission"
	"github.com/wikicontest/wikicontest/pkg/logger"
)

// Category values accepted by List besides the contest statuses.
const CategoryAll = "all"

// Repository interface for contest operations.
type Repository interface {
	Create(contest *models.Contest) error
	GetByID(id uint) (*models.Contest, error)
	GetBySlug(slug string) (*models.Contest, error)
	List() ([]models.Contest, error)
	NameTaken(name, slug string, excludeID uint) (bool, error)
	Update(contest *models.Contest) error
	Delete(id uint) error
}

// View is a contest together with its status at the time of the request.
type View struct {
	*models.Contest
	Status models.ContestStatus `json:"status"`
}

// CreateInput is the payload of a new contest. Dates are RFC 3339 timestamps
// or YYYY-MM-DD dates.
type CreateInput struct {
	Name                  string   `json:"name"`
	ProjectName           string   `json:"project_name"`
	Description           string   `json:"description"`
	Rules                 string   `json:"rules"`
	CodeLink              string   `json:"code_link"`
	StartDate             string   `json:"start_date"`
	EndDate               string   `json:"end_date"`
	JuryMembers           []string `json:"jury_members"`
	MarksSettingAccepted  *int     `json:"marks_setting_accepted"`
	MarksSettingRejected  *int     `json:"marks_setting_rejected"`
	AllowedSubmissionType string   `json:"allowed_submission_type"`
}

// UpdateInput is a partial update; nil fields are left unchanged and an
// empty date string clears the date.
type UpdateInput struct {
	Name                  *string   `json:"name"`
	ProjectName           *string   `json:"project_name"`
	Description           *string   `json:"description"`
	Rules                 *string   `json:"rules"`
	CodeLink              *string   `json:"code_link"`
	StartDate             *string   `json:"start_date"`
	EndDate               *string   `json:"end_date"`
	JuryMembers           *[]string `json:"jury_members"`
	MarksSettingAccepted  *int      `json:"marks_setting_accepted"`
	MarksSettingRejected  *int      `json:"marks_setting_rejected"`
	AllowedSubmissionType *string   `json:"allowed_submission_type"`
}

// Service handles the contest lifecycle.
type Service struct {
	contests Repository
	now      func() time.Time
	log      *logger.Logger
}

// NewService creates a new contest service with concrete repository types.
func NewService(contests *repository.ContestRepository, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(contests, time.Now, log)
}

// NewServiceWithInterfaces creates a new contest service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(contests Repository, now func() time.Time, log *logger.Logger) *Service {
	return &Service{contests: contests, now: now, log: log}
}

// View wraps contest with its current status.
func (s *Service) View(contest *models.Contest) View {
	return View{Contest: contest, Status: contest.Status(s.now())}
}

// Create validates in and stores a contest owned by creator.
func (s *Service) Create(_ context.Context, creator *models.User, in CreateInput) (*models.Contest, error) {
	start, err := parseDate(in.StartDate, false)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "start_date must be a date (YYYY-MM-DD) or RFC 3339 timestamp", err)
	}
	end, err := parseDate(in.EndDate, true)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "end_date must be a date (YYYY-MM-DD) or RFC 3339 timestamp", err)
	}

	submissionType, err := models.ParseSubmissionType(in.AllowedSubmissionType)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "allowed_submission_type must be new, expansion or both", err)
	}

	contest := &models.Contest{
		Name:                  strings.TrimSpace(in.Name),
		ProjectName:           strings.TrimSpace(in.ProjectName),
		Description:           in.Description,
		Rules:                 in.Rules,
		CodeLink:              strings.TrimSpace(in.CodeLink),
		StartDate:             start,
		EndDate:               end,
		CreatorID:             creator.ID,
		CreatedBy:             creator.Username,
		JuryMembers:           models.NormalizeJury(in.JuryMembers),
		MarksSettingAccepted:  1,
		MarksSettingRejected:  0,
		AllowedSubmissionType: submissionType,
	}
	if in.MarksSettingAccepted != nil {
		contest.MarksSettingAccepted = *in.MarksSettingAccepted
	}
	if in.MarksSettingRejected != nil {
		contest.MarksSettingRejected = *in.MarksSettingRejected
	}

	if err := s.prepare(contest); err != nil {
		return nil, err
	}
	if err := s.contests.Create(contest); err != nil {
		return nil, err
	}

	s.log.Info().
		Uint("contest_id", contest.ID).
		Str("slug", contest.Slug).
		Uint("creator_id", creator.ID).
		Msg("Contest created")

	return contest, nil
}

// Update applies a partial update. Only the creator and admins may update.
func (s *Service) Update(_ context.Context, caller *models.User, id uint, in UpdateInput) (*models.Contest, error) {
	contest, err := s.contests.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !permission.CanEditOrDelete(caller, contest) {
		return nil, apperr.Forbidden("only the contest creator or an admin can update this contest")
	}

	if in.Name != nil {
		contest.Name = strings.TrimSpace(*in.Name)
	}
	if in.ProjectName != nil {
		contest.ProjectName = strings.TrimSpace(*in.ProjectName)
	}
	if in.Description != nil {
		contest.Description = *in.Description
	}
	if in.Rules != nil {
		contest.Rules = *in.Rules
	}
	if in.CodeLink != nil {
		contest.CodeLink = strings.TrimSpace(*in.CodeLink)
	}
	if in.StartDate != nil {
		start, err := parseDate(*in.StartDate, false)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "start_date must be a date (YYYY-MM-DD) or RFC 3339 timestamp", err)
		}
		contest.StartDate = start
	}
	if in.EndDate != nil {
		end, err := parseDate(*in.EndDate, true)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "end_date must be a date (YYYY-MM-DD) or RFC 3339 timestamp", err)
		}
		contest.EndDate = end
	}
	if in.JuryMembers != nil {
		contest.JuryMembers = models.NormalizeJury(*in.JuryMembers)
	}
	if in.MarksSettingAccepted != nil {
		contest.MarksSettingAccepted = *in.MarksSettingAccepted
	}
	if in.MarksSettingRejected != nil {
		contest.MarksSettingRejected = *in.MarksSettingRejected
	}
	if in.AllowedSubmissionType != nil {
		submissionType, err := models.ParseSubmissionType(*in.AllowedSubmissionType)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "allowed_submission_type must be new, expansion or both", err)
		}
		contest.AllowedSubmissionType = submissionType
	}

	if err := s.prepare(contest); err != nil {
		return nil, err
	}
	if err := s.contests.Update(contest); err != nil {
		return nil, err
	}

	s.log.Info().
		Uint("contest_id", contest.ID).
		Uint("user_id", caller.ID).
		Msg("Contest updated")

	return contest, nil
}

// Delete removes a contest with its submissions. Only the creator and admins may delete.
func (s *Service) Delete(_ context.Context, caller *models.User, id uint) error {
	contest, err := s.contests.GetByID(id)
	if err != nil {
		return err
	}
	if !permission.CanEditOrDelete(caller, contest) {
		return apperr.Forbidden("only the contest creator or an admin can delete this contest")
	}

	if err := s.contests.Delete(id); err != nil {
		return err
	}

	s.log.Info().
		Uint("contest_id", id).
		Uint("user_id", caller.ID).
		Msg("Contest deleted")
	return nil
}

// Get resolves a contest by numeric id or by slug.
func (s *Service) Get(_ context.Context, ref string) (*models.Contest, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperr.Validation("contest id or slug is required")
	}

	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		contest, err := s.contests.GetByID(uint(id))
		if err == nil || !apperr.Is(err, apperr.KindNotFound) {
			return contest, err
		}
	}
	return s.contests.GetBySlug(strings.ToLower(ref))
}

// List returns the contests of a category: all or one of the statuses.
func (s *Service) List(_ context.Context, category string) ([]View, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = CategoryAll
	}

	var want models.ContestStatus
	switch models.ContestStatus(category) {
	case models.ContestStatusUpcoming, models.ContestStatusCurrent, models.ContestStatusPast, models.ContestStatusUnknown:
		want = models.ContestStatus(category)
	default:
		if category != CategoryAll {
			return nil, apperr.Validation("category must be one of all, current, upcoming, past, unknown")
		}
	}

	contests, err := s.contests.List()
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]View, 0, len(contests))
	for i := range contests {
		status := contests[i].Status(now)
		if want != "" && status != want {
			continue
		}
		views = append(views, View{Contest: &contests[i], Status: status})
	}
	return views, nil
}

// prepare validates the merged contest, derives its slug and checks uniqueness.
func (s *Service) prepare(contest *models.Contest) error {
	if err := validate(contest); err != nil {
		return err
	}

	contest.Slug = models.Slugify(contest.Name)
	if contest.Slug == "" {
		return apperr.Validation("name must contain letters or digits")
	}

	taken, err := s.contests.NameTaken(contest.Name, contest.Slug, contest.ID)
	if err != nil {
		return err
	}
	if taken {
		return apperr.Conflict("a contest with this name already exists")
	}
	return nil
}

func validate(c *models.Contest) error {
	switch {
	case c.Name == "":
		return apperr.Validation("name is required")
	case c.ProjectName == "":
		return apperr.Validation("project_name is required")
	case len(c.JuryMembers) == 0:
		return apperr.Validation("at least one jury member is required")
	case c.StartDate != nil && c.EndDate != nil && !c.EndDate.After(*c.StartDate):
		return apperr.Validation("end_date must be after start_date")
	case c.MarksSettingAccepted < 0 || c.MarksSettingRejected < 0:
		return apperr.Validation("marks must not be negative")
	}

	if c.CodeLink != "" {
		u, err := url.Parse(c.CodeLink)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return apperr.Validation("code_link must be an absolute http(s) URL")
		}
	}
	return nil
}

// parseDate accepts RFC 3339 timestamps and plain dates. A plain end date
// covers the whole day. Empty input means no date.
func parseDate(s string, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}

	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		// Last representable instant of the day at database (microsecond) precision.
		t = t.Add(24*time.Hour - time.Microsecond)
	}
	return &t, nil
}
