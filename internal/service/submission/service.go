// Package submission handles article submissions, jury reviews and
// article metadata refreshes.
package submission

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wikicontest/wikicontest/internal/apperr"
	"github.com/wikicontest/wikicontest/internal/mediawiki"
	prommetrics "github.com/wikicontest/wikicontest/internal/metrics"
	"github.com/wikicontest/wikicontest/internal/models"
	"github.com/wikicontest/wikicontest/internal/repository"
	"github.com/wikicontest/wikicontest/internal/service/permission"
	"github.com/wikicontest/wikicontest/pkg/logger"
)

// Repository interface for submission operations.
type Repository interface {
	Create(submission *models.Submission) error
	GetByID(id uint) (*models.Submission, error)
	ListByContest(contestID uint) ([]models.Submission, error)
	ListPending(contestIDs []uint) ([]models.Submission, error)
	ExistsInContest(contestID uint, articleLink string) (bool, error)
	Review(id uint, status models.SubmissionStatus, score int, reviewerID uint, comment string, reviewedAt time.Time) error
	UpdateMetadata(submission *models.Submission) error
	CountByStatusForUser(userID uint) ([]repository.StatusCount, error)
}

// ContestRepository interface for the contest lookups submissions need.
type ContestRepository interface {
	GetByID(id uint) (*models.Contest, error)
	List() ([]models.Contest, error)
	ListByJuryMember(username string) ([]models.Contest, error)
}

// MetadataFetcher looks up article metadata on the article's wiki.
type MetadataFetcher interface {
	FetchArticle(ctx context.Context, link string) (*mediawiki.ArticleMetadata, error)
}

// SubmitInput is the payload of a new submission.
type SubmitInput struct {
	ArticleTitle string `json:"article_title"`
	ArticleLink  string `json:"article_link"`
}

// ReviewInput is a jury decision.
type ReviewInput struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

// Stats summarizes a user's submissions.
type Stats struct {
	Total         int64                    `json:"total"`
	TotalScore    int64                    `json:"total_score"`
	AcceptedScore int64                    `json:"accepted_score"`
	ByStatus      []repository.StatusCount `json:"by_status"`
}

// RefreshResult counts the outcome of a metadata refresh.
type RefreshResult struct {
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// Service handles submissions and reviews.
type Service struct {
	submissions Repository
	contests    ContestRepository
	fetcher     MetadataFetcher
	wikis       mediawiki.HostAllowlist
	now         func() time.Time
	log         *logger.Logger
}

// NewService creates a new submission service with concrete dependencies.
func NewService(
	submissions *repository.SubmissionRepository,
	contests *repository.ContestRepository,
	fetcher *mediawiki.Client,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(submissions, contests, fetcher, fetcher.AllowedHosts(), time.Now, log)
}

// NewServiceWithInterfaces creates a new submission service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	submissions Repository,
	contests ContestRepository,
	fetcher MetadataFetcher,
	wikis mediawiki.HostAllowlist,
	now func() time.Time,
	log *logger.Logger,
) *Service {
	return &Service{
		submissions: submissions,
		contests:    contests,
		fetcher:     fetcher,
		wikis:       wikis,
		now:         now,
		log:         log,
	}
}

// Submit enters an article into a running contest.
func (s *Service) Submit(_ context.Context, user *models.User, contestID uint, in SubmitInput) (*models.Submission, error) {
	contest, err := s.contests.GetByID(contestID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if status := contest.Status(now); status != models.ContestStatusCurrent {
		return nil, apperr.State("contest is not accepting submissions (status: " + string(status) + ")")
	}

	title := strings.TrimSpace(in.ArticleTitle)
	link := strings.TrimSpace(in.ArticleLink)
	if title == "" {
		return nil, apperr.Validation("article_title is required")
	}
	if _, err := mediawiki.ParseArticleLink(link, s.wikis); err != nil {
		if errors.Is(err, mediawiki.ErrHostNotAllowed) {
			return nil, apperr.Validation("article_link must point to an allowed wiki")
		}
		return nil, apperr.Validation("article_link must be an absolute http(s) wiki article URL")
	}

	exists, err := s.submissions.ExistsInContest(contest.ID, link)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict("this article has already been submitted to the contest")
	}

	submission := &models.Submission{
		ContestID:    contest.ID,
		UserID:       user.ID,
		ArticleTitle: title,
		ArticleLink:  link,
		Status:       models.SubmissionStatusPending,
		Score:        0,
		SubmittedAt:  now,
	}
	if err := s.submissions.Create(submission); err != nil {
		return nil, err
	}

	prommetrics.RecordSubmissionCreated()
	s.log.Info().
		Uint("submission_id", submission.ID).
		Uint("contest_id", contest.ID).
		Uint("user_id", user.ID).
		Msg("Article submitted")

	return submission, nil
}

// Review records the decision of a jury member or admin. Only the first
// decision on a submission is kept; later attempts get a state error.
func (s *Service) Review(_ context.Context, reviewer *models.User, submissionID uint, in ReviewInput) (*models.Submission, error) {
	submission, err := s.submissions.GetByID(submissionID)
	if err != nil {
		return nil, err
	}

	contest, err := s.contestOf(submission)
	if err != nil {
		return nil, err
	}
	if !permission.CanReview(reviewer, contest) {
		return nil, apperr.Forbidden("only jury members or admins can review submissions")
	}

	decision, err := models.ParseDecision(in.Status)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "status must be accepted or rejected", err)
	}
	if submission.IsReviewed() {
		return nil, apperr.State("submission already reviewed")
	}

	score := contest.MarksFor(decision)
	if err := s.submissions.Review(submission.ID, decision, score, reviewer.ID, strings.TrimSpace(in.Comment), s.now()); err != nil {
		return nil, err
	}

	prommetrics.RecordSubmissionReviewed(string(decision))
	s.log.Info().
		Uint("submission_id", submission.ID).
		Uint("contest_id", contest.ID).
		Uint("reviewer_id", reviewer.ID).
		Str("decision", string(decision)).
		Int("score", score).
		Msg("Submission reviewed")

	return s.submissions.GetByID(submission.ID)
}

// List returns the submissions of a contest to its creator and jury.
func (s *Service) List(_ context.Context, caller *models.User, contestID uint) ([]models.Submission, error) {
	contest, err := s.contests.GetByID(contestID)
	if err != nil {
		return nil, err
	}
	if !permission.CanViewSubmissions(caller, contest) {
		return nil, apperr.Forbidden("only the contest creator or jury can view submissions")
	}
	return s.submissions.ListByContest(contest.ID)
}

// Get returns a submission to its author, the contest's viewers and reviewers.
func (s *Service) Get(_ context.Context, caller *models.User, id uint) (*models.Submission, error) {
	submission, err := s.submissions.GetByID(id)
	if err != nil {
		return nil, err
	}
	if submission.UserID == caller.ID {
		return submission, nil
	}

	contest, err := s.contestOf(submission)
	if err != nil {
		return nil, err
	}
	if !permission.CanViewSubmissions(caller, contest) && !permission.CanReview(caller, contest) {
		return nil, apperr.Forbidden("you cannot view this submission")
	}
	return submission, nil
}

// Pending returns the pending submissions caller may review.
func (s *Service) Pending(_ context.Context, caller *models.User) ([]models.Submission, error) {
	if caller.Capabilities().ReviewAny {
		return s.submissions.ListPending(nil)
	}

	contests, err := s.contests.ListByJuryMember(caller.Username)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(contests))
	for _, c := range contests {
		ids = append(ids, c.ID)
	}
	return s.submissions.ListPending(ids)
}

// Stats returns caller's submission counts by status and score totals.
func (s *Service) Stats(_ context.Context, caller *models.User) (*Stats, error) {
	counts, err := s.submissions.CountByStatusForUser(caller.ID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{ByStatus: counts}
	for _, c := range counts {
		stats.Total += c.Count
		stats.TotalScore += c.Score
		if c.Status == models.SubmissionStatusAccepted {
			stats.AcceptedScore += c.Score
		}
	}
	return stats, nil
}

// RefreshMetadata fetches article metadata for every submission of a contest.
// Failures are counted per submission and do not abort the run.
func (s *Service) RefreshMetadata(ctx context.Context, caller *models.User, contestID uint) (*RefreshResult, error) {
	contest, err := s.contests.GetByID(contestID)
	if err != nil {
		return nil, err
	}
	if !permission.CanViewSubmissions(caller, contest) && !permission.CanEditOrDelete(caller, contest) {
		return nil, apperr.Forbidden("you cannot refresh this contest's submissions")
	}

	result, err := s.refreshContest(ctx, contest)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Uint("contest_id", contest.ID).
		Uint("user_id", caller.ID).
		Int("updated", result.Updated).
		Int("failed", result.Failed).
		Msg("Refreshed submission metadata")
	return result, nil
}

// RefreshAllCurrent refreshes metadata for every running contest.
func (s *Service) RefreshAllCurrent(ctx context.Context) (*RefreshResult, error) {
	contests, err := s.contests.List()
	if err != nil {
		return nil, err
	}

	total := &RefreshResult{}
	now := s.now()
	for i := range contests {
		if contests[i].Status(now) != models.ContestStatusCurrent {
			continue
		}
		result, err := s.refreshContest(ctx, &contests[i])
		if err != nil {
			return total, err
		}
		total.Updated += result.Updated
		total.Failed += result.Failed
	}
	return total, nil
}

func (s *Service) refreshContest(ctx context.Context, contest *models.Contest) (*RefreshResult, error) {
	submissions, err := s.submissions.ListByContest(contest.ID)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{}
	for i := range submissions {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		sub := &submissions[i]
		if err := s.refreshOne(ctx, sub); err != nil {
			result.Failed++
			prommetrics.RecordMetadataRefresh("failed")
			s.log.Warn().
				Err(err).
				Uint("submission_id", sub.ID).
				Str("article_link", sub.ArticleLink).
				Msg("Failed to refresh article metadata")
			continue
		}
		result.Updated++
		prommetrics.RecordMetadataRefresh("updated")
	}
	return result, nil
}

func (s *Service) refreshOne(ctx context.Context, sub *models.Submission) error {
	meta, err := s.fetcher.FetchArticle(ctx, sub.ArticleLink)
	if err != nil {
		return err
	}

	fetchedAt := s.now()
	createdAt := meta.CreatedAt
	latestAt := meta.LatestRevisionAt
	size := meta.Size
	words := meta.WordCount

	sub.ArticleAuthor = meta.Creator
	sub.ArticleCreatedAt = &createdAt
	sub.ArticleSize = &size
	sub.ArticleWordCount = &words
	sub.LatestRevisionAuthor = meta.LatestRevisionAuthor
	sub.LatestRevisionAt = &latestAt
	sub.MetadataFetchedAt = &fetchedAt

	return s.submissions.UpdateMetadata(sub)
}

// contestOf returns the preloaded contest of a submission, loading it when absent.
func (s *Service) contestOf(submission *models.Submission) (*models.Contest, error) {
	if submission.Contest != nil {
		return submission.Contest, nil
	}
	return s.contests.GetByID(submission.ContestID)
}
