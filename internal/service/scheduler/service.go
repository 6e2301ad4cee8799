// Package scheduler runs the periodic jury reminder and article metadata refresh jobs.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wikicontest/wikicontest/internal/config"
	"github.com/wikicontest/wikicontest/internal/mattermost"
	prommetrics "github.com/wikicontest/wikicontest/internal/metrics"
	"github.com/wikicontest/wikicontest/internal/models"
	"github.com/wikicontest/wikicontest/internal/repository"
	"github.com/wikicontest/wikicontest/internal/service/submission"
	"github.com/wikicontest/wikicontest/pkg/logger"
)

// Job names used as metric labels.
const (
	JobJuryReminder    = "jury_reminder"
	JobMetadataRefresh = "metadata_refresh"
)

// ContestRepository interface for contest listing.
type ContestRepository interface {
	List() ([]models.Contest, error)
}

// PendingCounter counts the pending submissions of a contest.
type PendingCounter interface {
	CountPendingByContest(contestID uint) (int64, error)
}

// Notifier delivers jury reminders.
type Notifier interface {
	SendJuryReminder(ctx context.Context, reminders []mattermost.JuryReminder) error
}

// MetadataRefresher refreshes article metadata for running contests.
type MetadataRefresher interface {
	RefreshAllCurrent(ctx context.Context) (*submission.RefreshResult, error)
}

// Service handles cron scheduling of background jobs.
type Service struct {
	config    *config.Config
	contests  ContestRepository
	pending   PendingCounter
	notifier  Notifier
	refresher MetadataRefresher
	now       func() time.Time
	log       *logger.Logger
	cron      *cron.Cron
}

// NewService creates a new scheduler service.
func NewService(
	cfg *config.Config,
	contests *repository.ContestRepository,
	submissions *repository.SubmissionRepository,
	notifier *mattermost.Client,
	refresher *submission.Service,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(cfg, contests, submissions, notifier, refresher, time.Now, log)
}

// NewServiceWithInterfaces creates a new scheduler service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	cfg *config.Config,
	contests ContestRepository,
	pending PendingCounter,
	notifier Notifier,
	refresher MetadataRefresher,
	now func() time.Time,
	log *logger.Logger,
) *Service {
	return &Service{
		config:    cfg,
		contests:  contests,
		pending:   pending,
		notifier:  notifier,
		refresher: refresher,
		now:       now,
		log:       log,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Scheduler.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.Scheduler.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Scheduler.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	reminderExpr, err := s.buildCronExpression()
	if err != nil {
		return fmt.Errorf("failed to build cron expression: %w", err)
	}

	_, err = s.cron.AddFunc(reminderExpr, func() {
		s.run(JobJuryReminder, s.remindJury)
	})
	if err != nil {
		return fmt.Errorf("failed to register jury reminder job: %w", err)
	}

	if s.config.Scheduler.RefreshSchedule != "" && s.refresher != nil {
		_, err = s.cron.AddFunc(s.config.Scheduler.RefreshSchedule, func() {
			s.run(JobMetadataRefresh, s.refreshMetadata)
		})
		if err != nil {
			return fmt.Errorf("failed to register metadata refresh job: %w", err)
		}
		s.log.Info().
			Str("schedule", s.config.Scheduler.RefreshSchedule).
			Msg("Metadata refresh job registered")
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("schedule", reminderExpr).
		Str("timezone", s.config.Scheduler.Timezone).
		Str("time", s.config.Scheduler.Time).
		Bool("skip_weekends", s.config.Scheduler.SkipWeekends).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler, waiting for running jobs.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// buildCronExpression generates the reminder cron expression from config.
func (s *Service) buildCronExpression() (string, error) {
	// Parse time string (format: "HH:MM")
	parts := strings.Split(s.config.Scheduler.Time, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format %q, expected HH:MM", s.config.Scheduler.Time)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %q", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %q", parts[1])
	}

	// Format: "minute hour day month weekday"
	if s.config.Scheduler.SkipWeekends {
		return fmt.Sprintf("%d %d * * 1-5", minute, hour), nil
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// run executes one job and records its outcome.
func (s *Service) run(job string, fn func(ctx context.Context) error) {
	start := time.Now()
	defer func() {
		prommetrics.ObserveSchedulerJobDuration(job, time.Since(start).Seconds())
		prommetrics.SetSchedulerLastRun(job)
	}()

	s.log.Info().Str("job", job).Msg("Running scheduled job")

	if err := fn(context.Background()); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job).
			Dur("duration", time.Since(start)).
			Msg("Scheduled job failed")
		prommetrics.RecordSchedulerJobRun(job, "error")
		return
	}

	prommetrics.RecordSchedulerJobRun(job, "success")
	s.log.Info().
		Str("job", job).
		Dur("duration", time.Since(start)).
		Msg("Scheduled job completed")
}

// remindJury notifies the jury of every running contest with pending submissions.
func (s *Service) remindJury(ctx context.Context) error {
	contests, err := s.contests.List()
	if err != nil {
		return fmt.Errorf("failed to list contests: %w", err)
	}

	reminders, err := buildReminders(contests, s.pending, s.now(), s.config.Server.FrontendURL)
	if err != nil {
		return err
	}

	for _, r := range reminders {
		prommetrics.SetPendingSubmissions(r.ContestName, int(r.Pending))
	}

	if len(reminders) == 0 {
		s.log.Debug().Msg("No pending submissions to remind about")
		return nil
	}

	if err := s.notifier.SendJuryReminder(ctx, reminders); err != nil {
		prommetrics.RecordNotification("failed")
		return fmt.Errorf("failed to send jury reminder: %w", err)
	}

	prommetrics.RecordNotification("sent")
	s.log.Info().
		Int("contests", len(reminders)).
		Msg("Sent jury reminder")
	return nil
}

func (s *Service) refreshMetadata(ctx context.Context) error {
	result, err := s.refresher.RefreshAllCurrent(ctx)
	if err != nil {
		return err
	}

	s.log.Info().
		Int("updated", result.Updated).
		Int("failed", result.Failed).
		Msg("Refreshed metadata for running contests")
	return nil
}
