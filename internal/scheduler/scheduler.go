package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/lingua/internal/logger"
	"github.com/example/lingua/pkg/models"
)

// Default notification window, inclusive, in UTC hours
const (
	DefaultNotificationStartHour = 8
	DefaultNotificationEndHour   = 22
)

// ReviewSource is the part of the review scheduler the jobs need
type ReviewSource interface {
	Decks(ctx context.Context) ([]models.Deck, error)
	DueCount(ctx context.Context, deckID string, asOf time.Time) (int, error)
	// Refresh re-evaluates every live due-count subscription
	Refresh(ctx context.Context) error
}

// Notifier interface for sending notifications
type Notifier interface {
	SendReminder(ctx context.Context, deck models.Deck, count int) error
}

// Config controls job frequency and the reminder window
type Config struct {
	RefreshInterval time.Duration
	StartHour       int
	EndHour         int
	JobTimeout      time.Duration
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	source    ReviewSource
	notifier  Notifier
	cfg       Config
	log       *logger.Logger
	now       func() time.Time
	ctx       context.Context
}

// New creates a new scheduler instance. notifier may be nil, which disables reminders.
func New(source ReviewSource, notifier Notifier, cfg Config, log *logger.Logger) *Scheduler {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		source:    source,
		notifier:  notifier,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
		ctx:       context.Background(),
	}
}

// Start begins running all scheduled tasks. Jobs stop using ctx once it is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx

	if s.cfg.RefreshInterval > 0 {
		if _, err := s.scheduler.Every(s.cfg.RefreshInterval).Do(s.refresh); err != nil {
			return fmt.Errorf("failed to schedule due refresh: %w", err)
		}
	}
	if s.notifier != nil {
		if _, err := s.scheduler.Every(1).Hour().Do(s.remind); err != nil {
			return fmt.Errorf("failed to schedule reminders: %w", err)
		}
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	s.log.Info("scheduler started",
		"refresh_interval", s.cfg.RefreshInterval.String(),
		"reminders", s.notifier != nil,
		"jobs", len(s.scheduler.Jobs()),
	)
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) refresh() {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.JobTimeout)
	defer cancel()
	if err := s.source.Refresh(ctx); err != nil {
		s.log.Warn("due refresh failed", "error", err)
	}
}

func (s *Scheduler) remind() {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.JobTimeout)
	defer cancel()
	if _, err := s.SendReminders(ctx); err != nil {
		s.log.Warn("reminders failed", "error", err)
	}
}

// InNotificationWindow reports whether reminders may be sent at hour.
// A window whose start is after its end wraps past midnight.
func (s *Scheduler) InNotificationWindow(hour int) bool {
	start, end := s.cfg.StartHour, s.cfg.EndHour
	if start <= end {
		return hour >= start && hour <= end
	}
	return hour >= start || hour <= end
}

// SendReminders notifies about every active deck with due cards and returns
// how many reminders went out. Outside the notification window it does nothing.
func (s *Scheduler) SendReminders(ctx context.Context) (int, error) {
	if s.notifier == nil {
		return 0, nil
	}
	now := s.now().UTC()
	if !s.InNotificationWindow(now.Hour()) {
		s.log.Debug("outside notification hours, skipping reminders",
			"hour", now.Hour(),
			"start", s.cfg.StartHour,
			"end", s.cfg.EndHour,
		)
		return 0, nil
	}

	decks, err := s.source.Decks(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list decks: %w", err)
	}

	var (
		sent int
		errs []error
	)
	for _, deck := range decks {
		count, err := s.source.DueCount(ctx, deck.ID, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("deck %s: %w", deck.ID, err))
			continue
		}
		if count == 0 {
			continue
		}
		if err := s.notifier.SendReminder(ctx, deck, count); err != nil {
			errs = append(errs, fmt.Errorf("deck %s: %w", deck.ID, err))
			continue
		}
		sent++
	}
	s.log.Info("reminders sent", "sent", sent, "decks", len(decks), "failed", len(errs))
	return sent, errors.Join(errs...)
}
