package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/tutorbot/pkg/models"
)

// Default notification window, in UTC hours
const (
	DefaultNotificationStartHour = 8
	DefaultNotificationEndHour   = 20
)

// Notifier delivers a message to a learner outside of an exchange
type Notifier interface {
	SendReminder(ctx context.Context, userID string, text string) error
}

// ProfileSource finds learners who left a lesson unfinished
type ProfileSource interface {
	Stalled(ctx context.Context, before time.Time) ([]*models.UserProfile, error)
}

// Backuper copies the profile store somewhere safe
type Backuper interface {
	Backup(ctx context.Context, dir string) (string, error)
}

// LessonLookup resolves lesson titles for reminder texts
type LessonLookup interface {
	Lesson(id string) (*models.Lesson, bool)
}

// Config controls the background jobs
type Config struct {
	ReminderEvery time.Duration
	IdleAfter     time.Duration
	StartHour     int
	EndHour       int
	BackupEvery   time.Duration
	BackupDir     string
	JobTimeout    time.Duration
}

// DefaultConfig returns hourly reminders for lessons idle for a day and a daily backup
func DefaultConfig() Config {
	return Config{
		ReminderEvery: time.Hour,
		IdleAfter:     24 * time.Hour,
		StartHour:     DefaultNotificationStartHour,
		EndHour:       DefaultNotificationEndHour,
		BackupEvery:   24 * time.Hour,
		BackupDir:     "backups",
		JobTimeout:    time.Minute,
	}
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	cfg       Config
	profiles  ProfileSource
	notifier  Notifier
	lessons   LessonLookup
	backup    Backuper
	log       *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	reminded map[string]time.Time
}

// New creates a new scheduler instance. lessons and backup may be nil.
func New(cfg Config, profiles ProfileSource, notifier Notifier, lessons LessonLookup, backup Backuper, log *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		cfg:       cfg,
		profiles:  profiles,
		notifier:  notifier,
		lessons:   lessons,
		backup:    backup,
		log:       log,
		now:       time.Now,
		reminded:  make(map[string]time.Time),
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() error {
	s.scheduler.SingletonModeAll()

	if s.cfg.ReminderEvery > 0 {
		if _, err := s.scheduler.Every(s.cfg.ReminderEvery).WaitForSchedule().Do(s.remindJob); err != nil {
			return fmt.Errorf("failed to schedule reminders: %w", err)
		}
	}
	if s.backup != nil && s.cfg.BackupEvery > 0 {
		if _, err := s.scheduler.Every(s.cfg.BackupEvery).WaitForSchedule().Do(s.backupJob); err != nil {
			return fmt.Errorf("failed to schedule backup: %w", err)
		}
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	s.log.Info("scheduler started", slog.Int("jobs", len(s.scheduler.Jobs())))
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) remindJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()
	if _, err := s.RemindStalled(ctx); err != nil {
		s.log.Error("reminder job failed", slog.Any("error", err))
	}
}

func (s *Scheduler) backupJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()
	path, err := s.backup.Backup(ctx, s.cfg.BackupDir)
	if err != nil {
		s.log.Error("backup job failed", slog.Any("error", err))
		return
	}
	if path != "" {
		s.log.Info("profile store backed up", slog.String("path", path))
	}
}

// RemindStalled nudges learners idle in an unfinished lesson. Each learner
// is reminded at most once per stall. It returns the number of reminders sent.
func (s *Scheduler) RemindStalled(ctx context.Context) (int, error) {
	now := s.now().UTC()
	if hour := now.Hour(); hour < s.cfg.StartHour || hour > s.cfg.EndHour {
		s.log.Debug("outside notification hours, skipping reminders",
			slog.Int("hour", hour), slog.Int("start", s.cfg.StartHour), slog.Int("end", s.cfg.EndHour))
		return 0, nil
	}

	stalled, err := s.profiles.Stalled(ctx, now.Add(-s.cfg.IdleAfter))
	if err != nil {
		return 0, fmt.Errorf("failed to find stalled learners: %w", err)
	}

	sent := 0
	for _, p := range stalled {
		if s.alreadyReminded(p) {
			continue
		}
		if err := s.notifier.SendReminder(ctx, p.UserID, s.reminderText(p)); err != nil {
			s.log.Warn("failed to send reminder", slog.String("user_id", p.UserID), slog.Any("error", err))
			continue
		}
		s.markReminded(p)
		sent++
	}
	if sent > 0 {
		s.log.Info("reminders sent", slog.Int("count", sent))
	}
	return sent, nil
}

func (s *Scheduler) reminderText(p *models.UserProfile) string {
	title := "your lesson"
	if s.lessons != nil {
		if l, ok := s.lessons.Lesson(p.LessonID); ok {
			title = fmt.Sprintf("%q", l.Title)
		}
	}
	return fmt.Sprintf("⏰ You still have %s waiting. Send your answer or \"start lesson\" to see the exercise again.", title)
}

// alreadyReminded reports whether p was reminded after its last update
func (s *Scheduler) alreadyReminded(p *models.UserProfile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.reminded[p.UserID]
	return ok && !at.Before(p.UpdatedAt)
}

func (s *Scheduler) markReminded(p *models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminded[p.UserID] = s.now()
}
