package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/sandeepkv93/tenant-session-core/internal/service"
)

// SessionJanitor revokes expired sessions on demand or on a cron schedule.
type SessionJanitor struct {
	sessions *service.SessionService
	logger   *slog.Logger
}

func NewSessionJanitor(sessions *service.SessionService, logger *slog.Logger) *SessionJanitor {
	return &SessionJanitor{sessions: sessions, logger: logger}
}

func (j *SessionJanitor) RunOnce(ctx context.Context) (int64, error) {
	return j.sessions.CleanupExpired(ctx)
}

// Schedule runs the cleanup on a cron schedule until ctx is done. Overlapping
// runs are skipped.
func (j *SessionJanitor) Schedule(ctx context.Context, schedule string) error {
	logger := cronLogger{j.logger}
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(schedule, func() {
		if _, err := j.RunOnce(ctx); err != nil {
			j.logger.ErrorContext(ctx, "scheduled session cleanup failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule session cleanup %q: %w", schedule, err)
	}
	c.Start()
	j.logger.InfoContext(ctx, "session cleanup scheduled", "schedule", schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
