package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

// ValidateSchedule accepts a standard five-field cron expression.
func ValidateSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("invalid cron schedule: cannot be empty")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}
	return nil
}

type Runner interface {
	Run(ctx context.Context) (Report, error)
}

// Scheduler rebuilds relationships on a cron schedule inside the server.
type Scheduler struct {
	log     *logger.Logger
	cron    *cron.Cron
	runner  Runner
	timeout time.Duration
	// OnDone is called after every successful scheduled build.
	OnDone func(ctx context.Context, rep Report)
}

func NewScheduler(log *logger.Logger, runner Runner, schedule string, timeout time.Duration) (*Scheduler, error) {
	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	s := &Scheduler{
		log:     log.With("service", "RelationshipScheduler"),
		cron:    cron.New(cron.WithLocation(time.UTC)),
		runner:  runner,
		timeout: timeout,
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("add cron job: %w", err)
	}
	s.log.Info("relationship rebuild scheduled", "schedule", schedule)
	return s, nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	rep, err := s.runner.Run(ctx)
	if errors.Is(err, ErrBuildInProgress) {
		s.log.Warn("skipping scheduled build, previous one still running")
		return
	}
	if err != nil {
		s.log.Error("scheduled relationship build failed", "error", err)
		return
	}
	if s.OnDone != nil {
		s.OnDone(ctx, rep)
	}
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for a running build to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
