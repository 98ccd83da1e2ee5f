// services/season_scheduler.go
package services

import (
	"context"
	"time"

	"warungsoal-progression/utils"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// SeasonScheduler periodically closes the active season once its end date passes.
type SeasonScheduler struct {
	Seasons  *SeasonController
	Interval time.Duration

	sched gocron.Scheduler
}

func NewSeasonScheduler(seasons *SeasonController, interval time.Duration) *SeasonScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SeasonScheduler{Seasons: seasons, Interval: interval}
}

// Start registers the rollover job and starts the scheduler. The job runs once
// immediately so a season that expired while the service was down closes on boot.
func (s *SeasonScheduler) Start(ctx context.Context) error {
	clock := s.Seasons.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	sched, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.Interval),
		gocron.NewTask(func() { s.RunOnce(ctx) }),
		gocron.WithName("season-rollover"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return err
	}

	sched.Start()
	s.sched = sched
	utils.LogInfo("⏱️ [Scheduler] season rollover check every %s", s.Interval)
	return nil
}

// RunOnce performs a single expiry check.
func (s *SeasonScheduler) RunOnce(ctx context.Context) {
	report, err := s.Seasons.ResetIfExpired(ctx)
	if err != nil {
		utils.LogError("[Scheduler] season rollover failed: %v", err)
		return
	}
	if report != nil {
		utils.LogSuccess("[Scheduler] rolled over %s", report)
	}
}

// Stop shuts the scheduler down, waiting for a running job to finish.
func (s *SeasonScheduler) Stop() error {
	if s.sched == nil {
		return nil
	}
	return s.sched.Shutdown()
}
