package service

import (
	"context"
	"time"

	"surge-service/pkg/logger"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type job struct {
	name  string
	every time.Duration
	run   func()
}

func (c *Container) jobs(ctx context.Context) []job {
	jobs := []job{
		{
			name:  "heartbeat",
			every: c.cfg.Heartbeat.Interval,
			run: func() {
				if dropped := c.Registry.HeartbeatTick(); dropped > 0 {
					logger.Log.Info("heartbeat dropped dead connections", zap.Int("count", dropped))
				}
			},
		},
		{
			name:  "queue-sweep",
			every: c.cfg.Matchmaking.SweepInterval,
			run: func() {
				if removed := c.Match.SweepStale(); removed > 0 {
					logger.Log.Info("stale queue entries evicted", zap.Int("count", removed))
				}
			},
		},
	}
	if c.Settle != nil {
		jobs = append(jobs, job{
			name:  "settlement-resume",
			every: time.Minute,
			run: func() {
				if _, err := c.Settle.ResumeOpen(ctx); err != nil {
					logger.Log.Warn("settlement resume failed", zap.Error(err))
				}
			},
		})
	}
	return jobs
}

func (c *Container) startScheduler(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	for _, j := range c.jobs(ctx) {
		if j.every <= 0 {
			logger.Log.Warn("job disabled", zap.String("job", j.name))
			continue
		}
		_, err := sched.NewJob(
			gocron.DurationJob(j.every),
			gocron.NewTask(j.run),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return err
		}
	}

	sched.Start()
	c.scheduler = sched
	logger.Log.Info("scheduler started")
	return nil
}
