package service

import (
	"context"
	"time"

	"surge-service/internal/config"
	"surge-service/internal/service/announce"
	"surge-service/internal/service/match"
	"surge-service/internal/service/registry"
	"surge-service/internal/service/session"
	"surge-service/internal/service/settle"
	"surge-service/pkg/logger"

	"github.com/go-co-op/gocron/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Container struct {
	Registry  *registry.Registry
	Sessions  *session.Store
	Match     *match.Service
	Settle    *settle.Service     // nil unless settlement is enabled
	Announcer *announce.Announcer // nil unless redis is enabled

	cfg       *config.Config
	scheduler gocron.Scheduler
}

type Option func(*options)

type options struct {
	bridge settle.Bridge
}

// WithBridge replaces the HTTP settlement bridge.
func WithBridge(b settle.Bridge) Option {
	return func(o *options) { o.bridge = b }
}

func NewContainer(cfg *config.Config, db *gorm.DB, rdb *redis.Client, opts ...Option) *Container {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	conns := registry.New()
	sessions := session.NewStore(conns, session.Config{
		FinishedGrace:  cfg.Session.FinishedGrace,
		TurnBasedGames: cfg.Session.TurnBasedGames,
	})
	queue := match.NewService(sessions, match.Config{
		StartDelay: cfg.Matchmaking.StartDelay,
		StaleAfter: cfg.Matchmaking.StaleAfter,
	})

	c := &Container{
		Registry: conns,
		Sessions: sessions,
		Match:    queue,
		cfg:      cfg,
	}

	conns.OnUnregister(func(conn registry.Conn) {
		queue.LeaveByConn(conn, "disconnect")
	})

	if cfg.Settlement.Enabled && db != nil {
		bridge := o.bridge
		if bridge == nil {
			bridge = settle.NewHTTPBridge(settle.HTTPConfig{
				BaseURL: cfg.Settlement.BaseURL,
				APIKey:  cfg.Settlement.APIKey,
				Timeout: cfg.Settlement.Timeout,
			})
		}
		c.Settle = settle.NewService(db, bridge, settle.Config{
			Workers:   cfg.Settlement.Workers,
			QueueSize: cfg.Settlement.QueueSize,
			Retry:     retryPolicy(cfg.Settlement.Retry),
			Confirm:   retryPolicy(cfg.Settlement.Confirm),
		})
		sessions.OnFinish(func(res session.Result) {
			if err := c.Settle.Enqueue(context.Background(), res); err != nil {
				logger.Log.Error("failed to hand off settlement", zap.String("matchID", res.MatchID), zap.Error(err))
			}
		})
	}

	if rdb != nil {
		c.Announcer = announce.NewAnnouncer(rdb, cfg.Redis.ResultChannel)
		sessions.OnFinish(func(res session.Result) {
			_ = c.Announcer.Finished(context.Background(), res)
		})
	}

	return c
}

func retryPolicy(rc config.RetryConfig) settle.RetryPolicy {
	return settle.RetryPolicy{
		MaxAttempts:  rc.MaxAttempts,
		InitialDelay: rc.InitialDelay,
		MaxDelay:     rc.MaxDelay,
		Multiplier:   rc.Multiplier,
	}
}

func (c *Container) Start(ctx context.Context) error {
	if c.Settle != nil {
		if err := c.Settle.Start(ctx); err != nil {
			return err
		}
	}
	return c.startScheduler(ctx)
}

// Stop halts the periodic jobs and drains the settlement workers.
func (c *Container) Stop() {
	if c.scheduler != nil {
		if err := c.scheduler.Shutdown(); err != nil {
			logger.Log.Warn("scheduler shutdown", zap.Error(err))
		}
	}
	if c.Settle != nil {
		c.Settle.Stop()
	}
}

type Health struct {
	Status         string               `json:"status"`
	ActiveQueues   int                  `json:"activeQueues"`
	TotalPlayers   int                  `json:"totalPlayers"`
	ActiveSessions int                  `json:"activeGames"`
	Connections    int                  `json:"connections"`
	Queues         []match.QueueSummary `json:"queues"`
	Games          []session.Summary    `json:"games"`
	Timestamp      int64                `json:"timestamp"`
}

func (c *Container) Health() Health {
	stats := c.Match.Stats()
	games := c.Sessions.Health()
	return Health{
		Status:         "healthy",
		ActiveQueues:   stats.ActiveQueues,
		TotalPlayers:   stats.TotalPlayers,
		ActiveSessions: len(games),
		Connections:    c.Registry.Count(),
		Queues:         stats.Queues,
		Games:          games,
		Timestamp:      time.Now().UnixMilli(),
	}
}
