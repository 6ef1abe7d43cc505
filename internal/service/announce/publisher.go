package announce

import (
	"context"
	"encoding/json"
	"time"

	"surge-service/internal/service/session"
	"surge-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Publisher is the slice of the redis client the announcer needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Announcer fans finished results out on a redis channel for the
// leaderboard store. Delivery is best-effort.
type Announcer struct {
	pub     Publisher
	channel string
	timeout time.Duration
}

func NewAnnouncer(pub Publisher, channel string) *Announcer {
	return &Announcer{pub: pub, channel: channel, timeout: 3 * time.Second}
}

type finishedEvent struct {
	Event string `json:"event"`
	session.Result
}

func (a *Announcer) Finished(ctx context.Context, res session.Result) error {
	payload, err := json.Marshal(finishedEvent{Event: "match_finished", Result: res})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	receivers, err := a.pub.Publish(ctx, a.channel, payload).Result()
	if err != nil {
		logger.Log.Warn("failed to announce finished match",
			zap.String("matchID", res.MatchID),
			zap.String("channel", a.channel),
			zap.Error(err),
		)
		return err
	}
	logger.Log.Debug("announced finished match",
		zap.String("matchID", res.MatchID),
		zap.Int64("receivers", receivers),
	)
	return nil
}
