package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "surge",
		Name:      "connections",
		Help:      "Live websocket connections in the registry.",
	})

	QueuedPlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "surge",
		Name:      "queued_players",
		Help:      "Players waiting across all matchmaking queues.",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "surge",
		Name:      "active_sessions",
		Help:      "Match sessions held in memory, finished ones included until eviction.",
	})

	Pairings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "surge",
		Name:      "pairings_total",
		Help:      "Successful matchmaking pairings.",
	})

	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "surge",
		Name:      "broadcasts_total",
		Help:      "Session broadcasts by message type.",
	}, []string{"type"})

	ProtocolErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "surge",
		Name:      "protocol_errors_total",
		Help:      "ERROR replies sent to clients by error code.",
	}, []string{"code"})

	SettlementAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "surge",
		Name:      "settlement_attempts_total",
		Help:      "Settlement bridge calls by operation and outcome.",
	}, []string{"op", "outcome"})

	SettlementDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "surge",
		Name:      "settlement_duration_seconds",
		Help:      "Wall time from handoff to a terminal settlement status.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"status"})
)
