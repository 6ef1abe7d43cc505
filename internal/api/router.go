package api

import (
	"encoding/json"
	"net/http"
	"time"

	"surge-service/internal/config"
	"surge-service/internal/model"
	"surge-service/internal/service"
	"surge-service/internal/ws"
	"surge-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container, cfg *config.Config) {
	handler := &Handler{services: services}
	wsHandler := ws.NewHandler(
		services.Registry,
		ws.NewDispatcher(services.Registry, services.Match, services.Sessions),
		wsConfig(cfg),
	)

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong"})
	})
	r.GET("/health", handler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/settlements/:matchId", handler.GetSettlement)

	r.GET("/ws", wsHandler.ServeWS)
}

func wsConfig(cfg *config.Config) ws.Config {
	wc := ws.DefaultConfig()
	if cfg == nil {
		return wc
	}
	if cfg.Server.ReadLimit > 0 {
		wc.ReadLimit = cfg.Server.ReadLimit
	}
	if cfg.Server.SendBuffer > 0 {
		wc.SendBuffer = cfg.Server.SendBuffer
	}
	if cfg.Heartbeat.WriteWait > 0 {
		wc.WriteWait = cfg.Heartbeat.WriteWait
	}
	if cfg.Heartbeat.Interval > 0 {
		// two heartbeat cycles plus slack before the read deadline fires
		wc.PongWait = 2*cfg.Heartbeat.Interval + wc.WriteWait
	}
	return wc
}

// Health is served bare, without the response envelope, for monitors.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Health())
}

type settlementView struct {
	MatchID      string                 `json:"matchId"`
	GameType     string                 `json:"gameType"`
	Stake        string                 `json:"stake"`
	Player1      string                 `json:"player1"`
	Player2      string                 `json:"player2"`
	Player1Score *int                   `json:"player1Score"`
	Player2Score *int                   `json:"player2Score"`
	Winner       *string                `json:"winner"`
	Draw         bool                   `json:"draw"`
	Status       model.SettlementStatus `json:"status"`
	Attempts     int                    `json:"attempts"`
	LastError    string                 `json:"lastError,omitempty"`
	TxHashes     json.RawMessage        `json:"txHashes,omitempty"`
	OnChain      json.RawMessage        `json:"onChain,omitempty"`
	EndedAt      time.Time              `json:"endedAt"`
	SettledAt    *time.Time             `json:"settledAt,omitempty"`
}

func toSettlementView(row *model.Settlement) settlementView {
	v := settlementView{
		MatchID:      row.MatchID,
		GameType:     row.GameType,
		Stake:        row.Stake,
		Player1:      row.Player1,
		Player2:      row.Player2,
		Player1Score: row.Player1Score,
		Player2Score: row.Player2Score,
		Winner:       row.Winner,
		Draw:         row.Draw,
		Status:       row.Status,
		Attempts:     row.Attempts,
		LastError:    row.LastError,
		EndedAt:      row.EndedAt,
		SettledAt:    row.SettledAt,
	}
	if len(row.TxHashesJSON) > 0 {
		v.TxHashes = json.RawMessage(row.TxHashesJSON)
	}
	if len(row.OnChainJSON) > 0 {
		v.OnChain = json.RawMessage(row.OnChainJSON)
	}
	return v
}

func (h *Handler) GetSettlement(c *gin.Context) {
	if h.services.Settle == nil {
		response.Error(c, http.StatusServiceUnavailable, "settlement disabled")
		return
	}
	row, err := h.services.Settle.Get(c.Request.Context(), c.Param("matchId"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, toSettlementView(row))
}
