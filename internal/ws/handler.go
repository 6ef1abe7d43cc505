package ws

import (
	"net/http"
	"time"

	"surge-service/internal/service/registry"
	"surge-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Config struct {
	ReadLimit  int64
	SendBuffer int
	// PongWait is the read deadline backstop; the registry heartbeat is what
	// actually drops silent peers.
	PongWait  time.Duration
	WriteWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		ReadLimit:  1 << 20,
		SendBuffer: 32,
		PongWait:   65 * time.Second,
		WriteWait:  5 * time.Second,
	}
}

type Handler struct {
	conns      *registry.Registry
	dispatcher *Dispatcher
	cfg        Config
	upgrader   websocket.Upgrader
}

func NewHandler(conns *registry.Registry, dispatcher *Dispatcher, cfg Config) *Handler {
	return &Handler{
		conns:      conns,
		dispatcher: dispatcher,
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins; identity is not verified here
			},
		},
	}
}

func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	cl := newClient(conn, h.cfg.SendBuffer, h.cfg.WriteWait)
	h.conns.Register(cl)
	logger.Log.Info("New WebSocket connection",
		zap.String("connID", cl.ID()),
		zap.String("remote", c.Request.RemoteAddr),
	)

	go cl.writePump()
	h.readPump(cl)
}

func (h *Handler) readPump(cl *client) {
	defer func() {
		h.conns.Unregister(cl)
		_ = cl.Close()
	}()

	cl.conn.SetReadLimit(h.cfg.ReadLimit)
	_ = cl.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	cl.conn.SetPongHandler(func(string) error {
		h.conns.OnPong(cl)
		return cl.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		mt, message, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Log.Info("WS read error", zap.String("connID", cl.ID()), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		_ = cl.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		h.dispatcher.Handle(cl, message)
	}
}
