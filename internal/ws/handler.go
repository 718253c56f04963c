package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/omega-realm/pokeidle/internal/hub"
	"github.com/omega-realm/pokeidle/internal/logging"
	"github.com/omega-realm/pokeidle/internal/middleware"
	"github.com/omega-realm/pokeidle/internal/models"
	"github.com/omega-realm/pokeidle/internal/persist"
	"github.com/omega-realm/pokeidle/internal/protocol"
)

type Config struct {
	SendBuffer     int
	ReadLimit      int64
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	ConnectTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		SendBuffer:     256,
		ReadLimit:      4096,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		ConnectTimeout: 10 * time.Second,
	}
}

// Hub is the part of the session hub the transport drives
type Hub interface {
	Connect(ctx context.Context, playerID int64, conn hub.Conn) (*hub.Session, error)
	Dispatch(playerID int64, msg protocol.Inbound) error
	DisconnectConn(playerID int64, conn hub.Conn)
}

// Handler authenticates, upgrades and pumps one websocket per request
type Handler struct {
	hub      Hub
	tokens   middleware.TokenValidator
	cfg      Config
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewHandler(h Hub, tokens middleware.TokenValidator, cfg Config, log *zap.Logger) *Handler {
	if cfg.SendBuffer < 1 {
		cfg.SendBuffer = 1
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = DefaultConfig().PingPeriod
	}
	return &Handler{
		hub:    h,
		tokens: tokens,
		cfg:    cfg,
		log:    logging.OrNop(log).Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// connectStatus maps a Connect failure to the HTTP status of the refused handshake
func connectStatus(err error) (int, string) {
	switch {
	case errors.Is(err, hub.ErrAlreadyConnected):
		return http.StatusConflict, "already connecting"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "no player for this account"
	case errors.Is(err, persist.ErrLoadFailed):
		return http.StatusServiceUnavailable, "player state unavailable"
	case errors.Is(err, hub.ErrHubClosed):
		return http.StatusServiceUnavailable, "server shutting down"
	default:
		return http.StatusServiceUnavailable, "connect failed"
	}
}

// Handle serves GET /ws. The session is attached before the upgrade so a refused
// connect is a plain HTTP error the client can read.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	claims, err := h.tokens.ValidateToken(middleware.BearerToken(r))
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	playerID := claims.PlayerID
	log := h.log.With(zap.Int64("player", playerID))

	conn := newConn(h.cfg, log)
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.ConnectTimeout)
	_, err = h.hub.Connect(ctx, playerID, conn)
	cancel()
	if err != nil {
		status, msg := connectStatus(err)
		log.Info("connect refused", zap.Int("status", status), zap.Error(err))
		middleware.WriteError(w, status, msg)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("upgrade failed", zap.Error(err))
		h.hub.DisconnectConn(playerID, conn)
		conn.Close()
		return
	}
	conn.attach(ws)
	h.readLoop(playerID, conn, log)
}

func (h *Handler) readLoop(playerID int64, conn *Conn, log *zap.Logger) {
	defer func() {
		h.hub.DisconnectConn(playerID, conn)
		conn.Close()
	}()

	ws := conn.ws
	ws.SetReadLimit(h.cfg.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !conn.closed() {
				log.Debug("read failed", zap.Error(err))
			}
			return
		}

		msg, err := protocol.DecodeInbound(payload)
		if err != nil {
			code := protocol.CodeBadRequest
			if errors.Is(err, protocol.ErrUnknownMessageType) {
				code = protocol.CodeUnknownType
			}
			log.Debug("rejected message", zap.String("code", code), zap.Error(err))
			if serr := conn.Send(protocol.MustEncode(protocol.MsgError, protocol.Error{Code: code, Message: err.Error()})); serr != nil {
				return
			}
			continue
		}

		if err := h.hub.Dispatch(playerID, msg); errors.Is(err, hub.ErrSessionNotFound) {
			return
		}
		if conn.closed() {
			return
		}
	}
}
