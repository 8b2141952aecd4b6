package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/openprep/exam-gateway/internal/middleware"
	"github.com/openprep/exam-gateway/internal/response"
	"github.com/openprep/exam-gateway/internal/session"
	"github.com/rs/zerolog"
)

const wsWriteTimeout = 10 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams session events (timer ticks, expiry, submission) so the
// UI clock follows the server-side countdown instead of its own.
type WSHandler struct {
	manager  *session.Manager
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(manager *session.Manager, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		manager:  manager,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// Stream godoc
// WS /ws/v1/exams/:exam_id/stream?token=...
// Pushes one event per second while the session lives.
func (h *WSHandler) Stream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID := c.Param("exam_id")

	s, ok := h.manager.Get(claims.UserID, examID)
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("user_id", claims.UserID).
		Str("exam_id", examID).
		Logger()
	wsLog.Info().Msg("Client connected")

	events, unsubscribe := s.Subscribe()
	defer unsubscribe()

	// Reader loop only exists to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Prime the client with the current remaining time.
	snap := s.Snapshot()
	h.write(conn, session.Event{Type: session.EventTick, RemainingSeconds: snap.RemainingSeconds})

	for {
		select {
		case <-closed:
			wsLog.Debug().Msg("Client disconnected")
			return
		case <-s.Done():
			wsLog.Debug().Msg("Session closed")
			return
		case ev := <-events:
			if err := h.write(conn, ev); err != nil {
				wsLog.Debug().Err(err).Msg("Write failed, dropping client")
				return
			}
		}
	}
}

func (h *WSHandler) write(conn *websocket.Conn, ev session.Event) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(ev)
}
