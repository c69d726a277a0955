package ws

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SessionHeader carries the session id in the upgrade response.
const SessionHeader = "X-Session-Id"

// Server upgrades HTTP connections to prediction sessions.
type Server struct {
	manager   *Manager
	processor MessageProcessor
	logger    *zap.Logger
	opts      Options
	upgrader  websocket.Upgrader
}

// NewServer builds ws server.
func NewServer(manager *Manager, processor MessageProcessor, opts Options, logger *zap.Logger) *Server {
	return &Server{
		manager:   manager,
		processor: processor,
		logger:    logger,
		opts:      opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is the HTTP handler for the prediction stream endpoint.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	conn, err := s.upgrader.Upgrade(w, r, http.Header{SessionHeader: {id}})
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	session := NewSession(id, conn, s.processor, s.opts, s.logger, s.manager.Remove)
	if err := s.manager.Add(session); err != nil {
		s.logger.Warn("rejecting session", zap.Error(err))
		_ = session.Shutdown(websocket.CloseTryAgainLater, "server shutting down")
		_ = conn.Close()
		return
	}

	go func() {
		if err := session.Run(context.Background()); err != nil {
			s.logger.Warn("session ended with error", zap.String("session_id", session.ID()), zap.Error(err))
		}
	}()
}
