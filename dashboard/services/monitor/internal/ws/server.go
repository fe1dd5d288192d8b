package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"socdash/dashboard/services/monitor/internal/models"
)

// SnapshotSource supplies the snapshot sent to a client right after it connects.
type SnapshotSource interface {
	Last() models.Snapshot
}

// Server upgrades HTTP connections for the live feed.
type Server struct {
	ctx          context.Context
	hub          *Hub
	source       SnapshotSource
	logger       *zap.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
}

// NewServer builds ws server. Client pumps stop when ctx is cancelled.
func NewServer(ctx context.Context, hub *Hub, source SnapshotSource, writeTimeout time.Duration, logger *zap.Logger) *Server {
	return &Server{
		ctx:          ctx,
		hub:          hub,
		source:       source,
		logger:       logger,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is HTTP handler for /ws endpoint.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	client := NewClient(id, conn, s.writeTimeout, s.logger, s.hub.Remove)
	s.hub.Add(client)

	if s.source != nil {
		if payload, err := Encode(s.source.Last()); err == nil {
			client.Send(payload)
		}
	}

	go client.Start(s.ctx)
	s.logger.Info("dashboard client connected", zap.String("client_id", id))
}
