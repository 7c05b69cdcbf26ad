package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stockpulse/logger"
)

// handleStream upgrades the connection and pushes a fresh snapshot on every
// broadcast interval until the client goes away or a send fails. The first
// snapshot is sent immediately after the upgrade. A slow peer blocks the
// write and thereby throttles the refresh rate; there is no send queue.
func (s *Server) handleStream(c *gin.Context) {
	log := s.log.WithComponent("stream_server")

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	session := uuid.NewString()
	log = log.WithFields(logger.Fields{
		"session": session,
		"remote":  conn.RemoteAddr().String(),
	})
	log.Info("stream session opened")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	// Close is safe to call twice; the read pump races this deferral on
	// client-initiated disconnects.
	defer conn.Close()

	// The peer sends nothing this endpoint consumes, but reading is the only
	// way close frames and dropped connections surface.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pushes := 0
	for {
		snapshot := s.producer.Snapshot(ctx)

		payload, err := json.Marshal(snapshot)
		if err != nil {
			log.WithError(err).Error("failed to encode snapshot")
			break
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.WithError(err).Debug("stream write failed")
			break
		}
		pushes++
		logger.IncrementStreamPush(len(payload))

		select {
		case <-ctx.Done():
			log.WithFields(logger.Fields{"pushes": pushes}).Info("stream session closed")
			return
		case <-time.After(s.config.Server.BroadcastInterval):
		}
	}

	log.WithFields(logger.Fields{"pushes": pushes}).Info("stream session closed")
}
