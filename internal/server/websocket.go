package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"github.com/kubeadapt/kueue-observer/pkg/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// handleSnapshotStream sends the latest snapshot, then one message per
// published snapshot until the client goes away or the server stops.
func (s *Server) handleSnapshotStream(c *gin.Context) {
	if !s.beginStream() {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	defer s.streams.Done()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Debug("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.WebsocketClients.Inc()
		defer s.metrics.WebsocketClients.Dec()
	}

	updates, unsubscribe := s.source.Subscribe()
	defer unsubscribe()

	// The reader only drains control frames; it ends when the client closes.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if snap := s.source.LatestSnapshot(); snap != nil {
		if err := s.send(conn, snap); err != nil {
			slog.Debug("websocket send failed", "error", err)
			return
		}
	}

	for {
		select {
		case <-s.done:
			s.closeStream(conn, websocket.CloseGoingAway, "server shutting down")
			return
		case <-closed:
			return
		case snap, ok := <-updates:
			if !ok {
				s.closeStream(conn, websocket.CloseGoingAway, "observer stopped")
				return
			}
			if err := s.send(conn, snap); err != nil {
				slog.Debug("websocket send failed", "error", err)
				return
			}
		}
	}
}

func (s *Server) send(conn *websocket.Conn, snap *model.ObserverSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) closeStream(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.opts.WriteTimeout))
}
