// internal/interfaces/http/handlers/stream.go
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-sync/internal/session"
)

const (
	writeWait      = 10 * time.Second
	maxInboundSize = 512
)

// Frame types sent on the stream
const (
	FrameSnapshot = "snapshot"
	FrameNotice   = "notice"
)

// Frame is one message written to the stream
type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// StreamHandler pushes session snapshots and notices over a websocket
type StreamHandler struct {
	manager      *session.Manager
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	logger       *logrus.Entry
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(manager *session.Manager, checkOrigin func(*http.Request) bool, pingInterval time.Duration, logger *logrus.Entry) *StreamHandler {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &StreamHandler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// Stream handles GET /session/stream
func (h *StreamHandler) Stream(c *gin.Context) {
	sess, ok := activeSession(c, h.manager)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the error response
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	watcher := sess.Watch()
	defer watcher.Close()

	log := h.logger.WithField("user_id", sess.UserID())
	log.Debug("Stream opened")
	defer log.Debug("Stream closed")

	closed := h.readPump(conn)

	if err := h.write(conn, Frame{Type: FrameSnapshot, Data: sess.Snapshot()}); err != nil {
		return
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return

		case <-watcher.Changes():
			snapshot := sess.Snapshot()
			if err := h.write(conn, Frame{Type: FrameSnapshot, Data: snapshot}); err != nil {
				log.WithError(err).Debug("Stream write failed")
				return
			}
			if sess.State() == session.StateUnauthenticated {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
				return
			}

		case notice := <-watcher.Notices():
			if err := h.write(conn, Frame{Type: FrameNotice, Data: notice}); err != nil {
				log.WithError(err).Debug("Stream write failed")
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) write(conn *websocket.Conn, frame Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}

// readPump drains inbound frames so control messages are processed. The
// returned channel closes when the peer goes away.
func (h *StreamHandler) readPump(conn *websocket.Conn) <-chan struct{} {
	closed := make(chan struct{})
	deadline := 2 * h.pingInterval

	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()
	return closed
}
