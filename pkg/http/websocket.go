package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	apperrors "github.com/DavidOeztuerk/Skillswap-sub014/pkg/errors"
	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/stats"
	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/worker"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 60 * time.Second
)

// WebSocketUpgrader configures the WebSocket connection
var WebSocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The bridge sits behind the platform's gateway; origin policy is
		// enforced there.
		return true
	},
}

// BridgeHandler terminates WebSocket connections speaking the cipher message
// protocol in JSON. Each connection gets its own isolated cipher context,
// torn down when the connection closes.
type BridgeHandler struct {
	logger *logrus.Logger
	opts   worker.Options

	mu       sync.RWMutex
	sessions map[*bridgeSession]struct{}
}

type bridgeSession struct {
	conn   *websocket.Conn
	worker *worker.Worker
	cancel context.CancelFunc

	// rejects carries error replies for payloads that never reached the
	// worker, so writePump stays the only writer on the connection.
	rejects chan worker.Response
}

// NewBridgeHandler creates the bridge with the given per-context options.
func NewBridgeHandler(logger *logrus.Logger, opts worker.Options) *BridgeHandler {
	return &BridgeHandler{
		logger:   logger,
		opts:     opts,
		sessions: make(map[*bridgeSession]struct{}),
	}
}

// LiveContexts returns the number of connected cipher contexts.
func (h *BridgeHandler) LiveContexts() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// AggregateStats sums the statistics of all live contexts. Averages are
// weighted by their sample counts; the per-context key flags are not
// meaningful in aggregate and stay zero.
func (h *BridgeHandler) AggregateStats() stats.Statistics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var agg stats.Statistics
	var encWeighted, decWeighted float64

	for s := range h.sessions {
		snap := s.worker.Snapshot()
		agg.TotalFrames += snap.TotalFrames
		agg.EncryptedFrames += snap.EncryptedFrames
		agg.DecryptedFrames += snap.DecryptedFrames
		agg.PassthroughFrames += snap.PassthroughFrames
		agg.EncryptionErrors += snap.EncryptionErrors
		agg.DecryptionErrors += snap.DecryptionErrors
		encWeighted += snap.AverageEncryptionTimeMs * float64(snap.EncryptedFrames)
		decWeighted += snap.AverageDecryptionTimeMs * float64(snap.DecryptedFrames)
	}

	if agg.EncryptedFrames > 0 {
		agg.AverageEncryptionTimeMs = encWeighted / float64(agg.EncryptedFrames)
	}
	if agg.DecryptedFrames > 0 {
		agg.AverageDecryptionTimeMs = decWeighted / float64(agg.DecryptedFrames)
	}

	return agg
}

// CloseAll tears down every live context. Used during server shutdown.
func (h *BridgeHandler) CloseAll() {
	h.mu.Lock()
	for s := range h.sessions {
		s.cancel()
		s.conn.Close()
		delete(h.sessions, s)
	}
	h.mu.Unlock()
}

// ServeWS upgrades the connection and runs one cipher context for its
// lifetime.
func (h *BridgeHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := WebSocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade connection to WebSocket")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := &bridgeSession{
		conn:    conn,
		worker:  worker.New(h.logger, h.opts),
		cancel:  cancel,
		rejects: make(chan worker.Response, 4),
	}

	h.mu.Lock()
	h.sessions[session] = struct{}{}
	h.mu.Unlock()

	h.logger.WithField("remote", conn.RemoteAddr().String()).Info("Cipher bridge connected")

	go session.worker.Run(ctx)
	go h.writePump(session)
	go h.readPump(session)
}

// readPump forwards inbound JSON messages to the context. Frames that do not
// parse at all are rejected with an error reply, matching the protocol's
// malformed-message contract.
func (h *BridgeHandler) readPump(s *bridgeSession) {
	defer func() {
		h.mu.Lock()
		delete(h.sessions, s)
		h.mu.Unlock()
		s.cancel()
		s.conn.Close()
		h.logger.Info("Cipher bridge disconnected")
	}()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).Warn("Cipher bridge read failed")
			}
			return
		}

		var req worker.Request
		if err := json.Unmarshal(payload, &req); err != nil {
			reject := apperrors.NewBadMessage("not valid JSON")
			select {
			case s.rejects <- worker.Response{
				Kind:  worker.ReplyError,
				Error: reject.Error(),
				Code:  reject.GetCode(),
			}:
			default:
			}
			continue
		}

		s.worker.Requests() <- req
	}
}

// writePump forwards the context's replies back over the connection. It owns
// all writes after the handshake, so replies and pings never interleave.
func (h *BridgeHandler) writePump(s *bridgeSession) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case resp, ok := <-s.worker.Replies():
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(resp); err != nil {
				return
			}

		case resp := <-s.rejects:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(resp); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
