// websocket.go - Live status broadcast over WebSocket
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// WebSocket message types for the status protocol
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeStatus    = "status"
	MsgTypePong      = "pong"
)

// Keepalive timing. The server pings every pingPeriod and drops peers
// that do not pong within pongWait.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WSMessage is the envelope for every frame on the status socket
type WSMessage struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// StatusSocketHandler pushes analysis status transitions to connected clients
type StatusSocketHandler struct {
	statuses StatusSource
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader
}

// NewStatusSocketHandler creates a new status socket handler
func NewStatusSocketHandler(statuses StatusSource, log *zap.SugaredLogger) *StatusSocketHandler {
	return &StatusSocketHandler{
		statuses: statuses,
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
		},
	}
}

// HandleStatusSocket upgrades the connection and streams status events
// until the client goes away
func (h *StatusSocketHandler) HandleStatusSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	events, cancel := h.statuses.Subscribe()
	defer cancel()

	h.log.Debugw("status socket connected", "remote", ws.RemoteAddr().String())

	done := make(chan struct{})
	pings := make(chan struct{}, 1)
	go h.readLoop(ws, done, pings)

	h.writeMessage(ws, WSMessage{Type: MsgTypeConnected, Timestamp: time.Now().UnixMilli()})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			h.log.Debugw("status socket disconnected", "remote", ws.RemoteAddr().String())
			return nil
		case <-pings:
			h.writeMessage(ws, WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		case event, ok := <-events:
			if !ok {
				// Hub shut down; nothing more will arrive.
				return nil
			}
			h.writeMessage(ws, WSMessage{
				Type:      MsgTypeStatus,
				Payload:   mustJSON(event),
				Timestamp: time.Now().UnixMilli(),
			})
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

// readLoop consumes client frames so pongs are processed and forwards
// application-level pings. All writes stay on the handler goroutine.
func (h *StatusSocketHandler) readLoop(ws *websocket.Conn, done chan struct{}, pings chan struct{}) {
	defer close(done)

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.log.Debugw("status socket read error", "error", err)
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))
		if msg.Type == MsgTypePing {
			select {
			case pings <- struct{}{}:
			default:
			}
		}
	}
}

func (h *StatusSocketHandler) writeMessage(ws *websocket.Conn, msg WSMessage) {
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(msg); err != nil {
		h.log.Debugw("failed to write status frame", "error", err)
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
