package stream

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/courtroom-api/models"
)

// EventMessageAppended is sent for every message added to a simulation's log
const EventMessageAppended = "message_appended"

const (
	sendBuffer = 64
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Event is the frame written to subscribers
type Event struct {
	Event string         `json:"event"`
	Data  models.Message `json:"data"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan Event
}

// Hub fans out appended messages to websocket subscribers, grouped by simulation.
// A subscriber that cannot keep up is disconnected rather than slowing the writer.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger

	mu          sync.Mutex
	subscribers map[string]map[*subscriber]struct{}
}

// NewHub returns a hub with no subscribers
func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger:      logger,
		subscribers: make(map[string]map[*subscriber]struct{}),
	}
}

// Publish queues msg for every subscriber of the simulation. It never blocks.
func (h *Hub) Publish(simulationID string, msg models.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subscribers[simulationID] {
		select {
		case s.send <- Event{Event: EventMessageAppended, Data: msg}:
		default:
			h.logger.Warnw("dropping slow transcript subscriber", "simulationID", simulationID)
			h.removeLocked(simulationID, s)
		}
	}
}

// Subscribers returns how many connections are following the simulation
func (h *Hub) Subscribers(simulationID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[simulationID])
}

// Serve upgrades the request and streams the simulation's messages until the client
// goes away
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, simulationID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.Warnw("websocket upgrade failed", "simulationID", simulationID, "error", err)
		return
	}

	s := &subscriber{conn: conn, send: make(chan Event, sendBuffer)}
	h.mu.Lock()
	if h.subscribers[simulationID] == nil {
		h.subscribers[simulationID] = make(map[*subscriber]struct{})
	}
	h.subscribers[simulationID][s] = struct{}{}
	h.mu.Unlock()
	h.logger.Debugw("transcript subscriber connected", "simulationID", simulationID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(s)
	}()
	h.readLoop(s)

	h.mu.Lock()
	h.removeLocked(simulationID, s)
	h.mu.Unlock()
	<-done
	_ = conn.Close()
	h.logger.Debugw("transcript subscriber disconnected", "simulationID", simulationID)
}

// removeLocked unregisters s and closes its queue. h.mu must be held.
func (h *Hub) removeLocked(simulationID string, s *subscriber) {
	subs := h.subscribers[simulationID]
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	close(s.send)
	if len(subs) == 0 {
		delete(h.subscribers, simulationID)
	}
}

// readLoop discards client frames and returns once the connection fails or closes
func (h *Hub) readLoop(s *subscriber) {
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				// unblock readLoop when the hub dropped us
				_ = s.conn.Close()
				return
			}
			if err := s.conn.WriteJSON(ev); err != nil {
				h.logger.Warnw("failed to write transcript event", "error", err)
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = s.conn.Close()
				return
			}
		}
	}
}
