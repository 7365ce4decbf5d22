package control

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/banshee-data/brick-sorter/internal/kicker"
	"github.com/banshee-data/brick-sorter/internal/monitoring"
)

const (
	// subscriberBuffer is how many events a slow subscriber may lag behind
	// before further events are dropped for it.
	subscriberBuffer = 16

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Event kinds.
const (
	EventKick       = "kick"
	EventKickFailed = "kick_failed"
)

// Event is published for every kick the control loop runs.
type Event struct {
	Kind   string         `json:"kind"`
	At     time.Time      `json:"at"`
	Report *kicker.Report `json:"report,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// EventHub fans events out to subscribers. Publishing never blocks the
// control loop: a subscriber whose buffer is full misses the event.
type EventHub struct {
	mu          sync.Mutex
	subscribers map[string]chan Event
	dropped     int64
}

// NewEventHub returns a hub with no subscribers.
func NewEventHub() *EventHub {
	return &EventHub{subscribers: make(map[string]chan Event)}
}

// Subscribe registers a new subscriber.
func (h *EventHub) Subscribe() (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown ids are
// ignored.
func (h *EventHub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// Publish delivers e to every subscriber with room for it.
func (h *EventHub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- e:
		default:
			h.dropped++
		}
	}
}

// Subscribers returns the number of current subscribers.
func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Dropped returns how many deliveries were skipped because a subscriber
// was full.
func (h *EventHub) Dropped() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// the debug pages are already limited to localhost and tailnet peers
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// eventStream serves hub's events to a websocket client as JSON messages.
func eventStream(hub *EventHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			monitoring.Logf("event stream upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		id, events := hub.Subscribe()
		defer hub.Unsubscribe(id)

		// the client never sends anything useful; reading keeps pongs and
		// close frames flowing and tells us when it goes away
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			conn.SetReadLimit(512)
			conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(pingPeriod)
		defer ping.Stop()

		for {
			select {
			case e, ok := <-events:
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(e); err != nil {
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-gone:
				return
			case <-r.Context().Done():
				return
			}
		}
	}
}
