package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const keepAliveInterval = 30 * time.Second

// Intent is an interaction posted by a client
type Intent struct {
	Type   string `json:"type"` // click, hover, unhover
	NodeID string `json:"node_id"`
}

// IntentHandler receives intents read from WebSocket clients
type IntentHandler func(Intent)

// Client represents a connected SSE or WebSocket client
type Client struct {
	id     string
	kind   string
	events chan []byte
}

// outbound is an event queued for fan-out. Lossy events may be skipped for
// a client whose buffer is full; any other event evicts that client.
type outbound struct {
	event interface{}
	lossy bool
}

// Hub fans events out to the clients of one session. Frames are lossy since
// the next tick supersedes them. Patches and the other stateful events are
// delivered in order or not at all: a client that cannot take one is
// disconnected and has to reconnect and re-read the session view.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	done       chan struct{}

	onIntent IntentHandler
	log      *zap.SugaredLogger
}

// New creates a new Hub. onIntent may be nil for output-only hubs.
func New(onIntent IntentHandler, log *zap.SugaredLogger) *Hub {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 256),
		done:       make(chan struct{}),
		onIntent:   onIntent,
		log:        log,
	}
}

// Run starts the hub's event loop. It returns when ctx is cancelled, after
// disconnecting every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.events)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Infow("Client connected", "client_id", client.id, "kind", client.kind, "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.events)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Infow("Client disconnected", "client_id", client.id, "kind", client.kind, "total", total)

		case out := <-h.broadcast:
			data, err := json.Marshal(out.event)
			if err != nil {
				h.log.Errorw("Failed to marshal event", "error", err)
				continue
			}
			h.fanOut(data, out.lossy)
		}
	}
}

func (h *Hub) fanOut(data []byte, lossy bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.events <- data:
		default:
			if lossy {
				h.log.Debugw("Client is slow, skipping frame", "client_id", client.id)
				continue
			}
			delete(h.clients, client)
			close(client.events)
			h.log.Warnw("Client is slow, disconnecting", "client_id", client.id, "kind", client.kind)
		}
	}
}

// Broadcast queues an event for every client. It waits for room in the
// queue and returns without sending once the hub has stopped.
func (h *Hub) Broadcast(event interface{}) {
	select {
	case h.broadcast <- outbound{event: event}:
	case <-h.done:
	}
}

// BroadcastLossy queues an event that may be dropped under load
func (h *Hub) BroadcastLossy(event interface{}) {
	select {
	case h.broadcast <- outbound{event: event, lossy: true}:
	default:
		h.log.Debugw("Broadcast channel full, dropping frame")
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Done is closed once Run has returned
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) newClient(kind string) *Client {
	return &Client{
		id:     uuid.NewString(),
		kind:   kind,
		events: make(chan []byte, 64),
	}
}

// join registers a client unless the hub has stopped
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters a client unless the hub has stopped
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ServeHTTP handles SSE connections
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	client := h.newClient("sse")
	if !h.join(client) {
		http.Error(w, "session closed", http.StatusGone)
		return
	}
	defer h.leave(client)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.events:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
