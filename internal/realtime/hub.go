// Package realtime pushes messaging events to users' open websocket sessions.
package realtime

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/nexus-im/estatechat/internal/messaging"
)

type delivery struct {
	userID  int64
	payload []byte
}

type countRequest struct {
	userID int64
	reply  chan int
}

// Hub tracks every connected client by user. A single goroutine (Run) owns
// the client map; everything else talks to it over channels.
type Hub struct {
	clients map[int64]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	count      chan countRequest
	done       chan struct{}

	log *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery, 256),
		count:      make(chan countRequest),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run processes hub traffic until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = make(map[int64]map[*Client]struct{})
			return

		case c := <-h.register:
			set, ok := h.clients[c.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[c.userID] = set
			}
			set[c] = struct{}{}
			h.log.Debug("client connected", zap.Int64("user_id", c.userID), zap.Int("sessions", len(set)))

		case c := <-h.unregister:
			h.remove(c)

		case d := <-h.deliver:
			for c := range h.clients[d.userID] {
				select {
				case c.send <- d.payload:
				default:
					h.log.Warn("dropping slow client", zap.Int64("user_id", c.userID))
					h.remove(c)
				}
			}

		case req := <-h.count:
			req.reply <- len(h.clients[req.userID])
		}
	}
}

func (h *Hub) remove(c *Client) {
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	h.log.Debug("client disconnected", zap.Int64("user_id", c.userID))
}

// Notify implements messaging.Notifier. It never blocks: when the hub is
// backed up or stopped the event is dropped.
func (h *Hub) Notify(userID int64, event messaging.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to encode event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}
	select {
	case h.deliver <- delivery{userID: userID, payload: payload}:
	case <-h.done:
	default:
		h.log.Warn("event dropped, hub is backed up",
			zap.Int64("user_id", userID),
			zap.String("type", string(event.Type)),
		)
	}
}

// ConnectedClients reports how many sessions userID has open.
func (h *Hub) ConnectedClients(userID int64) int {
	req := countRequest{userID: userID, reply: make(chan int, 1)}
	select {
	case h.count <- req:
		return <-req.reply
	case <-h.done:
		return 0
	}
}

var _ messaging.Notifier = (*Hub)(nil)
