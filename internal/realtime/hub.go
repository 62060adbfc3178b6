// Package realtime pushes notifications and question activity to connected
// WebSocket clients. Delivery is best effort: anything missed can be fetched
// again through the REST API.
//
// Every client is placed in its user room (user:<id>) on connect and may join
// any number of question rooms (question:<id>). Membership is dropped when the
// connection goes away.
package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/emilythestrangee/stackit/backend/internal/logging"
	"github.com/emilythestrangee/stackit/backend/internal/metrics"
)

const (
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
	MessageTypeJoinQuestion  = "join_question"
	MessageTypeLeaveQuestion = "leave_question"
	MessageTypeJoined        = "joined"
	MessageTypeLeft          = "left"
	MessageTypeError         = "error"
)

// Message is the envelope written to clients.
type Message struct {
	Type string `json:"type"`
	Room string `json:"room,omitempty"`
	Data any    `json:"data,omitempty"`
}

type delivery struct {
	room    string
	payload []byte
}

func UserRoom(userID int64) string         { return fmt.Sprintf("user:%d", userID) }
func QuestionRoom(questionID int64) string { return fmt.Sprintf("question:%d", questionID) }

type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}

	broadcast    chan delivery
	clientBuffer int
}

func NewHub(broadcastBuffer, clientBuffer int) *Hub {
	if broadcastBuffer <= 0 {
		broadcastBuffer = 256
	}
	if clientBuffer <= 0 {
		clientBuffer = 64
	}
	return &Hub{
		rooms:        make(map[string]map[*Client]struct{}),
		clients:      make(map[*Client]struct{}),
		broadcast:    make(chan delivery, broadcastBuffer),
		clientBuffer: clientBuffer,
	}
}

// Run delivers queued messages until ctx is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	log := logging.WithComponent("realtime")
	for {
		select {
		case <-ctx.Done():
			n := h.ClientCount()
			h.closeAll()
			log.Info().Int("clients_closed", n).Msg("realtime hub stopped")
			return
		case d := <-h.broadcast:
			h.deliver(d)
		}
	}
}

// Register adds c to the hub and to its user room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.joinLocked(c, UserRoom(c.userID))
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	logging.Debug().Int64("user_id", c.userID).Int("total_clients", total).Msg("websocket client connected")
}

// Unregister removes c from every room and closes its send queue. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		h.removeLocked(c)
	}
	h.mu.Unlock()

	if ok {
		metrics.WSConnections.Dec()
		logging.Debug().Int64("user_id", c.userID).Msg("websocket client disconnected")
	}
}

func (h *Hub) removeLocked(c *Client) {
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.joinLocked(c, room)
	}
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) joinLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) PublishToUser(userID int64, event string, payload any) {
	h.publish(UserRoom(userID), event, payload)
}

func (h *Hub) PublishToQuestion(questionID int64, event string, payload any) {
	h.publish(QuestionRoom(questionID), event, payload)
}

// publish never blocks; when the hub is backed up the message is dropped.
func (h *Hub) publish(room, event string, payload any) {
	if h.RoomSize(room) == 0 {
		return
	}
	b, err := json.Marshal(Message{Type: event, Room: room, Data: payload})
	if err != nil {
		logging.Warn().Err(err).Str("event", event).Msg("failed to encode realtime message")
		return
	}
	select {
	case h.broadcast <- delivery{room: room, payload: b}:
	default:
		metrics.WSMessagesDropped.WithLabelValues("hub").Inc()
	}
}

func (h *Hub) deliver(d delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var slow []*Client
	for c := range h.rooms[d.room] {
		select {
		case c.send <- d.payload:
			metrics.WSMessagesSent.Inc()
		default:
			slow = append(slow, c)
		}
	}
	// a client that cannot keep up is disconnected; it can resync over REST
	for _, c := range slow {
		metrics.WSMessagesDropped.WithLabelValues("client").Inc()
		h.removeLocked(c)
		metrics.WSConnections.Dec()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
		metrics.WSConnections.Dec()
	}
}
