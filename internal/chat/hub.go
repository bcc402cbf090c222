package chat

import "sync"

// Event is the frame exchanged over a chat connection in both directions.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

const (
	EventConnected        = "connected"
	EventUserDisconnected = "userDisconnected"
	EventMessageSent      = "message-sent"
	EventChatHistory      = "chat-history"
	EventGroupHistory     = "group-chat-history"
	EventError            = "error"

	EventSendPrivate    = "send-private-message"
	EventGetChatHistory = "get-chat-history"
	EventSendGroup      = "send-group-message"
	EventGetGroupChat   = "get-group-chat"
)

// Peer is one live connection.
type Peer interface {
	ID() string
	// Send queues ev for delivery and must not block.
	Send(ev Event)
}

// Hub tracks the live peers of this process and the rooms they joined.
// Rooms are keyed by conversation id.
type Hub struct {
	mu     sync.RWMutex
	peers  map[string]Peer
	rooms  map[string]map[string]struct{}
	joined map[string]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		peers:  make(map[string]Peer),
		rooms:  make(map[string]map[string]struct{}),
		joined: make(map[string]map[string]struct{}),
	}
}

func (h *Hub) Attach(p Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[p.ID()] = p
}

// Detach forgets the peer and takes it out of every room.
func (h *Hub) Detach(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.peers, connID)
	for room := range h.joined[connID] {
		members := h.rooms[room]
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.joined, connID)
}

func (h *Hub) Join(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.peers[connID]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]struct{})
	}
	h.rooms[room][connID] = struct{}{}
	if h.joined[connID] == nil {
		h.joined[connID] = make(map[string]struct{})
	}
	h.joined[connID][room] = struct{}{}
}

func (h *Hub) InRoom(room, connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][connID]
	return ok
}

func (h *Hub) Send(connID string, ev Event) {
	h.mu.RLock()
	p := h.peers[connID]
	h.mu.RUnlock()
	if p != nil {
		p.Send(ev)
	}
}

func (h *Hub) Broadcast(room string, ev Event) {
	for _, p := range h.collect(func(id string) bool { _, ok := h.rooms[room][id]; return ok }) {
		p.Send(ev)
	}
}

// BroadcastExcept sends ev to every peer but connID.
func (h *Hub) BroadcastExcept(connID string, ev Event) {
	for _, p := range h.collect(func(id string) bool { return id != connID }) {
		p.Send(ev)
	}
}

func (h *Hub) collect(keep func(id string) bool) []Peer {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Peer, 0, len(h.peers))
	for id, p := range h.peers {
		if keep(id) {
			out = append(out, p)
		}
	}
	return out
}
