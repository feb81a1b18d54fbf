// Package chat implements the clinic's internal messaging: a room-based hub of
// WebSocket clients, message persistence and the socket endpoint.
package chat

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UserRoom é a sala pessoal de um usuário (todas as abas/dispositivos dele).
func UserRoom(userID uuid.UUID) string { return "user:" + userID.String() }

// TenantRoom é a sala de toda a clínica.
func TenantRoom(tenantID uuid.UUID) string { return "tenant:" + tenantID.String() }

// Client é uma conexão WebSocket registrada no hub.
type Client struct {
	ID       string
	UserID   uuid.UUID
	TenantID uuid.UUID
	Rooms    []string
	Send     chan []byte
}

func NewClient(userID, tenantID uuid.UUID, buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		ID:       uuid.NewString(),
		UserID:   userID,
		TenantID: tenantID,
		Rooms:    []string{UserRoom(userID), TenantRoom(tenantID)},
		Send:     make(chan []byte, buffer),
	}
}

// Hub guarda os clientes por sala. Todas as operações são seguras para uso concorrente.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	all     map[*Client]struct{}
	log     zerolog.Logger
	dropped uint64
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
		all:   make(map[*Client]struct{}),
		log:   log,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.all[c] = struct{}{}
	for _, room := range c.Rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*Client]struct{})
		}
		h.rooms[room][c] = struct{}{}
	}
}

// Unregister remove o cliente de todas as salas e fecha Send. Chamadas repetidas são ignoradas.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.all[c]; !ok {
		return
	}
	for _, room := range c.Rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.all, c)
	close(c.Send)
}

// Broadcast envia o frame para todos da sala. Cliente com buffer cheio perde o frame.
func (h *Hub) Broadcast(room string, frame interface{}) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal frame")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[room] {
		select {
		case c.Send <- data:
		default:
			h.dropped++
			h.log.Warn().Str("client_id", c.ID).Str("room", room).Msg("client buffer full, frame dropped")
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Dropped conta frames descartados por buffer cheio.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Online devolve os usuários com ao menos uma conexão na clínica.
func (h *Hub) Online(tenantID uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for c := range h.rooms[TenantRoom(tenantID)] {
		if !seen[c.UserID] {
			seen[c.UserID] = true
			out = append(out, c.UserID)
		}
	}
	return out
}
