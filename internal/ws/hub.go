package ws

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"greenhouse-monitor/internal/telemetry"
)

// Broadcast event kinds delivered to viewers.
const (
	MessageTypeSensorData = "sensorData"
	MessageTypeAlert      = "alert"
)

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type roomMessage struct {
	room string
	data []byte
}

// Hub maintains per-greenhouse viewer rooms and broadcasts telemetry and
// alert events into them. All room state is owned by the Run goroutine.
type Hub struct {
	rooms        map[string]map[*Client]bool
	broadcast    chan roomMessage
	register     chan *Client
	unregister   chan *Client
	clientBuffer int
}

// NewHub creates a hub whose per-viewer send buffers hold clientBuffer
// messages; 0 falls back to 64.
func NewHub(clientBuffer int) *Hub {
	if clientBuffer <= 0 {
		clientBuffer = 64
	}
	return &Hub{
		rooms:        make(map[string]map[*Client]bool),
		broadcast:    make(chan roomMessage, 256),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		clientBuffer: clientBuffer,
	}
}

// Run dispatches registrations and broadcasts until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
			}
			h.rooms = make(map[string]map[*Client]bool)
			return

		case client := <-h.register:
			clients, ok := h.rooms[client.room]
			if !ok {
				clients = make(map[*Client]bool)
				h.rooms[client.room] = clients
			}
			clients[client] = true
			log.Info().Str("greenhouse_id", client.room).Int("viewers", len(clients)).Msg("viewer joined")

		case client := <-h.unregister:
			if clients, ok := h.rooms[client.room]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
					log.Info().Str("greenhouse_id", client.room).Int("viewers", len(clients)).Msg("viewer left")
				}
			}

		case msg := <-h.broadcast:
			for client := range h.rooms[msg.room] {
				select {
				case client.send <- msg.data:
				default:
					// Slow viewer: drop it rather than stall the room.
					close(client.send)
					delete(h.rooms[msg.room], client)
					log.Warn().Str("greenhouse_id", msg.room).Msg("viewer send buffer full, removing")
				}
			}
		}
	}
}

// BroadcastSample pushes one (possibly overridden) sample to the
// greenhouse's viewers.
func (h *Hub) BroadcastSample(greenhouseID string, s telemetry.SensorSample) {
	h.send(greenhouseID, MessageTypeSensorData, s)
}

// BroadcastAlert pushes one alert event to the greenhouse's viewers.
func (h *Hub) BroadcastAlert(evt telemetry.AlertEvent) {
	h.send(evt.GreenhouseID, MessageTypeAlert, evt)
}

func (h *Hub) send(room, msgType string, payload any) {
	data, err := json.Marshal(envelope{Type: msgType, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("type", msgType).Msg("marshal broadcast")
		return
	}
	select {
	case h.broadcast <- roomMessage{room: room, data: data}:
	default:
		log.Warn().Str("greenhouse_id", room).Str("type", msgType).Msg("broadcast channel full, dropping message")
	}
}
