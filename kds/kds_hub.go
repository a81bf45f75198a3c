package kds

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
)

// RoomAll menerima semua event (kasir, admin)
const RoomAll = "all"

type Message struct {
	Event     string      `json:"event"`
	Stations  []string    `json:"stations,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type roomMessage struct {
	rooms   []string
	payload []byte
}

// Hub menampung client papan KDS per room. Room adalah nama station atau "all".
type Hub struct {
	rooms map[string]map[*Client]bool
	mu    sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan roomMessage
	quit       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomMessage, 256),
		quit:       make(chan struct{}),
	}
}

// Run -> jalankan sebagai goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for _, clients := range h.rooms {
				for c := range clients {
					close(c.send)
				}
			}
			h.rooms = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			if h.rooms[c.room] == nil {
				h.rooms[c.room] = make(map[*Client]bool)
			}
			h.rooms[c.room][c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			h.remove(c)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for _, room := range msg.rooms {
				for c := range h.rooms[room] {
					select {
					case c.send <- msg.payload:
					default:
						// buffer penuh, client dianggap mati
						h.remove(c)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) remove(c *Client) {
	clients, ok := h.rooms[c.room]
	if !ok || !clients[c] {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.rooms, c.room)
	}
}

// ClientCount -> jumlah client di sebuah room
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Stop menghentikan Run dan menutup semua client
func (h *Hub) Stop() {
	close(h.quit)
}

// Publish mengirim event ke room station yang disebut plus room "all".
// stations kosong berarti semua room.
func (h *Hub) Publish(event string, stations []models.Station, data interface{}) {
	msg := Message{Event: event, Data: data, Timestamp: time.Now()}
	var rooms []string
	if len(stations) == 0 {
		rooms = append(rooms, RoomAll)
		for _, s := range models.AllStations {
			rooms = append(rooms, string(s))
		}
	} else {
		rooms = append(rooms, RoomAll)
		for _, s := range stations {
			rooms = append(rooms, string(s))
			msg.Stations = append(msg.Stations, string(s))
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.WithError(err).WithField("event", event).Error("marshal kds message failed")
		return
	}

	select {
	case h.broadcast <- roomMessage{rooms: rooms, payload: payload}:
	default:
		utils.ErrorLogger.WithFields(logrus.Fields{"event": event}).Warn("kds broadcast queue full, event dropped")
	}
}
