package kds

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youngalip/savor-backend/models"
)

// mockClient -> client tanpa koneksi websocket sungguhan
func mockClient(hub *Hub, room string) *Client {
	return &Client{hub: hub, room: room, send: make(chan []byte, 256)}
}

func startHub(t *testing.T) *Hub {
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case raw := <-c.send:
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("client in room %s did not receive a message", c.room)
	}
	return Message{}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("client in room %s should not receive %s", c.room, raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRegistration(t *testing.T) {
	hub := startHub(t)
	client := mockClient(hub, "kitchen")

	hub.register <- client
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount("kitchen"))

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount("kitchen"))

	_, open := <-client.send
	assert.False(t, open, "send channel closed after unregister")
}

func TestPublishToStationReachesStationAndAll(t *testing.T) {
	hub := startHub(t)
	kitchen := mockClient(hub, string(models.StationKitchen))
	bar := mockClient(hub, string(models.StationBar))
	cashier := mockClient(hub, RoomAll)

	hub.register <- kitchen
	hub.register <- bar
	hub.register <- cashier
	time.Sleep(10 * time.Millisecond)

	hub.Publish("station_update", []models.Station{models.StationKitchen}, map[string]interface{}{"order_id": 7})

	msg := receive(t, kitchen)
	assert.Equal(t, "station_update", msg.Event)
	assert.Equal(t, []string{"kitchen"}, msg.Stations)

	msg = receive(t, cashier)
	assert.Equal(t, "station_update", msg.Event)

	assertSilent(t, bar)
}

func TestPublishWithoutStationsReachesEveryRoom(t *testing.T) {
	hub := startHub(t)
	var clients []*Client
	for _, room := range []string{RoomAll, "kitchen", "bar", "pastry"} {
		c := mockClient(hub, room)
		hub.register <- c
		clients = append(clients, c)
	}
	time.Sleep(10 * time.Millisecond)

	hub.Publish("order_created", nil, map[string]string{"order_number": "ORD-20250101-001"})

	for _, c := range clients {
		msg := receive(t, c)
		assert.Equal(t, "order_created", msg.Event)
		data, ok := msg.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "ORD-20250101-001", data["order_number"])
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := startHub(t)
	slow := &Client{hub: hub, room: "bar", send: make(chan []byte)}
	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	hub.Publish("item_done", []models.Station{models.StationBar}, nil)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 0, hub.ClientCount("bar"))
}
