package websocket

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/speechvault/speechvault/internal/model"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub) *Client {
	return &Client{
		hub:  hub,
		conn: nil,
		send: make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcastEvent(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)

	hub.BroadcastEvent(&model.Event{
		ID:        1,
		Type:      model.EventSubscriptionPurchased,
		DatasetID: 7,
		Payload:   json.RawMessage(`{"dataset_id":7}`),
	})

	select {
	case data := <-c.send:
		var ev model.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		if ev.Type != model.EventSubscriptionPurchased || ev.DatasetID != 7 {
			t.Errorf("event = %+v", ev)
		}
	default:
		t.Fatal("expected a broadcast message")
	}
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)

	for i := 0; i < sendBufferSize+5; i++ {
		hub.BroadcastEvent(&model.Event{ID: int64(i), Type: model.EventDatasetCreated})
	}

	if got := len(c.send); got != sendBufferSize {
		t.Errorf("buffered = %d, want %d (overflow dropped)", got, sendBufferSize)
	}
}
