package websocket

import (
	"encoding/json"
	"log/slog"
	"testing"
)

func testClient(h *Hub, householdID int64) *Client {
	return &Client{hub: h, householdID: householdID, send: make(chan []byte, sendBufferSize)}
}

func TestHubRegisterUnregister(t *testing.T) {
	h := NewHub(slog.Default())
	c := testClient(h, 1)

	h.Register(c)
	if h.ClientCount() != 1 {
		t.Errorf("client count = %d, want 1", h.ClientCount())
	}

	h.Unregister(c)
	if h.ClientCount() != 0 {
		t.Errorf("client count = %d, want 0", h.ClientCount())
	}

	// Send channel is closed after unregister.
	if _, ok := <-c.send; ok {
		t.Error("expected closed send channel")
	}

	// Unregistering twice is a no-op.
	h.Unregister(c)
}

func TestHubBroadcast(t *testing.T) {
	h := NewHub(slog.Default())
	c1 := testClient(h, 1)
	c2 := testClient(h, 1)
	h.Register(c1)
	h.Register(c2)

	h.Broadcast(1, NewMessage("task", "submitted", 42, map[string]any{"member_id": float64(7)}))

	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.send:
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if msg.Type != "task_submitted" || msg.ID != 42 {
				t.Errorf("message = %+v", msg)
			}
			if msg.Extra["member_id"] != float64(7) {
				t.Errorf("extra = %v", msg.Extra)
			}
		default:
			t.Fatal("client did not receive broadcast")
		}
	}
}

func TestHubBroadcastDropsWhenBufferFull(t *testing.T) {
	h := NewHub(slog.Default())
	c := &Client{hub: h, householdID: 1, send: make(chan []byte)} // unbuffered, nobody reading
	h.Register(c)

	// Must not block.
	h.Broadcast(1, NewMessage("chat", "created", 1, nil))
}

func TestHubBroadcastStaysInHousehold(t *testing.T) {
	h := NewHub(slog.Default())
	ours := testClient(h, 1)
	theirs := testClient(h, 2)
	h.Register(ours)
	h.Register(theirs)

	h.Broadcast(1, NewMessage("task", "submitted", 42, nil))

	select {
	case <-ours.send:
	default:
		t.Fatal("household 1 client did not receive its own event")
	}
	select {
	case data := <-theirs.send:
		t.Fatalf("household 2 client received household 1's event: %s", data)
	default:
	}
}

func TestNewMessageType(t *testing.T) {
	msg := NewMessage("points", "awarded", 3, nil)
	if msg.Type != "points_awarded" {
		t.Errorf("type = %q", msg.Type)
	}
	if msg.Entity != "points" || msg.Action != "awarded" {
		t.Errorf("message = %+v", msg)
	}
}
