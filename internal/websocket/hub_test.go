package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, topic string) *Client {
	return &Client{
		id:    "mock",
		topic: topic,
		hub:   hub,
		conn:  nil,
		send:  make(chan []byte, sendBufferSize),
	}
}

func TestJoinLeave(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, "")
	c2 := mockClient(hub, "family-a")

	hub.Join(c1)
	hub.Join(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}
	if got := hub.TopicCount("family-a"); got != 1 {
		t.Fatalf("expected 1 family-a client, got %d", got)
	}

	hub.Leave(c1)
	hub.Leave(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestLeaveTwice(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, "")
	hub.Join(c)
	hub.Leave(c)
	// Should not panic
	hub.Leave(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcastReachesDisplayClientsOnly(t *testing.T) {
	hub := NewHub(slog.Default())

	display := mockClient(hub, "")
	subscriber := mockClient(hub, "family-a")
	hub.Join(display)
	hub.Join(subscriber)

	hub.Broadcast(NewMessage("ledger", "updated", "p1", map[string]any{"reason": "bonus"}))

	select {
	case data := <-display.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Type != "ledger_updated" {
			t.Errorf("expected type ledger_updated, got %s", got.Type)
		}
		if got.ID != "p1" {
			t.Errorf("expected id p1, got %s", got.ID)
		}
		if got.Extra["reason"] != "bonus" {
			t.Errorf("expected extra reason bonus, got %v", got.Extra["reason"])
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}

	select {
	case data := <-subscriber.send:
		t.Errorf("topic subscriber received display broadcast: %s", data)
	default:
	}
}

func TestPublishToTopic(t *testing.T) {
	hub := NewHub(slog.Default())

	a := mockClient(hub, "family-a")
	b := mockClient(hub, "family-b")
	hub.Join(a)
	hub.Join(b)

	hub.Publish("family-a", []byte(`{"children":[]}`))

	if len(a.send) != 1 {
		t.Errorf("family-a received %d messages, want 1", len(a.send))
	}
	if len(b.send) != 0 {
		t.Errorf("family-b received %d messages, want 0", len(b.send))
	}
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.Broadcast(NewMessage("chore", "deleted", "c1", nil))
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, "")
	hub.Join(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(NewMessage("test", "fill", "", nil))
	}

	// This should drop the message, not panic or block
	hub.Broadcast(NewMessage("test", "dropped", "", nil))

	if got := len(c.send); got != sendBufferSize {
		t.Errorf("expected %d buffered messages, got %d", sendBufferSize, got)
	}
	if c.Enqueue([]byte("x")) {
		t.Error("Enqueue on a full buffer should report false")
	}

	hub.Leave(c)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("status", "changed", "", map[string]any{"mode": "local"})
	if msg.Type != "status_changed" {
		t.Errorf("expected type status_changed, got %s", msg.Type)
	}
	if msg.Entity != "status" || msg.Action != "changed" {
		t.Errorf("entity/action = %s/%s", msg.Entity, msg.Action)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, "")
			hub.Join(c)
			hub.Broadcast(NewMessage("test", "concurrent", "", nil))
			for {
				select {
				case <-c.send:
				default:
					hub.Leave(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
