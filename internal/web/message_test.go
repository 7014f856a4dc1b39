package web

import (
	"testing"
	"time"
)

func TestCleanup(t *testing.T) {
	mm := NewMessageManager()

	old := mm.Create("hifi|0000000000000001", "", "")
	mm.Update(old.ID, func(m *Message) {
		m.Status = StatusCompleted
	})
	// Backdate CompletedAt
	mm.mu.Lock()
	past := time.Now().Add(-2 * time.Hour)
	mm.messages[old.ID].CompletedAt = &past
	mm.mu.Unlock()
	oldUpdates := mm.Subscribe(old.ID)

	recent := mm.Create("hifi|0000000000000002", "", "")
	mm.Update(recent.ID, func(m *Message) {
		m.Status = StatusFailed
	})

	running := mm.Create("hifi|0000000000000003", "", "")
	mm.Update(running.ID, func(m *Message) {
		m.Status = StatusRunning
	})

	mm.cleanup()

	if _, err := mm.Get(old.ID); err == nil {
		t.Error("old completed message should have been cleaned up")
	}
	if _, ok := <-oldUpdates; ok {
		t.Error("subscribers of a cleaned up message should be closed")
	}
	if _, err := mm.Get(recent.ID); err != nil {
		t.Error("recent message should NOT have been cleaned up")
	}
	if _, err := mm.Get(running.ID); err != nil {
		t.Error("running message should NOT have been cleaned up")
	}
}

func TestCreateUniqueIDs(t *testing.T) {
	mm := NewMessageManager()

	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		msg := mm.Create("r", "", "")
		if ids[msg.ID] {
			t.Fatalf("duplicate message ID: %s", msg.ID)
		}
		ids[msg.ID] = true
	}
	if len(mm.List()) != 100 {
		t.Errorf("List returned %d messages", len(mm.List()))
	}
}

func TestUpdateCompletedAt(t *testing.T) {
	mm := NewMessageManager()
	msg := mm.Create("r", "", "")

	mm.Update(msg.ID, func(m *Message) {
		m.Status = StatusRunning
		m.Text = "Downloading audio"
	})
	got, _ := mm.Get(msg.ID)
	if got.CompletedAt != nil {
		t.Error("CompletedAt should stay unset while running")
	}
	if got.Text != "Downloading audio" {
		t.Errorf("Text = %q", got.Text)
	}

	mm.Update(msg.ID, func(m *Message) {
		m.Status = StatusCompleted
	})
	got, _ = mm.Get(msg.ID)
	if got.CompletedAt == nil {
		t.Error("CompletedAt should be set when status changes to completed")
	}
}

func TestUpdateNotFound(t *testing.T) {
	mm := NewMessageManager()
	if err := mm.Update("nonexistent", func(m *Message) {}); err == nil {
		t.Error("Update should return error for nonexistent message")
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	mm := NewMessageManager()
	msg := mm.Create("r", "", "")

	ch := mm.Subscribe(msg.ID)

	mm.Update(msg.ID, func(m *Message) {
		m.Status = StatusRunning
	})

	select {
	case update := <-ch:
		if update.Status != StatusRunning {
			t.Errorf("expected status running, got %s", update.Status)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for update")
	}

	mm.Unsubscribe(msg.ID, ch)
}
