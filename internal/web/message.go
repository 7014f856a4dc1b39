package web

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MessageStatus represents the lifecycle of a selection message
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusRunning   MessageStatus = "running"
	StatusCompleted MessageStatus = "completed"
	StatusFailed    MessageStatus = "failed"
)

// Audio is the media attached to a delivered message
type Audio struct {
	FileID      string
	ThumbID     string
	Title       string
	Performer   string
	DurationSec int
}

// Message is the gateway's stand-in for a messenger message created by an inline selection
type Message struct {
	ID          string
	ResultID    string
	Text        string
	Button      string
	Audio       *Audio
	Status      MessageStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// MessageManager keeps messages and fans out edits to subscribers
type MessageManager struct {
	messages  map[string]*Message
	mu        sync.RWMutex
	listeners map[string][]chan Message
}

const messageRetention = 1 * time.Hour

// NewMessageManager creates a new message manager
func NewMessageManager() *MessageManager {
	return &MessageManager{
		messages:  make(map[string]*Message),
		listeners: make(map[string][]chan Message),
	}
}

// StartCleanup removes finished messages older than the retention window
// every ten minutes until ctx is cancelled.
func (mm *MessageManager) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mm.cleanup()
			}
		}
	}()
}

func (mm *MessageManager) cleanup() {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	cutoff := time.Now().Add(-messageRetention)
	for id, msg := range mm.messages {
		if msg.CompletedAt != nil && msg.CompletedAt.Before(cutoff) {
			delete(mm.messages, id)
			for _, ch := range mm.listeners[id] {
				close(ch)
			}
			delete(mm.listeners, id)
		}
	}
}

// Create registers a pending message for a selected result
func (mm *MessageManager) Create(resultID, text, button string) Message {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	now := time.Now()
	msg := &Message{
		ID:        uuid.NewString(),
		ResultID:  resultID,
		Text:      text,
		Button:    button,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	mm.messages[msg.ID] = msg
	return *msg
}

// Get returns a snapshot of a message
func (mm *MessageManager) Get(id string) (Message, error) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	msg, ok := mm.messages[id]
	if !ok {
		return Message{}, fmt.Errorf("message not found: %s", id)
	}
	return *msg, nil
}

// List returns snapshots of all messages
func (mm *MessageManager) List() []Message {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	msgs := make([]Message, 0, len(mm.messages))
	for _, msg := range mm.messages {
		msgs = append(msgs, *msg)
	}
	return msgs
}

// Update applies fn to a message and notifies subscribers
func (mm *MessageManager) Update(id string, fn func(*Message)) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	msg, ok := mm.messages[id]
	if !ok {
		return fmt.Errorf("message not found: %s", id)
	}

	oldStatus := msg.Status
	fn(msg)
	msg.UpdatedAt = time.Now()

	if oldStatus != msg.Status {
		switch msg.Status {
		case StatusCompleted, StatusFailed:
			if msg.CompletedAt == nil {
				now := time.Now()
				msg.CompletedAt = &now
			}
		}
	}

	mm.notifyListeners(id, *msg)
	return nil
}

// Subscribe subscribes to message edits
func (mm *MessageManager) Subscribe(id string) <-chan Message {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	ch := make(chan Message, 10)
	mm.listeners[id] = append(mm.listeners[id], ch)
	return ch
}

// Unsubscribe removes a listener
func (mm *MessageManager) Unsubscribe(id string, ch <-chan Message) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	listeners := mm.listeners[id]
	for i, listener := range listeners {
		if listener == ch {
			mm.listeners[id] = append(listeners[:i], listeners[i+1:]...)
			close(listener)
			break
		}
	}
}

// notifyListeners sends updates to all listeners, dropping them for slow readers
func (mm *MessageManager) notifyListeners(id string, msg Message) {
	for _, ch := range mm.listeners[id] {
		select {
		case ch <- msg:
		default:
		}
	}
}
