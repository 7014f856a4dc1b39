package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	messageID := r.URL.Query().Get("message_id")
	if messageID == "" {
		http.Error(w, "message_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Subscribe before reading the current state so no edit is missed
	updates := s.gw.Messages.Subscribe(messageID)
	defer s.gw.Messages.Unsubscribe(messageID, updates)

	msg, err := s.gw.Messages.Get(messageID)
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown message"))
		return
	}
	if !s.writeMessage(conn, msg) || done(msg) {
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-updates:
			if !ok {
				return
			}
			if !s.writeMessage(conn, msg) || done(msg) {
				return
			}

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) writeMessage(conn *websocket.Conn, msg Message) bool {
	data, err := json.Marshal(s.messageToResponse(msg))
	if err != nil {
		s.logger.Error("Failed to marshal message: %v", err)
		return true
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Debug("Failed to write WebSocket message: %v", err)
		return false
	}
	return true
}

func done(msg Message) bool {
	return msg.Status == StatusCompleted || msg.Status == StatusFailed
}
