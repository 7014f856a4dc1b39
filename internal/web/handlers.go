package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"trackbot/internal/bot"
	"trackbot/internal/transport"
)

type QueryRequest struct {
	Text string `json:"text"`
}

type ResultResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Performer string `json:"performer,omitempty"`
	Duration  int    `json:"duration,omitempty"`
	AudioURL  string `json:"audio_url,omitempty"`
	ThumbURL  string `json:"thumb_url,omitempty"`
	Button    string `json:"button,omitempty"`
}

type SendRequest struct {
	ResultID string `json:"result_id"`
}

type AudioResponse struct {
	FileURL   string `json:"file_url"`
	ThumbURL  string `json:"thumb_url,omitempty"`
	Title     string `json:"title"`
	Performer string `json:"performer"`
	Duration  int    `json:"duration"`
}

type MessageResponse struct {
	ID          string         `json:"id"`
	ResultID    string         `json:"result_id"`
	Text        string         `json:"text,omitempty"`
	Button      string         `json:"button,omitempty"`
	Audio       *AudioResponse `json:"audio,omitempty"`
	Status      MessageStatus  `json:"status"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
	CompletedAt *string        `json:"completed_at,omitempty"`
}

const timeLayout = "2006-01-02 15:04:05"

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	queryID := uuid.NewString()
	if err := s.events.HandleInlineQuery(r.Context(), transport.InlineQuery{ID: queryID, Text: req.Text}); err != nil {
		s.logger.Error("Inline query %q failed: %v", req.Text, err)
		http.Error(w, "Query failed", http.StatusBadGateway)
		return
	}

	results, _ := s.gw.takeAnswer(queryID)
	responses := make([]ResultResponse, len(results))
	for i, res := range results {
		responses[i] = ResultResponse{
			ID:        res.ID,
			Title:     res.Title,
			Performer: res.Performer,
			Duration:  int(res.Duration.Seconds()),
			AudioURL:  res.AudioURL,
			ThumbURL:  res.ThumbURL,
			Button:    res.Button,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ResultID == "" {
		http.Error(w, "result_id is required", http.StatusBadRequest)
		return
	}

	msg := s.gw.Messages.Create(req.ResultID, "", "")
	s.logger.Info("Created message %s for result %s", msg.ID, req.ResultID)

	s.spawn(func() { s.processSend(msg.ID, req.ResultID) })

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(s.messageToResponse(msg))
}

func (s *Server) processSend(messageID, resultID string) {
	err := s.events.HandleInlineSend(s.ctx, transport.InlineSend{
		ResultID:  resultID,
		MessageID: transport.MessageID(messageID),
	})
	switch {
	case errors.Is(err, bot.ErrStaleReference):
		s.logger.Info("Message %s refers to a stale result", messageID)
	case err != nil:
		s.logger.Error("Selection %s failed: %v", resultID, err)
	}

	s.gw.Messages.Update(messageID, func(m *Message) {
		if m.Status != StatusCompleted {
			m.Status = StatusFailed
		}
	})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs := s.gw.Messages.List()
	responses := make([]*MessageResponse, len(msgs))
	for i, msg := range msgs {
		responses[i] = s.messageToResponse(msg)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := s.gw.Messages.Get(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.messageToResponse(msg))
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	path, ok := s.gw.Uploads.Path(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) messageToResponse(msg Message) *MessageResponse {
	resp := &MessageResponse{
		ID:        msg.ID,
		ResultID:  msg.ResultID,
		Text:      msg.Text,
		Button:    msg.Button,
		Status:    msg.Status,
		CreatedAt: msg.CreatedAt.Format(timeLayout),
		UpdatedAt: msg.UpdatedAt.Format(timeLayout),
	}

	if a := msg.Audio; a != nil {
		resp.Audio = &AudioResponse{
			FileURL:   "/media/" + a.FileID,
			Title:     a.Title,
			Performer: a.Performer,
			Duration:  a.DurationSec,
		}
		if a.ThumbID != "" {
			resp.Audio.ThumbURL = "/media/" + a.ThumbID
		}
	}

	if msg.CompletedAt != nil {
		completed := msg.CompletedAt.Format(timeLayout)
		resp.CompletedAt = &completed
	}

	return resp
}
