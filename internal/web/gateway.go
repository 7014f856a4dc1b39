package web

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"trackbot/internal/logger"
	"trackbot/internal/transport"
)

// ErrUnknownMessage is returned when editing a message the gateway never created.
var ErrUnknownMessage = errors.New("unknown message")

// Gateway is a local transport.Client: uploads go to disk, messages live
// in memory and inline answers are handed back to the HTTP caller.
type Gateway struct {
	Messages *MessageManager
	Uploads  *Uploads
	log      *logger.Logger

	mu      sync.Mutex
	answers map[string][]transport.InlineResult
}

var _ transport.Client = (*Gateway)(nil)

func NewGateway(messages *MessageManager, uploads *Uploads, log *logger.Logger) *Gateway {
	return &Gateway{
		Messages: messages,
		Uploads:  uploads,
		log:      log.Component("gateway"),
		answers:  make(map[string][]transport.InlineResult),
	}
}

func (g *Gateway) Upload(ctx context.Context, path string) ([]byte, error) {
	return g.Uploads.Upload(ctx, path)
}

// EditMessage applies edit to message id. Media edits whose file or
// thumbnail was swept are refused with applied=false.
func (g *Gateway) EditMessage(ctx context.Context, id transport.MessageID, edit transport.Edit) (bool, error) {
	if _, err := g.Messages.Get(string(id)); err != nil {
		return false, fmt.Errorf("%w: %s", ErrUnknownMessage, id)
	}

	if edit.Media == nil {
		err := g.Messages.Update(string(id), func(m *Message) {
			m.Text = edit.Text
			m.Button = edit.Button
			if m.Status == StatusPending {
				m.Status = StatusRunning
			}
		})
		return err == nil, err
	}

	fileID := string(edit.Media.File.Raw)
	if _, ok := g.Uploads.Path(fileID); !ok {
		g.log.Warn("refusing edit of %s: media %q expired", id, fileID)
		return false, nil
	}
	var thumbID string
	if edit.Media.Thumb != nil {
		thumbID = string(edit.Media.Thumb.Raw)
		if _, ok := g.Uploads.Path(thumbID); !ok {
			g.log.Warn("refusing edit of %s: thumbnail %q expired", id, thumbID)
			return false, nil
		}
	}

	err := g.Messages.Update(string(id), func(m *Message) {
		m.Text = ""
		m.Button = ""
		m.Audio = &Audio{
			FileID:      fileID,
			ThumbID:     thumbID,
			Title:       edit.Media.Title,
			Performer:   edit.Media.Performer,
			DurationSec: int(edit.Media.Duration.Seconds()),
		}
		m.Status = StatusCompleted
	})
	return err == nil, err
}

// AnswerInline stores the answer until the HTTP caller collects it.
func (g *Gateway) AnswerInline(ctx context.Context, queryID string, results []transport.InlineResult) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.answers[queryID] = results
	return nil
}

// takeAnswer removes and returns the answer for queryID.
func (g *Gateway) takeAnswer(queryID string) ([]transport.InlineResult, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	results, ok := g.answers[queryID]
	delete(g.answers, queryID)
	return results, ok
}
