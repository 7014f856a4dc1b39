// Package transport describes the messaging operations the bot consumes
// and the inbound events it handles.
package transport

import (
	"context"
	"time"

	"trackbot/internal/media"
)

// MessageID identifies a message that can be edited after it was sent.
type MessageID string

// Uploader pushes a local file into the transport's media store and returns
// the handle in the transport's wire encoding.
type Uploader interface {
	Upload(ctx context.Context, path string) ([]byte, error)
}

// Client is the subset of a messenger API the bot relies on.
type Client interface {
	Uploader
	// EditMessage replaces a message's content. applied is false when the
	// transport refused the edit, e.g. because a referenced media handle expired.
	EditMessage(ctx context.Context, id MessageID, edit Edit) (applied bool, err error)
	AnswerInline(ctx context.Context, queryID string, results []InlineResult) error
}

// Edit is the new content of a message. Button is an optional inline button label.
type Edit struct {
	Text   string
	Button string
	Media  *Media
}

// Media attaches an uploaded audio file, with an optional thumbnail.
type Media struct {
	File      media.Handle
	Thumb     *media.Handle
	Title     string
	Performer string
	Duration  time.Duration
}

// InlineResult is one entry in an inline query answer.
type InlineResult struct {
	ID        string
	Title     string
	Performer string
	Duration  time.Duration
	AudioURL  string
	ThumbURL  string
	Button    string
}

// InlineQuery is an inbound search request.
type InlineQuery struct {
	ID   string
	Text string
}

// InlineSend is an inbound selection of a previously answered result.
// MessageID names the message the transport created for the selection.
type InlineSend struct {
	ResultID  string
	MessageID MessageID
}
