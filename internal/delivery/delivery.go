// Package delivery turns a selected track into an edited message. It owns
// the retry policy: a failed attempt is repeated once with the caches
// bypassed, after which the status message is replaced by a failure text.
package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/arunsworld/nursery"

	"trackbot/internal/catalog"
	"trackbot/internal/logger"
	"trackbot/internal/media"
	"trackbot/internal/progress"
	"trackbot/internal/transport"
)

// MaxAttempts bounds delivery attempts per selection.
const MaxAttempts = 2

// ErrDeliveryRejected is returned when the transport refuses the final edit.
var ErrDeliveryRejected = errors.New("delivery rejected by transport")

// State is the position of a delivery in its state machine.
type State int

const (
	Idle State = iota
	Attempting
	Delivered
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Attempting:
		return "attempting"
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Acquirer produces uploaded handles; *pipeline.Pipeline implements it.
type Acquirer interface {
	AcquireTrack(ctx context.Context, track catalog.Track, refresh bool, out *progress.Producer) (media.Handle, error)
	AcquireCover(ctx context.Context, track catalog.Track, refresh bool) (media.Handle, error)
}

// Sink applies message edits; every transport.Client is one.
type Sink interface {
	EditMessage(ctx context.Context, id transport.MessageID, edit transport.Edit) (bool, error)
}

// Texts are the user-visible strings a Retrier writes.
type Texts struct {
	// Button labels the status message while work is in progress.
	Button string
	// Failed replaces the status message once every attempt failed.
	Failed string
}

// Outcome summarises one Deliver call.
type Outcome struct {
	State    State
	Attempts int
	// Err is the error of the last failed attempt, nil when delivered.
	Err error
}

// Retrier runs delivery attempts for selected tracks.
type Retrier struct {
	acq    Acquirer
	sink   Sink
	texts  Texts
	buffer int
	log    *logger.Logger
}

// New builds a Retrier. buffer sizes the per-delivery progress channel.
func New(acq Acquirer, sink Sink, texts Texts, buffer int, log *logger.Logger) *Retrier {
	return &Retrier{
		acq:    acq,
		sink:   sink,
		texts:  texts,
		buffer: buffer,
		log:    log.Component("delivery"),
	}
}

// Deliver acquires track and edits message id into the audio message.
// It never fails: the returned Outcome describes what happened.
func (r *Retrier) Deliver(ctx context.Context, id transport.MessageID, track catalog.Track) Outcome {
	reporter, root := progress.Start(ctx, r.buffer, func(ctx context.Context, text string) error {
		_, err := r.sink.EditMessage(ctx, id, transport.Edit{Text: text, Button: r.texts.Button})
		return err
	}, r.log)
	defer func() {
		root.Release()
		<-reporter.Done()
	}()

	out := Outcome{State: Idle}
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		out.State = Attempting
		out.Attempts = attempt + 1

		err := r.attempt(ctx, id, track, attempt > 0, reporter, root)
		if err == nil {
			out.State = Delivered
			out.Err = nil
			r.log.Info("delivered %s to %s after %d attempt(s)", track.Display(), id, out.Attempts)
			return out
		}
		out.Err = err
		r.log.Warn("attempt %d/%d for %s failed: %v", out.Attempts, MaxAttempts, track.Display(), err)

		if ctx.Err() != nil {
			break
		}
	}

	out.State = Failed
	// Queued status texts must not land after the failure text.
	if err := reporter.Flush(ctx); err != nil {
		r.log.Debug("flush before failure edit: %v", err)
	}
	if _, err := r.sink.EditMessage(ctx, id, transport.Edit{Text: r.texts.Failed}); err != nil {
		r.log.Error("failed to report failure on %s: %v", id, err)
	}
	return out
}

func (r *Retrier) attempt(ctx context.Context, id transport.MessageID, track catalog.Track, refresh bool, reporter *progress.Reporter, root *progress.Producer) error {
	var (
		file  media.Handle
		thumb *media.Handle
	)

	err := nursery.RunConcurrently(
		func(_ context.Context, ch chan error) {
			out := root.Clone()
			defer out.Release()

			h, err := r.acq.AcquireTrack(ctx, track, refresh, out)
			if err != nil {
				ch <- err
				return
			}
			file = h
		},
		func(_ context.Context, _ chan error) {
			h, err := r.acq.AcquireCover(ctx, track, refresh)
			if err != nil {
				r.log.Debug("no thumbnail for %s: %v", track.Display(), err)
				return
			}
			thumb = &h
		},
	)
	if err != nil {
		return err
	}

	if err := reporter.Flush(ctx); err != nil {
		return err
	}

	applied, err := r.sink.EditMessage(ctx, id, transport.Edit{
		Media: &transport.Media{
			File:      file,
			Thumb:     thumb,
			Title:     track.Title,
			Performer: track.PrimaryArtist(),
			Duration:  track.Duration(),
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryRejected, err)
	}
	if !applied {
		return ErrDeliveryRejected
	}
	return nil
}
