// Package bot handles inbound inline events: it answers search queries from
// the providers and hands selected results to the delivery retrier.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trackbot/internal/catalog"
	"trackbot/internal/delivery"
	"trackbot/internal/logger"
	"trackbot/internal/searchcache"
	"trackbot/internal/transport"
)

// ErrStaleReference is returned when a selected result is no longer cached.
var ErrStaleReference = errors.New("stale result reference")

// NoticeID marks inline results that only carry a message.
const NoticeID = "notice"

// Providers looks up search backends; *catalog.Registry implements it.
type Providers interface {
	Get(tag catalog.Tag) (catalog.Provider, error)
}

// Deliverer turns a selection into an audio message; *delivery.Retrier implements it.
type Deliverer interface {
	Deliver(ctx context.Context, id transport.MessageID, track catalog.Track) delivery.Outcome
}

// Enricher fills metadata gaps before delivery; *metadata.Enricher implements it.
type Enricher interface {
	Enrich(ctx context.Context, track catalog.Track) catalog.Track
}

// Options tune query handling. Enricher may be nil.
type Options struct {
	DefaultProvider catalog.Tag
	SearchLimit     int
	PlaceholderURL  string
	Messages        Messages
	Enricher        Enricher
}

// Bot routes inline queries and selections.
type Bot struct {
	client    transport.Client
	providers Providers
	results   *searchcache.Cache
	deliverer Deliverer
	opts      Options
	log       *logger.Logger
}

func New(client transport.Client, providers Providers, results *searchcache.Cache, deliverer Deliverer, opts Options, log *logger.Logger) *Bot {
	return &Bot{
		client:    client,
		providers: providers,
		results:   results,
		deliverer: deliverer,
		opts:      opts,
		log:       log.Component("bot"),
	}
}

// Query is a parsed inline query.
type Query struct {
	Provider catalog.Tag
	Service  string
	Text     string
}

// ParseQuery splits "[provider] [service] text". A leading token naming a
// registered provider selects it, otherwise the default provider is used.
// A service token is only recognised for providers that search named
// services. Tokens starting with "/" must name a provider.
func (b *Bot) ParseQuery(text string) (Query, string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Query{}, b.opts.Messages.EnterQuery
	}

	q := Query{Provider: b.opts.DefaultProvider}
	head := strings.TrimPrefix(fields[0], "/")
	if _, err := b.providers.Get(catalog.Tag(head)); err == nil {
		q.Provider = catalog.Tag(head)
		fields = fields[1:]
	} else if strings.HasPrefix(fields[0], "/") {
		return Query{}, b.opts.Messages.UnknownCommand
	}

	if len(fields) > 0 {
		if p, err := b.providers.Get(q.Provider); err == nil {
			if ss, ok := p.(catalog.ServiceSearcher); ok && ss.HasService(fields[0]) {
				q.Service = fields[0]
				fields = fields[1:]
			}
		}
	}

	if len(fields) == 0 {
		return Query{}, b.opts.Messages.EnterQuery
	}
	q.Text = strings.Join(fields, " ")
	return q, ""
}

// HandleInlineQuery searches and answers q. User-facing failures are
// answered with a notice; the returned error only reports transport problems.
func (b *Bot) HandleInlineQuery(ctx context.Context, iq transport.InlineQuery) error {
	q, notice := b.ParseQuery(iq.Text)
	if notice != "" {
		return b.notice(ctx, iq.ID, notice)
	}

	tracks, err := b.search(ctx, q)
	if err != nil {
		b.log.Warn("search %q on %s failed: %v", q.Text, q.Provider, err)
		if errors.Is(err, catalog.ErrUnknownProvider) {
			return b.notice(ctx, iq.ID, b.opts.Messages.UnknownService)
		}
		return b.notice(ctx, iq.ID, b.opts.Messages.ServiceUnavailable)
	}

	tracks = catalog.KeepValid(tracks, func(t catalog.Track, err error) {
		b.log.Warn("dropping %s result %s: %v", q.Provider, t.URL, err)
	})
	if len(tracks) == 0 {
		return b.notice(ctx, iq.ID, b.opts.Messages.NothingFound)
	}

	entries := b.results.Populate(tracks, b.opts.SearchLimit)
	results := make([]transport.InlineResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, transport.InlineResult{
			ID:        ResultID(e.Track.Provider, e.Key),
			Title:     e.Track.Title,
			Performer: e.Track.PrimaryArtist(),
			Duration:  e.Track.Duration(),
			AudioURL:  b.opts.PlaceholderURL,
			ThumbURL:  e.Track.CoverURL,
			Button:    b.opts.Messages.Downloading,
		})
	}
	b.log.Debug("answering %q with %d results", iq.Text, len(results))
	return b.client.AnswerInline(ctx, iq.ID, results)
}

func (b *Bot) search(ctx context.Context, q Query) ([]catalog.Track, error) {
	p, err := b.providers.Get(q.Provider)
	if err != nil {
		return nil, err
	}
	if q.Service != "" {
		return p.(catalog.ServiceSearcher).SearchService(ctx, q.Service, q.Text)
	}
	return p.Search(ctx, q.Text, 0)
}

func (b *Bot) notice(ctx context.Context, queryID, text string) error {
	return b.client.AnswerInline(ctx, queryID, []transport.InlineResult{{ID: NoticeID, Title: text}})
}

// HandleInlineSend delivers the track behind a selected result. A result
// that was swept from the cache turns the message into the stale notice
// and returns ErrStaleReference without contacting any provider.
func (b *Bot) HandleInlineSend(ctx context.Context, s transport.InlineSend) error {
	if s.ResultID == NoticeID {
		return nil
	}

	track, ok := b.lookup(s.ResultID)
	if !ok {
		if _, err := b.client.EditMessage(ctx, s.MessageID, transport.Edit{Text: b.opts.Messages.Stale}); err != nil {
			b.log.Warn("failed to mark %s stale: %v", s.MessageID, err)
		}
		return fmt.Errorf("result %q: %w", s.ResultID, ErrStaleReference)
	}

	if b.opts.Enricher != nil {
		track = b.opts.Enricher.Enrich(ctx, track)
	}

	out := b.deliverer.Deliver(ctx, s.MessageID, track)
	if out.State != delivery.Delivered {
		b.log.Error("giving up on %s after %d attempt(s): %v", track.Display(), out.Attempts, out.Err)
	}
	return nil
}

func (b *Bot) lookup(resultID string) (catalog.Track, bool) {
	_, key, ok := SplitResultID(resultID)
	if !ok {
		return catalog.Track{}, false
	}
	return b.results.Lookup(key)
}

// ResultID formats the inline result id "<provider>|<key>".
func ResultID(tag catalog.Tag, key string) string {
	return string(tag) + "|" + key
}

// SplitResultID reverses ResultID.
func SplitResultID(id string) (catalog.Tag, string, bool) {
	tag, key, ok := strings.Cut(id, "|")
	if !ok || tag == "" || len(key) != searchcache.KeyLength {
		return "", "", false
	}
	return catalog.Tag(tag), key, true
}
