// Package progress carries human-readable stage updates from acquisition
// work to a single status-message editor.
//
// A Reporter owns a bounded channel and one consumer goroutine. Producers
// are reference counted: Clone adds one, Release drops one, and once the last
// producer is released the channel closes and the consumer exits.
package progress

import (
	"context"
	"sync"

	"trackbot/internal/logger"
)

// DefaultBuffer is the number of in-flight messages before senders block.
const DefaultBuffer = 16

// Editor applies one status text. Errors are logged and otherwise ignored.
type Editor func(ctx context.Context, text string) error

// Reporter is the consuming side of a progress channel.
type Reporter struct {
	ch   chan string
	done chan struct{}
	log  *logger.Logger

	mu         sync.Mutex
	producers  int
	sent       uint64
	handled    uint64
	progressed chan struct{}
}

// Producer sends status messages into a Reporter. A nil Producer discards everything.
type Producer struct {
	r        *Reporter
	mu       sync.Mutex
	released bool
}

// Start spawns the consumer and returns the reporter with its first producer.
// Editor calls use ctx.
func Start(ctx context.Context, buffer int, edit Editor, log *logger.Logger) (*Reporter, *Producer) {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	r := &Reporter{
		ch:         make(chan string, buffer),
		done:       make(chan struct{}),
		log:        log,
		producers:  1,
		progressed: make(chan struct{}),
	}
	go r.consume(ctx, edit)
	return r, &Producer{r: r}
}

func (r *Reporter) consume(ctx context.Context, edit Editor) {
	defer close(r.done)
	for text := range r.ch {
		if err := edit(ctx, text); err != nil {
			r.log.Debug("status edit %q failed: %v", text, err)
		}

		r.mu.Lock()
		r.handled++
		close(r.progressed)
		r.progressed = make(chan struct{})
		r.mu.Unlock()
	}
}

// Done is closed once every producer was released and the consumer drained the channel.
func (r *Reporter) Done() <-chan struct{} {
	return r.done
}

// Flush waits until every message sent so far has been passed to the editor.
func (r *Reporter) Flush(ctx context.Context) error {
	r.mu.Lock()
	target := r.sent
	r.mu.Unlock()

	for {
		r.mu.Lock()
		if r.handled >= target {
			r.mu.Unlock()
			return nil
		}
		wait := r.progressed
		r.mu.Unlock()

		select {
		case <-wait:
		case <-r.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Send queues text, blocking while the buffer is full.
// Messages from one producer reach the editor in send order.
func (p *Producer) Send(ctx context.Context, text string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}

	select {
	case p.r.ch <- text:
		p.r.mu.Lock()
		p.r.sent++
		p.r.mu.Unlock()
	case <-ctx.Done():
	}
}

// Clone returns a new producer on the same channel.
func (p *Producer) Clone() *Producer {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return &Producer{r: p.r, released: true}
	}

	p.r.mu.Lock()
	p.r.producers++
	p.r.mu.Unlock()
	return &Producer{r: p.r}
}

// Release drops this producer. Releasing twice is a no-op.
func (p *Producer) Release() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}
	p.released = true

	p.r.mu.Lock()
	p.r.producers--
	last := p.r.producers == 0
	p.r.mu.Unlock()

	if last {
		close(p.r.ch)
	}
}
