package progress

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Console renders status updates as a single rewritten terminal line.
// Its Edit method satisfies Editor, so a Reporter can drive it directly.
type Console struct {
	out       io.Writer
	mu        sync.Mutex
	startTime time.Time
	stage     int
	width     int
	done      bool
}

// NewConsole creates a status line writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out, startTime: time.Now()}
}

// Edit replaces the current line with text.
func (c *Console) Edit(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		return nil
	}
	c.stage++
	return c.render(text)
}

// Finish prints a final line and moves to the next one.
func (c *Console) Finish(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		return
	}
	c.render(text)
	fmt.Fprintln(c.out)
	c.done = true
}

func (c *Console) render(text string) error {
	line := fmt.Sprintf("[%d] %s - Elapsed: %s", c.stage, text, formatDuration(time.Since(c.startTime)))

	// Pad to wipe leftovers of a longer previous line
	pad := c.width - len(line)
	if pad < 0 {
		pad = 0
	}
	c.width = len(line)

	_, err := fmt.Fprintf(c.out, "\r%s%*s", line, pad, "")
	return err
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
