package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"trackbot/internal/bot"
	"trackbot/internal/importer"
	"trackbot/internal/media"
	"trackbot/internal/progress"
	"trackbot/internal/searchcache"
	"trackbot/internal/shutdown"
	"trackbot/internal/transport"
	"trackbot/pkg/utils"
)

func newFetchCommand(opts *rootOptions) *cobra.Command {
	var (
		outDir  string
		index   int
		list    bool
		beets   bool
		beetCmd string
	)

	cmd := &cobra.Command{
		Use:   "fetch [provider] [service] <query>",
		Short: "Search once and save the chosen track locally",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			log := newLogger(cfg, "trackbot-fetch")
			defer log.Close()

			sh := shutdown.New()
			sh.Listen()

			if err := os.MkdirAll(outDir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			client := newLocalClient(cmd.OutOrStdout(), outDir)
			b, err := newBot(cfg, client, media.NewMemoryStore(), newRegistry(cfg), searchcache.New(), log)
			if err != nil {
				return err
			}
			if err := fetch(sh.Context(), b, client, strings.Join(args, " "), index, list); err != nil || !beets || client.saved == "" {
				return err
			}
			return importer.New(beetCmd, cmd.OutOrStdout(), log).Import(sh.Context(), client.saved)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory for the downloaded file")
	cmd.Flags().IntVarP(&index, "index", "i", 1, "Which search result to download (1-based)")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "Only print the search results")
	cmd.Flags().BoolVar(&beets, "import", false, "Move the downloaded file into the beets library")
	cmd.Flags().StringVar(&beetCmd, "beet", "beet", "beets command")
	return cmd
}

func fetch(ctx context.Context, b *bot.Bot, client *localClient, query string, index int, list bool) error {
	if err := b.HandleInlineQuery(ctx, transport.InlineQuery{ID: "cli", Text: query}); err != nil {
		return err
	}
	results := client.answer
	if len(results) == 1 && results[0].ID == bot.NoticeID {
		return errors.New(results[0].Title)
	}

	if list {
		for i, r := range results {
			fmt.Fprintf(client.out, "%2d. %s - %s (%s)\n", i+1, r.Performer, r.Title, r.Duration)
		}
		return nil
	}

	if index < 1 || index > len(results) {
		return fmt.Errorf("result %d out of range, got %d results", index, len(results))
	}
	chosen := results[index-1]

	defer client.cleanup()
	if err := b.HandleInlineSend(ctx, transport.InlineSend{ResultID: chosen.ID, MessageID: "cli"}); err != nil {
		return err
	}
	if client.saved == "" {
		return fmt.Errorf("failed to download %s - %s", chosen.Performer, chosen.Title)
	}
	return nil
}

// localClient is a transport that stores uploads in a directory and renders
// message edits on a terminal status line. Uploads are kept under hidden
// unique names until a media edit claims one; only then is the audio given
// its final name, never replacing an existing file.
type localClient struct {
	out     io.Writer
	dir     string
	console *progress.Console

	mu      sync.Mutex
	answer  []transport.InlineResult
	pending map[string]string // upload path -> original base name
	saved   string
}

func newLocalClient(out io.Writer, dir string) *localClient {
	return &localClient{
		out:     out,
		dir:     dir,
		console: progress.NewConsole(out),
		pending: make(map[string]string),
	}
}

func (c *localClient) Upload(ctx context.Context, path string) ([]byte, error) {
	dst := filepath.Join(c.dir, ".trackbot-"+uuid.NewString()+strings.ToLower(filepath.Ext(path)))
	if err := utils.CopyFile(path, dst, false); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.pending[dst] = filepath.Base(path)
	c.mu.Unlock()
	return []byte(dst), nil
}

func (c *localClient) EditMessage(ctx context.Context, id transport.MessageID, edit transport.Edit) (bool, error) {
	if edit.Media == nil {
		if edit.Button == "" {
			c.console.Finish(edit.Text)
			return true, nil
		}
		return true, c.console.Edit(ctx, edit.Text)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	upload := string(edit.Media.File.Raw)
	name, ok := c.pending[upload]
	if !ok {
		return false, nil
	}
	if _, err := os.Stat(upload); err != nil {
		delete(c.pending, upload)
		return false, nil
	}

	final := freeName(c.dir, name)
	if err := os.Rename(upload, final); err != nil {
		return false, fmt.Errorf("failed to save %s: %w", final, err)
	}
	delete(c.pending, upload)
	c.saved = final

	// Artwork is embedded in the file already.
	if edit.Media.Thumb != nil {
		thumb := string(edit.Media.Thumb.Raw)
		if _, ok := c.pending[thumb]; ok {
			os.Remove(thumb)
			delete(c.pending, thumb)
		}
	}

	c.console.Finish(fmt.Sprintf("Saved %s", final))
	return true, nil
}

// cleanup removes uploads no media edit claimed.
func (c *localClient) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path := range c.pending {
		os.Remove(path)
		delete(c.pending, path)
	}
}

// freeName returns dir/name, or "name (n).ext" when that is taken.
func freeName(dir, name string) string {
	path := filepath.Join(dir, name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
	}
}

func (c *localClient) AnswerInline(ctx context.Context, queryID string, results []transport.InlineResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answer = results
	return nil
}
