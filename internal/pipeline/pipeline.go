// Package pipeline acquires one asset (a track or its cover) and turns it
// into an uploaded media handle, consulting the media cache first.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"trackbot/internal/catalog"
	"trackbot/internal/logger"
	"trackbot/internal/lyrics"
	"trackbot/internal/media"
	"trackbot/internal/progress"
	"trackbot/internal/tagger"
	"trackbot/internal/transport"
	"trackbot/pkg/utils"
)

var (
	// ErrAcquisitionFailed matches every error returned by AcquireTrack and AcquireCover
	// other than ErrNoCover.
	ErrAcquisitionFailed = errors.New("acquisition failed")
	// ErrProcessingFailed marks a tagging or remux failure.
	ErrProcessingFailed = errors.New("processing failed")
	// ErrNoCover is returned by AcquireCover for tracks without artwork.
	ErrNoCover = errors.New("track has no cover art")
)

// Stage names a step of track acquisition.
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageFetched Stage = "fetched"
	StageCover   Stage = "cover"
	StageProcess Stage = "process"
	StageUpload  Stage = "upload"
)

// AcquisitionError reports which stage failed for which asset.
type AcquisitionError struct {
	Asset string
	Stage Stage
	Err   error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s: %s: %v", e.Asset, e.Stage, e.Err)
}

func (e *AcquisitionError) Unwrap() []error {
	return []error{ErrAcquisitionFailed, e.Err}
}

// Resolver opens audio streams; *catalog.Registry implements it.
type Resolver interface {
	Resolve(ctx context.Context, ref catalog.Reference, notify catalog.Notify) (*catalog.Stream, error)
}

// Processor produces the final tagged file; *tagger.Processor implements it.
type Processor interface {
	Process(ctx context.Context, in tagger.Input) (tagger.Output, error)
}

// LyricsFetcher looks up lyrics to embed; *lyrics.Client implements it.
type LyricsFetcher interface {
	Fetch(ctx context.Context, meta catalog.Metadata) (lyrics.Result, error)
}

// Deps wires a Pipeline. Lyrics and HTTPClient are optional.
type Deps struct {
	Store      media.Store
	Resolver   Resolver
	Processor  Processor
	Uploader   transport.Uploader
	Lyrics     LyricsFetcher
	HTTPClient *http.Client
	// Stages maps each stage to the status text shown to the user.
	Stages map[Stage]string
}

// Pipeline runs cache lookup, fetch, processing, upload and cache write.
type Pipeline struct {
	Deps
	log *logger.Logger
}

func New(deps Deps, log *logger.Logger) *Pipeline {
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if deps.Stages == nil {
		deps.Stages = map[Stage]string{}
	}
	return &Pipeline{Deps: deps, log: log.Component("pipeline")}
}

func (p *Pipeline) emit(ctx context.Context, out *progress.Producer, stage Stage) {
	if text, ok := p.Stages[stage]; ok && text != "" {
		out.Send(ctx, text)
	}
}

// AcquireTrack returns the uploaded handle for track's audio. Unless refresh
// is set, a cached handle is returned without any network call or progress.
func (p *Pipeline) AcquireTrack(ctx context.Context, track catalog.Track, refresh bool, out *progress.Producer) (media.Handle, error) {
	if !refresh {
		if h, ok := p.Store.Get(ctx, track.URL); ok {
			p.log.Debug("cache hit for %s", track.URL)
			return h, nil
		}
	}

	fail := func(stage Stage, err error) (media.Handle, error) {
		return media.Handle{}, &AcquisitionError{Asset: track.URL, Stage: stage, Err: err}
	}

	workDir, err := utils.CreateTempDir("trackbot")
	if err != nil {
		return fail(StageFetch, err)
	}
	defer func() {
		if err := utils.Cleanup(workDir); err != nil {
			p.log.Warn("failed to remove %s: %v", workDir, err)
		}
	}()

	p.emit(ctx, out, StageFetch)
	notify := func(text string) {
		out.Send(ctx, strings.ReplaceAll(text, "{title}", track.Title))
	}
	stream, err := p.Resolver.Resolve(ctx, track.Reference, notify)
	if err != nil {
		return fail(StageFetch, err)
	}

	ext, err := tagger.Extension(stream.ContentType, stream.Filename)
	if err != nil {
		stream.Body.Close()
		return fail(StageFetch, fmt.Errorf("%w: %w", ErrProcessingFailed, err))
	}
	rawPath := filepath.Join(workDir, tagger.RawName(track.Metadata, ext))
	size, err := utils.SaveStream(stream.Body, rawPath)
	if err != nil {
		return fail(StageFetch, fmt.Errorf("%w: %w", catalog.ErrUnavailable, err))
	}
	p.log.Debug("fetched %s (%d bytes, %s)", track.URL, size, stream.ContentType)
	p.emit(ctx, out, StageFetched)

	var coverPath string
	if track.CoverURL != "" {
		p.emit(ctx, out, StageCover)
		if coverPath, _, err = p.download(ctx, track.CoverURL, workDir, "cover"); err != nil {
			p.log.Warn("continuing without artwork for %s: %v", track.URL, err)
			coverPath = ""
		}
	}

	p.emit(ctx, out, StageProcess)
	processed, err := p.Processor.Process(ctx, tagger.Input{
		WorkDir:     workDir,
		RawPath:     rawPath,
		ContentType: stream.ContentType,
		CoverPath:   coverPath,
		Lyrics:      p.lookupLyrics(ctx, track),
		Meta:        track.Metadata,
	})
	if err != nil {
		return fail(StageProcess, fmt.Errorf("%w: %w", ErrProcessingFailed, err))
	}

	p.emit(ctx, out, StageUpload)
	raw, err := p.Uploader.Upload(ctx, processed.Path)
	if err != nil {
		return fail(StageUpload, err)
	}

	h := media.Handle{Raw: raw, ContentType: processed.ContentType}
	p.log.Info("acquired %s", track.Display())
	return p.Store.Put(ctx, track.URL, h), nil
}

// AcquireCover returns the uploaded handle for the track's cover art,
// keyed by the cover URL. Returns ErrNoCover when the track has none.
func (p *Pipeline) AcquireCover(ctx context.Context, track catalog.Track, refresh bool) (media.Handle, error) {
	if track.CoverURL == "" {
		return media.Handle{}, ErrNoCover
	}
	if !refresh {
		if h, ok := p.Store.Get(ctx, track.CoverURL); ok {
			return h, nil
		}
	}

	fail := func(stage Stage, err error) (media.Handle, error) {
		return media.Handle{}, &AcquisitionError{Asset: track.CoverURL, Stage: stage, Err: err}
	}

	workDir, err := utils.CreateTempDir("trackbot-cover")
	if err != nil {
		return fail(StageCover, err)
	}
	defer func() {
		if err := utils.Cleanup(workDir); err != nil {
			p.log.Warn("failed to remove %s: %v", workDir, err)
		}
	}()

	path, contentType, err := p.download(ctx, track.CoverURL, workDir, "cover")
	if err != nil {
		return fail(StageCover, err)
	}

	raw, err := p.Uploader.Upload(ctx, path)
	if err != nil {
		return fail(StageUpload, err)
	}

	return p.Store.Put(ctx, track.CoverURL, media.Handle{Raw: raw, ContentType: contentType}), nil
}

func (p *Pipeline) lookupLyrics(ctx context.Context, track catalog.Track) string {
	if p.Lyrics == nil {
		return ""
	}
	res, err := p.Lyrics.Fetch(ctx, track.Metadata)
	if err != nil {
		p.log.Debug("no lyrics for %s: %v", track.Display(), err)
		return ""
	}
	return res.Text()
}
