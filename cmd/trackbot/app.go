package main

import (
	"fmt"

	"trackbot/internal/bot"
	"trackbot/internal/catalog"
	"trackbot/internal/config"
	"trackbot/internal/delivery"
	"trackbot/internal/logger"
	"trackbot/internal/lyrics"
	"trackbot/internal/media"
	"trackbot/internal/metadata"
	"trackbot/internal/metadata/deezer"
	"trackbot/internal/metadata/itunes"
	"trackbot/internal/metadata/musicbrainz"
	"trackbot/internal/pipeline"
	"trackbot/internal/provider/hifi"
	"trackbot/internal/provider/lucida"
	"trackbot/internal/provider/yandex"
	"trackbot/internal/searchcache"
	"trackbot/internal/tagger"
	"trackbot/internal/transport"
	"trackbot/pkg/utils"
)

// newRegistry builds one provider per configured service section.
func newRegistry(cfg config.Config) *catalog.Registry {
	reg := catalog.NewRegistry()
	if p := cfg.Providers.Hifi; p != nil {
		reg.Register(hifi.New(p.APIURL, p.WebURL, p.Token, p.Quality))
	}
	if p := cfg.Providers.Yandex; p != nil {
		reg.Register(yandex.New(p.APIURL, p.WebURL, p.Token))
	}
	if p := cfg.Providers.Lucida; p != nil {
		reg.Register(lucida.New(p.APIURL, p.Service))
	}
	return reg
}

// newEnricher asks the configured metadata sources in order; nil when none are set.
func newEnricher(cfg config.Config, log *logger.Logger) bot.Enricher {
	var sources []metadata.Provider
	for _, name := range cfg.Enrich {
		switch name {
		case "deezer":
			sources = append(sources, deezer.New())
		case "itunes":
			sources = append(sources, itunes.New())
		case "musicbrainz":
			sources = append(sources, musicbrainz.New())
		}
	}
	if len(sources) == 0 {
		return nil
	}
	return metadata.NewEnricher(sources, log, 0)
}

// newBot wires the search cache, acquisition pipeline and delivery retrier
// around client.
func newBot(cfg config.Config, client transport.Client, store media.Store, reg *catalog.Registry, results *searchcache.Cache, log *logger.Logger) (*bot.Bot, error) {
	if err := utils.CheckFFmpeg(cfg.FFmpegPath); err != nil {
		return nil, fmt.Errorf("dependency check failed: %w", err)
	}

	msgs := bot.MessagesFor(cfg.Locale)
	deps := pipeline.Deps{
		Store:     store,
		Resolver:  reg,
		Processor: tagger.New(cfg.FFmpegPath, log),
		Uploader:  client,
		Stages:    msgs.Stages,
	}
	if cfg.Lyrics {
		deps.Lyrics = lyrics.NewClient("")
	}
	pipe := pipeline.New(deps, log)

	retrier := delivery.New(pipe, client, delivery.Texts{Button: msgs.Downloading, Failed: msgs.Failed}, cfg.ProgressBuffer, log)

	return bot.New(client, reg, results, retrier, bot.Options{
		DefaultProvider: catalog.Tag(cfg.DefaultProvider),
		SearchLimit:     cfg.SearchLimit,
		PlaceholderURL:  cfg.PlaceholderURL,
		Messages:        msgs,
		Enricher:        newEnricher(cfg, log),
	}, log), nil
}
