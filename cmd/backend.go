package cmd

import (
	"fmt"

	"github.com/Bitlatte/readnext/internal/analytics"
	"github.com/Bitlatte/readnext/internal/config"
	"github.com/Bitlatte/readnext/internal/content"
	"github.com/Bitlatte/readnext/internal/engine"
	"github.com/Bitlatte/readnext/internal/logger"
	"github.com/Bitlatte/readnext/internal/prefs"
	"github.com/Bitlatte/readnext/internal/progress"
	"github.com/Bitlatte/readnext/internal/relevance"
	"github.com/Bitlatte/readnext/internal/site"
)

func siteOptions(cfg config.Config) site.Options {
	return site.Options{
		SiteTitle:    cfg.SiteTitle,
		BaseURL:      cfg.BaseURL,
		ContentDir:   cfg.ContentDir,
		LayoutsDir:   cfg.LayoutsDir,
		StaticDir:    cfg.StaticDir,
		OutputDir:    cfg.OutputDir,
		RelatedLimit: cfg.Ranking.Limit,
		Weights:      cfg.RankingWeights(),
	}
}

// backend is an engine together with the profile KV and analytics sink
// behind it.
type backend struct {
	engine *engine.Engine
	kv     prefs.KV
	close  func()
}

// openBackend opens the configured store and analytics sink and builds an
// engine over them. The catalog is loaded from the content directory unless
// withCatalog is false.
func openBackend(cfg config.Config, log logger.Logger, withCatalog bool) (*backend, error) {
	kv, closeKV, err := prefs.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}

	sink, stopSink, err := analytics.Open(cfg.Analytics, log.With(logger.String("component", "analytics")))
	if err != nil {
		_ = closeKV()
		return nil, fmt.Errorf("open analytics sink: %w", err)
	}

	stores := engine.VisitorStoresSize(kv, log.With(logger.String("component", "prefs")), cfg.Server.VisitorCache)
	eng := engine.New(relevance.NewRanker(cfg.RankingWeights()), stores, sink, log,
		engine.WithLimit(cfg.Ranking.Limit),
		engine.WithTracker(progress.NewTrackerSize(cfg.Server.VisitorCache*len(progress.Milestones))),
	)

	be := &backend{
		engine: eng,
		kv:     kv,
		close: func() {
			stopSink()
			if err := closeKV(); err != nil {
				log.Warn("Failed to close profile store", logger.Error(err))
			}
		},
	}

	if withCatalog {
		items, err := content.NewLoader(log).Load(cfg.ContentDir)
		if err != nil {
			be.close()
			return nil, err
		}
		eng.SetCatalog(items)
	}
	return be, nil
}
