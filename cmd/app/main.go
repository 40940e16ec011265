package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/homeworkhero/internal/config"
	"github.com/local/homeworkhero/internal/datasets"
	"github.com/local/homeworkhero/internal/dispatcher"
	"github.com/local/homeworkhero/internal/generator"
	"github.com/local/homeworkhero/internal/limiter"
	logpkg "github.com/local/homeworkhero/internal/logger"
	"github.com/local/homeworkhero/internal/metrics"
	"github.com/local/homeworkhero/internal/orchestrator"
	"github.com/local/homeworkhero/internal/queue"
	"github.com/local/homeworkhero/internal/statuscheck"
	"github.com/local/homeworkhero/internal/storage"
	"github.com/local/homeworkhero/internal/store"
	"github.com/local/homeworkhero/internal/themes"
	web "github.com/local/homeworkhero/internal/web"
)

func main() {
	cfgpkg.LoadDotEnv()
	cfg := cfgpkg.FromEnv()

	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Reference data
	hero, err := cfgpkg.LoadHeroConfig(cfg.HeroPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load data config")
	}
	catalog := cfgpkg.DefaultCatalog()
	catalog.DataSources, err = datasets.SourceDatasets(hero)
	if err != nil {
		log.Fatal().Err(err).Str("path", hero.SourceDatasetsFile()).Msg("failed to load data sources")
	}
	log.Info().Int("data_sources", len(catalog.DataSources)).Str("themes_dir", hero.ThemeDir()).Msg("reference data loaded")

	// Queue
	rq, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rq.Close()

	// Status store
	rs, err := store.NewRedisStatus(cfg.Queue.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init redis status store")
	}
	defer rs.Close()

	results, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("failed to init result store")
	}

	checker := statuscheck.New(statuscheck.Options{
		Redis:       rq,
		Storage:     results,
		DatasetsDir: hero.SourceDatasets,
		ThemesDir:   hero.ThemeDir(),
	})

	orch := orchestrator.New(orchestrator.Dependencies{
		Queue:   rq,
		Status:  rs,
		Results: results,
		Health:  checker,
		Limiter: limiter.New(rq.Client(), limiter.Options{Limit: cfg.Server.GenerateRateLimit, Window: time.Minute}),
		Catalog: catalog,
	})
	mux := http.NewServeMux()
	orch.RegisterRoutes(mux)
	web.New(catalog).RegisterRoutes(mux)
	mux.Handle("/metrics", metrics.Handler())

	// Dispatcher worker (optional)
	if cfg.Server.RunDispatcher {
		builder := generator.New(datasets.NewLoader(hero), themes.Dir(hero.ThemeDir()))
		host, _ := os.Hostname()
		disp := dispatcher.New(dispatcher.Config{
			Name:        "hero-" + host,
			Concurrency: cfg.Worker.Concurrency,
			JobTimeout:  cfg.Worker.JobTimeout,
			DequeueWait: cfg.Worker.DequeueWait,
		}, rq, rs, builder, results)
		disp.Start(ctx)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := disp.Stop(sctx); err != nil {
				log.Warn().Err(err).Msg("dispatcher did not stop in time")
			}
		}()
	}

	go reportQueueDepth(ctx, rq)
	if local, ok := results.(*storage.LocalStore); ok && cfg.Storage.RetainFor > 0 {
		go pruneResults(ctx, local, cfg.Storage.RetainFor)
	}

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(sctx)
	log.Info().Msg("shutdown complete")
}

func reportQueueDepth(ctx context.Context, rq *queue.RedisQueue) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stream, dlq, err := rq.Depths(ctx)
			if err != nil {
				log.Debug().Err(err).Msg("queue depth unavailable")
				continue
			}
			metrics.SetQueueDepth("stream", stream)
			metrics.SetQueueDepth("dlq", dlq)
		}
	}
}

func pruneResults(ctx context.Context, s *storage.LocalStore, maxAge time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		if n := s.Prune(maxAge); n > 0 {
			log.Info().Int("removed", n).Dur("max_age", maxAge).Msg("pruned old results")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
