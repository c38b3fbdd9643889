package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"inboxd/internal/archiver"
	"inboxd/pkg/api"
	"inboxd/pkg/banner"
	"inboxd/pkg/config"
	"inboxd/pkg/directory"
	"inboxd/pkg/dispatch"
	"inboxd/pkg/ingest"
	"inboxd/pkg/logger"
	"inboxd/pkg/query"
	"inboxd/pkg/shutdown"
	"inboxd/pkg/stats"
	"inboxd/pkg/store"
	"inboxd/pkg/suggest"
	"inboxd/pkg/validation"
)

func main() {
	// build metadata - set via ldflags during build/release
	var version = "dev"

	_ = godotenv.Load(".env")

	var (
		addrFlag = flag.String("addr", "", "operator API listen address (host:port)")
		dbFlag   = flag.String("db", "", "storage path")
		cfgFlag  = flag.String("config", "", "path to config file")
	)
	flag.Parse()

	cfgPath := *cfgFlag
	if cfgPath == "" {
		cfgPath = os.Getenv("INBOXD_CONFIG")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		shutdown.Abort("load config", err)
	}
	dbPath := cfg.Storage.DBPath
	if *dbFlag != "" {
		dbPath = *dbFlag
	}
	if dbPath == "" {
		dbPath = "./inboxd-data"
	}

	logger.InitWithLevel(cfg.Logging.Level)
	validation.SetRules(validation.Rules{MaxContentLen: cfg.Validation.MaxContentLen})

	agg := stats.New()
	st, err := store.Open(dbPath, agg)
	if err != nil {
		shutdown.Abort("open store", err)
	}

	dir, err := directory.New(st)
	if err != nil {
		shutdown.Abort("load directory", err)
	}
	eng := query.New(st)

	disp := dispatch.New(st, dispatch.NopConnector{}, dispatch.Options{
		ArchivedReplyPolicy: cfg.Dispatch.ArchivedReplyPolicy,
		MaxAttempts:         cfg.Dispatch.MaxAttempts,
		BackoffBase:         cfg.DispatchBackoffBase(),
	})

	var sug suggest.Suggester = suggest.StaticSuggester{}
	if cfg.Suggest.Endpoint != "" {
		sug = suggest.NewHTTPSuggester(cfg.Suggest.Endpoint)
	}
	var cache suggest.Cache = suggest.NewMemoryCache()
	if cfg.Suggest.RedisAddr != "" {
		rc, err := suggest.NewRedisCache(context.Background(), cfg.Suggest.RedisAddr)
		if err != nil {
			logger.Warn("redis_cache_unavailable", "addr", cfg.Suggest.RedisAddr, "error", err)
		} else {
			cache = rc
			defer rc.Close()
		}
	}
	sugg := suggest.New(st, sug, cache, suggest.Options{
		Timeout:       cfg.SuggestTimeout(),
		ContextWindow: cfg.Suggest.ContextWindow,
	})

	queue := ingest.NewQueue(cfg.Webhook.QueueCapacity)
	pool := ingest.NewPool(queue, dir)
	pool.Start(cfg.Webhook.Workers)

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if cfg.Archiver.Enabled {
		stopArchiver, err := archiver.Start(ctx, st, archiver.Options{
			Cron:      cfg.Archiver.Cron,
			IdleAfter: cfg.ArchiverIdleAfter(),
		})
		if err != nil {
			shutdown.Abort("start archiver", err)
		}
		defer stopArchiver()
	}

	srv := api.NewServer(st, eng, disp, sugg, agg, cfg)
	srv.AttachQueue(queue)

	addr := cfg.Addr()
	if *addrFlag != "" {
		addr = *addrFlag
	}

	banner.Print(cfg, version)

	httpSrv := &http.Server{Addr: addr, Handler: srv.Router()}
	go func() {
		logger.Info("api_listener_started", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			shutdown.Abort("api listener", err)
		}
	}()

	whSrv := api.NewWebhookServer(queue)
	go func() {
		if err := whSrv.ListenAndServe(cfg.WebhookAddr()); err != nil {
			shutdown.Abort("webhook listener", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting_down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	_ = httpSrv.Shutdown(shutCtx)
	_ = whSrv.Shutdown()
	pool.Stop()
	if err := st.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
	logger.Info("shutdown_complete")
}
