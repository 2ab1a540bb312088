package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scout-sh/scout/config"
	"github.com/scout-sh/scout/internal/cache"
	"github.com/scout-sh/scout/internal/engine"
	"github.com/scout-sh/scout/internal/research"
	"github.com/scout-sh/scout/internal/sources"
	"github.com/scout-sh/scout/internal/store"
	"github.com/scout-sh/scout/provider"
)

// Run wires the HTTP API and blocks serving it. Postgres is required here
// because the report and subscription endpoints are backed by it; the
// research CLI is the storage-free path.
func Run(addr, cfgPath string) error {
	cfg := config.LoadConfig(cfgPath)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	registerDocs(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	dsn, err := postgresDSN(cfg.Storage.Postgres)
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	var reportCache *cache.ReportCache
	if cfg.Storage.Redis.Enabled {
		rc := cfg.Storage.Redis
		reportCache, err = cache.New(ctx, rc.Host, rc.Port, rc.Password, rc.DB, rc.TTL, rc.Timeout)
		if err != nil {
			return err
		}
	}

	// The embedder is best effort: without one dedup degrades to lexical
	// similarity and the vault serves BM25 only.
	var embedder provider.Provider
	if p, perr := provider.NewProvider(provider.Client(cfg.Provider.Type), cfg.Provider.APIKey, cfg.Provider.EmbeddingModel, cfg.Provider.Timeout); perr == nil {
		embedder = p
	} else {
		baseLogger.Printf("embedding provider disabled: %v", perr)
	}

	adapters, extractor := sources.Build(cfg.Sources, embedder)
	eng := engine.New(engine.Options{
		Adapters:             adapters,
		Embedder:             embedder,
		Extractor:            extractor,
		MaxConcurrentSources: cfg.Research.MaxConcurrentSources,
		MaxCostUSD:           cfg.Research.MaxCostUSD,
		UpgradeTopN:          cfg.Research.UpgradeTopN,
	})

	api := e.Group("/api")
	var guard echo.MiddlewareFunc
	if cfg.Server.AuthEnabled {
		if cfg.Server.JWTSecret == "" || cfg.Server.AdminPasswordHash == "" {
			return fmt.Errorf("auth enabled but server.jwt_secret or server.admin_password_hash not configured")
		}
		auth := &AuthHandler{Secret: []byte(cfg.Server.JWTSecret), PasswordHash: cfg.Server.AdminPasswordHash}
		auth.Register(api)
		guard = authMiddleware([]byte(cfg.Server.JWTSecret))
	}
	protected := func(prefix string) *echo.Group {
		if guard != nil {
			return api.Group(prefix, guard)
		}
		return api.Group(prefix)
	}

	rh := &ResearchHandler{
		Engine:       eng,
		Store:        st,
		Cache:        reportCache,
		DefaultDepth: research.Depth(cfg.Research.DefaultDepth),
		Logger:       log.New(log.Writer(), "[SERVER] ", log.LstdFlags),
	}
	rh.Register(protected(""))
	(&ReportsHandler{Store: st}).Register(protected("/reports"))
	(&SubscriptionsHandler{Store: st}).Register(protected("/subscriptions"))

	sched := &Scheduler{Store: st, Engine: eng, Cache: reportCache, Stop: make(chan struct{})}
	sched.Start()

	if addr == "" {
		addr = cfg.Server.Address
		if addr != "" && addr[0] != ':' {
			addr = ":" + addr
		}
		if addr == "" {
			addr = ":10001"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// postgresDSN builds a DSN from config, preferring an explicit URL.
func postgresDSN(pg config.PostgresConfig) (string, error) {
	if pg.URL != "" {
		return pg.URL, nil
	}
	if pg.Host == "" || pg.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := pg.Port
	if port == "" {
		port = "5432"
	}
	ssl := pg.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", pg.User, pg.Password, pg.Host, port, pg.DBName, ssl), nil
}
