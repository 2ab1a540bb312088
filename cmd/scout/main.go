package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/scout-sh/scout/config"
	"github.com/scout-sh/scout/internal/cache"
	"github.com/scout-sh/scout/internal/engine"
	"github.com/scout-sh/scout/internal/report"
	"github.com/scout-sh/scout/internal/research"
	srv "github.com/scout-sh/scout/internal/server"
	"github.com/scout-sh/scout/internal/sources"
	"github.com/scout-sh/scout/internal/store"
	"github.com/scout-sh/scout/provider"
)

func main() {
	var root = &cobra.Command{Use: "scout", Short: "Multi-source research aggregation"}

	var cfgPath string
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path")

	var depth string
	var asJSON bool
	var save bool
	var researchCmd = &cobra.Command{
		Use:   "research [topic]",
		Short: "Run one research query and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if depth == "" {
				depth = cfg.Research.DefaultDepth
			}
			q, err := research.NewQuery(args[0], research.Depth(depth))
			if err != nil {
				return err
			}

			logger := log.New(os.Stderr, "[SCOUT] ", log.LstdFlags)
			var embedder provider.Provider
			if p, perr := provider.NewProvider(provider.Client(cfg.Provider.Type), cfg.Provider.APIKey, cfg.Provider.EmbeddingModel, cfg.Provider.Timeout); perr == nil {
				embedder = p
			} else {
				logger.Printf("embedding provider disabled: %v", perr)
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

			ctx := context.Background()

			var reportCache *cache.ReportCache
			if cfg.Storage.Redis.Enabled {
				rc := cfg.Storage.Redis
				reportCache, err = cache.New(ctx, rc.Host, rc.Port, rc.Password, rc.DB, rc.TTL, rc.Timeout)
				if err != nil {
					logger.Printf("report cache disabled: %v", err)
					reportCache = nil
				} else {
					defer reportCache.Close()
				}
			}

			var rpt research.ResearchReport
			hit := false
			if reportCache != nil {
				cached, cerr := reportCache.Get(ctx, q)
				if cerr == nil {
					rpt, hit = cached, true
				} else if !errors.Is(cerr, cache.ErrMiss) {
					logger.Printf("cache get: %v", cerr)
				}
			}
			if !hit {
				rpt, err = eng.Research(ctx, q)
				if err != nil {
					return err
				}
				if reportCache != nil {
					if err := reportCache.Put(ctx, rpt); err != nil {
						logger.Printf("cache put: %v", err)
					}
				}
			}

			if save {
				st, serr := openStore(ctx, cfg)
				if serr != nil {
					return fmt.Errorf("open store: %w", serr)
				}
				defer st.Close()
				if err := st.SaveReport(ctx, rpt); err != nil {
					return fmt.Errorf("save report: %w", err)
				}
				logger.Printf("saved report %s", rpt.ID)
			}

			if asJSON {
				out, err := json.MarshalIndent(rpt, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}
			fmt.Println(report.Markdown(rpt))
			return nil
		},
	}
	researchCmd.Flags().StringVar(&depth, "depth", "", "research depth (minimal, light, moderate, deep, extensive)")
	researchCmd.Flags().BoolVar(&asJSON, "json", false, "print the raw report JSON instead of markdown")
	researchCmd.Flags().BoolVar(&save, "save", false, "persist the report to Postgres")

	var serveAddr string
	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if serveAddr == "" {
				serveAddr = os.Getenv("SCOUT_HTTP_ADDR")
			}
			return srv.Run(serveAddr, cfgPath)
		},
	}
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :10001)")

	var migDir string
	var direction string
	var steps int
	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			return srv.Migrate(migDir, storeDSN(cfg.Storage.Postgres), direction, steps)
		},
	}
	migrateCmd.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source (file://migrations)")
	migrateCmd.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrateCmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	root.AddCommand(researchCmd, serveCmd, migrateCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// storeDSN builds a Postgres DSN from config; empty when unconfigured so
// DATABASE_URL / POSTGRES_* environment variables can take over.
func storeDSN(pg config.PostgresConfig) string {
	if pg.URL != "" {
		return pg.URL
	}
	if pg.Host == "" || pg.DBName == "" {
		return ""
	}
	port := pg.Port
	if port == "" {
		port = "5432"
	}
	ssl := pg.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", pg.User, pg.Password, pg.Host, port, pg.DBName, ssl)
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	if dsn := storeDSN(cfg.Storage.Postgres); dsn != "" {
		return store.NewWithDSN(ctx, dsn)
	}
	return store.New(ctx)
}
