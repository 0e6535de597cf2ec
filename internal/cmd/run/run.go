package run

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/docuflow/content-migrator/internal/batch"
	"github.com/docuflow/content-migrator/internal/config"
	"github.com/docuflow/content-migrator/internal/migration"
	"github.com/docuflow/content-migrator/internal/model"
	registrymigrate "github.com/docuflow/content-migrator/internal/registry/migrate"
	registrystore "github.com/docuflow/content-migrator/internal/registry/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	// Import store plugins to trigger init() registration.
	_ "github.com/docuflow/content-migrator/internal/plugin/store/mongo"
	_ "github.com/docuflow/content-migrator/internal/plugin/store/sql"
)

// Command returns the run sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	return &cli.Command{
		Name:  "run",
		Usage: "Run the content migration",
		Flags: flags(&cfg),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(config.WithContext(ctx, &cfg), &cfg)
		},
	}
}

func flags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{

		// ── Database ──────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "db-url",
			Category:    "Database:",
			Sources:     cli.EnvVars("CONTENT_MIGRATOR_DB_URL"),
			Destination: &cfg.DBURL,
			Usage:       "Database connection URL",
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "db-kind",
			Category:    "Database:",
			Sources:     cli.EnvVars("CONTENT_MIGRATOR_DB_KIND"),
			Destination: &cfg.DatastoreType,
			Value:       cfg.DatastoreType,
			Usage:       "Store backend (postgres|sqlite|mongo)",
		},
		&cli.BoolFlag{
			Name:        "migrate-at-start",
			Category:    "Database:",
			Sources:     cli.EnvVars("CONTENT_MIGRATOR_MIGRATE_AT_START"),
			Destination: &cfg.DatastoreMigrateAtStart,
			Value:       cfg.DatastoreMigrateAtStart,
			Usage:       "Run schema migrations before the migration starts",
		},
		&cli.IntFlag{
			Name:        "db-max-open-conns",
			Category:    "Database:",
			Sources:     cli.EnvVars("CONTENT_MIGRATOR_DB_MAX_OPEN_CONNS"),
			Destination: &cfg.DBMaxOpenConns,
			Value:       cfg.DBMaxOpenConns,
			Usage:       "Maximum open database connections",
		},
		&cli.IntFlag{
			Name:        "db-max-idle-conns",
			Category:    "Database:",
			Sources:     cli.EnvVars("CONTENT_MIGRATOR_DB_MAX_IDLE_CONNS"),
			Destination: &cfg.DBMaxIdleConns,
			Value:       cfg.DBMaxIdleConns,
			Usage:       "Maximum idle database connections",
		},

		// ── Migration ─────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "actor-id",
			Category:    "Migration:",
			Sources:     cli.EnvVars("CONTENT_MIGRATOR_ACTOR_ID"),
			Destination: &cfg.ActorID,
			Usage:       "Identity performing the migration; owners matching it get no collaborate grant",
			Required:    true,
		},
		&cli.IntFlag{
			Name:        "chunk-size",
			Category:    "Migration:",
			Sources:     cli.EnvVars("CONTENT_MIGRATOR_CHUNK_SIZE"),
			Destination: &cfg.ChunkSize,
			Value:       cfg.ChunkSize,
			Usage:       "Source records converted per chunk",
		},
		&cli.BoolFlag{
			Name:        "delete-sources",
			Category:    "Migration:",
			Sources:     cli.EnvVars("CONTENT_MIGRATOR_DELETE_SOURCES"),
			Destination: &cfg.DeleteSources,
			Usage:       "Delete source records after each chunk fully converts",
		},
		&cli.StringFlag{
			Name:        "kinds",
			Category:    "Migration:",
			Sources:     cli.EnvVars("CONTENT_MIGRATOR_KINDS"),
			Destination: &cfg.SourceKinds,
			Value:       cfg.SourceKinds,
			Usage:       "Comma-separated record kinds to migrate (attachments,notes)",
		},

		// ── Management ────────────────────────────────────────────
		&cli.IntFlag{
			Name:        "management-port",
			Category:    "Management:",
			Sources:     cli.EnvVars("CONTENT_MIGRATOR_MANAGEMENT_PORT"),
			Destination: &cfg.ManagementPort,
			Usage:       "Port for /health, /ready and /metrics during the run; 0 disables",
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.DatastoreMigrateAtStart {
		if err := registrymigrate.RunAll(ctx); err != nil {
			return err
		}
	}

	loader, err := registrystore.Select(cfg.DatastoreType)
	if err != nil {
		return err
	}
	store, err := loader(ctx)
	if err != nil {
		return err
	}

	if cfg.ManagementPort > 0 {
		startManagementListener(ctx, cfg.ManagementPort)
	}

	runner := batch.Runner{ChunkSize: cfg.ChunkSize}
	kinds := cfg.Kinds()
	if len(kinds) == 0 {
		return fmt.Errorf("no source kinds selected: %q", cfg.SourceKinds)
	}
	for _, kind := range kinds {
		var job *migration.Job
		switch kind {
		case model.SourceKindNote:
			job = migration.NewNoteJob(store, cfg.ActorID, cfg.DeleteSources)
		default:
			job = migration.NewAttachmentJob(store, cfg.ActorID, cfg.DeleteSources)
		}
		log.Info("Starting migration", "kind", kind, "chunkSize", runner.ChunkSize, "deleteSources", cfg.DeleteSources)
		if err := batch.Run(ctx, runner, job); err != nil {
			return err
		}
	}
	log.Info("Migration complete")
	return nil
}

// startManagementListener serves liveness and metrics endpoints while a
// long migration runs. Listener errors are logged, not fatal.
func startManagementListener(ctx context.Context, port int) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
	router.GET("/ready", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	go func() {
		log.Info("Management listener started", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Management listener failed", "err", err)
		}
	}()
}
