package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	apihttp "sites-spectral/internal/api/http"
	"sites-spectral/internal/audit"
	"sites-spectral/internal/auth"
	"sites-spectral/internal/config"
	"sites-spectral/internal/masterdata/application"
	masterdatarepo "sites-spectral/internal/masterdata/infrastructure/postgres"
	"sites-spectral/internal/observability/logging"
	"sites-spectral/internal/observability/metrics"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "sites-spectral",
		Short:         "Station, platform, instrument and ROI metadata service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default $"+config.EnvConfigPath+")")
	root.AddCommand(serveCommand(), migrateCommand(), tokenCommand(), userCommand(), exportCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// appEnv holds what every database-backed command needs.
type appEnv struct {
	cfg config.Config
	log *logrus.Logger
	db  *sql.DB
}

func open(ctx context.Context) (*appEnv, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL or PG_DSN is required")
	}
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return &appEnv{cfg: cfg, log: log, db: db}, nil
}

func (rt *appEnv) catalog() (*application.Catalog, error) {
	return application.NewCatalog(masterdatarepo.NewStore(rt.db))
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := open(ctx)
			if err != nil {
				return err
			}
			defer rt.db.Close()
			cfg, log := rt.cfg, rt.log
			if err := cfg.ValidateServe(); err != nil {
				return err
			}

			metrics.Init(rt.db, log)
			catalog, err := rt.catalog()
			if err != nil {
				return err
			}
			issuer, err := auth.NewTokenIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
			if err != nil {
				return err
			}
			login, err := auth.NewLoginService(auth.NewPostgresUserRepository(rt.db), issuer)
			if err != nil {
				return err
			}
			auditRepo := audit.NewRepository(rt.db)
			limits := audit.Limits{Window: cfg.RateLimit.Window, Delete: cfg.RateLimit.Delete, Mutation: cfg.RateLimit.Mutation}

			server, err := apihttp.NewServer(apihttp.Deps{
				Catalog:       catalog,
				Login:         login,
				Limiter:       audit.NewRateLimiter(auditRepo, limits, log),
				Recorder:      audit.NewRecorder(auditRepo, log),
				Log:           log,
				JWTSecret:     []byte(cfg.Auth.JWTSecret),
				ImportSecret:  []byte(cfg.Import.HMACSecret),
				ImportMaxSkew: cfg.Import.MaxSkew(),
				Version:       cfg.Version,
			})
			if err != nil {
				return err
			}

			httpServer := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           server.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errs := make(chan error, 1)
			go func() {
				log.WithField("addr", cfg.HTTPAddr).Info("http listening")
				errs <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errs:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}
}
