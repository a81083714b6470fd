package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/folio/config"
	"github.com/jmcleod/folio/devserver"
	"github.com/jmcleod/folio/storage"
	bboltstorage "github.com/jmcleod/folio/storage/bbolt"
	pgstorage "github.com/jmcleod/folio/storage/postgres"
)

var (
	serveAddr        string
	serveDataDir     string
	serveDatabaseURL string
	tlsCert          string
	tlsKey           string
)

type backendStorage interface {
	storage.Repository
	Close() error
}

// openBackendStorage uses PostgreSQL when a database URL is configured and
// a bbolt file under the data directory otherwise.
func openBackendStorage(ctx context.Context, sc config.ServerConfig) (backendStorage, error) {
	if sc.DatabaseURL != "" {
		repo, err := pgstorage.NewRepositoryFromDSN(ctx, sc.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		logger.Info("using postgres storage")
		return repo, nil
	}
	if err := os.MkdirAll(sc.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	path := filepath.Join(sc.DataDir, "folio.db")
	repo, err := bboltstorage.NewRepositoryFromFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	logger.Info("using bbolt storage", slog.String("path", path))
	return repo, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the development backend",
	Long: `Serves the portfolio admin API under /api backed by a bbolt file, or by
PostgreSQL when server.database_url is set. When
server.admin.email and server.admin.password are configured the admin account
is created on first start.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := cfg.Server
		if cmd.Flags().Changed("addr") {
			sc.Addr = serveAddr
		}
		if cmd.Flags().Changed("db-dir") {
			sc.DataDir = serveDataDir
		}
		if cmd.Flags().Changed("database-url") {
			sc.DatabaseURL = serveDatabaseURL
		}

		repo, err := openBackendStorage(cmd.Context(), sc)
		if err != nil {
			return err
		}
		defer repo.Close()

		opts := []devserver.Option{
			devserver.WithLogger(logger),
			devserver.WithTokenTTL(sc.TokenTTL),
		}
		if sc.JWTSecret != "" {
			opts = append(opts, devserver.WithJWTSecret([]byte(sc.JWTSecret)))
		} else {
			logger.Warn("server.jwt_secret not set; tokens will not survive a restart")
		}
		a := devserver.New(repo, opts...)

		if sc.Admin.Email != "" {
			if err := a.Seed(cmd.Context(), devserver.SeedAdmin{
				Email:    sc.Admin.Email,
				Name:     sc.Admin.Name,
				Password: sc.Admin.Password,
			}); err != nil {
				return err
			}
		}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(requestLogger)
		r.Use(middleware.Recoverer)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
		r.Mount("/", a.Handler())

		server := &http.Server{
			Addr:              sc.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if tlsCert != "" && tlsKey != "" {
				err = server.ListenAndServeTLS(tlsCert, tlsKey)
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner(cmd.OutOrStdout())
		logger.Info("starting server", slog.String("addr", sc.Addr), slog.String("data_dir", sc.DataDir))

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("shutting down", slog.String("signal", sig.String()))
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// requestLogger logs one line per request through the process logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.LogAttrs(r.Context(), slog.LevelInfo, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Address to listen on (overrides server.addr)")
	serveCmd.Flags().StringVar(&serveDataDir, "db-dir", "./data", "Directory for the backend database (overrides server.data_dir)")
	serveCmd.Flags().StringVar(&serveDatabaseURL, "database-url", "", "PostgreSQL connection string (overrides server.database_url)")
	serveCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serveCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
}
