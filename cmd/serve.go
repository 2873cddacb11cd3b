package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/commonplace/internal/api"
	"github.com/sells-group/commonplace/internal/cache"
	"github.com/sells-group/commonplace/internal/config"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the meeting-point HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initSearch(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		if p, ok := env.Cache.(cache.Purger); ok {
			go purgeLoop(ctx, p, time.Duration(cfg.Cache.PurgeIntervalMins)*time.Minute)
		}

		handler := buildMux(cfg, api.Deps{
			Searcher:  env.Engine,
			Suggester: env.Geocoder,
			Guards:    env.Guards,
		})

		return startServer(ctx, handler, resolvePort(servePort, cfg.Server.Port), shutdownTimeout(cfg))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// resolvePort prefers the flag value over the configured port.
func resolvePort(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	return configured
}

func shutdownTimeout(c *config.Config) time.Duration {
	if c.Server.ShutdownTimeoutSecs <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutSecs) * time.Second
}

func buildMux(c *config.Config, deps api.Deps) http.Handler {
	return api.NewRouter(c, deps)
}

// startServer serves handler on port until ctx ends, then drains in-flight
// requests for up to grace.
func startServer(ctx context.Context, handler http.Handler, port int, grace time.Duration) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "server listen")
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return nil
}

// purgeLoop drops expired cache rows every interval until ctx ends.
func purgeLoop(ctx context.Context, p cache.Purger, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.Purge(ctx)
			if err != nil {
				zap.L().Warn("cache purge failed", zap.Error(err))
				continue
			}
			zap.L().Debug("cache purged", zap.Int64("rows", n))
		}
	}
}
