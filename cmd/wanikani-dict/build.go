package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Sternrassler/wanikani-dict/internal/config"
	"github.com/Sternrassler/wanikani-dict/pkg/archive"
	"github.com/Sternrassler/wanikani-dict/pkg/client"
	"github.com/Sternrassler/wanikani-dict/pkg/loader"
	"github.com/Sternrassler/wanikani-dict/pkg/logging"
	"github.com/Sternrassler/wanikani-dict/pkg/metrics"
	"github.com/Sternrassler/wanikani-dict/pkg/pagination"
	"github.com/Sternrassler/wanikani-dict/pkg/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Fetch all kanji and vocabulary subjects and write the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}

			out := cmd.ErrOrStderr()
			logging.Setup(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Output: out})

			return runBuild(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.String(config.KeyToken, "", "WaniKani personal access token")
	flags.String(config.KeyBaseURL, client.DefaultBaseURL, "WaniKani API root")
	flags.String(config.KeyAPIRevision, "", "Value of the Wanikani-Revision header")
	flags.StringP(config.KeyOut, "o", config.DefaultOut, `Archive path ("-" for stdout)`)
	flags.Int(config.KeyMaxPages, config.DefaultMaxPages, "Abort after this many pages (0 for no limit)")
	flags.String(config.KeyRedisAddr, "", "Redis address for archive reuse (empty disables)")
	flags.Duration(config.KeyCacheTTL, config.DefaultCacheTTL, "Lifetime of a stored archive (0 keeps it)")
	flags.Bool(config.KeyRefresh, false, "Rebuild even when a stored archive exists")
	flags.String(config.KeyMetricsAddr, "", "Serve /metrics on this address during the build")

	return cmd
}

// runBuild produces the archive from the store or the API and writes it.
func runBuild(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	logger := logging.NewLogger("cli")

	if cfg.Metrics.Addr != "" {
		stopMetrics := serveMetrics(cfg.Metrics.Addr, logger)
		defer stopMetrics()
	}

	var (
		archives *store.Manager
		key      store.Key
	)
	if cfg.RedisAddr != "" {
		redisClient, err := connectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, building without store")
		} else {
			defer redisClient.Close()
			archives = store.NewManager(redisClient)
			key = store.Key{
				Revision:    archive.DefaultManifest.Revision,
				Fingerprint: store.FingerprintToken(cfg.Token),
			}
		}
	}

	if archives != nil && !cfg.Refresh {
		entry, err := archives.Get(ctx, key)
		switch {
		case err == nil:
			logger.Info().
				Str("key", key.String()).
				Int("bytes", entry.Size).
				Dur("age", entry.Age()).
				Msg("Using stored archive")
			return writeArchive(cfg.Output.Path, entry.Data, stdout, logger)
		case !errors.Is(err, store.ErrNotFound):
			logger.Warn().Err(err).Msg("Store lookup failed, rebuilding")
		}
	}

	data, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if archives != nil {
		if err := archives.Save(ctx, key, data, cfg.TTL); err != nil {
			logger.Warn().Err(err).Msg("Failed to store archive")
		}
	}

	return writeArchive(cfg.Output.Path, data, stdout, logger)
}

func build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) ([]byte, error) {
	wk, err := client.New(cfg.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	opts := loader.DefaultOptions()
	opts.Pagination = pagination.Config{MaxPages: cfg.MaxPages}
	opts.OnProgress = func(p loader.Progress) {
		logger.Info().
			Int("page", p.Page).
			Int("records", len(p.Records)).
			Int("received", p.Received).
			Int("total_count", p.Total).
			Msg("Page received")
	}

	l, err := loader.New(wk, opts)
	if err != nil {
		return nil, err
	}

	res, err := l.Load(ctx)
	if err != nil {
		if details, ok := client.DetailsOf(err); ok {
			logger.Error().
				Str("kind", string(client.KindOf(err))).
				Int("status_code", details.Status).
				Str("action", details.Action).
				Msg("WaniKani request failed")
		}
		return nil, err
	}

	if rl := wk.RateLimit(); rl != nil {
		logger.Debug().
			Int("remaining", rl.Remaining).
			Int("limit", rl.Limit).
			Msg("Rate limit after build")
	}

	return res.Data, nil
}

// writeArchive writes data to path, or to stdout for "-". Files are
// replaced atomically.
func writeArchive(path string, data []byte, stdout io.Writer, logger zerolog.Logger) error {
	if path == "-" {
		_, err := stdout.Write(data)
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".wanikani-dict-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}

	logger.Info().Str("path", path).Int("bytes", len(data)).Msg("Archive written")
	return nil
}

func connectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return redisClient, nil
}

// serveMetrics starts the metrics server and returns its shutdown func.
func serveMetrics(addr string, logger zerolog.Logger) func() {
	srv := metrics.NewServer(addr)

	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn().Err(err).Msg("Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
