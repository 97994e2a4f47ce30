// Package app assembles a compute context, its tuner and the admin surface
// into an fx application.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fxnlabs/autotune/internal/admin"
	"github.com/fxnlabs/autotune/internal/compute"
	"github.com/fxnlabs/autotune/internal/config"
	"github.com/fxnlabs/autotune/internal/elementwise"
	"github.com/fxnlabs/autotune/internal/logger"
	"github.com/fxnlabs/autotune/internal/tune"
	"github.com/fxnlabs/autotune/internal/tunestore"
)

const shutdownTimeout = 5 * time.Second

// Core provides a ready compute client whose tuner cache is restored from
// disk on start and persisted on stop.
var Core = fx.Options(
	fx.Provide(
		NewLogger,
		NewServer,
		NewChannel,
		NewTuner,
		NewClient,
		NewStore,
	),
	fx.Invoke(registerCache),
)

// Admin serves the cache and metrics endpoints on the configured address.
var Admin = fx.Options(
	fx.Provide(
		admin.NewCacheHandler,
		admin.NewMux,
		NewHTTPServer,
	),
	fx.Invoke(func(*http.Server) {}),
)

// New builds an application from cfg. Extra options are appended after Core.
func New(cfg *config.Config, opts ...fx.Option) *fx.App {
	return fx.New(Options(cfg, opts...))
}

// Options returns every option New uses, for fxtest.
func Options(cfg *config.Config, opts ...fx.Option) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: log.Named("fx")}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		Core,
		fx.Options(opts...),
	)
}

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.NewWithEncoding(cfg.Logger.Verbosity, cfg.Logger.Encoding)
}

func NewServer(cfg *config.Config, log *zap.Logger) (compute.Server, error) {
	return compute.NewServer(cfg.Compute.Backend, log)
}

func NewChannel(lc fx.Lifecycle, cfg *config.Config, server compute.Server) (compute.Channel, error) {
	strategy, err := cfg.ChannelStrategy()
	if err != nil {
		return nil, err
	}
	channel, err := compute.NewChannel(strategy, server)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return channel.Close()
		},
	})
	return channel, nil
}

func NewTuner(cfg *config.Config, log *zap.Logger) *tune.Tuner {
	return tune.NewTuner(cfg.TuneOptions(), log)
}

func NewClient(cfg *config.Config, channel compute.Channel, tuner *tune.Tuner) compute.Client {
	return compute.NewClient(channel, tuner, cfg.ClientProperties())
}

// NewStore keys the persisted cache by the elementwise kernel set and the
// device serving it.
func NewStore(cfg *config.Config, client compute.Client, log *zap.Logger) *tunestore.Store {
	info := client.Info()
	return tunestore.New(
		cfg.Autotune.CachePath,
		tunestore.Checksum(elementwise.Kernels(), info),
		info.Name,
		log,
	)
}

func registerCache(lc fx.Lifecycle, client compute.Client, store *tunestore.Store) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var loadErr error
			if err := client.WithTunerCache(func(c *tune.Cache) {
				_, loadErr = store.Load(c)
			}); err != nil {
				return err
			}
			return loadErr
		},
		OnStop: func(context.Context) error {
			var saveErr error
			if err := client.WithTunerCache(func(c *tune.Cache) {
				saveErr = store.Save(c)
			}); err != nil {
				return err
			}
			return saveErr
		},
	})
}

func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, mux *http.ServeMux, log *zap.Logger) *http.Server {
	log = log.Named("http")
	srv := &http.Server{
		Addr:              cfg.Metrics.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
			}
			log.Info("Starting server on", zap.String("address", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	})
	return srv
}
