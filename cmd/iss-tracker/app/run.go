package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/soupbadger/rpi-space/core"
	"github.com/soupbadger/rpi-space/internal/api"
	"github.com/soupbadger/rpi-space/internal/citycache"
	"github.com/soupbadger/rpi-space/internal/config"
	"github.com/soupbadger/rpi-space/internal/fetch"
	"github.com/soupbadger/rpi-space/internal/journal"
	"github.com/soupbadger/rpi-space/internal/logging"
	"github.com/soupbadger/rpi-space/internal/observability"
	"github.com/soupbadger/rpi-space/internal/status"
	"github.com/soupbadger/rpi-space/kb"
	"github.com/soupbadger/rpi-space/model"
	"github.com/soupbadger/rpi-space/timectrl"
)

const (
	shutdownTimeout    = 5 * time.Second
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 15 * time.Second
	serverIdleTimeout  = 60 * time.Second
)

// flagKeys maps run flags onto configuration keys.
var flagKeys = map[string]string{
	"satellite":        "satellite.name",
	"position-source":  "position.source",
	"clock-mode":       "clock.mode",
	"duration":         "clock.duration",
	"api-addr":         "server.api_addr",
	"metrics-addr":     "server.metrics_addr",
	"grpc-addr":        "server.grpc_addr",
	"redis-addr":       "cache.redis_addr",
	"journal-driver":   "journal.driver",
	"journal-dsn":      "journal.dsn",
	"tracing":          "tracing.enabled",
	"tracing-exporter": "tracing.exporter",
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the tracker until interrupted",
		Long: `Run the tracker loop and its HTTP, metrics and gRPC health servers.

Settings come from flags, TRACKER_* environment variables (optionally loaded
from a .env file), and an optional YAML file given with --config.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := loadEnvFile(envFile); err != nil {
				return err
			}

			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, cfg, logging.NewFromEnv())
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "Path to a YAML configuration file")
	flags.String("env-file", ".env", "Path to a dotenv file; ignored when absent")
	flags.String("satellite", "ISS", "Display name of the tracked satellite")
	flags.String("position-source", "api", "Position source (api or tle)")
	flags.String("clock-mode", "realtime", "Frame clock mode (realtime or accelerated)")
	flags.Duration("duration", 0, "Stop after this much tracker time; 0 runs until interrupted")
	flags.String("api-addr", ":8080", "HTTP API listen address; empty disables")
	flags.String("metrics-addr", ":9090", "Prometheus /metrics listen address; empty disables")
	flags.String("grpc-addr", ":50051", "gRPC health listen address; empty disables")
	flags.String("redis-addr", "", "Redis address for the city cache; empty disables")
	flags.String("journal-driver", "", "Fix journal driver (sqlite or pgx); empty disables")
	flags.String("journal-dsn", "", "Fix journal data source name")
	flags.Bool("tracing", false, "Export OpenTelemetry spans")
	flags.String("tracing-exporter", "stdout", "Span exporter (stdout or otlp)")

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
	return cmd
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Run wires every component described by cfg and blocks until ctx is
// cancelled or the configured clock duration elapses.
func Run(ctx context.Context, cfg *config.Config, log logging.Logger) error {
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tracing, err := observability.InitTracing(ctx, tracingConfig(cfg), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = tracing.Shutdown(context.Background()) }()

	collector, err := observability.NewTrackerCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	tc, err := newTimeController(cfg)
	if err != nil {
		return err
	}

	positions := newPositionSource(cfg, tc, log)
	cities, closeCache, err := newCityResolver(ctx, cfg, collector, log)
	if err != nil {
		return err
	}
	defer closeCache()

	track := kb.NewTrackStore(cfg.Track.Capacity)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Journal.Driver != "" {
		j, err := journal.Open(ctx, journal.Config{
			Driver:     cfg.Journal.Driver,
			DSN:        cfg.Journal.DSN,
			Satellite:  cfg.Satellite.Name,
			MaxElapsed: cfg.Server.ConnectWait,
		}, log)
		if err != nil {
			return err
		}
		defer func() { _ = j.Close() }()
		unsubscribe := j.Attach(track)
		defer unsubscribe()
		g.Go(func() error { return j.Run(gctx) })
	}

	scheduler := core.NewScheduler(cfg.Satellite.Name, positions, cities,
		core.WithPositionInterval(cfg.Position.Interval),
		core.WithCityInterval(cfg.Geocode.Interval),
		core.WithNotificationDuration(cfg.Notification.Duration),
		core.WithFixRecorder(track),
		core.WithMetrics(collector),
		core.WithLogger(log),
	)
	tracker := core.NewTracker(scheduler, cfg.Canvas())
	tracker.AddPresenter(core.NewLogPresenter(log))

	snapshots := &api.SnapshotStore{}
	snapshots.Present(ctx, tracker.Last())
	tracker.AddPresenter(snapshots)

	if addr := cfg.Server.APIAddr; addr != "" {
		handler := api.NewServer(snapshots, track, api.WithMiddlewares(api.LoggingMiddleware(log)))
		serveHTTP(gctx, g, "api", addr, handler, log)
	}
	if addr := cfg.Server.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		serveHTTP(gctx, g, "metrics", addr, mux, log)
	}
	if addr := cfg.Server.GRPCAddr; addr != "" {
		health := status.New(log, collector)
		tracker.AddPresenter(health)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			cancel()
			_ = g.Wait()
			return fmt.Errorf("listen for gRPC on %s: %w", addr, err)
		}
		g.Go(func() error { return health.Serve(lis) })
		g.Go(func() error {
			<-gctx.Done()
			health.Stop()
			return nil
		})
	}

	tracker.Attach(tc)
	log.Info(ctx, "tracker starting",
		logging.String("satellite", cfg.Satellite.Name),
		logging.String("source", positions.Source()),
		logging.String("clock_mode", tc.Mode.String()),
		logging.Duration("frame_interval", tc.Tick),
	)
	g.Go(func() error {
		err := tc.Run(gctx, cfg.Clock.Duration)
		// A finished run ends the side servers too.
		cancel()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})

	err = g.Wait()
	log.Info(context.Background(), "tracker stopped", logging.Int("frames", int(tracker.Frames())))
	return err
}

func tracingConfig(cfg *config.Config) observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:        cfg.Tracing.Enabled,
		Exporter:       strings.ToLower(cfg.Tracing.Exporter),
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: Version,
		SampleRatio:    cfg.Tracing.SampleRatio,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		OTLPInsecure:   cfg.Tracing.OTLPInsecure,
	}
}

func newTimeController(cfg *config.Config) (*timectrl.TimeController, error) {
	if strings.EqualFold(cfg.Clock.Mode, "accelerated") {
		start, err := cfg.StartTime()
		if err != nil {
			return nil, fmt.Errorf("clock.start: %w", err)
		}
		return timectrl.NewTimeController(start, cfg.Clock.FrameInterval, timectrl.Accelerated), nil
	}
	return timectrl.NewTimeController(time.Now().UTC(), cfg.Clock.FrameInterval, timectrl.RealTime), nil
}

func newPositionSource(cfg *config.Config, clock timectrl.Clock, log logging.Logger) core.PositionSource {
	sat := cfg.SatelliteModel()
	if sat.MotionSource == model.MotionSourceTLE {
		src := core.NewTLESource(sat.TLELine1, sat.TLELine2, core.WithTLEClock(clock.Now))
		if err := src.Err(); err != nil {
			log.Warn(context.Background(), "TLE rejected; every fetch will fail", logging.Err(err))
		}
		return src
	}
	return fetch.NewPositionClient(cfg.Position.URL, cfg.Position.Timeout, fetch.WithPositionLogger(log))
}

func newCityResolver(ctx context.Context, cfg *config.Config, collector *observability.TrackerCollector, log logging.Logger) (core.CityResolver, func(), error) {
	geocoder := fetch.NewGeocodeClient(cfg.Geocode.URL, cfg.Geocode.APIKey, cfg.Geocode.Timeout, fetch.WithGeocodeLogger(log))
	if cfg.Geocode.APIKey == "" {
		log.Warn(ctx, "geocode.api_key is empty; city lookups will likely fail")
	}
	if cfg.Cache.RedisAddr == "" {
		return geocoder, func() {}, nil
	}

	rdb, err := citycache.Connect(ctx, &redis.Options{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	}, cfg.Server.ConnectWait, log)
	if err != nil {
		return nil, nil, err
	}
	cache := citycache.New(rdb, geocoder,
		citycache.WithTTL(cfg.Cache.TTL),
		citycache.WithLogger(log),
		citycache.WithMetrics(collector),
	)
	return cache, func() { _ = rdb.Close() }, nil
}

func serveHTTP(ctx context.Context, g *errgroup.Group, name, addr string, handler http.Handler, log logging.Logger) {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}
	g.Go(func() error {
		log.Info(ctx, "serving HTTP", logging.String("server", name), logging.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server: %w", name, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
