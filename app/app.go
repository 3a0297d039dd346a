package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"equipment_usage_tracker/cache"
	"equipment_usage_tracker/config"
	"equipment_usage_tracker/db"
	"equipment_usage_tracker/events"
	"equipment_usage_tracker/lifecycle"
	"equipment_usage_tracker/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// short aliases for handlers
type Ctx = gin.Context
type H = gin.H

// App holds the process-wide dependencies.
type App struct {
	Router    *gin.Engine
	DB        *gorm.DB
	RDB       *redis.Client // nil when no Redis is configured
	Log       hclog.Logger
	Metrics   *metrics.Metrics
	Events    events.Publisher
	Cache     *cache.StatusCache
	Lifecycle *lifecycle.Coordinator
	Config    *config.Config
}

func NewLogger(cfg *config.Config) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "equipment",
		Level:      hclog.LevelFromString(cfg.LogLevel),
		JSONFormat: cfg.LogJSON,
		Output:     os.Stderr,
	})
}

// New connects the shared store, Redis and Kafka as configured and builds
// the router. The schema is migrated on the way.
func New(cfg *config.Config, log hclog.Logger) (*App, error) {
	conn, err := db.Connect(cfg.Database, log.Named("db"))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := pingRedis(rdb, cfg.Database.ConnectRetries, log); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	}

	pub, err := events.NewPublisher(events.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
	if err != nil {
		return nil, err
	}

	return Build(cfg, log, conn, rdb, pub), nil
}

func MustNew(cfg *config.Config, log hclog.Logger) *App {
	a, err := New(cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	return a
}

// Build wires already opened connections. rdb may be nil.
func Build(cfg *config.Config, log hclog.Logger, conn *gorm.DB, rdb *redis.Client, pub events.Publisher) *App {
	if pub == nil {
		pub = events.Nop{}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	sc := cache.NewStatusCache(rdb, cfg.Redis.StatusTTL)
	if err := sc.Purge(context.Background()); err != nil {
		log.Warn("failed to purge state cache", "error", err)
	}

	opts := []lifecycle.Option{
		lifecycle.WithLogger(log.Named("lifecycle")),
		lifecycle.WithPublisher(pub),
		lifecycle.WithMetrics(m),
		lifecycle.WithHistoryLimits(cfg.Usage),
	}
	if sc != nil {
		opts = append(opts, lifecycle.WithCache(sc))
	}
	coord := lifecycle.New(db.NewRepo(conn), opts...)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(log.Named("http")), ErrorHandler(log.Named("http")))
	useCORS(r, cfg)

	return &App{
		Router:    r,
		DB:        conn,
		RDB:       rdb,
		Log:       log,
		Metrics:   m,
		Events:    pub,
		Cache:     sc,
		Lifecycle: coord,
		Config:    cfg,
	}
}

// Close releases every connection and reports all failures together.
func (a *App) Close() error {
	var result *multierror.Error
	if a.Events != nil {
		a.Events.Close()
	}
	if a.RDB != nil {
		if err := a.RDB.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("redis: %w", err))
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err != nil {
			result = multierror.Append(result, fmt.Errorf("database: %w", err))
		} else if err := sqlDB.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("database: %w", err))
		}
	}
	return result.ErrorOrNil()
}

func pingRedis(rdb *redis.Client, retries int, log hclog.Logger) error {
	if retries < 0 {
		retries = 0
	}
	ping := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return rdb.Ping(ctx).Err()
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("redis not reachable, retrying", "error", err, "wait", wait)
	}
	return backoff.RetryNotify(ping, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), notify)
}
