package cmd

import (
	"context"
	"fmt"
	"os"

	"equipment_usage_tracker/app"
	"equipment_usage_tracker/cache"
	"equipment_usage_tracker/config"
	"equipment_usage_tracker/db"
	"equipment_usage_tracker/events"
	"equipment_usage_tracker/lifecycle"

	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  hclog.Logger

	newPublisher = events.NewPublisher
)

var rootCmd = &cobra.Command{
	Use:   "equipment",
	Short: "Equipment usage tracker",
	Long:  `Tracks checkout and check-in of physical equipment and keeps the usage history of every unit.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger = app.NewLogger(cfg)
		return nil
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
}

// session is a short-lived store connection for one CLI command.
type session struct {
	conn  *gorm.DB
	rdb   *redis.Client
	pub   events.Publisher
	coord *lifecycle.Coordinator
}

// openSession connects to the store, to Redis so the server's state cache
// stays consistent with changes made here, and to Kafka so transitions made
// from the CLI reach event consumers like those made over HTTP.
func openSession() (*session, error) {
	conn, err := db.Open(cfg.Database, logger.Named("db"))
	if err != nil {
		return nil, err
	}
	pub, err := newPublisher(events.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
	if err != nil {
		closeDB(conn)
		return nil, err
	}
	s := &session{conn: conn, pub: pub}

	opts := []lifecycle.Option{
		lifecycle.WithLogger(logger.Named("lifecycle")),
		lifecycle.WithHistoryLimits(cfg.Usage),
		lifecycle.WithPublisher(pub),
	}
	if cfg.Redis.Addr != "" {
		s.rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		opts = append(opts, lifecycle.WithCache(cache.NewStatusCache(s.rdb, cfg.Redis.StatusTTL)))
	}
	s.coord = lifecycle.New(db.NewRepo(conn), opts...)
	return s, nil
}

func (s *session) Close() {
	if s.pub != nil {
		s.pub.Close()
	}
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
	closeDB(s.conn)
}

func closeDB(conn *gorm.DB) {
	if sqlDB, err := conn.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func withSession(fn func(ctx context.Context, s *session) error) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(context.Background(), s)
}
