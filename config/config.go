package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Database struct {
	Driver   string `mapstructure:"driver"` // postgres | sqlite
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	// Path is the sqlite file, ":memory:" for an in-process database.
	Path string `mapstructure:"path"`

	ConnectRetries int `mapstructure:"connect_retries"`
}

// DSN builds the postgres connection string in the same shape the service has
// always used.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

type Redis struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	StatusTTL time.Duration `mapstructure:"status_ttl"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Usage struct {
	DefaultHistoryLimit int `mapstructure:"default_history_limit"`
	MaxHistoryLimit     int `mapstructure:"max_history_limit"`
}

type Config struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`

	WebOrigin   string   `mapstructure:"web_origin"`
	CORSOrigins []string `mapstructure:"cors_origins"`

	// YAML file with equipment to create on startup when missing.
	CatalogFile string `mapstructure:"catalog_file"`

	Database Database `mapstructure:"database"`
	Redis    Redis    `mapstructure:"redis"`
	Kafka    Kafka    `mapstructure:"kafka"`
	Usage    Usage    `mapstructure:"usage"`
}

// legacy environment names, kept so existing deployments keep working
var envAliases = map[string]string{
	"port":              "PORT",
	"web_origin":        "WEB_ORIGIN",
	"database.host":     "DB_HOST",
	"database.port":     "DB_PORT",
	"database.user":     "DB_USER",
	"database.password": "DB_PASSWORD",
	"database.name":     "DB_NAME",
	"redis.addr":        "REDIS_ADDR",
	"redis.password":    "REDIS_PASSWORD",
}

// LoadEnv reads a .env file from the working directory when one exists.
func LoadEnv() {
	_ = godotenv.Load()
}

// Load merges defaults, an optional config file and the environment.
func Load(configFile ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./instance")
	for _, path := range configFile {
		if path != "" {
			v.SetConfigFile(path)
		}
	}

	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	cfg.CORSOrigins = splitCSV(cfg.CORSOrigins)
	cfg.Kafka.Brokers = splitCSV(cfg.Kafka.Brokers)

	if cfg.Usage.DefaultHistoryLimit <= 0 {
		cfg.Usage.DefaultHistoryLimit = 10
	}
	if cfg.Usage.MaxHistoryLimit < cfg.Usage.DefaultHistoryLimit {
		cfg.Usage.MaxHistoryLimit = cfg.Usage.DefaultHistoryLimit
	}
	return &cfg, nil
}

// env values arrive as a single comma separated string
func splitCSV(in []string) []string {
	var out []string
	for _, item := range in {
		for _, s := range strings.Split(item, ",") {
			if t := strings.TrimSpace(s); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}
