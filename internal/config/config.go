package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the complete runtime configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Log      LogConfig      `mapstructure:"log"`
	Node     NodeConfig     `mapstructure:"node"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	WSReadTimeout  time.Duration `mapstructure:"ws_read_timeout"`
	// WSInboundRate is the number of frames per second accepted from one socket.
	WSInboundRate int `mapstructure:"ws_inbound_rate"`
}

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"`
	URL        string `mapstructure:"url"`
	SQLitePath string `mapstructure:"sqlite_path"`
	MaxConns   int32  `mapstructure:"max_conns"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type CacheConfig struct {
	UnreadTTL time.Duration `mapstructure:"unread_ttl"`
}

type QueueConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	// Queues is a CSV of weights like "notify=3,default=1".
	Queues string `mapstructure:"queues"`
}

type ChatConfig struct {
	PageSize         int `mapstructure:"page_size"`
	MaxMessageLength int `mapstructure:"max_message_length"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type NodeConfig struct {
	ID string `mapstructure:"id"`
}

// Load reads .env (if present), then the optional YAML file, then MENTORCHAT_* variables.
// DB_URL and REDIS_URL are honored for compatibility with existing deployments.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: .env file could not be loaded: %v", err)
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("mentorchat")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/mentorchat")
	}

	v.SetEnvPrefix("MENTORCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if dsn := strings.TrimSpace(os.Getenv("DB_URL")); dsn != "" && !v.IsSet("database.url") {
		cfg.Database.URL = dsn
	}
	if url := strings.TrimSpace(os.Getenv("REDIS_URL")); url != "" && !v.IsSet("redis.url") {
		cfg.Redis.URL = url
	}
	if cfg.Node.ID == "" {
		cfg.Node.ID = uuid.NewString()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 5*time.Second)
	v.SetDefault("server.ws_read_timeout", 60*time.Second)
	v.SetDefault("server.ws_inbound_rate", 20)

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.url", "")
	v.SetDefault("database.sqlite_path", "mentorchat.db")
	v.SetDefault("database.max_conns", 8)

	v.SetDefault("redis.url", "")
	v.SetDefault("cache.unread_ttl", 30*time.Second)

	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", "notify=3,default=1")

	v.SetDefault("chat.page_size", 20)
	v.SetDefault("chat.max_message_length", 2000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("node.id", "")
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			return fmt.Errorf("config: database.url (or DB_URL) is required for the postgres driver")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.Database.SQLitePath) == "" {
			return fmt.Errorf("config: database.sqlite_path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}
	if c.Chat.PageSize <= 0 {
		return fmt.Errorf("config: chat.page_size must be positive")
	}
	if c.Server.WSInboundRate <= 0 {
		return fmt.Errorf("config: server.ws_inbound_rate must be positive")
	}
	return nil
}
