package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Heartbeat   HeartbeatConfig   `mapstructure:"heartbeat"`
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"`
	Session     SessionConfig     `mapstructure:"session"`
	Settlement  SettlementConfig  `mapstructure:"settlement"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
}

type ServerConfig struct {
	Port       string `mapstructure:"port"`
	Mode       string `mapstructure:"mode"` // debug, release
	ReadLimit  int64  `mapstructure:"readLimit"`
	SendBuffer int    `mapstructure:"sendBuffer"`
}

type HeartbeatConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	WriteWait time.Duration `mapstructure:"writeWait"`
}

type MatchmakingConfig struct {
	StartDelay    time.Duration `mapstructure:"startDelay"`
	StaleAfter    time.Duration `mapstructure:"staleAfter"`
	SweepInterval time.Duration `mapstructure:"sweepInterval"`
}

type SessionConfig struct {
	FinishedGrace  time.Duration `mapstructure:"finishedGrace"`
	TurnBasedGames []string      `mapstructure:"turnBasedGames"`
}

type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"maxAttempts"`
	InitialDelay time.Duration `mapstructure:"initialDelay"`
	MaxDelay     time.Duration `mapstructure:"maxDelay"`
	Multiplier   float64       `mapstructure:"multiplier"`
}

type SettlementConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"baseURL"`
	APIKey    string        `mapstructure:"apiKey"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queueSize"`
	Retry     RetryConfig   `mapstructure:"retry"`
	Confirm   RetryConfig   `mapstructure:"confirm"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres, mysql, sqlite
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	ResultChannel string `mapstructure:"resultChannel"`
}

var GlobalConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.readLimit", 1<<20)
	v.SetDefault("server.sendBuffer", 32)

	v.SetDefault("heartbeat.interval", 30*time.Second)
	v.SetDefault("heartbeat.writeWait", 5*time.Second)

	v.SetDefault("matchmaking.startDelay", 3*time.Second)
	v.SetDefault("matchmaking.staleAfter", 5*time.Minute)
	v.SetDefault("matchmaking.sweepInterval", time.Minute)

	v.SetDefault("session.finishedGrace", 30*time.Second)
	v.SetDefault("session.turnBasedGames", []string{"number-memory"})

	v.SetDefault("settlement.enabled", false)
	v.SetDefault("settlement.timeout", 30*time.Second)
	v.SetDefault("settlement.workers", 4)
	v.SetDefault("settlement.queueSize", 256)
	v.SetDefault("settlement.retry.maxAttempts", 5)
	v.SetDefault("settlement.retry.initialDelay", 2*time.Second)
	v.SetDefault("settlement.retry.maxDelay", 30*time.Second)
	v.SetDefault("settlement.retry.multiplier", 2.0)
	v.SetDefault("settlement.confirm.maxAttempts", 15)
	v.SetDefault("settlement.confirm.initialDelay", 2*time.Second)
	v.SetDefault("settlement.confirm.maxDelay", 2*time.Second)
	v.SetDefault("settlement.confirm.multiplier", 1.0)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:surge.db?cache=shared")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.resultChannel", "surge:match:finished")
}

// Load reads the yaml file at path on top of the defaults. A missing file is
// not an error; SURGE_* environment variables override both.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SURGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadConfig(path string) {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Unable to load config, %v", err)
	}
	GlobalConfig = cfg
}
