package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"

	PresenceStore = "store"
	PresenceRedis = "redis"
)

type RoomSeed struct {
	ID         string   `mapstructure:"id"`
	Name       string   `mapstructure:"name"`
	MaxMembers int      `mapstructure:"max_members"`
	Members    []string `mapstructure:"members"`
	Admins     []string `mapstructure:"admins"`
}

type Mongo struct {
	URI              string        `mapstructure:"uri"`
	Database         string        `mapstructure:"database"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimit struct {
	AudioChunks int           `mapstructure:"audio_chunks"`
	Interval    time.Duration `mapstructure:"interval"`
}

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	LogLevel       string        `mapstructure:"log_level"`
	StaticPath     string        `mapstructure:"static_path"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`

	JWT struct {
		Secret string `mapstructure:"secret"`
	} `mapstructure:"jwt"`

	Store struct {
		Backend string     `mapstructure:"backend"`
		Rooms   []RoomSeed `mapstructure:"rooms"`
	} `mapstructure:"store"`

	Presence struct {
		Backend string `mapstructure:"backend"`
	} `mapstructure:"presence"`

	Mongo     Mongo     `mapstructure:"mongo"`
	Redis     Redis     `mapstructure:"redis"`
	RateLimit RateLimit `mapstructure:"rate_limit"`
}

// Load reads config/config.<CONFIG_ENV>.yaml (or --config), then environment
// variables prefixed TALKROOM_, then command-line flags. A missing file is
// not an error.
func Load(args []string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	fs := pflag.NewFlagSet("talkroom", pflag.ContinueOnError)
	cfgFile := fs.StringP("config", "c", "", "config file path")
	fs.IntP("port", "p", 8080, "listen port")
	fs.StringP("log-level", "l", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	setDefaults(v)

	v.SetEnvPrefix("talkroom")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindFlag(v, fs, "port", "port"); err != nil {
		return nil, err
	}
	if err := bindFlag(v, fs, "log_level", "log-level"); err != nil {
		return nil, err
	}

	fileName := *cfgFile
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("store", cfg.Store.Backend).Str("presence", cfg.Presence.Backend).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("jwt.secret", "your-super-secret-jwt-key-change-this-in-production")
	v.SetDefault("store.backend", StoreMemory)
	v.SetDefault("presence.backend", PresenceStore)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "talkroom")
	v.SetDefault("mongo.operation_timeout", "5s")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("rate_limit.audio_chunks", 50)
	v.SetDefault("rate_limit.interval", "1s")
}

// bindFlag lets an explicitly set flag win over file and environment.
func bindFlag(v *viper.Viper, fs *pflag.FlagSet, key, flag string) error {
	if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
		return fmt.Errorf("failed to bind flag %s: %w", flag, err)
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreMongo:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Presence.Backend {
	case PresenceStore, PresenceRedis:
	default:
		return fmt.Errorf("unknown presence backend %q", c.Presence.Backend)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}
