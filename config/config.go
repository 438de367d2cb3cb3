package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/they4kman/sweepd/game"
)

const EnvPrefix = "SWEEPD"

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Log    LogConfig    `mapstructure:"log"`
	Game   GameConfig   `mapstructure:"game"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Dir    string `mapstructure:"dir"`
	// LockTTL bounds how long a crashed process keeps a game locked
	LockTTL time.Duration `mapstructure:"lockTTL"`
	Redis   RedisConfig   `mapstructure:"redis"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GameConfig holds the board new games get unless told otherwise
type GameConfig struct {
	Rows           int   `mapstructure:"rows"`
	Columns        int   `mapstructure:"columns"`
	MinePercentage int   `mapstructure:"minePercentage"`
	Seed           int64 `mapstructure:"seed"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.readTimeout", 10*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)

	v.SetDefault("store.driver", "file")
	v.SetDefault("store.dir", "games")
	v.SetDefault("store.lockTTL", 10*time.Second)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.mysql.dsn", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("game.rows", game.DefaultRowSize)
	v.SetDefault("game.columns", game.DefaultColumnSize)
	v.SetDefault("game.minePercentage", game.DefaultMinePercentage)
	v.SetDefault("game.seed", 0)
}

// Load reads file, or sweepd.yaml from the working directory when file is
// empty, under SWEEPD_* environment overrides. A missing default file is
// fine; a missing explicit one is not.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("sweepd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return &cfg, nil
}

func (cfg GameConfig) GameConfig() game.GameConfig {
	return game.GameConfig{
		RowSize:        cfg.Rows,
		ColumnSize:     cfg.Columns,
		MinePercentage: cfg.MinePercentage,
		Seed:           cfg.Seed,
	}
}

func NewLogger(cfg LogConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}

	log := logrus.New()
	log.SetLevel(level)
	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, errors.Errorf("unknown log format %q", cfg.Format)
	}
	return log, nil
}
