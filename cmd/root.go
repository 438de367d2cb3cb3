package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/they4kman/sweepd/config"
	"github.com/they4kman/sweepd/service"
	"github.com/they4kman/sweepd/store"
)

var (
	v          = viper.New()
	configFile string

	cfg *config.Config
	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sweepd",
	Short: "Serve and play persistent Minesweeper games",
	Long: `sweepd keeps Minesweeper games in a store and plays them over HTTP
or from the command line.

Serve the JSON API
	sweepd serve --addr :8080

Play from the shell
	sweepd new --rows 9 --columns 9 --mines 12
	sweepd move <id> open 3 4

Make the computer play a fresh game
	sweepd autoplay --director constraint
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Lookup("rows") != nil {
			if err := bindGameFlags(cmd); err != nil {
				return err
			}
		}
		loaded, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		logger, err := config.NewLogger(loaded.Log)
		if err != nil {
			return err
		}
		logger.SetOutput(cmd.ErrOrStderr())

		cfg, log = loaded, logger
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore connects the configured store; the returned func releases it
func openStore(storeConfig config.StoreConfig) (store.Store, func() error, error) {
	noop := func() error { return nil }

	switch storeConfig.Driver {
	case "memory":
		return store.NewMemory(), noop, nil
	case "file":
		games, err := store.NewFile(storeConfig.Dir, store.FileOptions{LockTTL: storeConfig.LockTTL, Log: log})
		return games, noop, err
	case "redis":
		games := store.NewRedis(store.RedisOptions{
			Addr:     storeConfig.Redis.Addr,
			Password: storeConfig.Redis.Password,
			DB:       storeConfig.Redis.DB,
			LockTTL:  storeConfig.LockTTL,
		})
		if err := games.Ping(context.Background()); err != nil {
			games.Close()
			return nil, nil, err
		}
		return games, games.Close, nil
	case "mysql":
		games, err := store.OpenMySQL(storeConfig.MySQL.DSN, storeConfig.LockTTL)
		if err != nil {
			return nil, nil, err
		}
		return games, games.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown store driver %q", storeConfig.Driver)
	}
}

// withService runs fn against a service on the configured store
func withService(fn func(svc *service.Service) error) error {
	games, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	defaults := cfg.Game.GameConfig()
	options := []service.Option{
		service.WithLogger(log),
		service.WithDefaults(defaults),
	}
	if defaults.Seed != 0 {
		options = append(options, service.WithSeed(func() int64 { return defaults.Seed }))
	}
	return fn(service.New(games, options...))
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default ./sweepd.yaml if present)")
	flags.String("store", "file", "Game store: memory, file, redis or mysql")
	flags.String("store-dir", "games", "Directory for the file store")
	flags.String("redis-addr", "localhost:6379", "Redis address for the redis store")
	flags.String("mysql-dsn", "", "DSN for the mysql store (parseTime is turned on)")
	flags.String("log-level", "info", "Log level")
	flags.String("log-format", "text", "Log format: text or json")

	for name, key := range map[string]string{
		"store":      "store.driver",
		"store-dir":  "store.dir",
		"redis-addr": "store.redis.addr",
		"mysql-dsn":  "store.mysql.dsn",
		"log-level":  "log.level",
		"log-format": "log.format",
	} {
		cobra.CheckErr(v.BindPFlag(key, flags.Lookup(name)))
	}
}
