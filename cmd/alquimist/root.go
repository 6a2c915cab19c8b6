package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"alquimist/internal/config"
	"alquimist/internal/logging"
)

// cli carries the configuration shared by every subcommand.
type cli struct {
	v       *viper.Viper
	verbose bool
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.New()}
	root := &cobra.Command{
		Use:   "alquimist",
		Short: "Laboratory dashboard backend",
		Long: `Alquimist serves the laboratory dashboard API: laboratories, machines,
test records, inventory, clients, assignments, users, activities and the
inter-lab chat.

Every flag can also be set through an ALQUIMIST_ environment variable
(ALQUIMIST_STORAGE_DRIVER=sqlite) or a config file passed with --config.`,
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.String("config", "", "config file (yaml, json or toml)")
	pf.String("log-level", "info", "log level: debug|info|warn|error")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	pf.String("chat-path", "data/chat.json", "chat snapshot file")
	pf.String("blob-driver", "fs", "backup storage: fs|memory|s3")
	pf.String("blob-fs-root", "data/backups", "backup directory for the fs driver")
	pf.String("blob-s3-bucket", "", "bucket for the s3 driver")
	pf.String("blob-s3-region", "", "region for the s3 driver")
	pf.String("blob-s3-endpoint", "", "custom endpoint for the s3 driver")
	pf.Bool("blob-s3-path-style", false, "use path-style s3 addressing")
	pf.Bool("seed", true, "load the starter dataset into empty stores")
	c.bind(root, map[string]string{
		"config":             config.KeyConfigFile,
		"log-level":          config.KeyLogLevel,
		"chat-path":          config.KeyChatPath,
		"blob-driver":        config.KeyBlobDriver,
		"blob-fs-root":       config.KeyBlobFSRoot,
		"blob-s3-bucket":     config.KeyBlobS3Bucket,
		"blob-s3-region":     config.KeyBlobS3Region,
		"blob-s3-endpoint":   config.KeyBlobS3Endpoint,
		"blob-s3-path-style": config.KeyBlobS3PathStyle,
		"seed":               config.KeySeed,
	})

	root.AddCommand(newServeCmd(c), newChatCmd(c), newWatchCmd(c))
	return root
}

// bind maps flag names declared on cmd to config keys.
func (c *cli) bind(cmd *cobra.Command, keys map[string]string) {
	for name, key := range keys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			f = cmd.PersistentFlags().Lookup(name)
		}
		if f != nil {
			_ = c.v.BindPFlag(key, f)
		}
	}
}

// load resolves the configuration and builds the process logger.
func (c *cli) load() (config.Config, *zap.Logger, error) {
	if c.verbose {
		c.v.Set(config.KeyLogLevel, "debug")
	}
	cfg, err := config.Load(c.v)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
