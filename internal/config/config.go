// Package config resolves runtime settings from defaults, an optional
// config file, ALQUIMIST_* environment variables and command flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"alquimist/internal/blob"
	"alquimist/internal/core"
)

// EnvPrefix namespaces every environment variable.
const EnvPrefix = "ALQUIMIST"

// Keys understood by Load. Flags use the same names with dashes.
const (
	KeyConfigFile      = "config"
	KeyAddr            = "addr"
	KeyLogLevel        = "log_level"
	KeyStorageDriver   = "storage_driver"
	KeySQLitePath      = "sqlite_path"
	KeyPostgresDSN     = "postgres_dsn"
	KeyChatPath        = "chat_path"
	KeyBlobDriver      = "blob_driver"
	KeyBlobFSRoot      = "blob_fs_root"
	KeyBlobS3Bucket    = "blob_s3_bucket"
	KeyBlobS3Region    = "blob_s3_region"
	KeyBlobS3Endpoint  = "blob_s3_endpoint"
	KeyBlobS3PathStyle = "blob_s3_path_style"
	KeySeed            = "seed"
	KeyBcryptCost      = "bcrypt_cost"
	KeySyncInterval    = "sync_interval"
	KeyShutdownTimeout = "shutdown_timeout"
	KeyServerURL       = "server_url"
)

// Config is the resolved runtime configuration.
type Config struct {
	Addr            string
	LogLevel        string
	Storage         core.StorageConfig
	ChatPath        string
	Blob            blob.Config
	Seed            bool
	BcryptCost      int
	SyncInterval    time.Duration
	ShutdownTimeout time.Duration
	ServerURL       string
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyAddr, ":3000")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyStorageDriver, string(core.StorageMemory))
	v.SetDefault(KeySQLitePath, "data/alquimist.db")
	v.SetDefault(KeyChatPath, "data/chat.json")
	v.SetDefault(KeyBlobDriver, string(blob.DriverFilesystem))
	v.SetDefault(KeyBlobFSRoot, "data/backups")
	v.SetDefault(KeyBlobS3PathStyle, false)
	v.SetDefault(KeySeed, true)
	v.SetDefault(KeyBcryptCost, bcrypt.DefaultCost)
	v.SetDefault(KeySyncInterval, 2*time.Second)
	v.SetDefault(KeyShutdownTimeout, 10*time.Second)
	v.SetDefault(KeyServerURL, "http://localhost:3000")
	return v
}

// Load reads the config file named by the config key, if any, and resolves
// every setting.
func Load(v *viper.Viper) (Config, error) {
	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	get := func(key string) string { return v.GetString(key) }

	cfg := Config{
		Addr:     get(KeyAddr),
		LogLevel: get(KeyLogLevel),
		Storage: core.StorageConfig{
			Driver:      core.StorageDriver(get(KeyStorageDriver)),
			SQLitePath:  get(KeySQLitePath),
			PostgresDSN: get(KeyPostgresDSN),
		},
		ChatPath: get(KeyChatPath),
		Blob: blob.Config{
			Driver:      blob.Driver(get(KeyBlobDriver)),
			FSRoot:      get(KeyBlobFSRoot),
			S3Bucket:    get(KeyBlobS3Bucket),
			S3Region:    get(KeyBlobS3Region),
			S3Endpoint:  get(KeyBlobS3Endpoint),
			S3PathStyle: v.GetBool(KeyBlobS3PathStyle),
		},
		Seed:            v.GetBool(KeySeed),
		BcryptCost:      v.GetInt(KeyBcryptCost),
		SyncInterval:    v.GetDuration(KeySyncInterval),
		ShutdownTimeout: v.GetDuration(KeyShutdownTimeout),
		ServerURL:       get(KeyServerURL),
	}
	return cfg, cfg.Validate()
}

// Validate reports every inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage_driver %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3Bucket == "" {
			errs = append(errs, errors.New("blob_s3_bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob_driver %q", c.Blob.Driver))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.SyncInterval <= 0 {
		errs = append(errs, errors.New("sync_interval must be positive"))
	}
	if c.ChatPath == "" {
		errs = append(errs, errors.New("chat_path is required"))
	}
	return errors.Join(errs...)
}
