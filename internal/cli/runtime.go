// Package cli holds the cobra commands of the nexus binary.
package cli

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nexus-im/estatechat/internal/config"
	"github.com/nexus-im/estatechat/internal/database"
	"github.com/nexus-im/estatechat/internal/logging"
)

// openDB is swapped out in tests.
var openDB = func(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	return database.Open(ctx, cfg.DatabaseURL, database.Options{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
}

// AddGlobalFlags registers flags every command understands.
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().String("env-file", "", "load settings from this .env file (default .env)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var files []string
	if path, _ := cmd.Flags().GetString("env-file"); path != "" {
		files = append(files, path)
	}
	return config.Load(files...)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogLevel, cfg.LogFormat)
}
