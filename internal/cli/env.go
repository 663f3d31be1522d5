package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/config"
	"github.com/garyjia/justifi/internal/container"
	"github.com/garyjia/justifi/pkg/database"
	"github.com/garyjia/justifi/pkg/utils"
)

// env is the configuration, logger and store a command runs against.
type env struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *container.DatabaseBundle
	services *container.ServiceBundle
}

func newLogger(opts *RootOptions) (*zap.Logger, error) {
	if !opts.Verbose {
		return zap.NewNop(), nil
	}
	return utils.NewLogger(utils.LoggerConfig{Level: "debug", OutputPath: "stderr", Format: "console", Service: "justifictl"})
}

// loadConfig reads the config file and insists on the sqlite driver, the
// only one with state worth administering.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver != config.DriverSQLite {
		return nil, fmt.Errorf("database driver %q has no persistent state; use %q", cfg.Database.Driver, config.DriverSQLite)
	}
	return cfg, nil
}

// openEnv opens the configured database, applying pending migrations, and
// builds the application services over it.
func openEnv(opts *RootOptions) (*env, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(opts)
	if err != nil {
		return nil, err
	}

	ccfg := cfg.ToContainerConfig("")
	db, err := container.ProvideDatabase(&ccfg.Database, logger)
	if err != nil {
		return nil, err
	}
	services, err := container.ProvideServices(db.Repositories, logger)
	if err != nil {
		_ = db.SQL.Close()
		return nil, err
	}

	return &env{cfg: cfg, logger: logger, db: db, services: services}, nil
}

func (e *env) Close() error {
	_ = e.logger.Sync()
	if e.db != nil && e.db.SQL != nil {
		return e.db.SQL.Close()
	}
	return nil
}

// openMigrator opens the database without applying migrations.
func openMigrator(opts *RootOptions) (*database.Migrator, *database.DB, *config.Config, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := newLogger(opts)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := database.New(database.Config{Path: cfg.Database.Path}, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return database.NewMigrator(db, logger), db, cfg, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
