// Command migrate applies the gateway's pending database migrations and
// exits; cmd/gateway also runs migrations on startup, but operators
// running a multi-replica deployment want this as a single, explicit
// step run once before the fleet rolls out.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"lnurl-gateway/config"
	"lnurl-gateway/internal/database"
	"lnurl-gateway/pkg/logger"

	"github.com/jinzhu/copier"
)

var Cfg config.GatewayConfig

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := logger.Init(logger.GetEnv()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	_, filename, _, _ := runtime.Caller(0)
	root := filepath.Dir(filepath.Dir(filepath.Dir(filename)))
	configPath := config.Path(root).Join("config.toml")

	if err := config.Load(configPath, &Cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var dbCfg database.Config
	if err := copier.Copy(&dbCfg, &Cfg.Database); err != nil {
		return fmt.Errorf("failed to copy database config: %w", err)
	}
	db, err := database.NewDB(dbCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database connection: %w", err)
	}
	defer db.Close()

	return db.RunMigrations()
}
