package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logger"
)

func main() {
	rollback := flag.Bool("rollback", false, "Rollback the last migration")
	dir := flag.String("dir", "migrations", "Directory holding the SQL migrations")
	flag.Parse()

	if err := logger.Init(config.GetEnvironment().String()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		cfg, err := config.LoadConfig()
		if err != nil {
			logger.Fatal("failed to load configuration", zap.Error(err))
		}
		dsn = cfg.PostgresDSN()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if *rollback {
		name, err := database.Rollback(db, *dir)
		if err != nil {
			logger.Fatal("rollback failed", zap.Error(err))
		}
		logger.Info("rolled back migration", zap.String("name", name))
		return
	}

	if err := database.RunMigrations(db, *dir); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	logger.Info("migrations are up to date")
}
