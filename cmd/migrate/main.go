// Command migrate applies the ledger schema and imports existing detection
// matrices into it.
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"qintegrity/adapters/ledger"
	"qintegrity/adapters/storage/npy"
	"qintegrity/app"
	"qintegrity/internal/config"
	"qintegrity/internal/logger"
)

func main() {
	_ = godotenv.Load()

	log := logger.New(logger.Config{Level: "info", Pretty: true})

	if len(os.Args) < 2 {
		log.Fatal().Msg("Usage: migrate <matrix_dir> [ledger_driver] [database_url]")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	matrixDir := os.Args[1]
	driver, dsn := cfg.Ledger.Driver, cfg.Ledger.URL
	if len(os.Args) > 2 {
		driver = os.Args[2]
	}
	if len(os.Args) > 3 {
		dsn = os.Args[3]
	}
	if driver == "none" {
		log.Fatal().Msg("a ledger driver is required")
	}

	ctx := context.Background()
	db, err := ledger.Open(ctx, driver, dsn)
	if err != nil {
		log.Fatal().Err(err).Str("driver", driver).Msg("failed to open ledger")
	}
	defer db.Close()

	matrices, err := npy.NewRepository(matrixDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open matrix directory")
	}

	runs, err := app.NewImportService(matrices, ledger.NewRepository(db), cfg.Chart.Z, log).Import(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("import failed")
	}
	log.Info().Int("runs", len(runs)).Str("dir", matrixDir).Msg("migration complete")
}
