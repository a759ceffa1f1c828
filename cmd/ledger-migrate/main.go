package main

import (
	"context"
	"fmt"
	"ms-headcount/internal/config"
	"ms-headcount/internal/database"
	"ms-headcount/internal/database/migrations"
	"ms-headcount/internal/logger"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const usage = `usage: ledger-migrate <command>

commands:
  up          apply every pending migration
  down        roll back every migration
  to <n>      migrate up or down to version n
  force <n>   mark version n applied and clean after a manual repair
  version     print the applied version`

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := logger.NewLogger(logger.Options{NoColor: cfg.Log.NoColor, MinLevel: logger.ParseLevel(cfg.Log.Level)})

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if cfg.Database.Driver != database.DriverPostgres {
		log.Fatal("MIGRATE", fmt.Sprintf("Migrations target PostgreSQL, DB_DRIVER is %q", cfg.Database.Driver))
	}

	bunDB, err := database.Open(context.Background(), cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}

	opts := migrations.DefaultOptions()
	opts.MigrationsDir = cfg.Database.MigrationsDir
	runner := migrations.NewRunner(bunDB, opts, log)
	// closes the database as well
	defer runner.Close()

	if err := run(runner, os.Args[1:]); err != nil {
		log.Error("MIGRATE", err.Error())
		runner.Close()
		os.Exit(1)
	}
}

func run(runner *migrations.Runner, args []string) error {
	switch args[0] {
	case "up":
		return runner.MigrateUp()
	case "down":
		return runner.MigrateDown()
	case "to":
		if len(args) < 2 {
			return fmt.Errorf("to needs a version\n%s", usage)
		}
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		return runner.MigrateTo(uint(v))
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("force needs a version\n%s", usage)
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		return runner.Force(v)
	case "version":
		v, dirty, err := runner.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", v, dirty)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}
