package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/trustbond/api/internal/app"
	"github.com/trustbond/api/internal/repository"
	seeders "github.com/trustbond/api/internal/seeder"
	"github.com/trustbond/api/internal/version"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := run(logger)
	if err != nil {
		trace := string(debug.Stack())
		logger.Error(err.Error(), "trace", trace)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	showVersion := flag.Bool("version", false, "display version and exit")
	seed := flag.Bool("seed", false, "create the admin account from ADMIN_* and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("version: %s\n", version.Get())
		return nil
	}

	cfg, err := app.LoadConfig(logger)
	if err != nil {
		return err
	}

	if *seed {
		db, err := repository.New(cfg.Db.Dsn, cfg.Db.Automigrate)
		if err != nil {
			return err
		}
		defer db.Close()

		return seeders.New(db, seeders.AdminAccount{
			Email:    cfg.Admin.Email,
			Password: cfg.Admin.Password,
			Name:     cfg.Admin.Name,
		}).Run()
	}

	application, err := app.NewApplication(cfg, logger)
	if err != nil {
		return err
	}

	if err := application.Start(); err != nil {
		return err
	}

	return application.ServeHTTP()
}
