package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"crm/config"
	"crm/db"
	"crm/internal"
	"crm/web"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "crm",
	})

	cmd := &cli.Command{
		Name:  "crm",
		Usage: "a small CRM for a construction products business",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the yaml configuration file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the web server (the default)",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return serve(ctx, logger, cmd.String("config"))
				},
			},
			{
				Name:  "initdb",
				Usage: "create any missing database tables and exit",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return initDB(ctx, logger, cmd.String("config"))
				},
			},
			{
				Name:  "export",
				Usage: "write every table as csv to a directory",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Value: ".",
						Usage: "directory to write the csv files to",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return exportCSVs(ctx, logger, cmd.String("config"), cmd.String("dir"))
				},
			},
		},
		// With no subcommand, serve.
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return serve(ctx, logger, cmd.String("config"))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Fatal(err)
	}
}

// openDB loads the configuration and connects to the configured backend.
func openDB(cfgPath string) (*config.Config, *db.DB, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}
	database, err := db.NewConnection(cfg.DatabaseURL, cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("database setup error: %w", err)
	}
	return cfg, database, nil
}

// serve runs the web server until interrupted.
func serve(ctx context.Context, logger *log.Logger, cfgPath string) error {

	cfg, database, err := openDB(cfgPath)
	if err != nil {
		return err
	}
	defer database.Close()

	// A schema failure is not fatal: the pages surface their own
	// database errors and the process keeps serving.
	if err := database.EnsureSchema(ctx); err != nil {
		logger.Warn("could not ensure schema", "error", err)
	}

	staticFS, err := internal.NewFileMount("static", web.StaticEmbeddedFS, cfg.Web.StaticPath)
	if err != nil {
		return fmt.Errorf("static file mount error: %w", err)
	}
	templatesFS, err := internal.NewFileMount("templates", web.TemplatesEmbeddedFS, cfg.Web.TemplatesPath)
	if err != nil {
		return fmt.Errorf("templates file mount error: %w", err)
	}

	webApp, err := web.New(logger, cfg, database, staticFS, templatesFS)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return webApp.StartServer(ctx)
}

// initDB connects and creates any missing tables.
func initDB(ctx context.Context, logger *log.Logger, cfgPath string) error {
	_, database, err := openDB(cfgPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("database schema error: %w", err)
	}
	logger.Info("schema ready", "dialect", database.Dialect())
	return nil
}

// exportCSVs writes one csv per table to dir. A table that fails to export
// is reported as a warning; the remaining tables are still written.
func exportCSVs(ctx context.Context, logger *log.Logger, cfgPath, dir string) error {
	_, database, err := openDB(cfgPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("export directory error: %w", err)
	}

	for _, table := range db.TableNames() {
		path := filepath.Join(dir, table+".csv")
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("could not create %s: %w", path, err)
		}
		err = database.ExportCSV(ctx, table, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			logger.Warn("table export failed", "table", table, "error", err)
			continue
		}
		logger.Info("exported", "file", path)
	}
	return nil
}
