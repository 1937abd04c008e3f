// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

// Command streamlens runs the Twitch ETL pipeline and serves the
// analytics it produces. Each pipeline stage is also runnable on its
// own so a failed run can be resumed from its snapshots.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/streamlens/streamlens/internal/analytics"
	"github.com/streamlens/streamlens/internal/api"
	"github.com/streamlens/streamlens/internal/config"
	"github.com/streamlens/streamlens/internal/database"
	"github.com/streamlens/streamlens/internal/etl"
	"github.com/streamlens/streamlens/internal/logging"
	"github.com/streamlens/streamlens/internal/twitch"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "streamlens",
		Usage:   "Twitch live-stream ETL and analytics",
		Version: version,
		Description: `
Fetch live-stream snapshots from the Twitch Helix API, load them into a
local DuckDB store and analyze them:

  streamlens run
  streamlens report
  streamlens serve
  streamlens -c ./config.yaml extract`[1:],
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "",
				Usage:   "a path to a configuration file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "extract",
				Usage: "Fetch a live-stream snapshot from Helix into raw CSVs",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c, true)
					if err != nil {
						return err
					}
					client := twitch.NewCircuitBreakerClient(&cfg.Twitch)
					result, err := etl.NewExtractor(client, &cfg.Extract).Run(runContext(c))
					if err != nil {
						return err
					}
					fmt.Printf("Extracted %d streams and %d games to %s\n",
						result.StreamCount, result.GameCount, cfg.Extract.RawDir)
					return nil
				},
			},
			{
				Name:  "transform",
				Usage: "Derive analytical fields from the raw snapshot",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c, true)
					if err != nil {
						return err
					}
					client := twitch.NewCircuitBreakerClient(&cfg.Twitch)
					result, err := etl.NewTransformer(client, &cfg.Extract).Run(runContext(c))
					if err != nil {
						return err
					}
					fmt.Printf("Transformed %d rows to %s\n", result.RowCount, result.ProcessedPath)
					return nil
				},
			},
			{
				Name:  "load",
				Usage: "Append the processed snapshot into DuckDB, skipping seen streams",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c, false)
					if err != nil {
						return err
					}
					db, err := database.New(&cfg.Database)
					if err != nil {
						return err
					}
					defer closeDatabase(db)

					result, err := etl.NewLoader(db, &cfg.Extract, &cfg.Load).Run(runContext(c))
					if err != nil {
						return err
					}
					fmt.Printf("Loaded %d rows (%d new, %d duplicates)\n",
						result.StreamsRead, result.RowsInserted, result.RowsDuplicate)
					return nil
				},
			},
			{
				Name:  "run",
				Usage: "Run the full extract-transform-load pipeline",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c, true)
					if err != nil {
						return err
					}
					db, err := database.New(&cfg.Database)
					if err != nil {
						return err
					}
					defer closeDatabase(db)

					client := twitch.NewCircuitBreakerClient(&cfg.Twitch)
					result, err := etl.NewPipeline(client, db, cfg).Run(runContext(c))
					if err != nil {
						return err
					}
					fmt.Printf("Pipeline finished in %s: %d fetched, %d new, %d duplicates\n",
						result.Duration.Round(time.Millisecond),
						result.Extract.StreamCount,
						result.Load.RowsInserted,
						result.Load.RowsDuplicate)
					return nil
				},
			},
			{
				Name:  "report",
				Usage: "Print the analytics report and render charts",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-charts",
						Value: false,
						Usage: "skip rendering HTML charts",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c, false)
					if err != nil {
						return err
					}
					db, err := database.New(&cfg.Database)
					if err != nil {
						return err
					}
					defer closeDatabase(db)

					ctx := runContext(c)
					if err := analytics.NewReporter(db, &cfg.Analytics, os.Stdout).Run(ctx); err != nil {
						return err
					}
					if !c.Bool("no-charts") {
						if err := analytics.NewChartWriter(db, &cfg.Analytics).Run(ctx); err != nil {
							return err
						}
						fmt.Printf("\nCharts written to %s\n", cfg.Analytics.OutputDir)
					}
					return nil
				},
			},
			{
				Name:  "export",
				Usage: "Export a table or aggregate to a CSV file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "destination CSV path",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "dataset",
						Aliases: []string{"d"},
						Value:   "streams",
						Usage:   fmt.Sprintf("dataset to export, one of %v", database.ExportDatasets()),
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c, false)
					if err != nil {
						return err
					}
					db, err := database.New(&cfg.Database)
					if err != nil {
						return err
					}
					defer closeDatabase(db)

					dataset := c.String("dataset")
					path := c.String("output")
					if err := db.ExportCSV(runContext(c), dataset, path); err != nil {
						return err
					}
					fmt.Printf("Exported %s to %s\n", dataset, path)
					return nil
				},
			},
			{
				Name:  "serve",
				Usage: "Serve the analytics API over HTTP",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c, false)
					if err != nil {
						return err
					}
					db, err := database.New(&cfg.Database)
					if err != nil {
						return err
					}
					defer closeDatabase(db)

					return api.NewServer(db, cfg).Run(runContext(c))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logging.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// loadConfig loads configuration, initializes logging from it, and
// optionally enforces Helix credentials for commands that talk to the
// API.
func loadConfig(c *cli.Context, needsCredentials bool) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if needsCredentials {
		if err := cfg.ValidateTwitchCredentials(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// runContext returns a context cancelled on SIGINT or SIGTERM.
func runContext(c *cli.Context) context.Context {
	ctx, _ := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	return ctx
}

func closeDatabase(db *database.DB) {
	if err := db.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close database cleanly")
	}
}
