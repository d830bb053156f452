// Command reorder runs forecast-to-order cycles and manages the order ledger
// and alert state from the shell.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/andresuchdata/autoreorder/internal/app"
	"github.com/andresuchdata/autoreorder/internal/config"
	"github.com/andresuchdata/autoreorder/pkg/logger"
	"github.com/urfave/cli/v2"
)

type appKey struct{}

func initApp(c *cli.Context) error {
	cfg := config.Load()
	level := cfg.Server.LogLevel
	if c.Bool("verbose") {
		level = "debug"
	}
	// Results go to stdout; keep logs off it.
	logger.Setup(os.Stderr, level, cfg.Server.LogFormat)

	a, err := app.New(c.Context, cfg, app.Options{DryRun: c.Bool("dry-run")})
	if err != nil {
		return err
	}
	c.Context = context.WithValue(c.Context, appKey{}, a)
	return nil
}

func closeApp(c *cli.Context) error {
	if a, ok := c.Context.Value(appKey{}).(*app.App); ok && a != nil {
		return a.Close()
	}
	return nil
}

func appFrom(c *cli.Context) (*app.App, error) {
	a, ok := c.Context.Value(appKey{}).(*app.App)
	if !ok || a == nil {
		return nil, errors.New("application not initialized")
	}
	return a, nil
}

func printJSON(c *cli.Context, v interface{}) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	cliApp := &cli.App{
		Name:  "reorder",
		Usage: "Forecast demand and raise purchase orders from inventory movements",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "dry-run",
				Usage:   "Keep orders, alert state and notifications in memory",
				EnvVars: []string{"REORDER_DRY_RUN"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log at debug level",
			},
		},
		Before: initApp,
		After:  closeApp,
		Commands: []*cli.Command{
			runCommand(),
			ordersCommand(),
			alertCommand(),
			rulesCommand(),
			cacheCommand(),
			archiveCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("reorder failed")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
