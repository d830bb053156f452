package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/andresuchdata/autoreorder/internal/alert"
	"github.com/andresuchdata/autoreorder/internal/drive"
	"github.com/andresuchdata/autoreorder/internal/ingest"
	"github.com/andresuchdata/autoreorder/internal/pipeline"
	"github.com/andresuchdata/autoreorder/internal/service"
	"github.com/urfave/cli/v2"
)

const (
	remoteS3    = "s3"
	remoteDrive = "drive"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run one cycle per material from local files, a remote source or the database",
		ArgsUsage: "[FILE...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "remote",
				Usage: "Read every export from a remote source (s3 or drive)",
			},
			&cli.BoolFlag{
				Name:  "postgres",
				Usage: "Read movements from the inventory_movements table",
			},
			&cli.StringSliceFlag{
				Name:    "material",
				Aliases: []string{"m"},
				Usage:   "Only run the given materials",
			},
		},
		Action: runCycles,
	}
}

func runCycles(c *cli.Context) error {
	a, err := appFrom(c)
	if err != nil {
		return err
	}
	ctx := c.Context
	materials := c.StringSlice("material")

	var reports []pipeline.Report
	// Per-material failures stay in the report; anything else aborts.
	collect := func(report pipeline.Report, err error) error {
		if err != nil && len(report.Results) == 0 && len(report.Failures) == 0 {
			return err
		}
		reports = append(reports, report)
		return nil
	}

	switch remote := c.String("remote"); {
	case c.NArg() > 0:
		for _, path := range c.Args().Slice() {
			if err := collect(a.Cycles.RunFile(ctx, path, materials...)); err != nil {
				return err
			}
		}
	case remote == remoteS3:
		if a.Storage == nil {
			return errors.New("object storage is disabled; set STORAGE_ENABLED=true")
		}
		if err := collect(a.Cycles.RunRemote(ctx, a.Storage, materials...)); err != nil {
			return err
		}
	case remote == remoteDrive:
		svc, err := drive.NewService(ctx, a.Config.Drive.CredentialsJSON)
		if err != nil {
			return err
		}
		if err := collect(a.Cycles.RunRemote(ctx, svc.Folder(a.Config.Drive.FolderID), materials...)); err != nil {
			return err
		}
	case remote != "":
		return fmt.Errorf("unknown remote %q (want %s or %s)", remote, remoteS3, remoteDrive)
	case c.Bool("postgres"):
		if a.SQL == nil {
			return errors.New("database is disabled; set DB_ENABLED=true")
		}
		snaps, err := ingest.NewPostgresSource(a.SQL).Load(ctx, materials...)
		if err != nil {
			return err
		}
		if err := collect(a.Cycles.RunSnapshots(ctx, snaps)); err != nil {
			return err
		}
	default:
		return cli.Exit("nothing to run: pass files, --remote or --postgres", 1)
	}

	merged := mergeReports(reports)
	if err := printJSON(c, merged); err != nil {
		return err
	}
	if a.Outbox != nil {
		if err := printJSON(c, map[string]interface{}{"dry_run_notifications": a.Outbox.Messages()}); err != nil {
			return err
		}
	}
	if len(merged.Failures) > 0 {
		return cli.Exit(fmt.Sprintf("%d material(s) failed", len(merged.Failures)), 2)
	}
	return nil
}

func mergeReports(reports []pipeline.Report) pipeline.Report {
	merged := pipeline.Report{}
	for _, r := range reports {
		merged.Results = append(merged.Results, r.Results...)
		for material, msg := range r.Failures {
			if merged.Failures == nil {
				merged.Failures = make(map[string]string)
			}
			merged.Failures[material] = msg
		}
	}
	return merged
}

func ordersCommand() *cli.Command {
	return &cli.Command{
		Name:  "orders",
		Usage: "Inspect and transition ledger orders",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List orders",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "material", Aliases: []string{"m"}},
					&cli.StringFlag{Name: "status"},
					&cli.BoolFlag{Name: "active", Usage: "Only pending and approved orders"},
				},
				Action: func(c *cli.Context) error {
					a, err := appFrom(c)
					if err != nil {
						return err
					}
					orders, err := a.Orders.List(c.Context, service.OrderQuery{
						MaterialID: c.String("material"),
						Status:     c.String("status"),
						ActiveOnly: c.Bool("active"),
					})
					if err != nil {
						return err
					}
					return printJSON(c, orders)
				},
			},
			{
				Name:      "transition",
				Usage:     "Move an order to a new status",
				ArgsUsage: "ID STATUS",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.Exit("usage: reorder orders transition ID STATUS", 1)
					}
					id, err := strconv.ParseInt(c.Args().Get(0), 10, 64)
					if err != nil {
						return fmt.Errorf("invalid order id %q", c.Args().Get(0))
					}
					a, err := appFrom(c)
					if err != nil {
						return err
					}
					order, err := a.Orders.Transition(c.Context, id, c.Args().Get(1))
					if err != nil {
						return err
					}
					return printJSON(c, order)
				},
			},
		},
	}
}

func alertCommand() *cli.Command {
	materialFlag := &cli.StringFlag{Name: "material", Aliases: []string{"m"}, Required: true}
	return &cli.Command{
		Name:  "alert",
		Usage: "Inspect or reset persisted alert state",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the alert state for a material",
				Flags: []cli.Flag{materialFlag},
				Action: func(c *cli.Context) error {
					a, err := appFrom(c)
					if err != nil {
						return err
					}
					state, err := a.Inventory.AlertState(c.Context, c.String("material"))
					if err != nil {
						return err
					}
					return printJSON(c, state)
				},
			},
			{
				Name:  "clear",
				Usage: "Re-arm the alert so the next shortage notifies again",
				Flags: []cli.Flag{materialFlag},
				Action: func(c *cli.Context) error {
					a, err := appFrom(c)
					if err != nil {
						return err
					}
					return a.Alerts.Clear(c.Context, alert.Channel(a.Orchestrator.AlertChannel(), c.String("material")), "")
				},
			},
		},
	}
}

func rulesCommand() *cli.Command {
	return &cli.Command{
		Name:  "rules",
		Usage: "Print the loaded reorder rules",
		Action: func(c *cli.Context) error {
			a, err := appFrom(c)
			if err != nil {
				return err
			}
			return printJSON(c, a.RuleSvc.List())
		},
	}
}

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage cached forecasts",
		Subcommands: []*cli.Command{
			{
				Name:  "flush",
				Usage: "Drop every cached forecast so the next run retrains",
				Action: func(c *cli.Context) error {
					a, err := appFrom(c)
					if err != nil {
						return err
					}
					return a.Cache.InvalidateAll(c.Context)
				},
			},
		},
	}
}

func archiveCommand() *cli.Command {
	return &cli.Command{
		Name:  "archive",
		Usage: "Browse uploads archived in object storage",
		Before: func(c *cli.Context) error {
			a, err := appFrom(c)
			if err != nil {
				return err
			}
			if a.Storage == nil {
				return errors.New("object storage is disabled; set STORAGE_ENABLED=true")
			}
			return nil
		},
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List archived uploads",
				Action: func(c *cli.Context) error {
					a, _ := appFrom(c)
					objects, err := a.Storage.ListObjects(c.Context, a.Storage.ArchivePrefix()+"/")
					if err != nil {
						return err
					}
					return printJSON(c, objects)
				},
			},
			{
				Name:      "get",
				Usage:     "Download an archived upload",
				ArgsUsage: "KEY DEST",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.Exit("usage: reorder archive get KEY DEST", 1)
					}
					a, _ := appFrom(c)
					return a.Storage.DownloadObject(c.Context, c.Args().Get(0), c.Args().Get(1))
				},
			},
		},
	}
}
