package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fxnlabs/autotune/internal/app"
	"github.com/fxnlabs/autotune/internal/compute"
	"github.com/fxnlabs/autotune/internal/config"
	"github.com/fxnlabs/autotune/internal/elementwise"
	"github.com/fxnlabs/autotune/internal/tune"
)

// parseShape parses dimensions written as "1024" or "32x64".
func parseShape(s string) (elementwise.Shape, error) {
	parts := strings.Split(strings.TrimSpace(s), "x")
	shape := make(elementwise.Shape, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(p)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid shape %q", s)
		}
		shape = append(shape, d)
	}
	return shape, nil
}

func tuneCommand() *cli.Command {
	return &cli.Command{
		Name:  "tune",
		Usage: "Autotune the elementwise kernels for the given shapes",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "shape",
				Usage: "Tensor shape to tune, e.g. 1024 or 32x64 (repeatable, default 1024)",
			},
			&cli.BoolFlag{Name: "quiet", Usage: "Do not print the banner"},
		},
		Action: func(c *cli.Context) error {
			cfg := c.App.Metadata["config"].(*config.Config)
			log := c.App.Metadata["logger"].(*zap.Logger)

			names := c.StringSlice("shape")
			if len(names) == 0 {
				names = []string{"1024"}
			}
			var shapes []elementwise.Shape
			for _, s := range names {
				shape, err := parseShape(s)
				if err != nil {
					return err
				}
				shapes = append(shapes, shape)
			}

			if !c.Bool("quiet") {
				fmt.Fprintln(c.App.Writer, figure.NewFigure("autotune", "", true).String())
			}

			var client compute.Client
			fxApp := app.New(cfg, fx.Populate(&client))
			if err := fxApp.Start(c.Context); err != nil {
				return err
			}
			defer func() {
				if err := fxApp.Stop(context.Background()); err != nil {
					log.Error("failed to stop", zap.Error(err))
				}
			}()

			info := client.Info()
			log.Info("Tuning",
				zap.String("device", info.Name),
				zap.String("channel", client.Strategy().String()),
				zap.Int("shapes", len(shapes)))
			for _, shape := range shapes {
				if err := elementwise.Warmup(client, shape); err != nil {
					return fmt.Errorf("shape %s: %w", shape, err)
				}
			}

			var entries map[tune.Key]int
			if err := client.WithTunerCache(func(cache *tune.Cache) {
				entries = cache.Entries()
			}); err != nil {
				return err
			}
			printEntries(c.App.Writer, entries)
			return nil
		},
	}
}

func printEntries(w io.Writer, entries map[tune.Key]int) {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-48s %s\n", k, winnerName(k, entries[tune.Key(k)]))
	}
	fmt.Fprintf(w, "%d entries\n", len(entries))
}

// winnerName resolves a cached index against the variant list embedded in
// elementwise keys ({op}-{variants...}-{shape}-f64).
func winnerName(key string, index int) string {
	parts := strings.Split(key, "-")
	if len(parts) < 4 || index+1 >= len(parts)-2 {
		return strconv.Itoa(index)
	}
	return parts[index+1]
}
