package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fxnlabs/autotune/internal/compute"
	"github.com/fxnlabs/autotune/internal/config"
	"github.com/fxnlabs/autotune/internal/elementwise"
	"github.com/fxnlabs/autotune/internal/tune"
	"github.com/fxnlabs/autotune/internal/tunestore"
)

// openStore builds the store the running application would use, without
// starting a channel.
func openStore(cfg *config.Config, log *zap.Logger) (*tunestore.Store, string, error) {
	server, err := compute.NewServer(cfg.Compute.Backend, log)
	if err != nil {
		return nil, "", err
	}
	info := server.Info()
	checksum := tunestore.Checksum(elementwise.Kernels(), info)
	return tunestore.New(cfg.Autotune.CachePath, checksum, info.Name, log), checksum, nil
}

func cacheCommands() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the persisted autotune cache",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the persisted cache",
				Action: func(c *cli.Context) error {
					cfg := c.App.Metadata["config"].(*config.Config)
					log := c.App.Metadata["logger"].(*zap.Logger)
					store, checksum, err := openStore(cfg, log)
					if err != nil {
						return err
					}
					f, err := store.Read()
					if err != nil {
						return err
					}
					if f == nil {
						fmt.Fprintf(c.App.Writer, "no cache at %s\n", store.Path())
						return nil
					}

					fmt.Fprintf(c.App.Writer, "path:     %s\n", store.Path())
					fmt.Fprintf(c.App.Writer, "device:   %s\n", f.Device)
					fmt.Fprintf(c.App.Writer, "checksum: %s\n", f.Checksum)
					if f.Checksum != checksum {
						fmt.Fprintf(c.App.Writer, "stale:    current checksum is %s, entries will not be restored\n", checksum)
					}
					entries := make(map[tune.Key]int, len(f.Entries))
					for k, v := range f.Entries {
						entries[tune.Key(k)] = v
					}
					printEntries(c.App.Writer, entries)
					return nil
				},
			},
			{
				Name:  "clear",
				Usage: "Delete the persisted cache",
				Action: func(c *cli.Context) error {
					cfg := c.App.Metadata["config"].(*config.Config)
					log := c.App.Metadata["logger"].(*zap.Logger)
					path := cfg.Autotune.CachePath
					if _, err := os.Stat(path); os.IsNotExist(err) {
						log.Info("No cache to clear", zap.String("path", path))
						return nil
					}
					if err := tunestore.New(path, "", "", log).Remove(); err != nil {
						return err
					}
					log.Info("Cleared cache", zap.String("path", path))
					return nil
				},
			},
		},
	}
}
