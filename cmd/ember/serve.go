package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/wudi/ember/pool"
)

// serveCommand is a pool demonstration harness, not a network server:
// it submits each given script to a pool.Pool worker and reports the
// resulting pool.Stats without opening a socket.
var serveCommand = &cli.Command{
	Name:      "serve",
	Usage:     "Run scripts through the concurrent VM pool and report stats",
	ArgsUsage: "<file> [file...]",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "max-vms", Value: 4, Usage: "Maximum pool size"},
		&cli.IntFlag{Name: "initial-vms", Value: 1, Usage: "VMs pre-created at start"},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		args := cmd.Args()
		if args.Len() == 0 {
			return fmt.Errorf("usage: ember serve <file> [file...]")
		}

		cfg := pool.DefaultConfig()
		cfg.MaxVMCount = int(cmd.Int("max-vms"))
		cfg.InitialVMCount = int(cmd.Int("initial-vms"))
		cfg.VMSetup = registerBuiltins

		p := pool.New(cfg)
		if err := p.Start(); err != nil {
			return err
		}
		defer p.Shutdown(true)

		var wg sync.WaitGroup
		for i := 0; i < args.Len(); i++ {
			path := args.Get(i)
			src, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
				continue
			}

			wg.Add(1)
			_, err = p.SubmitScriptExecution(path, string(src), func(res pool.Result) {
				defer wg.Done()
				switch res.Status {
				case pool.StatusSuccess:
					fmt.Printf("%s: ok (%s)\n", path, res.Elapsed)
				default:
					fmt.Printf("%s: %s: %s\n", path, res.Status, res.ErrorMessage)
				}
			})
			if err != nil {
				wg.Done()
				fmt.Fprintf(os.Stderr, "%s: submit failed: %v\n", path, err)
			}
		}

		wg.Wait()

		stats := p.GetStats()
		fmt.Printf("\nacquisitions=%d failures=%d expansions=%d requests=%d exec_time=%s cache_hits=%d cache_misses=%d entries=%d\n",
			stats.Acquisitions, stats.AcquisitionFailures, stats.PoolExpansions, stats.TotalRequests,
			stats.TotalExecTime.Round(time.Millisecond), stats.CacheHits, stats.CacheMisses, stats.TotalEntries)
		return nil
	},
}
