// Command ember is the embedding CLI over the runtime in this
// repository: a file/stdin runner, a -code one-liner, an interactive
// shell, and a pool demo harness, built on github.com/urfave/cli/v3.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

// Version metadata, overridable at build time via -ldflags.
var (
	buildVersion = "0.1.0"
	buildCommit  = "dev"
)

func main() {
	app := &cli.Command{
		Name:  "ember",
		Usage: "Ember embeddable scripting runtime",
		Commands: []*cli.Command{
			runCommand,
			evalCommand,
			replCommand,
			serveCommand,
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "a",
				Usage: "Run as interactive shell",
			},
			&cli.StringFlag{
				Name:    "code",
				Aliases: []string{"r"},
				Usage:   "Run <code> directly instead of a file",
			},
			&cli.BoolFlag{
				Name:  "version",
				Usage: "Show version",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("version") {
				fmt.Printf("%s (%s)\n", buildVersion, buildCommit)
				return nil
			}
			if cmd.Bool("a") {
				return runREPL()
			}
			if code := cmd.String("code"); code != "" {
				return runSource(code, "<code>")
			}
			if args := cmd.Args(); args.Len() > 0 {
				return runFile(args.First())
			}

			src, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			return runSource(string(src), "<stdin>")
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
