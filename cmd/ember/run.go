package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/wudi/ember/compiler"
	"github.com/wudi/ember/errors"
	"github.com/wudi/ember/internal/diag"
	"github.com/wudi/ember/module"
	"github.com/wudi/ember/vm"
)

var traceFlag = &cli.BoolFlag{
	Name:  "trace",
	Usage: "Dump the disassembled chunk before executing",
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Compile and execute an .ember file",
	ArgsUsage: "<file>",
	Flags:     []cli.Flag{traceFlag},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		args := cmd.Args()
		if args.Len() == 0 {
			return fmt.Errorf("usage: ember run <file>")
		}
		return runFileTraced(args.First(), cmd.Bool("trace"))
	},
}

var evalCommand = &cli.Command{
	Name:      "eval",
	Usage:     "Compile and execute a source string",
	ArgsUsage: "<code>",
	Flags:     []cli.Flag{traceFlag},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		args := cmd.Args()
		if args.Len() == 0 {
			return fmt.Errorf("usage: ember eval <code>")
		}
		return runSourceTraced(args.First(), "<eval>", cmd.Bool("trace"))
	},
}

func runFile(path string) error {
	return runFileTraced(path, false)
}

func runFileTraced(path string, trace bool) error {
	src, err := os.ReadFile(path)
	if err != nil {
		diag.Logf(diag.Module, "failed to read %s: %v", path, err)
		return err
	}
	return runSourceTraced(string(src), path, trace)
}

func runSource(src, file string) error {
	return runSourceTraced(src, file, false)
}

func runSourceTraced(src, file string, trace bool) error {
	interpreter := vm.New()
	loader := module.New(interpreter)
	interpreter.Importer = loader
	registerBuiltins(interpreter)
	if dir := dirOf(file); dir != "" {
		_ = loader.AddSearchPath(dir)
	}

	comp := compiler.New(src, interpreter.Interns())
	comp.SetCurrentFile(file)
	chunk := comp.Compile()
	if comp.Errors().HasErrors() {
		fmt.Fprintln(os.Stderr, comp.Errors().String())
		os.Exit(int(errors.StatusCompileError))
	}

	if trace {
		fmt.Print(chunk.Disassemble())
	}

	val, err := interpreter.Run(chunk)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(int(vm.StatusOf(err)))
	}
	if val != nil && !val.IsNil() {
		fmt.Println(val.String())
	}
	return nil
}

func dirOf(file string) string {
	if file == "" || file == "<code>" || file == "<stdin>" || file == "<eval>" {
		return ""
	}
	return filepath.Dir(file)
}
