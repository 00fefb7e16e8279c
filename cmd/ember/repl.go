package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"

	"github.com/wudi/ember/compiler"
	"github.com/wudi/ember/module"
	"github.com/wudi/ember/vm"
)

var replCommand = &cli.Command{
	Name:  "repl",
	Usage: "Start an interactive shell",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		return runREPL()
	},
}

// runREPL drives a persistent VM across lines of input, built on
// github.com/chzyer/readline for history and line editing.
func runREPL() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ember> ",
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Println("Ember interactive shell. Type 'exit' or Ctrl-D to quit.")

	interpreter := vm.New()
	loader := module.New(interpreter)
	interpreter.Importer = loader
	registerBuiltins(interpreter)

	var buffer strings.Builder
	for {
		if buffer.Len() > 0 {
			rl.SetPrompt("   ... ")
		} else {
			rl.SetPrompt("ember> ")
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buffer.Reset()
			continue
		}
		if err == io.EOF {
			fmt.Println("Bye!")
			return nil
		}
		if err != nil {
			return err
		}

		if buffer.Len() == 0 && (line == "exit" || line == "quit") {
			fmt.Println("Bye!")
			return nil
		}

		buffer.WriteString(line)
		buffer.WriteByte('\n')

		if needsMoreInput(buffer.String()) {
			continue
		}

		code := strings.TrimSpace(buffer.String())
		buffer.Reset()
		if code == "" {
			continue
		}

		executeREPLLine(interpreter, code)
	}
}

// needsMoreInput reports whether code has unbalanced braces, parens,
// brackets, or an open quote — the bracket-counting heuristic used
// before deciding a line is complete.
func needsMoreInput(code string) bool {
	braces, parens, brackets := 0, 0, 0
	inSingle, inDouble, escaped := false, false, false

	for _, ch := range code {
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if !inSingle && !inDouble {
			switch ch {
			case '\'':
				inSingle = true
			case '"':
				inDouble = true
			case '{':
				braces++
			case '}':
				braces--
			case '(':
				parens++
			case ')':
				parens--
			case '[':
				brackets++
			case ']':
				brackets--
			}
		} else if inSingle && ch == '\'' {
			inSingle = false
		} else if inDouble && ch == '"' {
			inDouble = false
		}
	}

	return braces > 0 || parens > 0 || brackets > 0 || inSingle || inDouble
}

func executeREPLLine(interpreter *vm.VM, code string) {
	comp := compiler.New(code, interpreter.Interns())
	comp.SetCurrentFile("<repl>")
	chunk := comp.Compile()
	if comp.Errors().HasErrors() {
		fmt.Println(comp.Errors().String())
		return
	}

	val, err := interpreter.Run(chunk)
	if err != nil {
		fmt.Printf("Runtime error: %v\n", err)
		return
	}
	if val != nil && !val.IsNil() {
		fmt.Println(val.String())
	}
}
