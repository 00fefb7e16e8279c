package main

import (
	"fmt"
	"strings"

	"github.com/wudi/ember/values"
	"github.com/wudi/ember/vm"
)

// registerBuiltins installs the CLI's native functions into a VM via
// the embedding API's register_func surface. The full standard
// library is out of scope for the runtime itself; these are the bare
// conveniences every script run from a terminal expects.
func registerBuiltins(v *vm.VM) {
	v.RegisterFunc("print", func(args []*values.Value) (*values.Value, error) {
		fmt.Println(joinArgs(args))
		return nil, nil
	})
	v.RegisterFunc("println", func(args []*values.Value) (*values.Value, error) {
		fmt.Println(joinArgs(args))
		return nil, nil
	})
	v.RegisterFunc("len", func(args []*values.Value) (*values.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("len expects one argument")
		}
		switch args[0].Type {
		case values.TypeString:
			return values.Number(float64(len(args[0].AsString()))), nil
		case values.TypeArray:
			return values.Number(float64(args[0].Data.(*values.Array).Len())), nil
		case values.TypeMap:
			return values.Number(float64(args[0].Data.(*values.Map).Len())), nil
		case values.TypeSet:
			return values.Number(float64(args[0].Data.(*values.Set).Len())), nil
		default:
			return nil, fmt.Errorf("len target must be a string or collection")
		}
	})
	v.RegisterFunc("type", func(args []*values.Value) (*values.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("type expects one argument")
		}
		return values.StrInterned(args[0].Type.String(), v.Interns()), nil
	})
	v.RegisterFunc("regex", func(args []*values.Value) (*values.Value, error) {
		if len(args) < 1 || len(args) > 2 || !args[0].IsString() {
			return nil, fmt.Errorf("regex expects a pattern and optional flags")
		}
		flags := ""
		if len(args) == 2 {
			if !args[1].IsString() {
				return nil, fmt.Errorf("regex flags must be a string")
			}
			flags = args[1].AsString()
		}
		return vm.CompileRegex(args[0].AsString(), flags)
	})
}

func joinArgs(args []*values.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}
