package vm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wudi/ember/opcodes"
	"github.com/wudi/ember/values"
)

// CompileRegex builds a regex value from an Ember pattern/flags pair.
// Flags `i`, `m`, and `s` translate to the engine's inline mode
// modifiers; `g` is remembered on the value and consumed by the
// replace operation (global vs first-match). Any other flag is an
// error.
func CompileRegex(pattern, flags string) (*values.Value, error) {
	var mode strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			mode.WriteRune(f)
		case 'g':
			// handled per-operation, not by the engine
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", string(f))
		}
	}
	goPattern := pattern
	if mode.Len() > 0 {
		goPattern = "(?" + mode.String() + ")" + pattern
	}
	re, err := regexp.Compile(goPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern %q: %v", pattern, err)
	}
	v := values.NewRegex(pattern, flags)
	v.Data.(*values.Regex).Compiled = re
	return v, nil
}

// regexOperand unpacks a regex value's heap object and compiled
// handle, compiling lazily if the value was constructed without one.
func regexOperand(v *values.Value) (*values.Regex, *regexp.Regexp, error) {
	if v.Type != values.TypeRegex {
		return nil, nil, fmt.Errorf("operand is not a regex")
	}
	r := v.Data.(*values.Regex)
	if re, ok := r.Compiled.(*regexp.Regexp); ok {
		return r, re, nil
	}
	compiled, err := CompileRegex(r.Pattern, r.Flags)
	if err != nil {
		return nil, nil, err
	}
	r.Compiled = compiled.Data.(*values.Regex).Compiled
	return r, r.Compiled.(*regexp.Regexp), nil
}

// regexOp executes one of the REGEX_* opcodes. Operand order on the
// stack, bottom to top: the regex value, then the operation's string
// operands in source order.
func (vm *VM) regexOp(op opcodes.Op, line int) error {
	switch op {
	case opcodes.OP_REGEX_NEW:
		flags, pattern := vm.pop(), vm.pop()
		if !pattern.IsString() || !flags.IsString() {
			return vm.runtimeError(line, values.ErrType, "regex pattern and flags must be strings")
		}
		rv, err := CompileRegex(pattern.AsString(), flags.AsString())
		if err != nil {
			return vm.runtimeError(line, values.ErrSyntax, err.Error())
		}
		vm.gc.Track(rv.Data.(values.Object))
		vm.push(rv)

	case opcodes.OP_REGEX_TEST:
		subject, target := vm.pop(), vm.pop()
		result, err := vm.regexTest(target, subject, line)
		if err != nil {
			return err
		}
		vm.push(result)

	case opcodes.OP_REGEX_MATCH:
		subject, target := vm.pop(), vm.pop()
		result, err := vm.regexMatch(target, subject, line)
		if err != nil {
			return err
		}
		vm.push(result)

	case opcodes.OP_REGEX_REPLACE:
		replacement, subject, target := vm.pop(), vm.pop(), vm.pop()
		result, err := vm.regexReplace(target, subject, replacement, line)
		if err != nil {
			return err
		}
		vm.push(result)

	case opcodes.OP_REGEX_SPLIT:
		subject, target := vm.pop(), vm.pop()
		result, err := vm.regexSplit(target, subject, line)
		if err != nil {
			return err
		}
		vm.push(result)
	}
	return nil
}

func (vm *VM) regexTest(target, subject *values.Value, line int) (*values.Value, error) {
	_, re, err := regexOperand(target)
	if err != nil {
		return nil, vm.runtimeError(line, values.ErrType, err.Error())
	}
	if !subject.IsString() {
		return nil, vm.runtimeError(line, values.ErrType, "regex test subject must be a string")
	}
	return values.Bool(re.MatchString(subject.AsString())), nil
}

// regexMatch returns an array of the full match followed by every
// capture group, or nil when the pattern doesn't match. The groups are
// also remembered on the regex value as its last-match state.
func (vm *VM) regexMatch(target, subject *values.Value, line int) (*values.Value, error) {
	r, re, err := regexOperand(target)
	if err != nil {
		return nil, vm.runtimeError(line, values.ErrType, err.Error())
	}
	if !subject.IsString() {
		return nil, vm.runtimeError(line, values.ErrType, "regex match subject must be a string")
	}
	groups := re.FindStringSubmatch(subject.AsString())
	if groups == nil {
		r.LastGroups = nil
		return values.Nil(), nil
	}
	r.LastGroups = groups
	elems := make([]*values.Value, len(groups))
	for i, g := range groups {
		elems[i] = values.StrInterned(g, vm.interns)
	}
	arr := values.NewArray(elems...)
	vm.gc.Track(arr.Data.(values.Object))
	return arr, nil
}

func (vm *VM) regexReplace(target, subject, replacement *values.Value, line int) (*values.Value, error) {
	r, re, err := regexOperand(target)
	if err != nil {
		return nil, vm.runtimeError(line, values.ErrType, err.Error())
	}
	if !subject.IsString() || !replacement.IsString() {
		return nil, vm.runtimeError(line, values.ErrType, "regex replace operands must be strings")
	}
	src, repl := subject.AsString(), replacement.AsString()
	if strings.ContainsRune(r.Flags, 'g') {
		return values.StrInterned(re.ReplaceAllString(src, repl), vm.interns), nil
	}
	// First match only: splice the expanded replacement over the first
	// match's span.
	loc := re.FindStringSubmatchIndex(src)
	if loc == nil {
		return values.StrInterned(src, vm.interns), nil
	}
	expanded := re.ExpandString(nil, repl, src, loc)
	return values.StrInterned(src[:loc[0]]+string(expanded)+src[loc[1]:], vm.interns), nil
}

func (vm *VM) regexSplit(target, subject *values.Value, line int) (*values.Value, error) {
	_, re, err := regexOperand(target)
	if err != nil {
		return nil, vm.runtimeError(line, values.ErrType, err.Error())
	}
	if !subject.IsString() {
		return nil, vm.runtimeError(line, values.ErrType, "regex split subject must be a string")
	}
	parts := re.Split(subject.AsString(), -1)
	elems := make([]*values.Value, len(parts))
	for i, p := range parts {
		elems[i] = values.StrInterned(p, vm.interns)
	}
	arr := values.NewArray(elems...)
	vm.gc.Track(arr.Data.(values.Object))
	return arr, nil
}

// regexInvoke routes method-call syntax on a regex receiver
// (`r.test(s)`, `r.match(s)`, `r.replace(s, repl)`, `r.split(s)`) to
// the same operations the REGEX_* opcodes execute.
func (vm *VM) regexInvoke(receiver *values.Value, name string, args []*values.Value, line int) error {
	var (
		result *values.Value
		err    error
	)
	switch name {
	case "test":
		if len(args) != 1 {
			return vm.runtimeError(line, values.ErrType, "test expects one argument")
		}
		result, err = vm.regexTest(receiver, args[0], line)
	case "match":
		if len(args) != 1 {
			return vm.runtimeError(line, values.ErrType, "match expects one argument")
		}
		result, err = vm.regexMatch(receiver, args[0], line)
	case "replace":
		if len(args) != 2 {
			return vm.runtimeError(line, values.ErrType, "replace expects two arguments")
		}
		result, err = vm.regexReplace(receiver, args[0], args[1], line)
	case "split":
		if len(args) != 1 {
			return vm.runtimeError(line, values.ErrType, "split expects one argument")
		}
		result, err = vm.regexSplit(receiver, args[0], line)
	default:
		return vm.runtimeError(line, values.ErrReference, "undefined regex method '"+name+"'")
	}
	if err != nil {
		return err
	}
	vm.push(result)
	return nil
}
