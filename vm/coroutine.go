package vm

import "github.com/wudi/ember/values"

// CallGenerator invokes a generator function to completion and returns
// every value it yielded as an array. Embedding Go code that needs to consume a generator
// lazily can use this as the iteration source.
func (vm *VM) CallGenerator(fn *values.Function, args []*values.Value) (*values.Value, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if err := vm.invokeFunction(fn, nil, args); err != nil {
		return nil, err
	}
	stopDepth := len(vm.frames)
	if err := vm.dispatch(stopDepth); err != nil {
		return nil, err
	}
	if len(vm.stack) > 0 {
		return vm.pop(), nil
	}
	return values.Nil(), nil
}
