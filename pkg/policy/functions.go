package policy

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Function is a helper rule expressions can call.
type Function func(args ...any) (any, error)

// FunctionRegistry is an immutable set of helpers keyed by lower-cased
// name. With returns an extended copy, so a registry can be shared between
// evaluators without locking.
type FunctionRegistry struct {
	functions map[string]Function
}

// NewFunctionRegistry builds a registry from funcs. Names are matched case
// insensitively, so two names differing only in case collide.
func NewFunctionRegistry(funcs map[string]Function) (*FunctionRegistry, error) {
	r := &FunctionRegistry{functions: make(map[string]Function, len(funcs))}
	for _, name := range slices.Sorted(maps.Keys(funcs)) {
		if err := r.add(name, funcs[name]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// With returns a copy of r that also holds fn under name.
func (r *FunctionRegistry) With(name string, fn Function) (*FunctionRegistry, error) {
	next := &FunctionRegistry{functions: map[string]Function{}}
	if r != nil {
		next.functions = maps.Clone(r.functions)
	}
	if err := next.add(name, fn); err != nil {
		return nil, err
	}
	return next, nil
}

func (r *FunctionRegistry) add(name string, fn Function) error {
	key := strings.ToLower(strings.TrimSpace(name))
	switch {
	case key == "":
		return fmt.Errorf("policy: function name must not be empty")
	case fn == nil:
		return fmt.Errorf("policy: function %q is nil", name)
	case key == "call":
		return fmt.Errorf("policy: function name %q is reserved", name)
	}
	if _, taken := r.functions[key]; taken {
		return fmt.Errorf("policy: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Call runs the helper registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	var fn Function
	if r != nil {
		fn = r.functions[strings.ToLower(name)]
	}
	if fn == nil {
		return nil, fmt.Errorf("policy: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns the registered names, sorted.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.functions))
}
