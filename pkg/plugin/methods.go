// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"context"
	"errors"
	"reflect"
	"runtime/debug"
	"sort"

	"github.com/samber/oops"
)

// Sentinel errors for method dispatch.
var (
	// ErrMethodNotFound is returned when calling a method the instance does not expose.
	ErrMethodNotFound = errors.New("method not found")
	// ErrInvalidArgument is returned when an argument cannot be converted to the parameter type.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Dispatcher is implemented by instances whose methods are only known at run
// time, such as script or out-of-process plugins.
type Dispatcher interface {
	// MethodNames lists the callable methods.
	MethodNames() []string

	// Call invokes method with positional arguments.
	Call(ctx context.Context, method string, args ...any) (any, error)
}

// Funcs is an instance made of named functions. Each value must be a func.
type Funcs map[string]any

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// callable is a resolved function slot.
type callable struct {
	fn       reflect.Value
	wantsCtx bool
}

// MethodSet holds the callable slots of one instance. It is resolved once and
// reused for every call.
type MethodSet struct {
	instance   any
	dispatcher Dispatcher
	methods    map[string]callable
	names      []string
}

// NewMethodSet resolves the callable slots of instance.
//
// A Dispatcher is used as is. Funcs and map[string]any expose their function
// values. Any other value exposes its exported methods.
func NewMethodSet(instance any) *MethodSet {
	s := &MethodSet{
		instance: instance,
		methods:  make(map[string]callable),
	}

	switch v := instance.(type) {
	case nil:
	case Dispatcher:
		s.dispatcher = v
		s.names = append(s.names, v.MethodNames()...)
	case Funcs:
		s.addFuncs(v)
	case map[string]any:
		s.addFuncs(v)
	default:
		rv := reflect.ValueOf(instance)
		rt := rv.Type()
		for i := 0; i < rt.NumMethod(); i++ {
			m := rt.Method(i)
			if !m.IsExported() {
				continue
			}
			s.add(m.Name, rv.Method(i))
		}
	}

	sort.Strings(s.names)
	return s
}

func (s *MethodSet) addFuncs(funcs map[string]any) {
	for name, f := range funcs {
		fv := reflect.ValueOf(f)
		if fv.Kind() != reflect.Func || fv.IsNil() {
			continue
		}
		s.add(name, fv)
	}
}

func (s *MethodSet) add(name string, fn reflect.Value) {
	ft := fn.Type()
	s.methods[name] = callable{
		fn:       fn,
		wantsCtx: ft.NumIn() > 0 && ft.In(0) == contextType,
	}
	s.names = append(s.names, name)
}

// Instance returns the instance the set was resolved from.
func (s *MethodSet) Instance() any {
	return s.instance
}

// Names returns the sorted method names.
func (s *MethodSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Has reports whether the instance exposes method.
func (s *MethodSet) Has(method string) bool {
	if s.dispatcher != nil {
		i := sort.SearchStrings(s.names, method)
		return i < len(s.names) && s.names[i] == method
	}
	_, ok := s.methods[method]
	return ok
}

// Call invokes method with positional arguments. A leading context.Context
// parameter receives ctx. Missing arguments are passed as zero values and
// surplus arguments of a non-variadic function are dropped.
//
// Supported result shapes are (), (T), (error) and (T, error). A nil T is
// reported as a nil result.
func (s *MethodSet) Call(ctx context.Context, method string, args ...any) (res any, err error) {
	if s.dispatcher != nil {
		if !s.Has(method) {
			return nil, oops.Code("METHOD_NOT_FOUND").In("plugin").With("method", method).Wrap(ErrMethodNotFound)
		}
		defer recoverCall(method, &err)
		return s.dispatcher.Call(ctx, method, args...)
	}

	c, ok := s.methods[method]
	if !ok {
		return nil, oops.Code("METHOD_NOT_FOUND").In("plugin").With("method", method).Wrap(ErrMethodNotFound)
	}

	in, err := buildArgs(ctx, method, c, args)
	if err != nil {
		return nil, err
	}

	defer recoverCall(method, &err)
	return splitResults(c.fn.Call(in))
}

func recoverCall(method string, err *error) {
	if r := recover(); r != nil {
		*err = oops.Code("METHOD_PANIC").In("plugin").
			With("method", method).
			With("stack", string(debug.Stack())).
			Errorf("plugin method %s panicked: %v", method, r)
	}
}

func buildArgs(ctx context.Context, method string, c callable, args []any) ([]reflect.Value, error) {
	ft := c.fn.Type()
	in := make([]reflect.Value, 0, ft.NumIn())
	first := 0
	if c.wantsCtx {
		in = append(in, reflect.ValueOf(&ctx).Elem())
		first = 1
	}

	fixed := ft.NumIn()
	if ft.IsVariadic() {
		fixed--
	}

	argIdx := 0
	for i := first; i < fixed; i++ {
		var arg any
		if argIdx < len(args) {
			arg = args[argIdx]
		}
		argIdx++
		v, err := convertArg(arg, ft.In(i))
		if err != nil {
			return nil, oops.Code("INVALID_ARGUMENT").In("plugin").
				With("method", method).
				With("position", i-first).
				Wrap(err)
		}
		in = append(in, v)
	}

	if ft.IsVariadic() {
		elem := ft.In(ft.NumIn() - 1).Elem()
		for ; argIdx < len(args); argIdx++ {
			v, err := convertArg(args[argIdx], elem)
			if err != nil {
				return nil, oops.Code("INVALID_ARGUMENT").In("plugin").
					With("method", method).
					With("position", argIdx).
					Wrap(err)
			}
			in = append(in, v)
		}
	}

	return in, nil
}

// convertArg converts arg to t. Only assignable values, nil and numeric
// conversions are accepted.
func convertArg(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(t) {
		if t.Kind() == reflect.Interface {
			out := reflect.New(t).Elem()
			out.Set(v)
			return out, nil
		}
		return v, nil
	}
	if isNumeric(v.Kind()) && isNumeric(t.Kind()) {
		return v.Convert(t), nil
	}
	return reflect.Value{}, oops.With("got", v.Type().String()).With("want", t.String()).Wrap(ErrInvalidArgument)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func splitResults(out []reflect.Value) (any, error) {
	var err error
	if n := len(out); n > 0 && out[n-1].Type().Implements(errorType) && out[n-1].Type().Kind() == reflect.Interface {
		if e := out[n-1].Interface(); e != nil {
			err = e.(error) //nolint:forcetypeassert // checked by Implements above
		}
		out = out[:n-1]
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return valueOrNil(out[0]), nil
}

func valueOrNil(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}
