// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package callexpr parses the call expressions accepted by the CLI, such as
//
//	greet("bob", 3, {"loud": true}, [1, 2.5, null])
//
// Arguments are JSON-like literals. Object keys may be bare identifiers. A
// bare method name without parentheses is a call with no arguments.
package callexpr

import (
	"errors"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/samber/oops"
)

// ErrSyntax is wrapped by every parse failure.
var ErrSyntax = errors.New("invalid call expression")

// Expr is a parsed call.
type Expr struct {
	Method string
	// Args holds string, int, float64, bool, nil, []any and map[string]any
	// values. Nil when the call has no arguments.
	Args []any
}

type call struct {
	Method string   `parser:"@Ident"`
	Args   []*value `parser:"( '(' ( @@ ( ',' @@ )* )? ')' )?"`
}

type value struct {
	String *string  `parser:"  @(String | RawString)"`
	Number *string  `parser:"| @('-'? (Float | Int))"`
	Bool   *boolean `parser:"| @('true' | 'false')"`
	Null   bool     `parser:"| @'null'"`
	Array  *array   `parser:"| @@"`
	Object *object  `parser:"| @@"`
}

type array struct {
	Items []*value `parser:"'[' ( @@ ( ',' @@ )* ','? )? ']'"`
}

type object struct {
	Entries []*entry `parser:"'{' ( @@ ( ',' @@ )* ','? )? '}'"`
}

type entry struct {
	Key   string `parser:"@(String | RawString | Ident) ':'"`
	Value *value `parser:"@@"`
}

type boolean bool

func (b *boolean) Capture(values []string) error {
	*b = values[0] == "true"
	return nil
}

var parser = participle.MustBuild[call](
	participle.Unquote("String", "RawString"),
	participle.UseLookahead(2),
)

// Parse parses src.
func Parse(src string) (*Expr, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, oops.Code("INVALID_CALL_EXPR").In("callexpr").
			Wrap(errors.Join(ErrSyntax, errors.New("empty expression")))
	}

	c, err := parser.ParseString("", src)
	if err != nil {
		return nil, oops.Code("INVALID_CALL_EXPR").In("callexpr").
			With("expr", src).
			Hint(`expected method(arg, ...), for example greet("bob", 3)`).
			Wrap(errors.Join(ErrSyntax, err))
	}

	expr := &Expr{Method: c.Method}
	for _, a := range c.Args {
		v, err := a.toAny()
		if err != nil {
			return nil, oops.Code("INVALID_CALL_EXPR").In("callexpr").
				With("expr", src).
				Wrap(errors.Join(ErrSyntax, err))
		}
		expr.Args = append(expr.Args, v)
	}
	return expr, nil
}

func (v *value) toAny() (any, error) {
	switch {
	case v.String != nil:
		return *v.String, nil
	case v.Number != nil:
		return parseNumber(*v.Number)
	case v.Bool != nil:
		return bool(*v.Bool), nil
	case v.Null:
		return nil, nil
	case v.Array != nil:
		out := make([]any, 0, len(v.Array.Items))
		for _, item := range v.Array.Items {
			x, err := item.toAny()
			if err != nil {
				return nil, err
			}
			out = append(out, x)
		}
		return out, nil
	case v.Object != nil:
		out := make(map[string]any, len(v.Object.Entries))
		for _, e := range v.Object.Entries {
			x, err := e.Value.toAny()
			if err != nil {
				return nil, err
			}
			out[e.Key] = x
		}
		return out, nil
	}
	return nil, errors.New("empty value")
}

// parseNumber returns an int for integral literals that fit, else a float64.
func parseNumber(s string) (any, error) {
	if !strings.ContainsAny(s, ".eE") {
		if n, err := strconv.Atoi(s); err == nil {
			return n, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, oops.With("number", s).Wrap(err)
	}
	return f, nil
}

// Spread returns the arguments in the shape the invocation API expects:
// nil for none, otherwise the slice, which is spread positionally.
func (e *Expr) Spread() any {
	if len(e.Args) == 0 {
		return nil
	}
	return e.Args
}
