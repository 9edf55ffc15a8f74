// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package callexpr_test

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/holomush/pluginmgr/internal/callexpr"
	"github.com/holomush/pluginmgr/pkg/errutil"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want *callexpr.Expr
	}{
		{name: "bare method", src: "ping", want: &callexpr.Expr{Method: "ping"}},
		{name: "empty parens", src: "ping()", want: &callexpr.Expr{Method: "ping"}},
		{name: "scalars", src: `greet("bob", 3, -1.5, true, false, null)`, want: &callexpr.Expr{
			Method: "greet",
			Args:   []any{"bob", 3, -1.5, true, false, nil},
		}},
		{name: "raw string", src: "say(`a \"quoted\" word`)", want: &callexpr.Expr{
			Method: "say",
			Args:   []any{`a "quoted" word`},
		}},
		{name: "escapes", src: `say("tab\there")`, want: &callexpr.Expr{
			Method: "say",
			Args:   []any{"tab\there"},
		}},
		{name: "containers", src: `put({name: "box", "size": 2, tags: ["a", "b",]}, [], {})`, want: &callexpr.Expr{
			Method: "put",
			Args: []any{
				map[string]any{"name": "box", "size": 2, "tags": []any{"a", "b"}},
				[]any{},
				map[string]any{},
			},
		}},
		{name: "nested", src: `f([[1], {a: [null]}])`, want: &callexpr.Expr{
			Method: "f",
			Args:   []any{[]any{[]any{1}, map[string]any{"a": []any{nil}}}},
		}},
		{name: "exponent is float", src: "f(1e3)", want: &callexpr.Expr{Method: "f", Args: []any{1000.0}}},
		{name: "surrounding space", src: "  f( 1 )  ", want: &callexpr.Expr{Method: "f", Args: []any{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := callexpr.Parse(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, src := range []string{
		"",
		"   ",
		"f(",
		"f(1,)",
		"f(1) extra",
		"1(2)",
		"f({1: 2})",
		"f(undefined_ident)",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := callexpr.Parse(src)
			require.ErrorIs(t, err, callexpr.ErrSyntax)
			errutil.AssertErrorCode(t, err, "INVALID_CALL_EXPR")
		})
	}
}

func TestExpr_Spread(t *testing.T) {
	assert.Nil(t, (&callexpr.Expr{Method: "f"}).Spread())
	assert.Equal(t, []any{1, "a"}, (&callexpr.Expr{Method: "f", Args: []any{1, "a"}}).Spread())
}

func TestParse_RoundTripsGeneratedArguments(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		method := rapid.StringMatching(`[a-zA-Z_][a-zA-Z0-9_]{0,12}`).Draw(t, "method")
		ints := rapid.SliceOf(rapid.IntRange(-1_000_000, 1_000_000)).Draw(t, "ints")
		strs := rapid.SliceOf(rapid.String()).Draw(t, "strings")

		var parts []string
		var want []any
		for _, n := range ints {
			parts = append(parts, strconv.Itoa(n))
			want = append(want, n)
		}
		for _, s := range strs {
			parts = append(parts, strconv.Quote(s))
			want = append(want, s)
		}

		got, err := callexpr.Parse(fmt.Sprintf("%s(%s)", method, strings.Join(parts, ", ")))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if got.Method != method {
			t.Fatalf("method = %q, want %q", got.Method, method)
		}
		if len(want) == 0 {
			if got.Args != nil {
				t.Fatalf("args = %v, want none", got.Args)
			}
			return
		}
		assert.Equal(t, want, got.Args)
	})
}
