// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package markers evaluates PEP 508 environment markers, such as
// `python_version >= "3.8" and extra == "test"`, against a target
// environment. Providers use it to decide which requirements are active
// before handing them to the solver.
package markers

/*
The grammar accepted is that of PEP 508
(https://peps.python.org/pep-0508/#environment-markers):

marker       = marker_or
marker_or    = marker_and wsp* 'or' marker_or
             | marker_and
marker_and   = marker_expr wsp* 'and' marker_and
             | marker_expr
marker_expr  = marker_var marker_op marker_var
             | wsp* '(' marker ')'
marker_var   = wsp* (env_var | python_str)
marker_op    = version_cmp | (wsp* 'in') | (wsp* 'not' wsp+ 'in')
version_cmp  = wsp* ('<=' | '<' | '!=' | '==' | '>=' | '>' | '~=' | '===')

As with pip, several and/or terms may be chained without parentheses.
*/

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"deps.dev/util/pyresolve/internal/lru"
	"deps.dev/util/pyresolve/pep440"
	"github.com/pkg/errors"
)

// Marker is a parsed environment marker.
type Marker struct {
	raw  string
	expr marker
}

var (
	cacheMu sync.Mutex
	cache   = lru.New[string, *Marker](4096)
)

// Parse parses an environment marker. Parsed markers are cached, so callers
// may parse the same text repeatedly.
func Parse(raw string) (*Marker, error) {
	cacheMu.Lock()
	m, ok := cache.Get(raw)
	cacheMu.Unlock()
	if ok {
		return m, nil
	}
	p := &envParser{input: raw}
	expr, err := p.parseMarkerOr()
	if err == nil && p.pos < len(p.input) {
		err = p.expected("EOF")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parsing marker %q", raw)
	}
	m = &Marker{raw: raw, expr: expr}
	cacheMu.Lock()
	cache.Add(raw, m)
	cacheMu.Unlock()
	return m, nil
}

// Eval reports whether the marker holds in env when the given extras are
// requested.
func (m *Marker) Eval(env Environment, extras ...string) bool {
	set := make(map[string]bool, len(extras))
	for _, e := range extras {
		set[NormalizeExtra(e)] = true
	}
	return m.expr.eval(env, set)
}

// Extras returns the sorted names of the extras the marker compares
// against.
func (m *Marker) Extras() []string {
	var out []string
	m.expr.walk(func(e markerExpr) {
		switch {
		case e.left.name == "extra":
			out = append(out, NormalizeExtra(e.right.value))
		case e.right.name == "extra":
			out = append(out, NormalizeExtra(e.left.value))
		}
	})
	slices.Sort(out)
	return slices.Compact(out)
}

func (m *Marker) String() string { return m.raw }

// Eval parses and evaluates a marker in one step. The empty marker always
// holds.
func Eval(raw string, env Environment, extras ...string) (bool, error) {
	if strings.TrimSpace(raw) == "" {
		return true, nil
	}
	m, err := Parse(raw)
	if err != nil {
		return false, err
	}
	return m.Eval(env, extras...), nil
}

// NormalizeExtra returns the canonical form of an extra or group name, as
// PEP 685 describes: lower case with runs of "-", "_" and "." replaced by a
// single "-".
func NormalizeExtra(name string) string {
	var b strings.Builder
	run := false
	for _, c := range strings.TrimSpace(name) {
		switch {
		case c == '-' || c == '_' || c == '.':
			if !run {
				b.WriteByte('-')
			}
			run = true
			continue
		case 'A' <= c && c <= 'Z':
			c += 'a' - 'A'
		}
		b.WriteRune(c)
		run = false
	}
	return b.String()
}

// marker is a node of a parsed marker expression.
type marker interface {
	String() string
	eval(env Environment, extras map[string]bool) bool
	walk(func(markerExpr))
}

// envParser parses PEP 508 environment markers.
type envParser struct {
	// input holds the string being parsed, which is assumed to be ASCII as per
	// PEP 508.
	input string
	pos   int
}

// skipWsp skips spaces and tabs, reporting whether any were skipped.
func (p *envParser) skipWsp() bool {
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
	return p.pos != start
}

// accept consumes s if the input continues with it.
func (p *envParser) accept(s string) bool {
	if !strings.HasPrefix(p.input[p.pos:], s) {
		return false
	}
	p.pos += len(s)
	return true
}

const eof byte = 255

func (p *envParser) peek() byte {
	if p.pos >= len(p.input) {
		return eof
	}
	return p.input[p.pos]
}

// expected produces an error describing what the parser was looking for.
func (p *envParser) expected(want string) error {
	end := p.input[p.pos:]
	if len(end) > 10 {
		end = end[:10]
	}
	if len(end) == 0 {
		end = "EOF"
	}
	return errors.Errorf("expected: %s, found: %q", want, end)
}

func (p *envParser) parseMarkerOr() (marker, error) {
	l, err := p.parseMarkerAnd()
	if err != nil {
		return nil, err
	}
	p.skipWsp()
	if !p.accept("or") {
		return l, nil
	}
	r, err := p.parseMarkerOr()
	if err != nil {
		return nil, err
	}
	return markerOr{left: l, right: r}, nil
}

func (p *envParser) parseMarkerAnd() (marker, error) {
	l, err := p.parseMarkerExpr()
	if err != nil {
		return nil, err
	}
	p.skipWsp()
	if !p.accept("and") {
		return l, nil
	}
	r, err := p.parseMarkerAnd()
	if err != nil {
		return nil, err
	}
	return markerAnd{left: l, right: r}, nil
}

// parseMarkerVar parses either a known variable name or a quoted literal.
func (p *envParser) parseMarkerVar() (markerVar, error) {
	p.skipWsp()
	if s := p.peek(); s == '\'' || s == '"' {
		i := strings.IndexByte(p.input[p.pos+1:], s)
		if i < 0 {
			return markerVar{}, p.expected(fmt.Sprintf("%q terminating a string", s))
		}
		val := p.input[p.pos+1 : p.pos+i+1]
		p.pos += i + 2
		return markerVar{value: val}, nil
	}
	// No variable name is a prefix of another, so the order of the
	// attempts does not matter.
	for _, n := range Variables {
		if p.accept(n) {
			return markerVar{name: n}, nil
		}
	}
	if p.accept("extra") {
		return markerVar{name: "extra"}, nil
	}
	return markerVar{}, p.expected("string or variable name")
}

func (p *envParser) parseMarkerOp() (markerOp, error) {
	p.skipWsp()
	for _, o := range markerOpsByLength {
		if p.accept(o.String()) {
			return o, nil
		}
	}
	if !p.accept("not") {
		return markerOpUnknown, p.expected("operator")
	}
	if !p.skipWsp() {
		return markerOpUnknown, p.expected("whitespace, in the middle of 'not in'")
	}
	if !p.accept("in") {
		return markerOpUnknown, p.expected("in after not")
	}
	return markerOpNotIn, nil
}

func (p *envParser) parseMarkerExpr() (marker, error) {
	p.skipWsp()
	if p.accept("(") {
		m, err := p.parseMarkerOr()
		if err != nil {
			return nil, err
		}
		p.skipWsp()
		if !p.accept(")") {
			return nil, p.expected("closing )")
		}
		return m, nil
	}
	l, err := p.parseMarkerVar()
	if err != nil {
		return nil, err
	}
	o, err := p.parseMarkerOp()
	if err != nil {
		return nil, err
	}
	r, err := p.parseMarkerVar()
	if err != nil {
		return nil, err
	}
	if (l.name == "extra" || r.name == "extra") && o != markerOpEqualEqual && o != markerOpNotEqual {
		// setuptools only ever generates == and != for extras.
		return nil, errors.Errorf("extra can only be compared with == or !=, got: %s %s %s", l, o, r)
	}
	if o == markerOpTildeEqual && (!l.maybeVersion() || !r.maybeVersion()) {
		return nil, errors.Errorf("~= must compare versions, got %s %s %s", l, o, r)
	}
	return markerExpr{op: o, left: l, right: r}, nil
}

type markerOr struct {
	left, right marker
}

func (mo markerOr) String() string {
	return fmt.Sprintf("(%s or %s)", mo.left, mo.right)
}

func (mo markerOr) eval(env Environment, extras map[string]bool) bool {
	return mo.left.eval(env, extras) || mo.right.eval(env, extras)
}

func (mo markerOr) walk(f func(markerExpr)) {
	mo.left.walk(f)
	mo.right.walk(f)
}

type markerAnd struct {
	left, right marker
}

func (ma markerAnd) String() string {
	return fmt.Sprintf("(%s and %s)", ma.left, ma.right)
}

func (ma markerAnd) eval(env Environment, extras map[string]bool) bool {
	return ma.left.eval(env, extras) && ma.right.eval(env, extras)
}

func (ma markerAnd) walk(f func(markerExpr)) {
	ma.left.walk(f)
	ma.right.walk(f)
}

// markerExpr is a binary comparison between two marker variables. Version
// comparison is preferred where both sides are versions; otherwise Python
// string comparison is used.
type markerExpr struct {
	op          markerOp
	left, right markerVar
}

func (me markerExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", me.left, me.op, me.right)
}

func (me markerExpr) walk(f func(markerExpr)) { f(me) }

func (me markerExpr) eval(env Environment, extras map[string]bool) bool {
	if me.left.name == "extra" || me.right.name == "extra" {
		e := me.left.value
		if me.left.name == "extra" {
			e = me.right.value
		}
		active := extras[NormalizeExtra(e)]
		if me.op == markerOpNotEqual {
			return !active
		}
		return active
	}
	l, r := me.left.resolve(env), me.right.resolve(env)
	if me.op.versionOp() {
		if lv, err := pep440.Parse(l); err == nil {
			if set, err := pep440.ParseSpecifiers(me.op.String() + r); err == nil {
				return set.Contains(lv)
			}
		}
	}
	switch me.op {
	case markerOpLessEqual:
		return l <= r
	case markerOpLess:
		return l < r
	case markerOpNotEqual:
		return l != r
	case markerOpEqualEqual, markerOpEqualEqualEqual:
		return l == r
	case markerOpGreaterEqual:
		return l >= r
	case markerOpGreater:
		return l > r
	case markerOpIn:
		return strings.Contains(r, l)
	case markerOpNotIn:
		return !strings.Contains(r, l)
	}
	// ~= between values that turned out not to be versions.
	return false
}

type markerOp byte

const (
	markerOpUnknown markerOp = iota
	markerOpLessEqual
	markerOpLess
	markerOpNotEqual
	markerOpEqualEqual
	markerOpGreaterEqual
	markerOpGreater
	markerOpTildeEqual
	markerOpEqualEqualEqual
	markerOpIn
	markerOpNotIn
)

var markerOpStrings = [...]string{
	markerOpUnknown:         "?",
	markerOpLessEqual:       "<=",
	markerOpLess:            "<",
	markerOpNotEqual:        "!=",
	markerOpEqualEqual:      "==",
	markerOpGreaterEqual:    ">=",
	markerOpGreater:         ">",
	markerOpTildeEqual:      "~=",
	markerOpEqualEqualEqual: "===",
	markerOpIn:              "in",
	markerOpNotIn:           "not in",
}

func (o markerOp) String() string { return markerOpStrings[o] }

// versionOp reports whether o can compare versions.
func (o markerOp) versionOp() bool {
	return markerOpLessEqual <= o && o <= markerOpTildeEqual
}

// markerOpsByLength holds the fixed-length operators, longest first.
var markerOpsByLength = []markerOp{
	markerOpEqualEqualEqual,
	markerOpLessEqual,
	markerOpNotEqual,
	markerOpEqualEqual,
	markerOpGreaterEqual,
	markerOpTildeEqual,
	markerOpIn,
	markerOpLess,
	markerOpGreater,
}

// markerVar is either a variable from Variables, the special "extra", or a
// literal.
type markerVar struct {
	name  string // Only set for variables.
	value string // Only set for literals.
}

func (v markerVar) String() string {
	if v.name != "" {
		return v.name
	}
	return fmt.Sprintf("%q", v.value)
}

func (v markerVar) resolve(env Environment) string {
	if v.name != "" {
		return env[v.name]
	}
	return v.value
}

// maybeVersion reports whether v could hold a version; variables always
// might.
func (v markerVar) maybeVersion() bool {
	if v.name != "" {
		return true
	}
	_, err := pep440.Parse(v.value)
	return err == nil
}
