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

package markers

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseMarkerVar(t *testing.T) {
	cases := []struct {
		in  string
		out *markerVar
	}{
		{in: "os_name", out: &markerVar{name: "os_name"}},
		{in: "  sys_platform", out: &markerVar{name: "sys_platform"}},
		{in: `'literal"'`, out: &markerVar{value: `literal"`}},
		{in: `	"he11o!"`, out: &markerVar{value: "he11o!"}},
		{in: "extra", out: &markerVar{name: "extra"}},
		// Unknown names with no quotes are an error.
		{in: "platform_maschine"},
		{in: "bad_name"},
		// As are incorrectly terminated strings.
		{in: "'hello"},
		{in: `"hi'`},
	}
	for _, c := range cases {
		p := envParser{input: c.in}
		got, err := p.parseMarkerVar()
		if err != nil {
			if c.out != nil {
				t.Errorf("parseMarkerVar(%q) = error: %v, want: %v", c.in, err, *c.out)
			}
			continue
		}
		if c.out == nil {
			t.Errorf("parseMarkerVar(%q) = %v, want: error", c.in, got)
			continue
		}
		if got != *c.out {
			t.Errorf("parseMarkerVar(%q) = %v, want: %v", c.in, got, *c.out)
		}
	}
}

func TestParseMarkerOp(t *testing.T) {
	cases := []struct {
		in  string
		out markerOp
	}{
		{in: "<", out: markerOpLess},
		{in: "<=", out: markerOpLessEqual},
		{in: "===", out: markerOpEqualEqualEqual},
		{in: " ==", out: markerOpEqualEqual},
		{in: "not in", out: markerOpNotIn},
		{in: "not\t in", out: markerOpNotIn},
		{in: "~"},
		{in: "hello"},
		{in: ""},
		{in: "not "},
		{in: "notin"},
	}
	for _, c := range cases {
		p := envParser{input: c.in}
		got, err := p.parseMarkerOp()
		if c.out == markerOpUnknown {
			if err == nil {
				t.Errorf("parseMarkerOp(%q) = %v, want error", c.in, got)
			}
			continue
		}
		if err != nil || got != c.out {
			t.Errorf("parseMarkerOp(%q) = %v, %v; want %v", c.in, got, err, c.out)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{
		`extra >= "test"`,
		"python_version ~= 'hi'",
		"(python_version > '3'",
		"python_version > '3' xor os_name == 'posix'",
		"",
	} {
		if m, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) = %v, want error", in, m)
		}
	}
}

func TestMarkerEval(t *testing.T) {
	env := DefaultEnvironment()
	cases := []struct {
		in     string
		extras []string
		want   bool
	}{
		{in: "'windows' != 'linux'", want: true},
		{in: "'python' in 'adder,asp,mamba'", want: false},
		{in: "'x' not in 'yyy' or '1' <= '1'", want: true},
		{in: "'x' not in 'yyy' and '1' > '2'", want: false},
		{in: "extra == 'test'", want: false},
		{in: "extra == 'test'", extras: []string{"test"}, want: true},
		{in: "extra == 'Test_Extra'", extras: []string{"test-extra"}, want: true},
		{in: "extra != 'test'", extras: []string{"test"}, want: false},
		{in: "python_version >= '3.8'", want: true},
		{in: "python_version < '3.10'", want: false},
		{in: "python_version ~= '3.7'", want: true},
		{in: "sys_platform == 'win32' or (os_name == 'posix' and platform_machine == 'x86_64')", want: true},
		{in: "platform_system == 'Windows' and extra == 'test'", extras: []string{"test"}, want: false},
	}
	for _, c := range cases {
		got, err := Eval(c.in, env, c.extras...)
		if err != nil {
			t.Errorf("Eval(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("Eval(%q, %v) = %v, want %v", c.in, c.extras, got, c.want)
		}
	}
}

func TestMarkerExtras(t *testing.T) {
	m, err := Parse(`(extra == "Socks" or extra == 'test') and python_version >= "3.8" or "dev" == extra`)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"dev", "socks", "test"}, m.Extras()); diff != "" {
		t.Errorf("Extras() (-want +got):\n%s", diff)
	}
}

func TestEvalEmptyMarker(t *testing.T) {
	if ok, err := Eval("  ", nil); !ok || err != nil {
		t.Errorf("Eval(empty) = %v, %v; want true, nil", ok, err)
	}
}

func TestNormalizeExtra(t *testing.T) {
	for in, want := range map[string]string{
		"Foo":       "foo",
		"foo_bar":   "foo-bar",
		"foo-.-bar": "foo-bar",
		" x.Y ":     "x-y",
	} {
		if got := NormalizeExtra(in); got != want {
			t.Errorf("NormalizeExtra(%q) = %q, want %q", in, got, want)
		}
	}
}
