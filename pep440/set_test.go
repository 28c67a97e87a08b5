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

package pep440

import (
	"testing"
)

func vs(ss ...string) []Version {
	out := make([]Version, len(ss))
	for i, s := range ss {
		out[i] = MustParse(s)
	}
	return out
}

// probes are versions used to compare sets by membership.
var probes = vs("0.1", "0.9", "1.0.dev0", "1.0a1", "1.0", "1.0.post1", "1.2", "1.5",
	"2.0.dev0", "2.0rc1", "2.0", "2.1", "3.0", "10.0")

func sameMembers(t *testing.T, label string, got, want Set) {
	t.Helper()
	for _, v := range probes {
		if got.Contains(v) != want.Contains(v) {
			t.Errorf("%s: Contains(%s) = %v, want %v (got %s, want %s)", label, v, got.Contains(v), want.Contains(v), got, want)
		}
	}
	if !got.Equal(want) {
		t.Errorf("%s: got %s, want %s", label, got, want)
	}
}

func TestSetLaws(t *testing.T) {
	sets := []Set{
		Empty(),
		Full(),
		MustParseSpecifiers(">=1.0,<2.0"),
		MustParseSpecifiers("==1.5"),
		MustParseSpecifiers("!=1.5"),
		MustParseSpecifiers("<1.0"),
		MustParseSpecifiers(">2.0"),
		MustParseSpecifiers("~=1.2"),
		MustParseSpecifiers(">=0.9,<1.2").Union(MustParseSpecifiers(">=2.0,<=3.0")),
	}
	for _, a := range sets {
		sameMembers(t, "double complement "+a.String(), a.Complement().Complement(), a)
		sameMembers(t, "idempotent union "+a.String(), a.Union(a), a)
		sameMembers(t, "idempotent intersect "+a.String(), a.Intersect(a), a)
		if !a.Intersect(a.Complement()).IsEmpty() {
			t.Errorf("%s intersected with its complement is not empty", a)
		}
		if !a.Union(a.Complement()).IsFull() {
			t.Errorf("%s united with its complement is not full", a)
		}
		for _, b := range sets {
			sameMembers(t, "de morgan union", a.Union(b).Complement(), a.Complement().Intersect(b.Complement()))
			sameMembers(t, "de morgan intersect", a.Intersect(b).Complement(), a.Complement().Union(b.Complement()))
			sameMembers(t, "commutative union", a.Union(b), b.Union(a))
			sameMembers(t, "commutative intersect", a.Intersect(b), b.Intersect(a))
			for _, c := range sets {
				sameMembers(t, "associative union", a.Union(b).Union(c), a.Union(b.Union(c)))
				sameMembers(t, "associative intersect", a.Intersect(b).Intersect(c), a.Intersect(b.Intersect(c)))
			}
		}
	}
}

func TestSetEqualityIsStructural(t *testing.T) {
	a := MustParseSpecifiers(">=1.0,<1.5").Union(MustParseSpecifiers(">=1.5,<2.0"))
	b := MustParseSpecifiers(">=1.0,<2.0")
	if !a.Equal(b) {
		t.Errorf("%s and %s should be equal", a, b)
	}
	c := Exact(MustParse("1.0")).Union(Exact(MustParse("1.0.0")))
	if !c.Equal(Exact(MustParse("1"))) {
		t.Errorf("%s should equal ==1", c)
	}
	d := MustParseSpecifiers("<1.0").Union(Exact(MustParse("1.0"))).Union(Above(MustParse("1.0")))
	if !d.IsFull() {
		t.Errorf("%s should be full", d)
	}
}

func TestSetContains(t *testing.T) {
	tests := []struct {
		set string
		in  []string
		out []string
	}{
		{">=1.0,<2.0", []string{"1.0", "1.5", "1.9.9"}, []string{"0.9", "2.0", "2.0rc1", "2.0.dev0"}},
		{"", []string{"0.0.1", "1.0", "99"}, nil},
		{"*", []string{"1.0a1"}, nil},
		{"==1.0", []string{"1.0", "1.0.0"}, []string{"1.0.1", "1.0.post1"}},
		{"==1.0.*", []string{"1.0", "1.0.5", "1.0.dev0", "1.0.post2"}, []string{"1.1", "0.9"}},
		{"!=1.0.*", []string{"1.1", "0.9"}, []string{"1.0.3"}},
		{"~=1.4.2", []string{"1.4.2", "1.4.9"}, []string{"1.5", "1.4.1"}},
		{"~=2.2", []string{"2.2", "2.9"}, []string{"3.0", "2.1"}},
		{"<2.0", []string{"1.9"}, []string{"2.0a1", "2.0.dev1", "2.0"}},
		{"<2.0rc1", []string{"2.0a1", "2.0b3"}, []string{"2.0rc1"}},
		{"<=2.0", []string{"2.0", "2.0rc1"}, []string{"2.0.1"}},
		{">1.0", []string{"1.0.1"}, []string{"1.0"}},
		{"===1.0", []string{"1.0"}, []string{"1.1"}},
	}
	for _, test := range tests {
		s, err := ParseSpecifiers(test.set)
		if err != nil {
			t.Fatalf("ParseSpecifiers(%q): %v", test.set, err)
		}
		for _, v := range test.in {
			if !s.Contains(MustParse(v)) {
				t.Errorf("%q (%s) should contain %s", test.set, s, v)
			}
		}
		for _, v := range test.out {
			if s.Contains(MustParse(v)) {
				t.Errorf("%q (%s) should not contain %s", test.set, s, v)
			}
		}
	}
}

func TestParseSpecifiersErrors(t *testing.T) {
	for _, s := range []string{"1.0", ">=abc", "~=1", ">=1.0.*", "==1.0a1.*"} {
		if _, err := ParseSpecifiers(s); err == nil {
			t.Errorf("ParseSpecifiers(%q) succeeded, want error", s)
		}
	}
}

func TestSingletonAndSubset(t *testing.T) {
	if v, ok := MustParseSpecifiers("==1.5").Singleton(); !ok || v.String() != "1.5" {
		t.Errorf("Singleton(==1.5) = %v, %v", v, ok)
	}
	if _, ok := MustParseSpecifiers(">=1.5").Singleton(); ok {
		t.Errorf("Singleton(>=1.5) reported a single version")
	}
	if !MustParseSpecifiers("==1.5").Subset(MustParseSpecifiers(">=1.0,<2.0")) {
		t.Errorf("==1.5 should be a subset of >=1.0,<2.0")
	}
	if !Empty().Subset(Empty()) || Full().Subset(Empty()) {
		t.Errorf("subset of empty set is wrong")
	}
	if !MustParseSpecifiers("<1.0").Disjoint(MustParseSpecifiers(">=1.0")) {
		t.Errorf("<1.0 and >=1.0 should be disjoint")
	}
}

func TestSetString(t *testing.T) {
	tests := []struct {
		set  Set
		want string
	}{
		{Empty(), "∅"},
		{Full(), "*"},
		{MustParseSpecifiers("==1.0"), "==1.0"},
		{MustParseSpecifiers(">=1.0,<=2.0"), ">=1.0, <=2.0"},
		{MustParseSpecifiers("!=1.0"), "<1.0 | >1.0"},
		{MustParseSpecifiers(">=1.0,<2.0"), ">=1.0, <2.0"},
		{MustParseSpecifiers("<2.0rc1"), "<2.0rc1"},
		{MustParseSpecifiers("==1.2.*"), ">=1.2.dev0, <1.3"},
	}
	for _, test := range tests {
		if got := test.set.String(); got != test.want {
			t.Errorf("String() = %q, want %q", got, test.want)
		}
	}
}
