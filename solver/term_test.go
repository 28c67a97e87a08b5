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

package solver

import (
	"testing"

	"deps.dev/util/pyresolve/pep440"
)

func TestTermRelations(t *testing.T) {
	a := Package{Name: "a"}
	set := pep440.MustParseSpecifiers
	for _, test := range []struct {
		t, u        Term
		satisfies   bool
		contradicts bool
	}{
		{positive(a, set("==1.0")), positive(a, set(">=1.0")), true, false},
		{positive(a, set(">=1.0")), positive(a, set("==1.0")), false, false},
		{positive(a, set("<1.0")), positive(a, set(">=1.0")), false, true},
		{positive(a, set("<1.0")), negative(a, set(">=1.0")), true, false},
		{positive(a, set(">=1.0")), negative(a, set(">=1.0")), false, true},
		{negative(a, set(">=1.0")), positive(a, set("<1.0")), false, false},
		{negative(a, set("")), positive(a, set("==1.0")), false, true},
		{negative(a, set(">=1.0")), negative(a, set(">=2.0")), true, false},
		{negative(a, set(">=2.0")), negative(a, set(">=1.0")), false, false},
	} {
		if got := test.t.satisfies(test.u); got != test.satisfies {
			t.Errorf("(%v).satisfies(%v) = %t, want %t", test.t, test.u, got, test.satisfies)
		}
		if got := test.t.contradicts(test.u); got != test.contradicts {
			t.Errorf("(%v).contradicts(%v) = %t, want %t", test.t, test.u, got, test.contradicts)
		}
	}
}

func TestTermIntersect(t *testing.T) {
	a := Package{Name: "a"}
	v1, v2 := pep440.MustParse("1.0"), pep440.MustParse("2.0")
	between := pep440.AtLeast(v1).Intersect(pep440.Below(v2))
	for _, test := range []struct {
		t, u, want Term
	}{
		{positive(a, pep440.AtLeast(v1)), positive(a, pep440.Below(v2)), positive(a, between)},
		{positive(a, pep440.AtLeast(v1)), negative(a, pep440.AtLeast(v2)), positive(a, between)},
		{negative(a, pep440.AtLeast(v2)), positive(a, pep440.AtLeast(v1)), positive(a, between)},
		{negative(a, pep440.AtLeast(v2)), negative(a, pep440.Below(v1)), negative(a, between.Complement())},
		{negative(a, pep440.AtLeast(v1)), negative(a, pep440.AtLeast(v2)), negative(a, pep440.AtLeast(v1))},
	} {
		got := test.t.intersect(test.u)
		if got.Positive != test.want.Positive || !got.Set.Equal(test.want.Set) {
			t.Errorf("(%v).intersect(%v) = %v, want %v", test.t, test.u, got, test.want)
		}
	}
	if d := positive(a, pep440.Exact(v1)).difference(positive(a, pep440.AtLeast(v1))); !d.empty() {
		t.Errorf("difference of a subset = %v, want empty", d)
	}
}

func TestTermString(t *testing.T) {
	for _, test := range []struct {
		t    Term
		want string
	}{
		{positive(Package{Name: "a"}, pep440.MustParseSpecifiers("==1.0")), "a ==1.0"},
		{negative(Package{Name: "a", Extra: "x"}, pep440.Full()), "not a[x]"},
		{positive(Package{Group: "dev"}, pep440.Full()), "root:dev"},
	} {
		if got := test.t.String(); got != test.want {
			t.Errorf("String() = %q, want %q", got, test.want)
		}
	}
}

func TestIncompatibilityMerge(t *testing.T) {
	a, b := Package{Name: "a"}, Package{Name: "b"}
	set := pep440.MustParseSpecifiers
	inc := newIncompatibility([]Term{
		negative(b, set("<2")),
		positive(a, set(">=1")),
		positive(a, set("<3")),
		positive(Root, pep440.Full()),
	}, CauseDerived)
	if len(inc.Terms) != 2 {
		t.Fatalf("got terms %v, want a and b only", inc.Terms)
	}
	if got, want := inc.Terms[0].String(), "a >=1, <3"; got != want {
		t.Errorf("merged term = %q, want %q", got, want)
	}
	if inc.isFailure() {
		t.Errorf("%v is not a failure", inc)
	}
	root := newIncompatibility([]Term{positive(Root, pep440.Full())}, CauseDerived)
	if !root.isFailure() {
		t.Errorf("%v should be a failure", root)
	}
}

func TestIncompatibilityString(t *testing.T) {
	a, b, c := Package{Name: "a"}, Package{Name: "b"}, Package{Name: "c"}
	set := pep440.MustParseSpecifiers
	unavailable := newIncompatibility([]Term{positive(a, set("==1.0"))}, CauseUnavailable)
	unavailable.Reason = "no wheel"
	for _, test := range []struct {
		inc  *Incompatibility
		want string
	}{
		{newIncompatibility([]Term{negative(Root, pep440.Full())}, CauseRoot), "root is required"},
		{newIncompatibility([]Term{positive(a, set("==1.0")), negative(b, set(">=2"))}, CauseDependency), "a ==1.0 depends on b >=2"},
		{newIncompatibility([]Term{positive(a, set(">=2"))}, CauseNoVersions), "no versions of a match >=2"},
		{unavailable, "a ==1.0 is unavailable: no wheel"},
		{newIncompatibility([]Term{positive(a, set("==1.0"))}, CauseDerived), "a ==1.0 is forbidden"},
		{newIncompatibility([]Term{negative(a, set(">=1"))}, CauseDerived), "a >=1 is required"},
		{newIncompatibility([]Term{positive(a, set("==1.0")), positive(b, set("==2.0"))}, CauseDerived), "a ==1.0 and b ==2.0 are incompatible"},
		{newIncompatibility([]Term{positive(a, set("==1.0")), positive(b, set("==2.0")), negative(c, set("<1"))}, CauseDerived), "a ==1.0 and b ==2.0 requires c <1"},
	} {
		if got := test.inc.String(); got != test.want {
			t.Errorf("String() = %q, want %q", got, test.want)
		}
	}
}
