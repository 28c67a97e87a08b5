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
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSort(t *testing.T) {
	want := []string{"0.9", "1.0.dev0", "1.0a1", "1.0b2", "1.0rc1", "1.0", "1.0.post1", "1.1", "2.0", "10.0", "1!0.5"}
	got := vs(want...)
	rand.New(rand.NewSource(1)).Shuffle(len(got), func(i, j int) { got[i], got[j] = got[j], got[i] })
	Sort(got)
	var gs []string
	for _, v := range got {
		gs = append(gs, v.String())
	}
	if diff := cmp.Diff(want, gs); diff != "" {
		t.Errorf("Sort (-want +got):\n%s", diff)
	}
}

func TestVersionPredicates(t *testing.T) {
	for _, test := range []struct {
		v              string
		pre, dev, post bool
	}{
		{v: "1.0"},
		{v: "1.0a1", pre: true},
		{v: "1.0rc1", pre: true},
		{v: "1.0.dev3", pre: true, dev: true},
		{v: "1.0.post1", post: true},
	} {
		v := MustParse(test.v)
		if got := v.IsPrerelease(); got != test.pre {
			t.Errorf("%s.IsPrerelease() = %t, want %t", v, got, test.pre)
		}
		if got := v.IsDev(); got != test.dev {
			t.Errorf("%s.IsDev() = %t, want %t", v, got, test.dev)
		}
		if got := v.IsPost(); got != test.post {
			t.Errorf("%s.IsPost() = %t, want %t", v, got, test.post)
		}
	}
}

func TestVersionEqual(t *testing.T) {
	if !MustParse("1.0").Equal(MustParse("1.0.0")) {
		t.Errorf("1.0 and 1.0.0 are not equal")
	}
	if MustParse("1.0").Equal(MustParse("1.0.post1")) {
		t.Errorf("1.0 and 1.0.post1 are equal")
	}
	if (Version{}).Equal(MustParse("1.0")) {
		t.Errorf("zero Version equals 1.0")
	}
}

func TestParseErrors(t *testing.T) {
	for _, s := range []string{"", "1.*", "not a version"} {
		if v, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) = %s, want error", s, v)
		}
	}
}
