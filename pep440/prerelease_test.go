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

	"github.com/google/go-cmp/cmp"
)

func TestPrereleaseFilter(t *testing.T) {
	all := vs("1.0", "1.1", "2.0a1", "2.0.dev3")
	onlyPre := MustParseSpecifiers(">=2.0a1")
	tests := []struct {
		mode     PrereleaseMode
		set      Set
		explicit bool
		want     []string
	}{
		{PrereleaseExplicit, Full(), false, []string{"1.0", "1.1"}},
		{PrereleaseExplicit, onlyPre, true, []string{"2.0a1", "2.0.dev3"}},
		{PrereleaseExplicit, onlyPre, false, nil},
		{PrereleaseDisallow, onlyPre, true, nil},
		{PrereleaseAllow, Full(), false, []string{"1.0", "1.1", "2.0a1", "2.0.dev3"}},
		{PrereleaseIfNecessary, Full(), false, []string{"1.0", "1.1"}},
		{PrereleaseIfNecessary, onlyPre, false, []string{"2.0a1", "2.0.dev3"}},
	}
	for _, test := range tests {
		t.Run(test.mode.String(), func(t *testing.T) {
			var got []string
			for _, v := range test.mode.Filter(all, test.set, test.explicit) {
				got = append(got, v.String())
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("Filter(%s, explicit=%v) (-want +got):\n%s", test.set, test.explicit, diff)
			}
		})
	}
}

func TestExplicitPrerelease(t *testing.T) {
	for s, want := range map[string]bool{
		">=1.0":           false,
		">=2.0b1":         true,
		">=1.0,<2.0.dev0": true,
		"==3.0rc1":        true,
		"":                false,
	} {
		if got := ExplicitPrerelease(s); got != want {
			t.Errorf("ExplicitPrerelease(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestParsePrereleaseMode(t *testing.T) {
	for _, m := range []PrereleaseMode{PrereleaseExplicit, PrereleaseDisallow, PrereleaseAllow, PrereleaseIfNecessary} {
		got, err := ParsePrereleaseMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParsePrereleaseMode(%q) = %v, %v", m, got, err)
		}
	}
	if _, err := ParsePrereleaseMode("sometimes"); err == nil {
		t.Errorf("ParsePrereleaseMode(sometimes) succeeded")
	}
}
