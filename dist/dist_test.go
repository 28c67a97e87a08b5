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

package dist

import (
	"testing"

	"deps.dev/util/pyresolve/pep440"
)

func TestVariants(t *testing.T) {
	v := pep440.MustParse("1.0")
	cases := []struct {
		d      ResolvedDist
		kind   string
		str    string
		index  IndexURL
		built  bool
		source bool
	}{
		{&InstalledDist{Name: "a", Version: v}, "installed", "a==1.0", "", false, false},
		{&RegistryBuiltDist{Name: "a", Version: v, Index: "https://pypi.org/simple"}, "registry-wheel", "a==1.0", "https://pypi.org/simple", true, false},
		{&DirectURLBuiltDist{Name: "a", URL: "https://x/a-1.0-py3-none-any.whl"}, "url-wheel", "a @ https://x/a-1.0-py3-none-any.whl", "", true, false},
		{&PathBuiltDist{Name: "a", Path: "/w/a-1.0-py3-none-any.whl"}, "path-wheel", "a @ file:///w/a-1.0-py3-none-any.whl", "", true, false},
		{&RegistrySourceDist{Name: "a", Version: v, Index: "https://mirror/simple"}, "registry-sdist", "a==1.0", "https://mirror/simple", false, true},
		{&DirectURLSourceDist{Name: "a", URL: "https://x/a.tar.gz", Subdirectory: "py"}, "url-sdist", "a @ https://x/a.tar.gz#subdirectory=py", "", false, true},
		{&GitSourceDist{Name: "a", Repository: "https://github.com/a/a", Reference: "main"}, "git", "a @ git+https://github.com/a/a@main", "", false, true},
		{&PathSourceDist{Name: "a", Path: "/s/a-1.0.tar.gz"}, "path-sdist", "a @ file:///s/a-1.0.tar.gz", "", false, true},
		{&DirectorySourceDist{Name: "a", Path: "/src/a", Editable: true}, "directory", "-e a @ file:///src/a", "", false, true},
	}
	for _, c := range cases {
		if got := Kind(c.d); got != c.kind {
			t.Errorf("Kind(%v) = %q, want %q", c.d, got, c.kind)
		}
		if got := c.d.String(); got != c.str {
			t.Errorf("String() = %q, want %q", got, c.str)
		}
		idx, ok := Index(c.d)
		if idx != c.index || ok != (c.index != "") {
			t.Errorf("Index(%v) = %q, %v; want %q", c.d, idx, ok, c.index)
		}
		if _, ok := c.d.(BuiltDist); ok != c.built {
			t.Errorf("%v built = %v, want %v", c.d, ok, c.built)
		}
		if _, ok := c.d.(SourceDist); ok != c.source {
			t.Errorf("%v source = %v, want %v", c.d, ok, c.source)
		}
		if c.d.PackageName() != "a" {
			t.Errorf("PackageName() = %q", c.d.PackageName())
		}
	}
}

func TestParseHashDigest(t *testing.T) {
	for in, want := range map[string]HashDigest{
		"sha256:ABC":  {Algorithm: "sha256", Digest: "abc"},
		"sha512=0f0f": {Algorithm: "sha512", Digest: "0f0f"},
	} {
		got, err := ParseHashDigest(in)
		if err != nil || got != want {
			t.Errorf("ParseHashDigest(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, in := range []string{"", "sha256", ":abc", "md5:"} {
		if _, err := ParseHashDigest(in); err == nil {
			t.Errorf("ParseHashDigest(%q) succeeded", in)
		}
	}
}
