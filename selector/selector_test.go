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

package selector

import (
	"context"
	"errors"
	"testing"

	"deps.dev/util/pyresolve"
	"deps.dev/util/pyresolve/dist"
	"deps.dev/util/pyresolve/pep440"
	"github.com/google/go-cmp/cmp"
)

var (
	goodHash  = dist.HashDigest{Algorithm: "sha256", Digest: "aaaa"}
	otherHash = dist.HashDigest{Algorithm: "sha256", Digest: "bbbb"}
	md5Hash   = dist.HashDigest{Algorithm: "md5", Digest: "cccc"}
)

func testIndexes() (*LocalIndex, *LocalIndex) {
	v1 := pep440.MustParse("1.0")
	primary := NewLocalIndex("https://primary.example/simple")
	primary.Add("a", v1,
		Artifact{Filename: "a-1.0.tar.gz", Hashes: []dist.HashDigest{goodHash}},
		Artifact{Filename: "a-1.0-py3-none-any.whl", Hashes: []dist.HashDigest{otherHash}},
		Artifact{Filename: "a-1.0-cp312-cp312-manylinux_2_17_x86_64.whl", Hashes: []dist.HashDigest{goodHash}},
		Artifact{Filename: "a-1.0-cp312-cp312-win_amd64.whl", Hashes: []dist.HashDigest{goodHash}},
	)
	primary.Add("b", v1, Artifact{Filename: "b-1.0.tar.gz", Hashes: []dist.HashDigest{md5Hash}})
	primary.Add("c", v1, Artifact{Filename: "c-1.0-cp27-cp27m-win32.whl"})
	secondary := NewLocalIndex("https://secondary.example/simple")
	secondary.Add("b", v1, Artifact{Filename: "b-1.0-py2.py3-none-any.whl", Hashes: []dist.HashDigest{goodHash}})
	secondary.Add("c", v1, Artifact{Filename: "c-1.0.zip", Hashes: []dist.HashDigest{goodHash}})
	return primary, secondary
}

func TestSelect(t *testing.T) {
	primary, secondary := testIndexes()
	v1 := pep440.MustParse("1.0")
	for _, test := range []struct {
		name     string
		opts     []Option
		req      Request
		want     string // Filename or String of the dist.
		wantKind string
		wantErr  bool
	}{{
		name:     "best wheel",
		req:      Request{Name: "a", Version: v1},
		want:     "a-1.0-cp312-cp312-manylinux_2_17_x86_64.whl",
		wantKind: "registry-wheel",
	}, {
		name:     "generic wheel for another target",
		opts:     []Option{WithTags(MustParseTags("py3-none-any"))},
		req:      Request{Name: "a", Version: v1},
		want:     "a-1.0-py3-none-any.whl",
		wantKind: "registry-wheel",
	}, {
		name:     "sdist when no wheel is compatible",
		opts:     []Option{WithTags(MustParseTags("cp27-cp27m-manylinux1_i686"))},
		req:      Request{Name: "a", Version: v1},
		want:     "a-1.0.tar.gz",
		wantKind: "registry-sdist",
	}, {
		name:     "first index wins",
		req:      Request{Name: "b", Version: v1},
		want:     "b-1.0.tar.gz",
		wantKind: "registry-sdist",
	}, {
		name:     "later index has the only compatible artifact",
		req:      Request{Name: "c", Version: v1},
		want:     "c-1.0.zip",
		wantKind: "registry-sdist",
	}, {
		name:     "hash required skips unhashed artifacts",
		opts:     []Option{WithRequireHashes("sha256")},
		req:      Request{Name: "b", Version: v1},
		want:     "b-1.0-py2.py3-none-any.whl",
		wantKind: "registry-wheel",
	}, {
		name:     "expected hash",
		opts:     []Option{WithTags(MustParseTags("py3-none-any")), WithExpectedHashes("a", goodHash)},
		req:      Request{Name: "a", Version: v1},
		want:     "a-1.0.tar.gz",
		wantKind: "registry-sdist",
	}, {
		name:    "hash mismatch",
		opts:    []Option{WithRequireHashes("sha256"), WithExpectedHashes("a", dist.HashDigest{Algorithm: "sha256", Digest: "ffff"})},
		req:     Request{Name: "a", Version: v1},
		wantErr: true,
	}, {
		name:    "missing version",
		req:     Request{Name: "a", Version: pep440.MustParse("2.0")},
		wantErr: true,
	}, {
		name:     "installed",
		opts:     []Option{WithInstalled(map[pyresolve.PackageName]pep440.Version{"a": pep440.MustParse("1.0.0")})},
		req:      Request{Name: "a", Version: v1},
		want:     "a==1.0.0",
		wantKind: "installed",
	}, {
		name:     "git source",
		req:      Request{Name: "a", Version: v1, Source: &pyresolve.Git{Repository: "https://example.com/a.git", Reference: "v1"}},
		want:     "a @ git+https://example.com/a.git@v1",
		wantKind: "git",
	}, {
		name:    "git source with hashes",
		opts:    []Option{WithRequireHashes("sha256")},
		req:     Request{Name: "a", Version: v1, Source: &pyresolve.Git{Repository: "https://example.com/a.git"}},
		wantErr: true,
	}, {
		name:     "directory source",
		req:      Request{Name: "a", Version: v1, Source: &pyresolve.Directory{Path: "/src/a", Editable: true}},
		want:     "-e a @ file:///src/a",
		wantKind: "directory",
	}, {
		name:     "direct wheel",
		req:      Request{Name: "a", Version: v1, Source: &pyresolve.DirectURL{URL: "https://files.example/a-1.0-py3-none-any.whl"}},
		want:     "a-1.0-py3-none-any.whl",
		wantKind: "url-wheel",
	}, {
		name:     "direct sdist",
		req:      Request{Name: "a", Version: v1, Source: &pyresolve.DirectURL{URL: "https://files.example/a-1.0.tar.gz"}},
		want:     "a @ https://files.example/a-1.0.tar.gz",
		wantKind: "url-sdist",
	}, {
		name:     "direct URL into an index",
		req:      Request{Name: "a", Version: v1, Source: &pyresolve.DirectURL{URL: "https://primary.example/simple/a/a-1.0-py3-none-any.whl"}},
		want:     "a-1.0-py3-none-any.whl",
		wantKind: "registry-wheel",
	}, {
		name:    "direct URL without hash",
		opts:    []Option{WithRequireHashes("sha256")},
		req:     Request{Name: "a", Version: v1, Source: &pyresolve.DirectURL{URL: "https://files.example/a-1.0.tar.gz"}},
		wantErr: true,
	}, {
		name:     "path wheel",
		req:      Request{Name: "a", Version: v1, Source: &pyresolve.Path{Path: "/wheels/a-1.0-py3-none-any.whl"}},
		want:     "a-1.0-py3-none-any.whl",
		wantKind: "path-wheel",
	}, {
		name:    "wheel for another package",
		req:     Request{Name: "a", Version: v1, Source: &pyresolve.Path{Path: "/wheels/b-1.0-py3-none-any.whl"}},
		wantErr: true,
	}} {
		t.Run(test.name, func(t *testing.T) {
			s := New(append([]Option{WithIndexes(primary, secondary)}, test.opts...)...)
			sel, err := s.Select(context.Background(), test.req)
			if test.wantErr {
				var se *SelectionError
				if !errors.As(err, &se) {
					t.Fatalf("Select: got %v, want SelectionError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Select: %v", err)
			}
			got := sel.Dist.String()
			switch d := sel.Dist.(type) {
			case *dist.RegistryBuiltDist:
				got = d.Filename
			case *dist.RegistrySourceDist:
				got = d.Filename
			case *dist.DirectURLBuiltDist:
				got = d.Filename
			case *dist.PathBuiltDist:
				got = d.Filename
			}
			if got != test.want {
				t.Errorf("Select: got %s, want %s", got, test.want)
			}
			if kind := dist.Kind(sel.Dist); kind != test.wantKind {
				t.Errorf("Select: got kind %s, want %s", kind, test.wantKind)
			}
		})
	}
}

func TestSelectHashes(t *testing.T) {
	primary, secondary := testIndexes()
	s := New(WithIndexes(primary, secondary), WithRequireHashes("SHA256"))
	sel, err := s.Select(context.Background(), Request{Name: "a", Version: pep440.MustParse("1.0")})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]dist.HashDigest{goodHash}, sel.Hashes); diff != "" {
		t.Errorf("Hashes (-want +got):\n%s", diff)
	}
	idx, ok := dist.Index(sel.Dist)
	if !ok || idx != primary.URL() {
		t.Errorf("Index = %q, %t, want %q", idx, ok, primary.URL())
	}
}

func TestSelectAll(t *testing.T) {
	primary, secondary := testIndexes()
	s := New(WithIndexes(primary, secondary), WithConcurrency(2))
	v1 := pep440.MustParse("1.0")
	reqs := []Request{
		{Name: "a", Version: v1},
		{Name: "b", Version: v1},
		{Name: "missing", Version: v1},
		{Name: "c", Version: pep440.MustParse("9")},
	}
	sels, err := s.SelectAll(context.Background(), reqs)
	var se *SelectionError
	if !errors.As(err, &se) {
		t.Fatalf("SelectAll: got %v, want SelectionError", err)
	}
	if se.Package != "missing" {
		t.Errorf("SelectAll reported %s, want the earliest failure", se.Package)
	}
	if len(sels) != len(reqs) || sels[0].Dist == nil || sels[1].Dist == nil {
		t.Errorf("SelectAll did not keep the successful selections: %v", sels)
	}

	sels, err = s.SelectAll(context.Background(), reqs[:2])
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, sel := range sels {
		got = append(got, sel.Dist.String())
	}
	if diff := cmp.Diff([]string{"a==1.0", "b==1.0"}, got); diff != "" {
		t.Errorf("SelectAll (-want +got):\n%s", diff)
	}
}

func TestIndexTable(t *testing.T) {
	outer := NewLocalIndex("https://example.com/")
	inner := NewLocalIndex("https://example.com/inner")
	table := NewIndexTable(outer, inner, NewLocalIndex("https://example.com"))
	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
	for url, want := range map[string]Index{
		"https://example.com/inner/a/a-1.0.tar.gz": inner,
		"https://example.com/innerx/a.tar.gz":      outer,
		"https://example.com/a/a-1.0.tar.gz":       outer,
	} {
		if got, ok := table.Lookup(url); !ok || got != want {
			t.Errorf("Lookup(%q) = %v, want %v", url, got, want.URL())
		}
	}
	if _, ok := table.Lookup("https://other.example/a.tar.gz"); ok {
		t.Errorf("Lookup of an unknown host succeeded")
	}
}

func TestTags(t *testing.T) {
	tags := MustParseTags("cp312-cp312-linux_x86_64", "py2.py3-none-any")
	if tags.Len() != 3 {
		t.Errorf("Len() = %d, want 3", tags.Len())
	}
	if _, err := ParseTags("py3-none"); err == nil {
		t.Errorf("ParseTags accepted a malformed tag")
	}
	if DefaultTags().Len() == 0 {
		t.Errorf("DefaultTags is empty")
	}
}
