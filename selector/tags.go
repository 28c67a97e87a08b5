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
	"fmt"
	"strings"

	"deps.dev/util/pypi"
	"github.com/pkg/errors"
)

// Tags is the list of wheel compatibility tags the target interpreter
// supports, most preferred first.
type Tags struct {
	list []pypi.PEP425Tag
	rank map[pypi.PEP425Tag]int
}

// ParseTags parses tags written as "python-abi-platform", such as
// "cp312-cp312-manylinux_2_17_x86_64". Compressed tag sets like
// "py2.py3-none-any" are expanded in place.
func ParseTags(tags ...string) (*Tags, error) {
	t := &Tags{rank: make(map[pypi.PEP425Tag]int)}
	for _, s := range tags {
		parts := strings.Split(s, "-")
		if len(parts) != 3 {
			return nil, errors.Errorf("malformed compatibility tag %q", s)
		}
		// Reuse the wheel filename parser to expand compressed tag sets.
		wi, err := pypi.ParseWheelName(fmt.Sprintf("x-0-%s.whl", s))
		if err != nil {
			return nil, errors.Wrapf(err, "compatibility tag %q", s)
		}
		for _, tag := range wi.Platforms {
			if _, ok := t.rank[tag]; !ok {
				t.rank[tag] = len(t.list)
				t.list = append(t.list, tag)
			}
		}
	}
	return t, nil
}

// MustParseTags is like ParseTags but panics on error.
func MustParseTags(tags ...string) *Tags {
	t, err := ParseTags(tags...)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of supported tags.
func (t *Tags) Len() int { return len(t.list) }

// Rank returns the preference of the best tag a wheel supports, lower being
// better, or false if the wheel is not compatible.
func (t *Tags) Rank(w *pypi.WheelInfo) (int, bool) {
	best, ok := 0, false
	for _, tag := range w.Platforms {
		if r, has := t.rank[tag]; has && (!ok || r < best) {
			best, ok = r, true
		}
	}
	return best, ok
}

// DefaultTags returns the tags of CPython 3.12 on 64-bit x86 Linux with
// glibc 2.17 or later, in the order pip prefers them.
func DefaultTags() *Tags {
	var plats []string
	for minor := 35; minor >= 17; minor-- {
		plats = append(plats, fmt.Sprintf("manylinux_2_%d_x86_64", minor))
		if minor == 17 {
			plats = append(plats, "manylinux2014_x86_64")
		}
	}
	plats = append(plats, "linux_x86_64")

	var tags []string
	add := func(py, abi string, ps ...string) {
		for _, p := range ps {
			tags = append(tags, py+"-"+abi+"-"+p)
		}
	}
	add("cp312", "cp312", plats...)
	add("cp312", "abi3", plats...)
	add("cp312", "none", plats...)
	for minor := 11; minor >= 2; minor-- {
		add(fmt.Sprintf("cp3%d", minor), "abi3", plats...)
	}
	add("py312", "none", plats...)
	add("py3", "none", plats...)
	for minor := 11; minor >= 0; minor-- {
		add(fmt.Sprintf("py3%d", minor), "none", plats...)
	}
	add("cp312", "none", "any")
	add("py312", "none", "any")
	add("py3", "none", "any")
	for minor := 11; minor >= 0; minor-- {
		add(fmt.Sprintf("py3%d", minor), "none", "any")
	}
	return MustParseTags(tags...)
}
