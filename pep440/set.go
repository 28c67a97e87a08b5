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
	"slices"
	"strings"
)

// A bound is one end of a span. The zero bound is unbounded.
type bound struct {
	v    Version
	open bool // Whether v itself is excluded.
}

func (b bound) unbounded() bool { return b.v.IsZero() }

func (b bound) equal(c bound) bool {
	if b.unbounded() || c.unbounded() {
		return b.unbounded() == c.unbounded()
	}
	return b.open == c.open && b.v.Compare(c.v) == 0
}

// cmpMin orders two bounds used as the lower end of a span.
func cmpMin(a, b bound) int {
	switch {
	case a.unbounded() && b.unbounded():
		return 0
	case a.unbounded():
		return -1
	case b.unbounded():
		return 1
	}
	if c := a.v.Compare(b.v); c != 0 {
		return c
	}
	switch {
	case a.open == b.open:
		return 0
	case a.open:
		return 1
	}
	return -1
}

// cmpMax orders two bounds used as the upper end of a span.
func cmpMax(a, b bound) int {
	switch {
	case a.unbounded() && b.unbounded():
		return 0
	case a.unbounded():
		return 1
	case b.unbounded():
		return -1
	}
	if c := a.v.Compare(b.v); c != 0 {
		return c
	}
	switch {
	case a.open == b.open:
		return 0
	case a.open:
		return -1
	}
	return 1
}

// A span is a contiguous range of versions.
type span struct {
	min, max bound
}

func (s span) empty() bool {
	if s.min.unbounded() || s.max.unbounded() {
		return false
	}
	c := s.min.v.Compare(s.max.v)
	return c > 0 || c == 0 && (s.min.open || s.max.open)
}

func (s span) contains(v Version) bool {
	if !s.min.unbounded() {
		c := v.Compare(s.min.v)
		if c < 0 || c == 0 && s.min.open {
			return false
		}
	}
	if !s.max.unbounded() {
		c := v.Compare(s.max.v)
		if c > 0 || c == 0 && s.max.open {
			return false
		}
	}
	return true
}

// joins reports whether a span ending at hi and a later span starting at
// lo overlap or touch, so that their union is a single span.
func joins(hi, lo bound) bool {
	if hi.unbounded() || lo.unbounded() {
		return true
	}
	c := lo.v.Compare(hi.v)
	return c < 0 || c == 0 && (!hi.open || !lo.open)
}

func (s span) String() string {
	switch {
	case s.min.unbounded() && s.max.unbounded():
		return "*"
	case !s.min.unbounded() && !s.max.unbounded() && s.min.v.Compare(s.max.v) == 0:
		return "==" + s.min.v.String()
	}
	var parts []string
	if !s.min.unbounded() {
		op := ">="
		if s.min.open {
			op = ">"
		}
		parts = append(parts, op+s.min.v.String())
	}
	if !s.max.unbounded() {
		switch r, ok := s.max.v.devZeroOf(); {
		case !s.max.open:
			parts = append(parts, "<="+s.max.v.String())
		case ok:
			parts = append(parts, "<"+r)
		default:
			parts = append(parts, "<"+s.max.v.String())
		}
	}
	return strings.Join(parts, ", ")
}

// Set is an immutable set of versions. The zero Set is empty.
type Set struct {
	spans []span
}

// Empty returns the set containing no versions.
func Empty() Set { return Set{} }

// Full returns the set containing every version.
func Full() Set { return Set{spans: []span{{}}} }

// Exact returns the set containing only v.
func Exact(v Version) Set {
	return Set{spans: []span{{min: bound{v: v}, max: bound{v: v}}}}
}

// AtLeast returns the set of versions >= v.
func AtLeast(v Version) Set { return Set{spans: []span{{min: bound{v: v}}}} }

// Above returns the set of versions > v.
func Above(v Version) Set { return Set{spans: []span{{min: bound{v: v, open: true}}}} }

// AtMost returns the set of versions <= v.
func AtMost(v Version) Set { return Set{spans: []span{{max: bound{v: v}}}} }

// Below returns the set of versions < v.
func Below(v Version) Set { return Set{spans: []span{{max: bound{v: v, open: true}}}} }

// Between returns the set of versions in [lo, hi).
func Between(lo, hi Version) Set {
	return newSet([]span{{min: bound{v: lo}, max: bound{v: hi, open: true}}})
}

// newSet normalizes spans: empty spans are dropped and the rest are sorted
// and merged until no two spans overlap or touch.
func newSet(spans []span) Set {
	spans = slices.DeleteFunc(spans, span.empty)
	if len(spans) == 0 {
		return Set{}
	}
	slices.SortFunc(spans, func(a, b span) int { return cmpMin(a.min, b.min) })
	out := spans[:1]
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if !joins(last.max, s.min) {
			out = append(out, s)
			continue
		}
		if cmpMax(s.max, last.max) > 0 {
			last.max = s.max
		}
	}
	return Set{spans: out}
}

// IsEmpty reports whether s contains no versions.
func (s Set) IsEmpty() bool { return len(s.spans) == 0 }

// IsFull reports whether s contains every version.
func (s Set) IsFull() bool {
	return len(s.spans) == 1 && s.spans[0].min.unbounded() && s.spans[0].max.unbounded()
}

// Contains reports whether v is a member of s.
func (s Set) Contains(v Version) bool {
	i, _ := slices.BinarySearchFunc(s.spans, v, func(sp span, v Version) int {
		if sp.max.unbounded() {
			return 1
		}
		c := sp.max.v.Compare(v)
		if c == 0 && sp.max.open {
			return -1
		}
		return c
	})
	return i < len(s.spans) && s.spans[i].contains(v)
}

// Union returns the versions in s or t.
func (s Set) Union(t Set) Set {
	spans := make([]span, 0, len(s.spans)+len(t.spans))
	spans = append(spans, s.spans...)
	spans = append(spans, t.spans...)
	return newSet(spans)
}

// Intersect returns the versions in both s and t.
func (s Set) Intersect(t Set) Set {
	var out []span
	for i, j := 0, 0; i < len(s.spans) && j < len(t.spans); {
		a, b := s.spans[i], t.spans[j]
		sp := span{min: a.min, max: a.max}
		if cmpMin(b.min, sp.min) > 0 {
			sp.min = b.min
		}
		if cmpMax(b.max, sp.max) < 0 {
			sp.max = b.max
		}
		if !sp.empty() {
			out = append(out, sp)
		}
		if cmpMax(a.max, b.max) < 0 {
			i++
		} else {
			j++
		}
	}
	return newSet(out)
}

// Complement returns the versions not in s.
func (s Set) Complement() Set {
	var out []span
	lo := bound{}
	for _, sp := range s.spans {
		if !sp.min.unbounded() {
			out = append(out, span{min: lo, max: bound{v: sp.min.v, open: !sp.min.open}})
		}
		if sp.max.unbounded() {
			return Set{spans: out}
		}
		lo = bound{v: sp.max.v, open: !sp.max.open}
	}
	return Set{spans: append(out, span{min: lo})}
}

// Difference returns the versions in s but not in t.
func (s Set) Difference(t Set) Set {
	return s.Intersect(t.Complement())
}

// Subset reports whether every version in s is also in t.
func (s Set) Subset(t Set) bool {
	return s.Intersect(t).Equal(s)
}

// Disjoint reports whether s and t have no version in common.
func (s Set) Disjoint(t Set) bool {
	return s.Intersect(t).IsEmpty()
}

// Equal reports whether s and t hold exactly the same versions.
func (s Set) Equal(t Set) bool {
	return slices.EqualFunc(s.spans, t.spans, func(a, b span) bool {
		return a.min.equal(b.min) && a.max.equal(b.max)
	})
}

// Singleton returns the only version in s, if s holds exactly one.
func (s Set) Singleton() (Version, bool) {
	if len(s.spans) != 1 {
		return Version{}, false
	}
	sp := s.spans[0]
	if sp.min.unbounded() || sp.max.unbounded() || sp.min.v.Compare(sp.max.v) != 0 {
		return Version{}, false
	}
	return sp.min.v, true
}

// Filter returns the members of vs that are in s, preserving their order.
func (s Set) Filter(vs []Version) []Version {
	var out []Version
	for _, v := range vs {
		if s.Contains(v) {
			out = append(out, v)
		}
	}
	return out
}

func (s Set) String() string {
	if len(s.spans) == 0 {
		return "∅"
	}
	parts := make([]string, len(s.spans))
	for i, sp := range s.spans {
		parts[i] = sp.String()
	}
	return strings.Join(parts, " | ")
}
