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

// Package pep440 provides PEP 440 versions and an algebra of version sets
// used by the resolver: union, intersection, complement and membership.
//
// Sets are kept as sorted lists of disjoint, non-touching spans, so two sets
// holding the same versions always have the same representation and can be
// compared structurally.
package pep440

import (
	"slices"
	"strconv"
	"strings"

	"deps.dev/util/semver"
	"github.com/pkg/errors"
)

// Version is a PEP 440 version. The zero Version is not a valid version; it
// is used internally to mark an unbounded end of a span.
type Version struct {
	v *semver.Version
}

// Parse parses a PEP 440 version string. Wildcards are rejected.
func Parse(s string) (Version, error) {
	v, err := semver.PyPI.Parse(s)
	if err != nil {
		return Version{}, errors.Wrapf(err, "parsing version %q", s)
	}
	if v.IsWildcard() {
		return Version{}, errors.Errorf("parsing version %q: wildcard not allowed", s)
	}
	return Version{v: v}, nil
}

// MustParse is like Parse but panics on error. It is intended for tests and
// package level variables.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsZero reports whether v is the zero Version.
func (v Version) IsZero() bool { return v.v == nil }

// Compare returns -1, 0 or 1 depending on whether v sorts before, equal to or
// after w under PEP 440 ordering.
func (v Version) Compare(w Version) int { return v.v.Compare(w.v) }

// Equal reports whether v and w are the same version, ignoring spelling
// differences such as "1.0" and "1.0.0".
func (v Version) Equal(w Version) bool {
	if v.v == nil || w.v == nil {
		return v.v == w.v
	}
	return v.Compare(w) == 0
}

// String returns the version as it was written.
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}

// Canon returns the canonical spelling of the version.
func (v Version) Canon() string {
	if v.v == nil {
		return ""
	}
	return v.v.Canon(false)
}

// IsPrerelease reports whether v is an alpha, beta, release candidate or
// development release.
func (v Version) IsPrerelease() bool {
	return v.v.IsPrerelease() || v.IsDev()
}

// IsDev reports whether v is a development release.
func (v Version) IsDev() bool {
	return strings.Contains(v.Canon(), ".dev")
}

// IsPost reports whether v is a post release.
func (v Version) IsPost() bool {
	return strings.Contains(v.Canon(), ".post")
}

// IsLocal reports whether v carries a local version label.
func (v Version) IsLocal() bool {
	return strings.Contains(v.Canon(), "+")
}

// hasSuffix reports whether v is anything other than a plain release.
func (v Version) hasSuffix() bool {
	return v.IsPrerelease() || v.IsPost() || v.IsLocal()
}

// devZeroOf returns the release X when v is X.dev0, the earliest version of
// X. An exclusive upper bound at X.dev0 is what "<X" means.
func (v Version) devZeroOf() (string, bool) {
	r, ok := strings.CutSuffix(v.String(), ".dev0")
	if !ok {
		return "", false
	}
	rv, err := Parse(r)
	if err != nil || rv.hasSuffix() {
		return "", false
	}
	return r, true
}

// Sort sorts versions in ascending order.
func Sort(vs []Version) {
	slices.SortStableFunc(vs, Version.Compare)
}

// release holds the epoch and release segments of a version as written,
// before any padding.
type release struct {
	epoch string // Including the trailing "!", or empty.
	nums  []string
	rest  string // Pre, post, dev and local parts.
}

// splitRelease splits the textual form of a version into its epoch, release
// numbers and remaining suffix.
func splitRelease(s string) (release, error) {
	var r release
	if i := strings.IndexByte(s, '!'); i >= 0 {
		r.epoch, s = s[:i+1], s[i+1:]
	}
	if len(s) > 0 && (s[0] == 'v' || s[0] == 'V') {
		s = s[1:]
	}
	end := 0
	for end < len(s) && (s[end] == '.' || '0' <= s[end] && s[end] <= '9') {
		end++
	}
	// A trailing dot belongs to the suffix, as in "1.0.post1".
	for end > 0 && s[end-1] == '.' {
		end--
	}
	if end == 0 {
		return release{}, errors.Errorf("no release segment in %q", s)
	}
	r.nums = strings.Split(s[:end], ".")
	r.rest = s[end:]
	return r, nil
}

// bump returns the release numbers with the last one incremented.
func bump(nums []string) ([]string, error) {
	out := slices.Clone(nums)
	n, err := strconv.Atoi(out[len(out)-1])
	if err != nil {
		return nil, errors.Wrapf(err, "bumping %q", strings.Join(nums, "."))
	}
	out[len(out)-1] = strconv.Itoa(n + 1)
	return out, nil
}

// devZero returns the earliest version with the given release numbers,
// which is its first development release.
func devZero(epoch string, nums []string) (Version, error) {
	return Parse(epoch + strings.Join(nums, ".") + ".dev0")
}
