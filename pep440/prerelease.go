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

import "github.com/pkg/errors"

// PrereleaseMode decides when prerelease versions may be chosen.
type PrereleaseMode int8

const (
	// PrereleaseExplicit admits prereleases of a package only when some
	// requirement on it names a prerelease.
	PrereleaseExplicit PrereleaseMode = iota
	// PrereleaseDisallow never admits prereleases.
	PrereleaseDisallow
	// PrereleaseAllow admits prereleases everywhere.
	PrereleaseAllow
	// PrereleaseIfNecessary admits prereleases of a package only when no
	// final release is acceptable.
	PrereleaseIfNecessary
)

var prereleaseModeNames = map[PrereleaseMode]string{
	PrereleaseExplicit:    "explicit",
	PrereleaseDisallow:    "disallow",
	PrereleaseAllow:       "allow",
	PrereleaseIfNecessary: "if-necessary",
}

func (m PrereleaseMode) String() string {
	if s, ok := prereleaseModeNames[m]; ok {
		return s
	}
	return "unknown"
}

// ParsePrereleaseMode parses the textual name of a PrereleaseMode. The empty
// string selects the default, PrereleaseExplicit.
func ParsePrereleaseMode(s string) (PrereleaseMode, error) {
	if s == "" {
		return PrereleaseExplicit, nil
	}
	for m, name := range prereleaseModeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, errors.Errorf("unknown prerelease mode %q", s)
}

// Filter returns the members of vs inside s that the mode admits, keeping
// their order. The explicit argument reports whether some requirement on the
// package named a prerelease.
func (m PrereleaseMode) Filter(vs []Version, s Set, explicit bool) []Version {
	in := s.Filter(vs)
	var final []Version
	for _, v := range in {
		if !v.IsPrerelease() {
			final = append(final, v)
		}
	}
	switch m {
	case PrereleaseAllow:
		return in
	case PrereleaseDisallow:
		return final
	case PrereleaseIfNecessary:
		if len(final) > 0 {
			return final
		}
		return in
	}
	if explicit {
		return in
	}
	return final
}
