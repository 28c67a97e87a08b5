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
	"strings"

	"github.com/pkg/errors"
)

// operators lists the PEP 440 comparison operators, longest first so that
// prefixes are tried last.
var operators = []string{"===", "==", "!=", "~=", ">=", "<=", ">", "<"}

// ParseSpecifiers parses a comma separated list of PEP 440 version
// specifiers, such as ">=1.0,<2.0", into the set of versions satisfying all
// of them. The empty string and "*" denote every version.
func ParseSpecifiers(text string) (Set, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == "*" {
		return Full(), nil
	}
	set := Full()
	for _, clause := range strings.Split(text, ",") {
		s, err := parseClause(strings.TrimSpace(clause))
		if err != nil {
			return Set{}, errors.Wrapf(err, "parsing specifier %q", text)
		}
		set = set.Intersect(s)
	}
	return set, nil
}

// MustParseSpecifiers is like ParseSpecifiers but panics on error.
func MustParseSpecifiers(text string) Set {
	s, err := ParseSpecifiers(text)
	if err != nil {
		panic(err)
	}
	return s
}

func splitOperator(clause string) (op, ver string, err error) {
	for _, o := range operators {
		if strings.HasPrefix(clause, o) {
			return o, strings.TrimSpace(clause[len(o):]), nil
		}
	}
	return "", "", errors.Errorf("missing operator in %q", clause)
}

func parseClause(clause string) (Set, error) {
	op, ver, err := splitOperator(clause)
	if err != nil {
		return Set{}, err
	}
	if strings.HasSuffix(ver, ".*") {
		if op != "==" && op != "!=" {
			return Set{}, errors.Errorf("wildcard not allowed with %s in %q", op, clause)
		}
		s, err := prefixSet(strings.TrimSuffix(ver, ".*"))
		if err != nil {
			return Set{}, err
		}
		if op == "!=" {
			return s.Complement(), nil
		}
		return s, nil
	}
	v, err := Parse(ver)
	if err != nil {
		return Set{}, err
	}
	switch op {
	case "==", "===":
		return Exact(v), nil
	case "!=":
		return Exact(v).Complement(), nil
	case ">=":
		return AtLeast(v), nil
	case ">":
		return Above(v), nil
	case "<=":
		return AtMost(v), nil
	case "<":
		// <V excludes prereleases of V itself unless V is one.
		if v.hasSuffix() {
			return Below(v), nil
		}
		r, err := splitRelease(ver)
		if err != nil {
			return Set{}, err
		}
		dev, err := devZero(r.epoch, r.nums)
		if err != nil {
			return Set{}, err
		}
		return Below(dev), nil
	case "~=":
		return compatibleSet(v, ver)
	}
	return Set{}, errors.Errorf("unknown operator %s", op)
}

// prefixSet returns the versions matching a release prefix, as in ==1.2.*.
func prefixSet(prefix string) (Set, error) {
	r, err := splitRelease(prefix)
	if err != nil {
		return Set{}, err
	}
	if r.rest != "" {
		return Set{}, errors.Errorf("wildcard prefix %q is not a release", prefix)
	}
	lo, err := devZero(r.epoch, r.nums)
	if err != nil {
		return Set{}, err
	}
	next, err := bump(r.nums)
	if err != nil {
		return Set{}, err
	}
	hi, err := devZero(r.epoch, next)
	if err != nil {
		return Set{}, err
	}
	return Between(lo, hi), nil
}

// compatibleSet implements ~=V: at least V and matching V's release with its
// last segment dropped.
func compatibleSet(v Version, text string) (Set, error) {
	r, err := splitRelease(text)
	if err != nil {
		return Set{}, err
	}
	if len(r.nums) < 2 {
		return Set{}, errors.Errorf("~= needs at least two release segments, got %q", text)
	}
	upper, err := prefixSet(r.epoch + strings.Join(r.nums[:len(r.nums)-1], "."))
	if err != nil {
		return Set{}, err
	}
	return AtLeast(v).Intersect(upper), nil
}

// ExplicitPrerelease reports whether any clause in a specifier list names a
// prerelease version, which opts the requirement in to prereleases.
func ExplicitPrerelease(text string) bool {
	for _, clause := range strings.Split(text, ",") {
		_, ver, err := splitOperator(strings.TrimSpace(clause))
		if err != nil {
			continue
		}
		v, err := Parse(strings.TrimSuffix(ver, ".*"))
		if err == nil && v.IsPrerelease() {
			return true
		}
	}
	return false
}
