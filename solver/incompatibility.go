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
	"fmt"
	"slices"
	"strings"
)

// CauseKind records why an incompatibility exists.
type CauseKind int8

const (
	// CauseRoot is the incompatibility requiring the root to be selected.
	CauseRoot CauseKind = iota
	// CauseDependency says a package version depends on another package.
	CauseDependency
	// CauseNoVersions says no acceptable version of a package exists.
	CauseNoVersions
	// CauseUnavailable says versions exist but cannot be used, for
	// example because their metadata could not be fetched.
	CauseUnavailable
	// CauseDerived is an incompatibility learned from two others during
	// conflict resolution.
	CauseDerived
)

// Incompatibility is a set of terms that cannot all hold at once. At most
// one term refers to each package.
type Incompatibility struct {
	Terms []Term
	Kind  CauseKind
	// Reason explains a CauseUnavailable incompatibility.
	Reason string
	// Causes are the incompatibilities a CauseDerived one was learned from.
	Causes [2]*Incompatibility
}

// newIncompatibility builds an incompatibility, intersecting terms that
// refer to the same package and sorting the result by package.
func newIncompatibility(terms []Term, kind CauseKind) *Incompatibility {
	merged := make([]Term, 0, len(terms))
	for _, t := range terms {
		i := slices.IndexFunc(merged, func(u Term) bool { return u.Package == t.Package })
		if i < 0 {
			merged = append(merged, t)
			continue
		}
		merged[i] = merged[i].intersect(t)
	}
	// The root is always selected, so a positive root term in a learned
	// clause says nothing.
	if kind == CauseDerived && len(merged) > 1 {
		merged = slices.DeleteFunc(merged, func(t Term) bool { return t.Package == Root && t.Positive })
	}
	slices.SortFunc(merged, func(a, b Term) int { return a.Package.Compare(b.Package) })
	return &Incompatibility{Terms: merged, Kind: kind}
}

func derived(terms []Term, left, right *Incompatibility) *Incompatibility {
	inc := newIncompatibility(terms, CauseDerived)
	inc.Causes = [2]*Incompatibility{left, right}
	return inc
}

// isFailure reports whether the incompatibility proves there is no
// solution: it has no terms, or only says the root cannot be selected.
func (inc *Incompatibility) isFailure() bool {
	return len(inc.Terms) == 0 || len(inc.Terms) == 1 && inc.Terms[0].Package == Root && inc.Terms[0].Positive
}

// term returns the term about p, if any.
func (inc *Incompatibility) term(p Package) (Term, bool) {
	for _, t := range inc.Terms {
		if t.Package == p {
			return t, true
		}
	}
	return Term{}, false
}

// String describes the incompatibility in words.
func (inc *Incompatibility) String() string {
	switch inc.Kind {
	case CauseRoot:
		return "root is required"
	case CauseDependency:
		if len(inc.Terms) == 2 {
			depender, dependee := inc.Terms[0], inc.Terms[1]
			if !depender.Positive {
				depender, dependee = dependee, depender
			}
			return fmt.Sprintf("%s depends on %s", describe(depender), describe(dependee.Negate()))
		}
	case CauseNoVersions:
		if len(inc.Terms) == 1 {
			t := inc.Terms[0]
			if t.Set.IsFull() {
				return fmt.Sprintf("no versions of %s are available", t.Package)
			}
			return fmt.Sprintf("no versions of %s match %s", t.Package, t.Set)
		}
	case CauseUnavailable:
		if len(inc.Terms) == 1 {
			return fmt.Sprintf("%s is unavailable: %s", describe(inc.Terms[0]), inc.Reason)
		}
	}
	if inc.isFailure() {
		return "version solving failed"
	}
	if len(inc.Terms) == 1 {
		t := inc.Terms[0]
		if t.Positive {
			return describe(t) + " is forbidden"
		}
		return describe(t.Negate()) + " is required"
	}
	var pos, neg []Term
	for _, t := range inc.Terms {
		if t.Positive {
			pos = append(pos, t)
		} else {
			neg = append(neg, t)
		}
	}
	switch {
	case len(neg) == 0:
		return joinTerms(pos) + " are incompatible"
	case len(pos) > 0 && len(neg) == 1:
		return fmt.Sprintf("%s requires %s", joinTerms(pos), describe(neg[0].Negate()))
	case len(pos) == 0 && len(neg) == 1:
		return describe(neg[0].Negate()) + " is required"
	}
	parts := make([]string, len(inc.Terms))
	for i, t := range inc.Terms {
		parts[i] = t.String()
	}
	return fmt.Sprintf("one of %s must be false", strings.Join(parts, ", "))
}

// describe renders a positive term as the package and its versions.
func describe(t Term) string {
	if t.Package == Root {
		return "root"
	}
	if !t.Positive {
		return t.String()
	}
	if t.Set.IsFull() {
		return t.Package.String()
	}
	return t.Package.String() + " " + t.Set.String()
}

func joinTerms(ts []Term) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = describe(t)
	}
	if len(parts) <= 2 {
		return strings.Join(parts, " and ")
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}
