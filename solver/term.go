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
	"deps.dev/util/pyresolve/pep440"
)

// Term is a statement about a package. A positive term says the package is
// selected at a version in Set. A negative term says it is not, either
// because another version is selected or because it is not selected at all.
type Term struct {
	Package  Package
	Set      pep440.Set
	Positive bool
}

func positive(p Package, s pep440.Set) Term { return Term{Package: p, Set: s, Positive: true} }
func negative(p Package, s pep440.Set) Term { return Term{Package: p, Set: s} }

// Negate returns the term that holds exactly when t does not.
func (t Term) Negate() Term {
	t.Positive = !t.Positive
	return t
}

// intersect returns the term that holds when both t and u hold. Both must
// be about the same package.
func (t Term) intersect(u Term) Term {
	switch {
	case t.Positive && u.Positive:
		return positive(t.Package, t.Set.Intersect(u.Set))
	case t.Positive:
		return positive(t.Package, t.Set.Difference(u.Set))
	case u.Positive:
		return positive(t.Package, u.Set.Difference(t.Set))
	}
	return negative(t.Package, t.Set.Union(u.Set))
}

// difference returns the term that holds when t holds and u does not.
func (t Term) difference(u Term) Term { return t.intersect(u.Negate()) }

// empty reports whether t can never hold.
func (t Term) empty() bool { return t.Positive && t.Set.IsEmpty() }

// satisfies reports whether u holds whenever t does.
func (t Term) satisfies(u Term) bool {
	switch {
	case t.Positive && u.Positive:
		return t.Set.Subset(u.Set)
	case t.Positive:
		return t.Set.Disjoint(u.Set)
	case u.Positive:
		// t allows the package to be absent; u does not.
		return false
	}
	return u.Set.Subset(t.Set)
}

// contradicts reports whether t and u can never hold together.
func (t Term) contradicts(u Term) bool {
	switch {
	case t.Positive && u.Positive:
		return t.Set.Disjoint(u.Set)
	case t.Positive:
		return t.Set.Subset(u.Set)
	case u.Positive:
		return u.Set.Subset(t.Set)
	}
	return false
}

// relation describes how the partial solution relates to a term.
type relation int8

const (
	inconclusive relation = iota
	satisfied
	contradicted
)

func (t Term) String() string {
	s := t.Package.String()
	if !t.Set.IsFull() {
		s += " " + t.Set.String()
	}
	if !t.Positive {
		return "not " + s
	}
	return s
}
