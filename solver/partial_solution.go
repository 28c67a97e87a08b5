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

// assignment is one entry of the partial solution's log: either a decision
// to select a version, or a term derived from an incompatibility.
type assignment struct {
	Term
	level int
	cause *Incompatibility // Nil for decisions.
	index int              // Position in the log.
}

func (a assignment) isDecision() bool { return a.cause == nil }

// packageLog tracks the assignments for one package.
type packageLog struct {
	idx []int  // Log positions of the package's assignments.
	acc []Term // acc[i] is the intersection of the terms at idx[:i+1].
	// decision is the log position of the package's decision, or -1.
	decision int
}

// partialSolution is the solver's current set of assignments. It is an
// append-only log partitioned into decision levels; backtracking truncates
// the log rather than copying state.
type partialSolution struct {
	log []assignment
	// levelStart[l] is the log position where decision level l starts.
	levelStart []int
	pkgs       map[Package]*packageLog
	// order lists packages in the order they were first assigned, so that
	// iteration does not depend on map order.
	order []Package
}

func newPartialSolution() *partialSolution {
	return &partialSolution{
		levelStart: []int{0},
		pkgs:       make(map[Package]*packageLog),
	}
}

// level returns the current decision level.
func (ps *partialSolution) level() int { return len(ps.levelStart) - 1 }

func (ps *partialSolution) assign(t Term, cause *Incompatibility) {
	pl, ok := ps.pkgs[t.Package]
	if !ok {
		pl = &packageLog{decision: -1}
		ps.pkgs[t.Package] = pl
		ps.order = append(ps.order, t.Package)
	}
	acc := t
	if n := len(pl.acc); n > 0 {
		acc = pl.acc[n-1].intersect(t)
	}
	a := assignment{Term: t, level: ps.level(), cause: cause, index: len(ps.log)}
	if cause == nil {
		pl.decision = a.index
	}
	pl.idx = append(pl.idx, a.index)
	pl.acc = append(pl.acc, acc)
	ps.log = append(ps.log, a)
}

// decide selects version v of p, starting a new decision level.
func (ps *partialSolution) decide(p Package, v pep440.Version) {
	ps.levelStart = append(ps.levelStart, len(ps.log))
	ps.assign(positive(p, pep440.Exact(v)), nil)
}

// derive records a term forced by cause at the current level.
func (ps *partialSolution) derive(t Term, cause *Incompatibility) {
	ps.assign(t, cause)
}

// backtrack removes every assignment made above the given level.
func (ps *partialSolution) backtrack(level int) {
	if level >= ps.level() {
		return
	}
	cut := ps.levelStart[level+1]
	for _, a := range ps.log[cut:] {
		pl := ps.pkgs[a.Package]
		for n := len(pl.idx); n > 0 && pl.idx[n-1] >= cut; n-- {
			pl.idx, pl.acc = pl.idx[:n-1], pl.acc[:n-1]
		}
		if pl.decision >= cut {
			pl.decision = -1
		}
	}
	ps.log = ps.log[:cut]
	ps.levelStart = ps.levelStart[:level+1]
}

// term returns the intersection of every assignment for p.
func (ps *partialSolution) term(p Package) (Term, bool) {
	pl, ok := ps.pkgs[p]
	if !ok || len(pl.acc) == 0 {
		return Term{}, false
	}
	return pl.acc[len(pl.acc)-1], true
}

// relation reports whether the partial solution satisfies or contradicts t.
func (ps *partialSolution) relation(t Term) relation {
	acc, ok := ps.term(t.Package)
	switch {
	case !ok:
		return inconclusive
	case acc.satisfies(t):
		return satisfied
	case acc.contradicts(t):
		return contradicted
	}
	return inconclusive
}

func (ps *partialSolution) satisfies(t Term) bool {
	return ps.relation(t) == satisfied
}

// satisfier returns the earliest assignment after which the partial
// solution satisfies t. The partial solution must satisfy t.
func (ps *partialSolution) satisfier(t Term) assignment {
	pl := ps.pkgs[t.Package]
	for i, acc := range pl.acc {
		if acc.satisfies(t) {
			return ps.log[pl.idx[i]]
		}
	}
	panic("solver: no satisfier for " + t.String())
}

// undecided returns the packages that must be selected but have no version
// yet, in first-assignment order.
func (ps *partialSolution) undecided() []Package {
	var out []Package
	for _, p := range ps.order {
		pl := ps.pkgs[p]
		if len(pl.acc) > 0 && pl.decision < 0 && pl.acc[len(pl.acc)-1].Positive {
			out = append(out, p)
		}
	}
	return out
}

// decisions returns the selected version of every decided package, in
// decision order.
func (ps *partialSolution) decisions() []Pin {
	var out []Pin
	for _, a := range ps.log {
		if !a.isDecision() {
			continue
		}
		v, _ := a.Set.Singleton()
		out = append(out, Pin{Package: a.Package, Version: v})
	}
	return out
}
