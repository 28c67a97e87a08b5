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
	"testing"

	"deps.dev/util/pyresolve/pep440"
	"github.com/google/go-cmp/cmp"
)

func TestPartialSolution(t *testing.T) {
	a, b := Package{Name: "a"}, Package{Name: "b"}
	set := pep440.MustParseSpecifiers
	cause := newIncompatibility([]Term{negative(a, set(">=1"))}, CauseDerived)

	ps := newPartialSolution()
	ps.derive(positive(a, set(">=1")), cause)
	ps.decide(a, pep440.MustParse("1.5"))
	ps.derive(positive(b, set("<2")), cause)
	ps.decide(b, pep440.MustParse("1.0"))
	ps.derive(negative(b, set("==1.0")), cause)

	if got := ps.level(); got != 2 {
		t.Errorf("level() = %d, want 2", got)
	}
	if got := ps.relation(positive(a, set("<2"))); got != satisfied {
		t.Errorf("relation(a <2) = %d, want satisfied", got)
	}
	if got := ps.relation(positive(a, set(">=2"))); got != contradicted {
		t.Errorf("relation(a >=2) = %d, want contradicted", got)
	}
	if got := ps.relation(positive(Package{Name: "c"}, pep440.Full())); got != inconclusive {
		t.Errorf("relation(c) = %d, want inconclusive", got)
	}
	if sat := ps.satisfier(positive(a, set(">=1"))); sat.index != 0 || sat.isDecision() {
		t.Errorf("satisfier(a >=1) = %+v, want the first derivation", sat)
	}
	if sat := ps.satisfier(positive(a, set("==1.5"))); !sat.isDecision() || sat.level != 1 {
		t.Errorf("satisfier(a ==1.5) = %+v, want the decision at level 1", sat)
	}

	ps.backtrack(1)
	if got := ps.level(); got != 1 {
		t.Errorf("after backtrack level() = %d, want 1", got)
	}
	if got := len(ps.log); got != 3 {
		t.Errorf("after backtrack %d assignments, want 3", got)
	}
	acc, _ := ps.term(b)
	if !acc.Positive || !acc.Set.Equal(set("<2")) {
		t.Errorf("after backtrack b is %v, want b <2", acc)
	}
	if diff := cmp.Diff([]Package{b}, ps.undecided()); diff != "" {
		t.Errorf("undecided (-want +got):\n%s", diff)
	}
	pins := ps.decisions()
	if len(pins) != 1 || pins[0].Package != a || pins[0].Version.String() != "1.5" {
		t.Errorf("decisions() = %v, want a==1.5", pins)
	}

	ps.backtrack(0)
	if _, ok := ps.term(b); ok {
		t.Errorf("b still assigned after backtracking to level 0")
	}
	if got := len(ps.undecided()); got != 1 {
		t.Errorf("undecided after backtrack(0) = %d packages, want only a", got)
	}
}
