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
	"strings"
)

// NoSolutionError is returned when no set of versions satisfies the
// requirements. Incompatibility is the final learned incompatibility, which
// rules out the root; Trail lists it with every incompatibility it was
// derived from, causes before the incompatibilities derived from them.
type NoSolutionError struct {
	Incompatibility *Incompatibility
	Trail           []*Incompatibility
}

func newNoSolutionError(inc *Incompatibility) *NoSolutionError {
	e := &NoSolutionError{Incompatibility: inc}
	seen := make(map[*Incompatibility]bool)
	var walk func(*Incompatibility)
	walk = func(inc *Incompatibility) {
		if inc == nil || seen[inc] {
			return
		}
		seen[inc] = true
		walk(inc.Causes[0])
		walk(inc.Causes[1])
		e.Trail = append(e.Trail, inc)
	}
	walk(inc)
	return e
}

// External returns the incompatibilities of the trail that were not
// derived: the requirements and provider facts the failure rests on.
func (e *NoSolutionError) External() []*Incompatibility {
	var out []*Incompatibility
	for _, inc := range e.Trail {
		if inc.Kind != CauseDerived {
			out = append(out, inc)
		}
	}
	return out
}

// Error explains the failure as a sequence of deductions, one per derived
// incompatibility. A deduction referred to again later than the next line
// is numbered.
func (e *NoSolutionError) Error() string {
	var derived []*Incompatibility
	for _, inc := range e.Trail {
		if inc.Kind == CauseDerived {
			derived = append(derived, inc)
		}
	}
	if len(derived) == 0 {
		return "version solving failed: " + e.Incompatibility.String()
	}

	pos := make(map[*Incompatibility]int, len(derived))
	for i, inc := range derived {
		pos[inc] = i
	}
	// A derived cause needs a number unless it is the line just before.
	numbers := make(map[*Incompatibility]int)
	for i, inc := range derived {
		for _, c := range inc.Causes {
			if j, ok := pos[c]; ok && j != i-1 {
				numbers[c] = 0
			}
		}
	}
	n := 0
	for _, inc := range derived {
		if _, ok := numbers[inc]; ok {
			n++
			numbers[inc] = n
		}
	}
	ref := func(c *Incompatibility) string {
		if num, ok := numbers[c]; ok {
			return fmt.Sprintf("%s (%d)", c, num)
		}
		return c.String()
	}

	var b strings.Builder
	for i, inc := range derived {
		if i > 0 {
			b.WriteByte('\n')
		}
		c0, c1 := inc.Causes[0], inc.Causes[1]
		var prev *Incompatibility
		if i > 0 {
			prev = derived[i-1]
		}
		switch {
		case prev != nil && c0 == prev && numbers[c0] == 0:
			fmt.Fprintf(&b, "And because %s, %s.", ref(c1), inc)
		case prev != nil && c1 == prev && numbers[c1] == 0:
			fmt.Fprintf(&b, "And because %s, %s.", ref(c0), inc)
		default:
			fmt.Fprintf(&b, "Because %s and %s, %s.", ref(c0), ref(c1), inc)
		}
		if num, ok := numbers[inc]; ok {
			fmt.Fprintf(&b, " (%d)", num)
		}
	}
	return b.String()
}
