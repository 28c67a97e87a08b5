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

package graph

import (
	"slices"
	"strings"

	"deps.dev/util/pyresolve"
	"github.com/sirupsen/logrus"
)

// CycleError reports packages that depend on each other. The first and
// last elements of Cycle are the same package.
type CycleError struct {
	Cycle []pyresolve.PackageName
	// Build is set when one of the dependencies is needed to build a
	// package, so no installation order can satisfy the cycle.
	Build bool
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Cycle))
	for i, n := range e.Cycle {
		names[i] = string(n)
	}
	kind := "dependency cycle"
	if e.Build {
		kind = "build dependency cycle"
	}
	return kind + ": " + strings.Join(names, " -> ")
}

// packageGraph is a graph with one vertex per package: the plain package,
// its extras and groups are merged.
type packageGraph struct {
	vertices []pyresolve.PackageName
	adj      map[pyresolve.PackageName][]pyresolve.PackageName
	build    map[[2]pyresolve.PackageName]bool
}

func newPackageGraph(g *Graph) *packageGraph {
	pg := &packageGraph{
		adj:   make(map[pyresolve.PackageName][]pyresolve.PackageName),
		build: make(map[[2]pyresolve.PackageName]bool),
	}
	for _, n := range g.Nodes {
		if !n.IsRoot() {
			pg.vertices = append(pg.vertices, n.Dist.Name)
		}
	}
	slices.Sort(pg.vertices)
	pg.vertices = slices.Compact(pg.vertices)
	for _, e := range g.Edges {
		from, to := g.Nodes[e.From], g.Nodes[e.To]
		if from.IsRoot() || from.Dist.Name == to.Dist.Name {
			continue
		}
		u, v := from.Dist.Name, to.Dist.Name
		if !slices.Contains(pg.adj[u], v) {
			pg.adj[u] = append(pg.adj[u], v)
		}
		if e.Kind == pyresolve.Build {
			pg.build[[2]pyresolve.PackageName{u, v}] = true
		}
	}
	for _, vs := range pg.adj {
		slices.Sort(vs)
	}
	return pg
}

// path returns a shortest path from u to v, both included.
func (pg *packageGraph) path(u, v pyresolve.PackageName) []pyresolve.PackageName {
	prev := map[pyresolve.PackageName]pyresolve.PackageName{u: u}
	queue := []pyresolve.PackageName{u}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n == v {
			var p []pyresolve.PackageName
			for ; n != u; n = prev[n] {
				p = append(p, n)
			}
			p = append(p, u)
			slices.Reverse(p)
			return p
		}
		for _, m := range pg.adj[n] {
			if _, ok := prev[m]; !ok {
				prev[m] = n
				queue = append(queue, m)
			}
		}
	}
	return nil
}

// buildCycle returns a cycle through a build dependency, if there is one.
// A build edge u -> v is on a cycle exactly when v reaches u.
func (pg *packageGraph) buildCycle() []pyresolve.PackageName {
	for _, u := range pg.vertices {
		for _, v := range pg.adj[u] {
			if !pg.build[[2]pyresolve.PackageName{u, v}] {
				continue
			}
			if p := pg.path(v, u); p != nil {
				return append([]pyresolve.PackageName{u}, p...)
			}
		}
	}
	return nil
}

type color int8

const (
	white color = iota // Not visited.
	gray               // On the current path.
	black              // Done.
)

// cycle returns a cycle of the graph, if there is one, using a depth-first
// search that reports the first back edge it meets.
func (pg *packageGraph) cycle() []pyresolve.PackageName {
	state := make(map[pyresolve.PackageName]color, len(pg.vertices))
	var stack []pyresolve.PackageName
	var found []pyresolve.PackageName
	var visit func(u pyresolve.PackageName) bool
	visit = func(u pyresolve.PackageName) bool {
		state[u] = gray
		stack = append(stack, u)
		for _, v := range pg.adj[u] {
			switch state[v] {
			case gray:
				i := slices.Index(stack, v)
				found = append(slices.Clone(stack[i:]), v)
				return true
			case white:
				if visit(v) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[u] = black
		return false
	}
	for _, u := range pg.vertices {
		if state[u] == white && visit(u) {
			return found
		}
	}
	return nil
}

// checkCycles rejects cycles through build dependencies, and runtime
// cycles unless they are allowed.
func (b *Builder) checkCycles(g *Graph) error {
	pg := newPackageGraph(g)
	if c := pg.buildCycle(); c != nil {
		return &CycleError{Cycle: c, Build: true}
	}
	c := pg.cycle()
	if c == nil {
		return nil
	}
	if !b.allowRuntimeCycles {
		return &CycleError{Cycle: c}
	}
	b.log.WithFields(logrus.Fields{"cycle": (&CycleError{Cycle: c}).Error()}).Info("runtime dependency cycle")
	return nil
}
