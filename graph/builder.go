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
	"fmt"
	"os"

	"deps.dev/util/pyresolve"
	"deps.dev/util/pyresolve/selector"
	"deps.dev/util/pyresolve/solver"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Builder turns a resolution and the distributions selected for it into a
// Graph.
type Builder struct {
	allowRuntimeCycles bool
	log                *logrus.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithAllowRuntimeCycles sets whether cycles made only of runtime
// dependencies are accepted. They are by default; cycles through a build
// dependency never are.
func WithAllowRuntimeCycles(allow bool) Option {
	return func(b *Builder) { b.allowRuntimeCycles = allow }
}

// WithLogger sets the logger. A nil logger logs warnings to stderr.
func WithLogger(l *logrus.Logger) Option {
	return func(b *Builder) { b.log = l }
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{allowRuntimeCycles: true}
	for _, o := range opts {
		o(b)
	}
	if b.log == nil {
		b.log = logrus.New()
		b.log.SetOutput(os.Stderr)
		b.log.SetLevel(logrus.WarnLevel)
	}
	return b
}

// UnsoundError reports an edge whose target version does not satisfy the
// requirement it stands for. It indicates a resolver bug.
type UnsoundError struct {
	From        string
	To          string
	Requirement string
}

func (e *UnsoundError) Error() string {
	return fmt.Sprintf("%s depends on %s but %s was resolved", e.From, e.Requirement, e.To)
}

// Build creates the graph of res. sels holds the distribution chosen for
// every package of the resolution. Nodes that cannot be reached from the
// root are left out.
func (b *Builder) Build(res *solver.Resolution, sels map[pyresolve.PackageName]selector.Selection) (*Graph, error) {
	g := &Graph{}
	g.addNode(nil)
	ids := make(map[key]NodeID)
	for _, p := range res.Packages {
		if p.Package.IsRoot() {
			continue
		}
		sel, ok := sels[p.Package.Name]
		if !ok {
			return nil, errors.Errorf("no distribution selected for %s", p.Package.Name)
		}
		d := &AnnotatedDist{
			Dist:     sel.Dist,
			Name:     p.Package.Name,
			Version:  p.Version,
			Extra:    p.Package.Extra,
			Group:    p.Package.Group,
			Hashes:   sel.Hashes,
			Metadata: res.Metadata(p.Package.Name),
		}
		k := d.key()
		if _, ok := ids[k]; ok {
			continue
		}
		ids[k] = g.addNode(d)
	}

	// Edges of the root come from the manifest and the active root groups.
	if err := b.addEdges(g, res, ids, 0, res.Manifest.Requirements, "", ""); err != nil {
		return nil, err
	}
	for _, grp := range res.Groups {
		if err := b.addEdges(g, res, ids, 0, res.Manifest.Groups[grp], "", grp); err != nil {
			return nil, err
		}
	}
	for i := 1; i < len(g.Nodes); i++ {
		d := g.Nodes[i].Dist
		if d.Metadata == nil {
			continue
		}
		// Installing an extra or a group installs the package too, so
		// those nodes also carry the plain dependencies, untagged.
		if err := b.addEdges(g, res, ids, NodeID(i), d.Metadata.Requires, "", ""); err != nil {
			return nil, err
		}
		var reqs []pyresolve.Requirement
		switch {
		case d.Extra != "":
			reqs = d.Metadata.Extras[d.Extra]
		case d.Group != "":
			reqs = d.Metadata.Groups[d.Group]
		default:
			continue
		}
		if err := b.addEdges(g, res, ids, NodeID(i), reqs, d.Extra, d.Group); err != nil {
			return nil, err
		}
	}

	b.prune(g)
	if err := b.checkCycles(g); err != nil {
		return nil, err
	}
	g.Canon()
	return g, nil
}

// addEdges adds an edge from n for every active requirement in reqs and
// every extra or group it requests. Each target must be in the graph at a
// version the requirement accepts.
func (b *Builder) addEdges(g *Graph, res *solver.Resolution, ids map[key]NodeID, n NodeID, reqs []pyresolve.Requirement, extra, group string) error {
	for _, r := range reqs {
		if r.Inactive {
			continue
		}
		v, ok := res.Version(r.Name)
		if !ok {
			return errors.Errorf("%s depends on %s, which was not resolved", g.Nodes[n], r)
		}
		if !r.Versions.Contains(v) {
			return &UnsoundError{
				From:        g.Nodes[n].String(),
				To:          fmt.Sprintf("%s==%s", r.Name, v),
				Requirement: r.String(),
			}
		}
		for _, t := range targets(r) {
			k := key{name: r.Name, version: v.Canon(), extra: t.extra, group: t.group}
			to, ok := ids[k]
			if !ok {
				return errors.Errorf("%s depends on %s, which was not resolved", g.Nodes[n], r)
			}
			if to == n {
				continue
			}
			req := r.Specifier
			switch {
			case r.Source != nil:
				req = r.Source.String()
			case req == "":
				req = "*"
			}
			if err := g.addEdge(Edge{
				From:        n,
				To:          to,
				Extra:       extra,
				Group:       group,
				Kind:        r.Kind,
				Requirement: req,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

type target struct {
	extra, group string
}

// targets lists the nodes a requirement points to: the plain package, or
// one node per requested extra and group.
func targets(r pyresolve.Requirement) []target {
	if len(r.Extras) == 0 && len(r.Groups) == 0 {
		return []target{{}}
	}
	var ts []target
	for _, e := range r.Extras {
		ts = append(ts, target{extra: e})
	}
	for _, g := range r.Groups {
		ts = append(ts, target{group: g})
	}
	return ts
}

// prune removes the nodes the root does not reach, with their edges.
func (b *Builder) prune(g *Graph) {
	adj := make([][]NodeID, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e.To)
	}
	reached := make([]bool, len(g.Nodes))
	reached[0] = true
	queue := []NodeID{0}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, to := range adj[n] {
			if !reached[to] {
				reached[to] = true
				queue = append(queue, to)
			}
		}
	}

	oldToNew := make([]NodeID, len(g.Nodes))
	var nodes []Node
	for i, n := range g.Nodes {
		if !reached[i] {
			if b.log.IsLevelEnabled(logrus.DebugLevel) {
				b.log.WithField("node", n.String()).Debug("pruning unreachable node")
			}
			oldToNew[i] = -1
			continue
		}
		oldToNew[i] = NodeID(len(nodes))
		nodes = append(nodes, n)
	}
	g.Nodes = nodes
	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if oldToNew[e.From] < 0 {
			continue
		}
		e.From, e.To = oldToNew[e.From], oldToNew[e.To]
		edges = append(edges, e)
	}
	g.Edges = edges
}
