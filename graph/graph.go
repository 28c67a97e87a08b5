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
	"cmp"
	"fmt"
	"slices"
	"strings"

	"deps.dev/util/pyresolve"
)

// NodeID identifies a node in a Graph. It is an index of the Graph's Nodes.
type NodeID int

// Node is one installable unit of a resolved Graph. The root node stands
// for the project and has no distribution.
type Node struct {
	Dist *AnnotatedDist
}

// IsRoot reports whether n is the project itself.
func (n Node) IsRoot() bool { return n.Dist == nil }

func (n Node) String() string {
	if n.IsRoot() {
		return "root"
	}
	return n.Dist.String()
}

func (n Node) compare(o Node) int {
	switch {
	case n.IsRoot() && o.IsRoot():
		return 0
	case n.IsRoot():
		return -1
	case o.IsRoot():
		return 1
	}
	return n.Dist.Compare(o.Dist)
}

// Edge is a dependency From an importer To an imported node. Extra and
// Group name the extra or dependency group of the importer that the
// dependency belongs to, if any.
type Edge struct {
	From        NodeID
	To          NodeID
	Extra       string
	Group       string
	Kind        pyresolve.DependencyKind
	Requirement string
}

func (e Edge) compare(o Edge) int {
	if c := cmp.Compare(e.From, o.From); c != 0 {
		return c
	}
	if c := cmp.Compare(e.To, o.To); c != 0 {
		return c
	}
	if c := cmp.Compare(e.Extra, o.Extra); c != 0 {
		return c
	}
	if c := cmp.Compare(e.Group, o.Group); c != 0 {
		return c
	}
	if c := cmp.Compare(e.Kind, o.Kind); c != 0 {
		return c
	}
	return cmp.Compare(e.Requirement, o.Requirement)
}

// tag is the label the edge carries in the String form.
func (e Edge) tag() string {
	var tags []string
	if e.Kind == pyresolve.Build {
		tags = append(tags, "build")
	}
	if e.Extra != "" {
		tags = append(tags, "["+e.Extra+"]")
	}
	if e.Group != "" {
		tags = append(tags, ":"+e.Group)
	}
	return strings.Join(tags, " ")
}

// Graph is the installable form of a resolution.
type Graph struct {
	// The first element is the root node.
	Nodes []Node
	Edges []Edge
}

func (g *Graph) addNode(d *AnnotatedDist) NodeID {
	g.Nodes = append(g.Nodes, Node{Dist: d})
	return NodeID(len(g.Nodes) - 1)
}

func (g *Graph) contains(n NodeID) bool {
	return n >= 0 && int(n) < len(g.Nodes)
}

func (g *Graph) addEdge(e Edge) error {
	if !g.contains(e.From) {
		return fmt.Errorf("node not in graph: %v", e.From)
	}
	if !g.contains(e.To) {
		return fmt.Errorf("node not in graph: %v", e.To)
	}
	g.Edges = append(g.Edges, e)
	return nil
}

// Dist returns the distribution of a node, nil for the root.
func (g *Graph) Dist(n NodeID) *AnnotatedDist { return g.Nodes[n].Dist }

// Find returns the node for a package with the given extra or group, if
// the graph has one.
func (g *Graph) Find(name pyresolve.PackageName, extra, group string) (NodeID, bool) {
	for i, n := range g.Nodes {
		if d := n.Dist; d != nil && d.Name == name && d.Extra == extra && d.Group == group {
			return NodeID(i), true
		}
	}
	return 0, false
}

// Children returns the edges leaving n.
func (g *Graph) Children(n NodeID) []Edge {
	var es []Edge
	for _, e := range g.Edges {
		if e.From == n {
			es = append(es, e)
		}
	}
	return es
}

// Dists returns the distributions to install, one per package version, in
// node order.
func (g *Graph) Dists() []*AnnotatedDist {
	var ds []*AnnotatedDist
	seen := make(map[pyresolve.PackageName]bool)
	for _, n := range g.Nodes {
		if n.IsRoot() || seen[n.Dist.Name] {
			continue
		}
		seen[n.Dist.Name] = true
		ds = append(ds, n.Dist)
	}
	return ds
}

// Canon sorts the nodes, keeping the root first, and then the edges, so
// that equal graphs have equal representations.
func (g *Graph) Canon() {
	ids := make([]int, len(g.Nodes))
	for i := range ids {
		ids[i] = i
	}
	slices.SortStableFunc(ids, func(i, j int) int {
		return g.Nodes[i].compare(g.Nodes[j])
	})
	oldToNew := make([]int, len(ids))
	nodes := make([]Node, len(ids))
	for n, o := range ids {
		oldToNew[o] = n
		nodes[n] = g.Nodes[o]
	}
	g.Nodes = nodes
	for i, e := range g.Edges {
		e.From = NodeID(oldToNew[e.From])
		e.To = NodeID(oldToNew[e.To])
		g.Edges[i] = e
	}
	slices.SortFunc(g.Edges, Edge.compare)
	g.Edges = slices.Compact(g.Edges)
}

// String produces a text representation of the graph. The graph is drawn
// as a spanning tree following the first edge reaching each node; other
// edges are drawn as references to the label of their target.
func (g *Graph) String() string {
	var b strings.Builder
	if len(g.Nodes) == 0 {
		return ""
	}

	creator := make(map[NodeID]NodeID, len(g.Nodes))
	dependents := make([]int, len(g.Nodes))
	// The root creates itself. Counting it as its own dependent labels it
	// as soon as something refers back to it.
	creator[0] = 0
	dependents[0] = 1
	for _, e := range g.Edges {
		dependents[e.To]++
		if _, ok := creator[e.To]; !ok && e.To != e.From {
			creator[e.To] = e.From
		}
	}

	type node struct {
		label    int
		nid      NodeID
		n        *Node
		req      string
		tag      string
		children []*node
	}
	nodes := make([]*node, len(g.Nodes))
	label := 0
	for i := range g.Nodes {
		id := NodeID(i)
		nodes[id] = &node{nid: id, n: &g.Nodes[i]}
		if dependents[id] > 1 {
			label++
			nodes[id].label = label
		}
	}
	seen := make([]bool, len(g.Nodes))
	for _, e := range g.Edges {
		nf, nt := nodes[e.From], nodes[e.To]
		if e.From != creator[e.To] || seen[e.To] || e.From == e.To {
			nt = &node{label: nt.label}
		}
		if e.From == creator[e.To] {
			seen[e.To] = true
		}
		nt.req = e.Requirement
		nt.tag = e.tag()
		nf.children = append(nf.children, nt)
	}

	seen = make([]bool, len(g.Nodes))
	var walk func(n *node, prefix1, prefix2 string)
	walk = func(n *node, prefix1, prefix2 string) {
		fmt.Fprint(&b, prefix1)
		if n.tag != "" {
			fmt.Fprintf(&b, "%s | ", n.tag)
		}
		if n.n == nil {
			fmt.Fprintf(&b, "$%d@%s\n", n.label, n.req)
			return
		}
		seen[n.nid] = true
		if n.label > 0 {
			fmt.Fprintf(&b, "%d: ", n.label)
		}
		if d := n.n.Dist; d == nil {
			b.WriteString("root\n")
		} else {
			name := string(d.Name)
			switch {
			case d.Extra != "":
				name += "[" + d.Extra + "]"
			case d.Group != "":
				name += ":" + d.Group
			}
			fmt.Fprintf(&b, "%s@%s %s\n", name, n.req, d.Version)
		}
		for i, c := range n.children {
			p1, p2 := "├─ ", "│  "
			if i == len(n.children)-1 {
				p1, p2 = "└─ ", "   "
			}
			walk(c, prefix2+p1, prefix2+p2)
		}
	}
	walk(nodes[0], "", "")
	for i, ok := range seen {
		if !ok {
			fmt.Fprintf(&b, "ORPHAN: %s\n", g.Nodes[i])
		}
	}
	return b.String()
}
