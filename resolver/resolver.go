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

/*
Package resolver turns a Python project's requirements into an installable
dependency graph.

It runs the version solver, selects a distribution for every chosen
version and assembles the graph. When no acceptable distribution exists
for a chosen version, that version is excluded and the requirements are
solved again.
*/
package resolver

import (
	"context"
	"os"
	"slices"

	"deps.dev/util/pyresolve"
	"deps.dev/util/pyresolve/graph"
	"deps.dev/util/pyresolve/pep440"
	"deps.dev/util/pyresolve/selector"
	"deps.dev/util/pyresolve/solver"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Result is the outcome of a successful resolution.
type Result struct {
	Resolution *solver.Resolution
	Graph      *graph.Graph
	// Excluded lists the versions that were chosen but had no acceptable
	// distribution, in the order they were ruled out.
	Excluded []solver.Exclusion
}

// Resolver resolves manifests. It holds no state between runs and may be
// used concurrently.
type Resolver struct {
	client       pyresolve.Client
	log          *logrus.Logger
	groups       []string
	solverOpts   []solver.Option
	selectorOpts []selector.Option
	graphOpts    []graph.Option
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger of the resolver and of the components it
// runs.
func WithLogger(l *logrus.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// WithGroups activates root dependency groups.
func WithGroups(groups ...string) Option {
	return func(r *Resolver) { r.groups = append(r.groups, groups...) }
}

// WithInstalled lists the versions already present in the target
// environment. When one of them is chosen it is used as is.
func WithInstalled(installed map[pyresolve.PackageName]pep440.Version) Option {
	return WithSelectorOptions(selector.WithInstalled(installed))
}

// WithSolverOptions configures the version solver.
func WithSolverOptions(opts ...solver.Option) Option {
	return func(r *Resolver) { r.solverOpts = append(r.solverOpts, opts...) }
}

// WithSelectorOptions configures the distribution selector.
func WithSelectorOptions(opts ...selector.Option) Option {
	return func(r *Resolver) { r.selectorOpts = append(r.selectorOpts, opts...) }
}

// WithGraphOptions configures the graph builder.
func WithGraphOptions(opts ...graph.Option) Option {
	return func(r *Resolver) { r.graphOpts = append(r.graphOpts, opts...) }
}

// New returns a Resolver fetching package data from c.
func New(c pyresolve.Client, opts ...Option) *Resolver {
	r := &Resolver{client: c}
	for _, o := range opts {
		o(r)
	}
	if r.log == nil {
		r.log = logrus.New()
		r.log.SetOutput(os.Stderr)
		r.log.SetLevel(logrus.WarnLevel)
	}
	return r
}

// Resolve resolves m. It returns a *solver.NoSolutionError if the
// requirements cannot be met, or a *selector.SelectionError wrapping one if
// they could only be met by versions without an acceptable distribution.
func (r *Resolver) Resolve(ctx context.Context, m pyresolve.Manifest) (*Result, error) {
	sel := selector.New(append(slices.Clone(r.selectorOpts), selector.WithLogger(r.log))...)
	builder := graph.NewBuilder(append(slices.Clone(r.graphOpts), graph.WithLogger(r.log))...)

	var (
		excluded []solver.Exclusion
		last     *selector.SelectionError
	)
	for {
		opts := append(slices.Clone(r.solverOpts), solver.WithLogger(r.log), solver.WithExcluded(excluded...))
		res, err := solver.New(r.client, opts...).Solve(ctx, m, r.groups)
		if err != nil {
			var nse *solver.NoSolutionError
			if last != nil && errors.As(err, &nse) {
				se := *last
				se.Err = err
				return nil, &se
			}
			return nil, err
		}

		reqs := requests(res)
		sels, err := sel.SelectAll(ctx, reqs)
		if err != nil {
			var se *selector.SelectionError
			if !errors.As(err, &se) {
				return nil, err
			}
			if slices.ContainsFunc(excluded, func(ex solver.Exclusion) bool {
				return ex.Name == se.Package && ex.Version.Equal(se.Version)
			}) {
				// The solver chose an excluded version; retrying cannot help.
				return nil, se
			}
			r.log.WithFields(logrus.Fields{
				"package": se.Package,
				"version": se.Version,
				"reason":  se.Reason,
			}).Info("no acceptable distribution, excluding version")
			excluded = append(excluded, solver.Exclusion{Name: se.Package, Version: se.Version, Reason: se.Reason})
			last = se
			continue
		}

		byName := make(map[pyresolve.PackageName]selector.Selection, len(sels))
		for i, s := range sels {
			byName[reqs[i].Name] = s
		}
		g, err := builder.Build(res, byName)
		if err != nil {
			return nil, err
		}
		return &Result{Resolution: res, Graph: g, Excluded: excluded}, nil
	}
}

// requests lists one selection request per real package of res.
func requests(res *solver.Resolution) []selector.Request {
	var reqs []selector.Request
	seen := make(map[pyresolve.PackageName]bool)
	for _, p := range res.Packages {
		if p.Package.IsRoot() || seen[p.Package.Name] {
			continue
		}
		seen[p.Package.Name] = true
		reqs = append(reqs, selector.Request{
			Name:    p.Package.Name,
			Version: p.Version,
			Source:  res.Sources[p.Package.Name],
		})
	}
	return reqs
}
