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
Package solver finds a version for every package needed by a Python
project, using the PubGrub conflict-driven algorithm.

The solver works on terms, statements about the versions of a package, and
incompatibilities, sets of terms that cannot all hold. Starting from the
incompatibility "the root is not selected", it alternates unit propagation
with decisions, choosing the highest acceptable version of the most
constrained package. When propagation finds a conflict, it learns a new
incompatibility by resolution and jumps back to the decision level that
incompatibility implicates. If the learned incompatibility rules out the
root, resolution fails with a NoSolutionError explaining why.

Extras and dependency groups are modelled as virtual packages: choosing
version v of "a[x]" forces "a" to v and brings in the dependencies of
extra x. The project's own dependency groups are virtual packages of the
root.
*/
package solver

import (
	"context"
	"os"
	"slices"

	"deps.dev/util/pyresolve"
	"deps.dev/util/pyresolve/internal/lru"
	"deps.dev/util/pyresolve/pep440"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrTooManyRounds is returned when the solver gives up after the
// configured number of rounds.
var ErrTooManyRounds = errors.New("resolution too deep")

// Pip stops after 200k rounds, so we do the same.
// https://github.com/pypa/pip/blob/main/src/pip/_internal/resolution/resolvelib/resolver.py#L95
const defaultMaxRounds = 200000

const defaultConcurrency = 16

// Exclusion rules out one version of a package before solving starts.
type Exclusion struct {
	Name    pyresolve.PackageName
	Version pep440.Version
	Reason  string
}

// Solver resolves manifests against a Client. A Solver holds no state
// between runs and may be used concurrently.
type Solver struct {
	client      pyresolve.Client
	log         *logrus.Logger
	prerelease  pep440.PrereleaseMode
	maxRounds   int
	concurrency int
	excluded    []Exclusion
}

// Option configures a Solver.
type Option func(*Solver)

// WithLogger sets the logger. A nil logger logs warnings to stderr.
func WithLogger(l *logrus.Logger) Option {
	return func(s *Solver) { s.log = l }
}

// WithPrerelease sets the policy deciding when prereleases may be chosen.
func WithPrerelease(m pep440.PrereleaseMode) Option {
	return func(s *Solver) { s.prerelease = m }
}

// WithMaxRounds bounds the number of solver rounds.
func WithMaxRounds(n int) Option {
	return func(s *Solver) { s.maxRounds = n }
}

// WithConcurrency bounds the number of provider requests in flight.
func WithConcurrency(n int) Option {
	return func(s *Solver) { s.concurrency = n }
}

// WithExcluded rules out the given versions.
func WithExcluded(ex ...Exclusion) Option {
	return func(s *Solver) { s.excluded = append(s.excluded, ex...) }
}

// New returns a Solver fetching package data from c.
func New(c pyresolve.Client, opts ...Option) *Solver {
	s := &Solver{
		client:      c,
		maxRounds:   defaultMaxRounds,
		concurrency: defaultConcurrency,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = logrus.New()
		s.log.SetOutput(os.Stderr)
		s.log.SetLevel(logrus.WarnLevel)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	return s
}

// Solve finds a version for every package needed by m with the given root
// dependency groups active. It returns a *NoSolutionError if there is
// none.
func (s *Solver) Solve(ctx context.Context, m pyresolve.Manifest, groups []string) (*Resolution, error) {
	for _, g := range groups {
		if _, ok := m.Groups[g]; !ok {
			return nil, errors.Errorf("unknown dependency group %q", g)
		}
	}
	st := &state{
		Solver:     s,
		ctx:        ctx,
		manifest:   m,
		groups:     slices.Compact(slices.Sorted(slices.Values(groups))),
		fetch:      newPrefetcher(ctx, s.client, s.concurrency, s.log),
		ps:         newPartialSolution(),
		incompats:  make(map[Package][]*Incompatibility),
		requested:  make(map[Pin][]requested),
		sorted:     make(map[pyresolve.PackageName][]pep440.Version),
		candidates: lru.New[candidateKey, []pep440.Version](1024),
		deps:       make(map[Pin][]*Incompatibility),
		metadata:   make(map[pyresolve.PackageName]map[string]*pyresolve.Metadata),
	}
	res, err := st.solve()
	if cerr := st.fetch.close(); err == nil && cerr != nil {
		return nil, cerr
	}
	return res, err
}

// state is the state of one run.
type state struct {
	*Solver
	ctx      context.Context
	manifest pyresolve.Manifest
	groups   []string
	fetch    *prefetcher
	ps       *partialSolution

	// incompats holds, for each package, the incompatibilities that
	// mention it, oldest first.
	incompats map[Package][]*Incompatibility
	// requested holds, for each version whose dependencies were read, the
	// sources and prerelease opt-ins of its requirements. Only the entries
	// of decided versions apply.
	requested map[Pin][]requested
	// sorted holds each package's versions, highest first.
	sorted     map[pyresolve.PackageName][]pep440.Version
	candidates *lru.Cache[candidateKey, []pep440.Version]
	// deps holds the dependency incompatibilities of each chosen version.
	deps     map[Pin][]*Incompatibility
	metadata map[pyresolve.PackageName]map[string]*pyresolve.Metadata
}

// requested is what one requirement asks of the package it names beyond a
// version set.
type requested struct {
	name       pyresolve.PackageName
	source     pyresolve.Source
	prerelease bool
}

type candidateKey struct {
	name     pyresolve.PackageName
	set      string
	explicit bool
}

func (st *state) debug() bool { return st.log.IsLevelEnabled(logrus.DebugLevel) }

func (st *state) solve() (*Resolution, error) {
	st.addIncompatibility(newIncompatibility([]Term{negative(Root, pep440.Full())}, CauseRoot))
	for _, ex := range st.excluded {
		inc := newIncompatibility([]Term{positive(Package{Name: ex.Name}, pep440.Exact(ex.Version))}, CauseUnavailable)
		inc.Reason = ex.Reason
		st.addIncompatibility(inc)
	}
	next := Root
	for i := 0; ; i++ {
		if i >= st.maxRounds {
			return nil, ErrTooManyRounds
		}
		// Check the context every 100 rounds.
		if i%100 == 0 {
			if err := st.ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := st.fetch.err(); err != nil {
			return nil, err
		}
		if err := st.propagate(next); err != nil {
			return nil, err
		}
		p, done, err := st.choose()
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		next = p
	}
	// A failed prefetch ends the run even if its response was never used.
	if err := st.fetch.wait(); err != nil {
		return nil, err
	}
	if err := st.ctx.Err(); err != nil {
		return nil, err
	}
	return st.resolution(), nil
}

// addIncompatibility records inc and starts fetching the versions of the
// packages it introduces.
func (st *state) addIncompatibility(inc *Incompatibility) {
	for _, t := range inc.Terms {
		st.incompats[t.Package] = append(st.incompats[t.Package], inc)
	}
	if inc.Kind == CauseDependency {
		for _, t := range inc.Terms {
			if !t.Positive && !t.Package.IsRoot() {
				st.fetch.prefetchVersions(t.Package.Name)
			}
		}
	}
	if inc.Kind == CauseDerived && st.debug() {
		st.log.WithField("incompatibility", inc).Debug("learned")
	}
}

// propagate performs unit propagation, starting from the incompatibilities
// that mention start, until nothing more can be derived.
func (st *state) propagate(start Package) error {
	changed := []Package{start}
	queued := map[Package]bool{start: true}
	for len(changed) > 0 {
		pkg := changed[len(changed)-1]
		changed = changed[:len(changed)-1]
		delete(queued, pkg)
		incs := st.incompats[pkg]
		// Newer incompatibilities are usually more specific, so try them
		// first.
		for i := len(incs) - 1; i >= 0; i-- {
			inc := incs[i]
			p, derived, conflict := st.propagateIncompatibility(inc)
			if conflict {
				root, err := st.resolveConflict(inc)
				if err != nil {
					return err
				}
				p, _, _ = st.propagateIncompatibility(root)
				// Backjumping invalidated everything queued.
				clear(queued)
				changed = append(changed[:0], p)
				queued[p] = true
				break
			}
			if derived && !queued[p] {
				changed = append(changed, p)
				queued[p] = true
			}
		}
	}
	return nil
}

// propagateIncompatibility derives the negation of inc's only unsatisfied
// term, if all the others are satisfied. It reports a conflict when every
// term is satisfied.
func (st *state) propagateIncompatibility(inc *Incompatibility) (p Package, derived, conflict bool) {
	var unsatisfied *Term
	for i, t := range inc.Terms {
		switch st.ps.relation(t) {
		case contradicted:
			return Package{}, false, false
		case inconclusive:
			if unsatisfied != nil {
				return Package{}, false, false
			}
			unsatisfied = &inc.Terms[i]
		}
	}
	if unsatisfied == nil {
		return Package{}, false, true
	}
	t := unsatisfied.Negate()
	st.ps.derive(t, inc)
	if st.debug() {
		st.log.WithFields(logrus.Fields{
			"term":  t,
			"cause": inc,
			"level": st.ps.level(),
		}).Debug("derived")
	}
	return t.Package, true, false
}

// resolveConflict learns an incompatibility from inc, which the partial
// solution satisfies, and backjumps to the level where the learned
// incompatibility becomes almost satisfied. It returns a *NoSolutionError
// when the learned incompatibility rules out the root.
func (st *state) resolveConflict(inc *Incompatibility) (*Incompatibility, error) {
	if st.debug() {
		st.log.WithField("incompatibility", inc).Debug("conflict")
	}
	learned := false
	for !inc.isFailure() {
		var (
			recentTerm     Term
			recent         assignment
			haveRecent     bool
			difference     Term
			haveDifference bool
			previousLevel  = 1
		)
		for _, t := range inc.Terms {
			sat := st.ps.satisfier(t)
			if !haveRecent || recent.index < sat.index {
				if haveRecent {
					previousLevel = max(previousLevel, recent.level)
				}
				recentTerm, recent, haveRecent = t, sat, true
				haveDifference = false
				// If the satisfier does not satisfy the term on its own,
				// an earlier assignment satisfies the rest.
				if d := sat.Term.difference(t); !d.Set.IsEmpty() {
					difference, haveDifference = d, true
					previousLevel = max(previousLevel, st.ps.satisfier(d.Negate()).level)
				}
			} else {
				previousLevel = max(previousLevel, sat.level)
			}
		}

		if previousLevel < recent.level || recent.isDecision() {
			if st.debug() {
				st.log.WithFields(logrus.Fields{
					"from": st.ps.level(),
					"to":   previousLevel,
				}).Debug("backjumping")
			}
			st.ps.backtrack(previousLevel)
			if learned {
				st.addIncompatibility(inc)
			}
			return inc, nil
		}

		var terms []Term
		for _, t := range inc.Terms {
			if t.Package != recentTerm.Package {
				terms = append(terms, t)
			}
		}
		for _, t := range recent.cause.Terms {
			if t.Package != recent.Package {
				terms = append(terms, t)
			}
		}
		if haveDifference {
			terms = append(terms, difference.Negate())
		}
		inc = derived(terms, inc, recent.cause)
		learned = true
	}
	return nil, newNoSolutionError(inc)
}

// choose decides a version for the most constrained undecided package. It
// returns the package whose incompatibilities should be propagated next,
// or done when every package is decided.
func (st *state) choose() (next Package, done bool, err error) {
	undecided := st.ps.undecided()
	if len(undecided) == 0 {
		return Package{}, true, nil
	}
	for _, p := range undecided {
		if !p.IsRoot() {
			st.fetch.prefetchVersions(p.Name)
		}
	}
	type choice struct {
		pkg   Package
		cands []pep440.Version
	}
	var (
		best   choice
		picked bool
	)
	all := make([]choice, 0, len(undecided))
	explicit := st.explicit()
	for _, p := range undecided {
		cands, unavailable, err := st.candidatesFor(p, explicit[p.Name])
		if err != nil {
			return Package{}, false, err
		}
		if len(cands) == 0 {
			acc, _ := st.ps.term(p)
			inc := newIncompatibility([]Term{positive(p, acc.Set)}, CauseNoVersions)
			if unavailable != nil {
				inc.Kind = CauseUnavailable
				inc.Reason = unavailable.Error()
			}
			st.addIncompatibility(inc)
			return p, false, nil
		}
		c := choice{pkg: p, cands: cands}
		all = append(all, c)
		if !picked || len(c.cands) < len(best.cands) ||
			len(c.cands) == len(best.cands) && c.pkg.Compare(best.pkg) < 0 {
			best, picked = c, true
		}
	}
	// Warm the cache for the packages likely to be decided next.
	for _, c := range all {
		if c.pkg != best.pkg && !c.pkg.IsRoot() {
			st.fetch.prefetchMetadata(c.pkg.Name, c.cands[0])
		}
	}

	p, v := best.pkg, best.cands[0]
	incs, err := st.dependencies(p, v)
	if err != nil {
		if !recoverable(err) {
			return Package{}, false, err
		}
		inc := newIncompatibility([]Term{positive(p, pep440.Exact(v))}, CauseUnavailable)
		inc.Reason = err.Error()
		if st.debug() {
			st.log.WithFields(logrus.Fields{"package": p, "version": v, "reason": inc.Reason}).Debug("version unavailable")
		}
		st.addIncompatibility(inc)
		return p, false, nil
	}
	conflict := false
	for _, inc := range incs {
		if !conflict && st.satisfiedExcept(inc, p) {
			conflict = true
		}
	}
	if !conflict {
		st.ps.decide(p, v)
		if st.debug() {
			st.log.WithFields(logrus.Fields{
				"package": p,
				"version": v,
				"level":   st.ps.level(),
			}).Debug("decided")
		}
	}
	return p, false, nil
}

// satisfiedExcept reports whether every term of inc not about p is
// satisfied, so that selecting p would complete a conflict.
func (st *state) satisfiedExcept(inc *Incompatibility, p Package) bool {
	for _, t := range inc.Terms {
		if t.Package != p && !st.ps.satisfies(t) {
			return false
		}
	}
	return true
}

// explicit returns the packages that a requirement of some decided version
// names a prerelease of.
func (st *state) explicit() map[pyresolve.PackageName]bool {
	out := make(map[pyresolve.PackageName]bool)
	for _, pin := range st.ps.decisions() {
		for _, r := range st.requested[pin] {
			if r.prerelease {
				out[r.name] = true
			}
		}
	}
	return out
}

// candidatesFor returns the versions p may be decided to, best first. When
// the versions of p could not be fetched, it returns the recoverable error
// as unavailable.
func (st *state) candidatesFor(p Package, explicit bool) (cands []pep440.Version, unavailable, err error) {
	acc, _ := st.ps.term(p)
	if p.IsRoot() {
		if acc.Set.Contains(rootVersion) {
			return []pep440.Version{rootVersion}, nil, nil
		}
		return nil, nil, nil
	}
	set := acc.Set
	if p.IsVirtual() {
		// The base package must be chosen at the same version.
		if base, ok := st.ps.term(p.Base()); ok && base.Positive {
			set = set.Intersect(base.Set)
		}
	}
	key := candidateKey{name: p.Name, set: set.String(), explicit: explicit}
	if cands, ok := st.candidates.Get(key); ok {
		return cands, nil, nil
	}
	vs, ok := st.sorted[p.Name]
	if !ok {
		fetched, err := st.fetch.versions(p.Name)
		switch {
		case errors.Is(err, pyresolve.ErrNotFound):
		case err != nil && recoverable(err):
			return nil, err, nil
		case err != nil:
			return nil, nil, err
		}
		vs = slices.Clone(fetched)
		pep440.Sort(vs)
		slices.Reverse(vs)
		vs = slices.CompactFunc(vs, pep440.Version.Equal)
		st.sorted[p.Name] = vs
	}
	cands = st.prerelease.Filter(vs, set, key.explicit)
	st.candidates.Add(key, cands)
	return cands, nil, nil
}

// dependencies returns the dependency incompatibilities of p at v.
func (st *state) dependencies(p Package, v pep440.Version) ([]*Incompatibility, error) {
	pin := Pin{Package: p, Version: v}
	if incs, ok := st.deps[pin]; ok {
		return incs, nil
	}
	var reqs []pyresolve.Requirement
	var extra []Package // Additional targets at the same version.
	switch {
	case p == Root:
		reqs = st.manifest.Requirements
		for _, g := range st.groups {
			extra = append(extra, Package{Group: g})
		}
	case p.IsRoot():
		reqs = st.manifest.Groups[p.Group]
	default:
		md, err := st.fetch.metadata(p.Name, v)
		if err != nil {
			return nil, err
		}
		if md == nil {
			md = &pyresolve.Metadata{}
		}
		st.recordMetadata(p.Name, v, md)
		switch {
		case p.Extra != "":
			var ok bool
			if reqs, ok = md.Extras[p.Extra]; !ok {
				st.log.WithFields(logrus.Fields{"package": p.Name, "version": v, "extra": p.Extra}).Warn("version does not provide extra")
			}
			extra = append(extra, p.Base())
		case p.Group != "":
			var ok bool
			if reqs, ok = md.Groups[p.Group]; !ok {
				st.log.WithFields(logrus.Fields{"package": p.Name, "version": v, "group": p.Group}).Warn("version does not provide dependency group")
			}
			extra = append(extra, p.Base())
		default:
			reqs = md.Requires
		}
	}

	self := positive(p, pep440.Exact(v))
	sets := make(map[Package]pep440.Set)
	var order []Package
	var asked []requested
	add := func(t Package, s pep440.Set) {
		if t == p {
			return
		}
		if cur, ok := sets[t]; ok {
			sets[t] = cur.Intersect(s)
			return
		}
		sets[t] = s
		order = append(order, t)
	}
	for _, t := range extra {
		add(t, pep440.Exact(v))
	}
	for _, r := range reqs {
		if r.Inactive {
			continue
		}
		set := r.Versions
		if !p.IsRoot() && r.Name == p.Name {
			if len(r.Extras) == 0 && len(r.Groups) == 0 && !p.IsVirtual() {
				return nil, &pyresolve.MetadataError{Package: p.Name, Version: v, Reason: "depends on itself"}
			}
			set = set.Intersect(pep440.Exact(v))
		}
		if pre := pep440.ExplicitPrerelease(r.Specifier); r.Source != nil || pre {
			asked = append(asked, requested{name: r.Name, source: r.Source, prerelease: pre})
		}
		for _, t := range targets(r) {
			add(t, set)
		}
	}
	incs := make([]*Incompatibility, 0, len(order))
	for _, t := range order {
		inc := newIncompatibility([]Term{self, negative(t, sets[t])}, CauseDependency)
		st.addIncompatibility(inc)
		incs = append(incs, inc)
	}
	st.deps[pin] = incs
	st.requested[pin] = asked
	return incs, nil
}

func (st *state) recordMetadata(name pyresolve.PackageName, v pep440.Version, md *pyresolve.Metadata) {
	byVersion, ok := st.metadata[name]
	if !ok {
		byVersion = make(map[string]*pyresolve.Metadata)
		st.metadata[name] = byVersion
	}
	byVersion[v.Canon()] = md
}

// resolution collects the decisions of a finished run. A package's source
// is the first one requested by a decided version, in decision order.
func (st *state) resolution() *Resolution {
	r := &Resolution{
		Manifest: st.manifest,
		Groups:   st.groups,
		Sources:  make(map[pyresolve.PackageName]pyresolve.Source),
		versions: make(map[pyresolve.PackageName]pep440.Version),
		metadata: make(map[pyresolve.PackageName]*pyresolve.Metadata),
	}
	decided := st.ps.decisions()
	for _, pin := range decided {
		for _, req := range st.requested[pin] {
			if _, ok := r.Sources[req.name]; !ok && req.source != nil {
				r.Sources[req.name] = req.source
			}
		}
	}
	for _, pin := range decided {
		if pin.Package.IsRoot() {
			continue
		}
		r.Packages = append(r.Packages, pin)
		if pin.Package.IsVirtual() {
			continue
		}
		name := pin.Package.Name
		r.versions[name] = pin.Version
		r.metadata[name] = st.metadata[name][pin.Version.Canon()]
	}
	slices.SortFunc(r.Packages, func(a, b Pin) int { return a.Package.Compare(b.Package) })
	return r
}
