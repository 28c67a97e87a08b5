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
Package selector chooses the distribution to install for each resolved
package version.

A requirement naming a URL, a Git repository or a local path always wins.
Otherwise the configured indexes are searched in priority order; within an
index a compatible wheel is preferred over a source distribution. When
hashes are required, artifacts without a hash of the required algorithm
are ignored and, if expected hashes are known for a package, so are
artifacts whose hash does not match one of them.
*/
package selector

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"

	"deps.dev/util/pypi"
	"deps.dev/util/pyresolve"
	"deps.dev/util/pyresolve/dist"
	"deps.dev/util/pyresolve/pep440"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SelectionError reports that no acceptable distribution exists for a
// package version. The version is otherwise valid, so another version of
// the package may still be usable.
type SelectionError struct {
	Package pyresolve.PackageName
	Version pep440.Version
	Reason  string
	Err     error // The error that caused the failure, if any.
}

func (e *SelectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Package, e.Version, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Package, e.Version, e.Reason)
}

func (e *SelectionError) Unwrap() error { return e.Err }

// Request asks for the distribution of one package version.
type Request struct {
	Name    pyresolve.PackageName
	Version pep440.Version
	// Source is the non-registry source requested for the package, if
	// any.
	Source pyresolve.Source
}

// Selection is the distribution chosen for a request and the hashes it
// can be verified against.
type Selection struct {
	Dist   dist.ResolvedDist
	Hashes []dist.HashDigest
}

// Selector chooses distributions. It holds no per-request state and may be
// used concurrently.
type Selector struct {
	indexes       []Index
	table         *IndexTable
	tags          *Tags
	requireHashes bool
	algorithm     string
	expected      map[pyresolve.PackageName][]dist.HashDigest
	installed     map[pyresolve.PackageName]pep440.Version
	concurrency   int
	log           *logrus.Logger
}

// Option configures a Selector.
type Option func(*Selector)

// WithIndexes sets the indexes to search, highest priority first.
func WithIndexes(indexes ...Index) Option {
	return func(s *Selector) { s.indexes = append(s.indexes, indexes...) }
}

// WithTags sets the supported wheel tags. The default is DefaultTags.
func WithTags(t *Tags) Option {
	return func(s *Selector) { s.tags = t }
}

// WithRequireHashes requires every selected distribution to be verifiable
// with a hash of the given algorithm, such as "sha256".
func WithRequireHashes(algorithm string) Option {
	return func(s *Selector) {
		s.requireHashes = true
		s.algorithm = strings.ToLower(algorithm)
	}
}

// WithExpectedHashes restricts the artifacts of a package to those matching
// one of the given hashes.
func WithExpectedHashes(name pyresolve.PackageName, hashes ...dist.HashDigest) Option {
	return func(s *Selector) { s.expected[name] = append(s.expected[name], hashes...) }
}

// WithInstalled lists the versions already present in the target
// environment. They are selected as is.
func WithInstalled(installed map[pyresolve.PackageName]pep440.Version) Option {
	return func(s *Selector) {
		for n, v := range installed {
			s.installed[n] = v
		}
	}
}

// WithConcurrency bounds the number of selections SelectAll runs at once.
func WithConcurrency(n int) Option {
	return func(s *Selector) { s.concurrency = n }
}

// WithLogger sets the logger. A nil logger logs warnings to stderr.
func WithLogger(l *logrus.Logger) Option {
	return func(s *Selector) { s.log = l }
}

// New creates a Selector.
func New(opts ...Option) *Selector {
	s := &Selector{
		algorithm:   "sha256",
		expected:    make(map[pyresolve.PackageName][]dist.HashDigest),
		installed:   make(map[pyresolve.PackageName]pep440.Version),
		concurrency: 16,
	}
	for _, o := range opts {
		o(s)
	}
	if s.tags == nil {
		s.tags = DefaultTags()
	}
	if s.log == nil {
		s.log = logrus.New()
		s.log.SetOutput(os.Stderr)
		s.log.SetLevel(logrus.WarnLevel)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	s.table = NewIndexTable(s.indexes...)
	return s
}

// SelectAll selects a distribution for every request, in parallel. The
// selections are returned in request order. If any request fails, the error
// for the earliest failing request is returned.
func (s *Selector) SelectAll(ctx context.Context, reqs []Request) ([]Selection, error) {
	sels := make([]Selection, len(reqs))
	errs := make([]error, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			sel, err := s.Select(ctx, req)
			var se *SelectionError
			if err != nil && !errors.As(err, &se) {
				return err
			}
			sels[i], errs[i] = sel, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return sels, err
		}
	}
	return sels, nil
}

// Select chooses the distribution for one request. Failures to find an
// acceptable distribution are reported as a *SelectionError; other errors
// come from the indexes.
func (s *Selector) Select(ctx context.Context, req Request) (Selection, error) {
	if err := ctx.Err(); err != nil {
		return Selection{}, err
	}
	if v, ok := s.installed[req.Name]; ok && v.Equal(req.Version) {
		return Selection{Dist: &dist.InstalledDist{Name: req.Name, Version: v}}, nil
	}
	var (
		sel Selection
		err error
	)
	if req.Source != nil {
		sel, err = s.selectSource(ctx, req)
	} else {
		sel, err = s.selectRegistry(ctx, req)
	}
	if err != nil {
		return Selection{}, err
	}
	if s.log.IsLevelEnabled(logrus.DebugLevel) {
		s.log.WithFields(logrus.Fields{
			"package": req.Name,
			"version": req.Version,
			"dist":    sel.Dist,
			"kind":    dist.Kind(sel.Dist),
		}).Debug("selected")
	}
	return sel, nil
}

func (s *Selector) fail(req Request, err error, format string, args ...any) *SelectionError {
	return &SelectionError{Package: req.Name, Version: req.Version, Reason: fmt.Sprintf(format, args...), Err: err}
}

// selectSource builds the distribution for an explicitly requested source.
func (s *Selector) selectSource(ctx context.Context, req Request) (Selection, error) {
	switch src := req.Source.(type) {
	case *pyresolve.DirectURL:
		if idx, ok := s.table.Lookup(src.URL); ok && src.Subdirectory == "" {
			// The URL points into a known index; use its listing.
			sel, err := s.selectFromIndex(ctx, req, idx, func(a Artifact) bool { return a.URL == src.URL })
			if err != nil {
				return Selection{}, err
			}
			if sel.Dist != nil {
				return sel, nil
			}
		}
		filename := path.Base(src.URL)
		if strings.HasSuffix(filename, ".whl") {
			if err := s.checkWheel(req, filename); err != nil {
				return Selection{}, err
			}
			return s.withExpectedHashes(req, &dist.DirectURLBuiltDist{Name: req.Name, Filename: filename, URL: src.URL})
		}
		return s.withExpectedHashes(req, &dist.DirectURLSourceDist{Name: req.Name, URL: src.URL, Subdirectory: src.Subdirectory})
	case *pyresolve.Path:
		filename := path.Base(src.Path)
		if strings.HasSuffix(filename, ".whl") {
			if err := s.checkWheel(req, filename); err != nil {
				return Selection{}, err
			}
			return s.withExpectedHashes(req, &dist.PathBuiltDist{Name: req.Name, Filename: filename, Path: src.Path})
		}
		return s.withExpectedHashes(req, &dist.PathSourceDist{Name: req.Name, Path: src.Path})
	case *pyresolve.Git:
		if s.requireHashes {
			return Selection{}, s.fail(req, nil, "git sources cannot be verified with hashes")
		}
		return Selection{Dist: &dist.GitSourceDist{
			Name:         req.Name,
			Repository:   src.Repository,
			Reference:    src.Reference,
			Subdirectory: src.Subdirectory,
		}}, nil
	case *pyresolve.Directory:
		if s.requireHashes {
			return Selection{}, s.fail(req, nil, "local directories cannot be verified with hashes")
		}
		return Selection{Dist: &dist.DirectorySourceDist{Name: req.Name, Path: src.Path, Editable: src.Editable}}, nil
	}
	return Selection{}, errors.Errorf("unknown source type %T", req.Source)
}

// checkWheel verifies that a wheel filename is for the requested package.
func (s *Selector) checkWheel(req Request, filename string) error {
	wi, err := pypi.ParseWheelName(filename)
	if err != nil {
		return s.fail(req, err, "invalid wheel filename")
	}
	if pyresolve.NewPackageName(wi.Name) != req.Name {
		return s.fail(req, nil, "wheel %s is for package %s", filename, pyresolve.NewPackageName(wi.Name))
	}
	if _, ok := s.tags.Rank(wi); !ok {
		return s.fail(req, nil, "wheel %s is not compatible with the target", filename)
	}
	return nil
}

// withExpectedHashes attaches the expected hashes of a package to a
// distribution that comes with none of its own.
func (s *Selector) withExpectedHashes(req Request, d dist.ResolvedDist) (Selection, error) {
	hashes := s.expected[req.Name]
	if s.requireHashes {
		hashes = slices.DeleteFunc(slices.Clone(hashes), func(h dist.HashDigest) bool { return h.Algorithm != s.algorithm })
		if len(hashes) == 0 {
			return Selection{}, s.fail(req, nil, "no %s hash given for %s", s.algorithm, d)
		}
	}
	return Selection{Dist: d, Hashes: hashes}, nil
}

// selectRegistry searches the indexes in priority order.
func (s *Selector) selectRegistry(ctx context.Context, req Request) (Selection, error) {
	if len(s.indexes) == 0 {
		return Selection{}, s.fail(req, nil, "no distribution found: no indexes configured")
	}
	rejected := false
	for _, idx := range s.indexes {
		sel, err := s.selectFromIndex(ctx, req, idx, nil)
		var se *SelectionError
		switch {
		case errors.As(err, &se):
			rejected = true
		case err != nil:
			return Selection{}, err
		case sel.Dist != nil:
			return sel, nil
		}
	}
	if rejected {
		return Selection{}, s.fail(req, nil, "no distribution found with a matching %s hash", s.algorithm)
	}
	return Selection{}, s.fail(req, nil, "no distribution found")
}

// candidate is an artifact under consideration.
type candidate struct {
	Artifact
	wheel *pypi.WheelInfo
	rank  int
}

// selectFromIndex picks the best acceptable artifact of one index. It
// returns a zero Selection if the index has nothing usable, and a
// *SelectionError if it had artifacts that were all rejected by the hash
// policy.
func (s *Selector) selectFromIndex(ctx context.Context, req Request, idx Index, keep func(Artifact) bool) (Selection, error) {
	arts, err := idx.Artifacts(ctx, req.Name, req.Version)
	if errors.Is(err, pyresolve.ErrNotFound) {
		return Selection{}, nil
	}
	if err != nil {
		return Selection{}, errors.Wrapf(err, "listing %s %s in %s", req.Name, req.Version, idx.URL())
	}
	var wheels, sdists []candidate
	rejected := false
	for _, a := range arts {
		if keep != nil && !keep(a) {
			continue
		}
		c := candidate{Artifact: a}
		if a.IsWheel() {
			wi, err := pypi.ParseWheelName(a.Filename)
			if err != nil || pyresolve.NewPackageName(wi.Name) != req.Name || !versionIs(wi.Version, req.Version) {
				continue
			}
			rank, ok := s.tags.Rank(wi)
			if !ok {
				continue
			}
			c.wheel, c.rank = wi, rank
		} else {
			_, v, err := pypi.SdistVersion(string(req.Name), a.Filename)
			if err != nil || !versionIs(v, req.Version) {
				continue
			}
		}
		if !s.hashAcceptable(req.Name, a) {
			rejected = true
			continue
		}
		if c.wheel != nil {
			wheels = append(wheels, c)
		} else {
			sdists = append(sdists, c)
		}
	}

	slices.SortFunc(wheels, func(a, b candidate) int {
		if c := cmp.Compare(a.rank, b.rank); c != 0 {
			return c
		}
		// A higher build number wins.
		if c := cmp.Compare(b.wheel.BuildTag.Num, a.wheel.BuildTag.Num); c != 0 {
			return c
		}
		return cmp.Compare(a.Filename, b.Filename)
	})
	slices.SortFunc(sdists, func(a, b candidate) int { return cmp.Compare(a.Filename, b.Filename) })

	switch {
	case len(wheels) > 0:
		w := wheels[0]
		return Selection{
			Dist: &dist.RegistryBuiltDist{
				Name:     req.Name,
				Version:  req.Version,
				Filename: w.Filename,
				URL:      w.URL,
				Tags:     tagStrings(w.wheel),
				Index:    idx.URL(),
			},
			Hashes: s.hashes(w.Artifact),
		}, nil
	case len(sdists) > 0:
		sd := sdists[0]
		return Selection{
			Dist: &dist.RegistrySourceDist{
				Name:     req.Name,
				Version:  req.Version,
				Filename: sd.Filename,
				URL:      sd.URL,
				Index:    idx.URL(),
			},
			Hashes: s.hashes(sd.Artifact),
		}, nil
	case rejected:
		return Selection{}, s.fail(req, nil, "all artifacts in %s rejected by hash policy", idx.URL())
	}
	return Selection{}, nil
}

// hashAcceptable applies the hash policy to an artifact.
func (s *Selector) hashAcceptable(name pyresolve.PackageName, a Artifact) bool {
	want := s.expected[name]
	if !s.requireHashes && len(want) == 0 {
		return true
	}
	if s.requireHashes {
		if _, ok := a.hash(s.algorithm); !ok {
			return false
		}
	}
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		if h, ok := a.hash(w.Algorithm); ok && h.Digest == w.Digest {
			return true
		}
	}
	return false
}

// hashes returns the hashes of a selected artifact that verification will
// use.
func (s *Selector) hashes(a Artifact) []dist.HashDigest {
	if !s.requireHashes {
		return slices.Clone(a.Hashes)
	}
	h, _ := a.hash(s.algorithm)
	return []dist.HashDigest{h}
}

func versionIs(text string, v pep440.Version) bool {
	w, err := pep440.Parse(text)
	return err == nil && w.Equal(v)
}

func tagStrings(wi *pypi.WheelInfo) []string {
	tags := make([]string, len(wi.Platforms))
	for i, t := range wi.Platforms {
		tags[i] = t.Python + "-" + t.ABI + "-" + t.Platform
	}
	return tags
}
