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

package pyresolve

import (
	"context"
	"fmt"
	"slices"

	"deps.dev/util/pypi"
	"deps.dev/util/pyresolve/markers"
	"deps.dev/util/pyresolve/pep440"
	"github.com/pkg/errors"
)

// Metadata holds the dependency information of one version of a package.
// Once returned by a Client it must not be modified; the resolver shares it
// between every graph node for that version.
type Metadata struct {
	// Requires lists the dependencies installed with the package.
	Requires []Requirement
	// Extras maps an extra name to the additional dependencies it enables.
	Extras map[string][]Requirement
	// Groups maps a dependency group name to its dependencies.
	Groups map[string][]Requirement
}

// ExtraNames returns the sorted names of the extras a version declares.
func (m *Metadata) ExtraNames() []string {
	names := make([]string, 0, len(m.Extras))
	for n := range m.Extras {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Client defines an interface to fetch the data needed for dependency
// resolution. Implementations must be safe for concurrent use; the resolver
// issues requests for several packages at once.
type Client interface {
	// Versions returns all the known versions of a package, in any order.
	// It returns an error wrapping ErrNotFound if the package does not
	// exist.
	Versions(context.Context, PackageName) ([]pep440.Version, error)
	// Metadata returns the dependencies of one version of a package.
	// Failures that only affect this version should be reported as a
	// *FetchError or *MetadataError; the resolver then treats the version
	// as unavailable. Any other error aborts the resolution.
	Metadata(context.Context, PackageName, pep440.Version) (*Metadata, error)
}

// ErrNotFound is returned by Clients to indicate the requested data could not
// be located.
var ErrNotFound = errors.New("not found")

// FetchError reports that data about a package, or one version of it, could
// not be retrieved.
type FetchError struct {
	Package PackageName
	Version pep440.Version // Zero if the whole package failed.
	Err     error
}

func (e *FetchError) Error() string {
	if e.Version.IsZero() {
		return fmt.Sprintf("fetching %s: %v", e.Package, e.Err)
	}
	return fmt.Sprintf("fetching %s %s: %v", e.Package, e.Version, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MetadataError reports that the metadata of a version is malformed or
// contradicts itself.
type MetadataError struct {
	Package PackageName
	Version pep440.Version
	Reason  string
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("invalid metadata for %s %s: %s", e.Package, e.Version, e.Reason)
}

type versionKey struct {
	name PackageName
	// version is the canonical spelling, so that "1.0" and "1.0.0" match.
	version string
}

// LocalClient is an in-memory Client, useful for tests and for resolving
// against a fixed universe of packages.
type LocalClient struct {
	// Env is the environment markers are evaluated against when metadata
	// files are added.
	Env markers.Environment

	versions map[PackageName][]pep440.Version
	metadata map[versionKey]*Metadata
	failures map[versionKey]error
}

// NewLocalClient creates a new, empty, LocalClient.
func NewLocalClient() *LocalClient {
	return &LocalClient{
		Env:      markers.DefaultEnvironment(),
		versions: make(map[PackageName][]pep440.Version),
		metadata: make(map[versionKey]*Metadata),
		failures: make(map[versionKey]error),
	}
}

// AddVersion adds a version and its metadata, replacing any existing entry.
// A nil Metadata is treated as having no dependencies.
func (lc *LocalClient) AddVersion(name PackageName, v pep440.Version, md *Metadata) {
	if md == nil {
		md = &Metadata{}
	}
	lc.addVersion(name, v)
	k := versionKey{name, v.Canon()}
	lc.metadata[k] = md
	delete(lc.failures, k)
}

func (lc *LocalClient) addVersion(name PackageName, v pep440.Version) {
	vs := lc.versions[name]
	if !slices.ContainsFunc(vs, v.Equal) {
		vs = append(vs, v)
		pep440.Sort(vs)
	}
	lc.versions[name] = vs
}

// AddFailure lists a version whose metadata cannot be fetched; Metadata
// returns err for it.
func (lc *LocalClient) AddFailure(name PackageName, v pep440.Version, err error) {
	lc.addVersion(name, v)
	lc.failures[versionKey{name, v.Canon()}] = err
}

// AddMetadataFile adds the version described by a METADATA or PKG-INFO
// file. Requirements guarded by an extra marker are filed under that extra;
// the remaining markers are evaluated against lc.Env.
func (lc *LocalClient) AddMetadataFile(ctx context.Context, data string) error {
	pm, err := pypi.ParseMetadata(ctx, data)
	if err != nil {
		return errors.Wrap(err, "parsing metadata file")
	}
	name := NewPackageName(pm.Name)
	v, err := pep440.Parse(pm.Version)
	if err != nil {
		return errors.Wrapf(err, "metadata for %s", name)
	}
	md := &Metadata{}
	for _, d := range pm.Dependencies {
		r := Requirement{
			Name:      PackageName(d.Name),
			Specifier: d.Constraint,
			Marker:    d.Environment,
		}
		if r.Versions, err = pep440.ParseSpecifiers(d.Constraint); err != nil {
			return errors.Wrapf(err, "metadata for %s %s", name, v)
		}
		if d.Extras != "" {
			// Reparse to get normalized extras.
			full, err := ParseRequirement(d.Name + "[" + d.Extras + "]")
			if err != nil {
				return errors.Wrapf(err, "metadata for %s %s", name, v)
			}
			r.Extras = full.Extras
		}
		if err := md.add(r, lc.Env); err != nil {
			return errors.Wrapf(err, "metadata for %s %s", name, v)
		}
	}
	lc.AddVersion(name, v, md)
	return nil
}

// add files r under the extras its marker mentions, or with the base
// requirements if it mentions none, evaluating the marker against env.
func (md *Metadata) add(r Requirement, env markers.Environment) error {
	if r.Marker == "" {
		md.Requires = append(md.Requires, r)
		return nil
	}
	m, err := markers.Parse(r.Marker)
	if err != nil {
		return err
	}
	extras := m.Extras()
	if len(extras) == 0 {
		r.Inactive = !m.Eval(env)
		md.Requires = append(md.Requires, r)
		return nil
	}
	for _, e := range extras {
		if md.Extras == nil {
			md.Extras = make(map[string][]Requirement)
		}
		er := r
		er.Inactive = !m.Eval(env, e)
		md.Extras[e] = append(md.Extras[e], er)
	}
	return nil
}

// Versions implements Client.
func (lc *LocalClient) Versions(ctx context.Context, name PackageName) ([]pep440.Version, error) {
	vs, ok := lc.versions[name]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "package %s", name)
	}
	return slices.Clone(vs), nil
}

// Metadata implements Client.
func (lc *LocalClient) Metadata(ctx context.Context, name PackageName, v pep440.Version) (*Metadata, error) {
	k := versionKey{name, v.Canon()}
	if err, ok := lc.failures[k]; ok {
		return nil, err
	}
	md, ok := lc.metadata[k]
	if !ok {
		return nil, &FetchError{Package: name, Version: v, Err: ErrNotFound}
	}
	return md, nil
}
