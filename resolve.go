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
Package pyresolve holds the data model shared by the Python dependency
resolver: package names, requirements and their sources, package metadata,
and the Client interface through which the resolver learns which versions
exist and what they depend on.

The resolver itself is split into packages that build on this one:
pep440 provides versions and version sets, solver finds a consistent version
assignment, selector chooses an installable artifact for each pinned version,
graph assembles the annotated dependency graph, and resolver ties them
together.
*/
package pyresolve

import (
	"fmt"
	"slices"
	"strings"

	"deps.dev/util/pypi"
	"deps.dev/util/pyresolve/markers"
	"deps.dev/util/pyresolve/pep440"
	"github.com/pkg/errors"
)

// PackageName is a normalized PyPI project name. Two names that differ only
// in case or in their use of "-", "_" and "." are the same PackageName.
type PackageName string

// NewPackageName normalizes a project name.
func NewPackageName(name string) PackageName {
	return PackageName(pypi.CanonPackageName(name))
}

// DependencyKind distinguishes dependencies needed at run time from those
// only needed to build a package.
type DependencyKind int8

const (
	Runtime DependencyKind = iota
	Build
)

func (k DependencyKind) String() string {
	if k == Build {
		return "build"
	}
	return "runtime"
}

// Source is where a requirement says a package must come from when it is
// not to be found in an index. It is one of *DirectURL, *Git, *Path or
// *Directory.
type Source interface {
	fmt.Stringer
	isSource()
}

// DirectURL is an archive at a URL, as in "name @ https://host/name.whl".
type DirectURL struct {
	URL          string
	Subdirectory string
}

// Git is a Git repository, optionally at a named reference.
type Git struct {
	Repository   string
	Reference    string
	Subdirectory string
}

// Path is an archive on the local filesystem.
type Path struct {
	Path string
}

// Directory is a source tree on the local filesystem.
type Directory struct {
	Path     string
	Editable bool
}

func (*DirectURL) isSource() {}
func (*Git) isSource()       {}
func (*Path) isSource()      {}
func (*Directory) isSource() {}

func (s *DirectURL) String() string {
	if s.Subdirectory != "" {
		return s.URL + "#subdirectory=" + s.Subdirectory
	}
	return s.URL
}

func (s *Git) String() string {
	u := "git+" + s.Repository
	if s.Reference != "" {
		u += "@" + s.Reference
	}
	if s.Subdirectory != "" {
		u += "#subdirectory=" + s.Subdirectory
	}
	return u
}

func (s *Path) String() string { return "file://" + s.Path }

func (s *Directory) String() string {
	if s.Editable {
		return "-e file://" + s.Path
	}
	return "file://" + s.Path
}

// archiveSuffixes are the filename suffixes of distribution archives. A
// local path without one of them is a source tree.
var archiveSuffixes = []string{".whl", ".tar.gz", ".zip", ".tar.bz2", ".tgz"}

// IsArchive reports whether a filename looks like a distribution archive.
func IsArchive(name string) bool {
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// ParseSource interprets the URL of a PEP 508 direct reference.
func ParseSource(u string) (Source, error) {
	u = strings.TrimSpace(u)
	subdir := ""
	if i := strings.Index(u, "#"); i >= 0 {
		frag := u[i+1:]
		u = u[:i]
		for _, kv := range strings.Split(frag, "&") {
			if v, ok := strings.CutPrefix(kv, "subdirectory="); ok {
				subdir = v
			}
		}
	}
	switch {
	case u == "":
		return nil, errors.New("empty source URL")
	case strings.HasPrefix(u, "git+"):
		repo := strings.TrimPrefix(u, "git+")
		ref := ""
		// The reference follows the last "@" in the path, not one in the
		// user info of the URL.
		if i := strings.LastIndex(repo, "@"); i > strings.Index(repo, "://")+2 && !strings.Contains(repo[i:], "/") {
			repo, ref = repo[:i], repo[i+1:]
		}
		return &Git{Repository: repo, Reference: ref, Subdirectory: subdir}, nil
	case strings.HasPrefix(u, "file://"):
		p := strings.TrimPrefix(u, "file://")
		if IsArchive(p) {
			return &Path{Path: p}, nil
		}
		return &Directory{Path: p}, nil
	case strings.Contains(u, "://"):
		return &DirectURL{URL: u, Subdirectory: subdir}, nil
	}
	return nil, errors.Errorf("unsupported source URL %q", u)
}

// Requirement is a dependency on a package: a set of acceptable versions,
// the extras and dependency groups requested, and optionally where the
// package must come from.
type Requirement struct {
	Name PackageName
	// Versions is the set of acceptable versions.
	Versions pep440.Set
	// Specifier is the textual form of Versions, as written.
	Specifier string
	// Extras and Groups are normalized and sorted.
	Extras []string
	Groups []string
	Source Source
	Kind   DependencyKind
	// Marker is the environment marker guarding the requirement, if any.
	Marker string
	// Inactive is set when Marker does not hold in the target environment.
	// Inactive requirements are ignored by the resolver.
	Inactive bool
}

// ParseRequirement parses a PEP 508 requirement such as
// `requests[socks]>=2.8.1,<3; python_version >= "3.8"` or
// `pkg @ https://example.com/pkg-1.0.tar.gz`. The marker is recorded but not
// evaluated.
func ParseRequirement(s string) (Requirement, error) {
	text, marker := s, ""
	url := ""
	if at := strings.Index(s, "@"); at >= 0 && !strings.ContainsAny(s[:at], "<>=!~;") {
		// A direct reference: the URL runs to a "; " marker separator.
		text, url = s[:at], s[at+1:]
		if i := strings.Index(url, " ;"); i >= 0 {
			url, marker = url[:i], strings.TrimSpace(url[i+2:])
		} else if i := strings.Index(url, "; "); i >= 0 {
			url, marker = url[:i], strings.TrimSpace(url[i+2:])
		}
	}
	d, err := pypi.ParseDependency(text)
	if err != nil {
		return Requirement{}, errors.Wrapf(err, "parsing requirement %q", s)
	}
	if url != "" && d.Constraint != "" {
		return Requirement{}, errors.Errorf("parsing requirement %q: direct reference with a version specifier", s)
	}
	r := Requirement{
		Name:      PackageName(d.Name),
		Specifier: d.Constraint,
		Marker:    d.Environment,
	}
	if marker != "" {
		r.Marker = marker
	}
	r.Versions, err = pep440.ParseSpecifiers(d.Constraint)
	if err != nil {
		return Requirement{}, errors.Wrapf(err, "parsing requirement %q", s)
	}
	if url != "" {
		if r.Source, err = ParseSource(url); err != nil {
			return Requirement{}, errors.Wrapf(err, "parsing requirement %q", s)
		}
	}
	for _, e := range strings.Split(d.Extras, ",") {
		if e = strings.TrimSpace(e); e != "" {
			r.Extras = append(r.Extras, markers.NormalizeExtra(e))
		}
	}
	slices.Sort(r.Extras)
	r.Extras = slices.Compact(r.Extras)
	return r, nil
}

// MustParseRequirement is like ParseRequirement but panics on error.
func MustParseRequirement(s string) Requirement {
	r, err := ParseRequirement(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Evaluate sets Inactive according to whether the requirement's marker holds
// in env with the given extras requested.
func (r *Requirement) Evaluate(env markers.Environment, extras ...string) error {
	ok, err := markers.Eval(r.Marker, env, extras...)
	if err != nil {
		return errors.Wrapf(err, "requirement on %s", r.Name)
	}
	r.Inactive = !ok
	return nil
}

// WithGroups returns a copy of r that also requests the given dependency
// groups of the target package.
func (r Requirement) WithGroups(groups ...string) Requirement {
	gs := slices.Clone(r.Groups)
	for _, g := range groups {
		gs = append(gs, markers.NormalizeExtra(g))
	}
	slices.Sort(gs)
	r.Groups = slices.Compact(gs)
	return r
}

func (r Requirement) String() string {
	var b strings.Builder
	b.WriteString(string(r.Name))
	if len(r.Extras) > 0 {
		fmt.Fprintf(&b, "[%s]", strings.Join(r.Extras, ","))
	}
	if len(r.Groups) > 0 {
		fmt.Fprintf(&b, ":%s", strings.Join(r.Groups, ","))
	}
	switch {
	case r.Source != nil:
		fmt.Fprintf(&b, " @ %s", r.Source)
	case r.Specifier != "":
		b.WriteString(r.Specifier)
	case !r.Versions.IsFull():
		b.WriteString(r.Versions.String())
	}
	if r.Marker != "" {
		fmt.Fprintf(&b, "; %s", r.Marker)
	}
	return b.String()
}

// Manifest is the input to a resolution: the project's own requirements and
// its dependency groups.
type Manifest struct {
	Requirements []Requirement
	// Groups holds the project's dependency groups; only those requested
	// when resolving are installed.
	Groups map[string][]Requirement
}
