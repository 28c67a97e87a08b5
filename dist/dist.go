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

// Package dist describes the distribution chosen for each resolved package
// version.
//
// ResolvedDist is a closed sum type: its variants are the types in this
// package that implement it, and the unexported marker method keeps other
// packages from adding more. Code that must handle every variant switches on
// the concrete type; see Index for the pattern.
package dist

import (
	"fmt"
	"strings"

	"deps.dev/util/pyresolve"
	"deps.dev/util/pyresolve/pep440"
	"github.com/pkg/errors"
)

// IndexURL identifies a package index.
type IndexURL string

// HashDigest is a content hash of a distribution artifact.
type HashDigest struct {
	Algorithm string // Lower case, such as "sha256".
	Digest    string // Lower case hex.
}

// ParseHashDigest parses "algorithm:digest" or "algorithm=digest".
func ParseHashDigest(s string) (HashDigest, error) {
	alg, digest, ok := strings.Cut(s, ":")
	if !ok {
		alg, digest, ok = strings.Cut(s, "=")
	}
	if !ok || alg == "" || digest == "" {
		return HashDigest{}, errors.Errorf("malformed hash %q", s)
	}
	return HashDigest{Algorithm: strings.ToLower(alg), Digest: strings.ToLower(digest)}, nil
}

func (h HashDigest) String() string { return h.Algorithm + ":" + h.Digest }

// Named is implemented by anything identified by a package name.
type Named interface {
	PackageName() pyresolve.PackageName
}

// ResolvedDist is the distribution chosen for a package version. It is
// either already installed or installable; installable distributions are
// either built (wheels) or source distributions.
type ResolvedDist interface {
	Named
	fmt.Stringer
	isResolvedDist()
}

// BuiltDist is implemented by the variants that are wheels.
type BuiltDist interface {
	ResolvedDist
	isBuilt()
}

// SourceDist is implemented by the variants that must be built before
// installation.
type SourceDist interface {
	ResolvedDist
	isSource()
}

// InstalledDist is a version already present in the target environment.
type InstalledDist struct {
	Name    pyresolve.PackageName
	Version pep440.Version
	Path    string // The dist-info directory, if known.
}

// RegistryBuiltDist is a wheel from a package index.
type RegistryBuiltDist struct {
	Name     pyresolve.PackageName
	Version  pep440.Version
	Filename string
	URL      string
	Tags     []string // Compatibility tags of the wheel, such as "py3-none-any".
	Index    IndexURL
}

// DirectURLBuiltDist is a wheel at a URL.
type DirectURLBuiltDist struct {
	Name     pyresolve.PackageName
	Filename string
	URL      string
}

// PathBuiltDist is a wheel on the local filesystem.
type PathBuiltDist struct {
	Name     pyresolve.PackageName
	Filename string
	Path     string
}

// RegistrySourceDist is an sdist from a package index.
type RegistrySourceDist struct {
	Name     pyresolve.PackageName
	Version  pep440.Version
	Filename string
	URL      string
	Index    IndexURL
}

// DirectURLSourceDist is a source archive at a URL.
type DirectURLSourceDist struct {
	Name         pyresolve.PackageName
	URL          string
	Subdirectory string
}

// GitSourceDist is a source tree in a Git repository.
type GitSourceDist struct {
	Name         pyresolve.PackageName
	Repository   string
	Reference    string
	Subdirectory string
}

// PathSourceDist is a source archive on the local filesystem.
type PathSourceDist struct {
	Name pyresolve.PackageName
	Path string
}

// DirectorySourceDist is a source tree on the local filesystem.
type DirectorySourceDist struct {
	Name     pyresolve.PackageName
	Path     string
	Editable bool
}

func (*InstalledDist) isResolvedDist()       {}
func (*RegistryBuiltDist) isResolvedDist()   {}
func (*DirectURLBuiltDist) isResolvedDist()  {}
func (*PathBuiltDist) isResolvedDist()       {}
func (*RegistrySourceDist) isResolvedDist()  {}
func (*DirectURLSourceDist) isResolvedDist() {}
func (*GitSourceDist) isResolvedDist()       {}
func (*PathSourceDist) isResolvedDist()      {}
func (*DirectorySourceDist) isResolvedDist() {}

func (*RegistryBuiltDist) isBuilt()  {}
func (*DirectURLBuiltDist) isBuilt() {}
func (*PathBuiltDist) isBuilt()      {}

func (*RegistrySourceDist) isSource()  {}
func (*DirectURLSourceDist) isSource() {}
func (*GitSourceDist) isSource()       {}
func (*PathSourceDist) isSource()      {}
func (*DirectorySourceDist) isSource() {}

func (d *InstalledDist) PackageName() pyresolve.PackageName       { return d.Name }
func (d *RegistryBuiltDist) PackageName() pyresolve.PackageName   { return d.Name }
func (d *DirectURLBuiltDist) PackageName() pyresolve.PackageName  { return d.Name }
func (d *PathBuiltDist) PackageName() pyresolve.PackageName       { return d.Name }
func (d *RegistrySourceDist) PackageName() pyresolve.PackageName  { return d.Name }
func (d *DirectURLSourceDist) PackageName() pyresolve.PackageName { return d.Name }
func (d *GitSourceDist) PackageName() pyresolve.PackageName       { return d.Name }
func (d *PathSourceDist) PackageName() pyresolve.PackageName      { return d.Name }
func (d *DirectorySourceDist) PackageName() pyresolve.PackageName { return d.Name }

func (d *InstalledDist) String() string      { return fmt.Sprintf("%s==%s", d.Name, d.Version) }
func (d *RegistryBuiltDist) String() string  { return fmt.Sprintf("%s==%s", d.Name, d.Version) }
func (d *RegistrySourceDist) String() string { return fmt.Sprintf("%s==%s", d.Name, d.Version) }
func (d *DirectURLBuiltDist) String() string { return fmt.Sprintf("%s @ %s", d.Name, d.URL) }
func (d *PathBuiltDist) String() string      { return fmt.Sprintf("%s @ file://%s", d.Name, d.Path) }
func (d *PathSourceDist) String() string     { return fmt.Sprintf("%s @ file://%s", d.Name, d.Path) }

func (d *DirectURLSourceDist) String() string {
	src := pyresolve.DirectURL{URL: d.URL, Subdirectory: d.Subdirectory}
	return fmt.Sprintf("%s @ %s", d.Name, src.String())
}

func (d *GitSourceDist) String() string {
	src := pyresolve.Git{Repository: d.Repository, Reference: d.Reference, Subdirectory: d.Subdirectory}
	return fmt.Sprintf("%s @ %s", d.Name, src.String())
}

func (d *DirectorySourceDist) String() string {
	if d.Editable {
		return fmt.Sprintf("-e %s @ file://%s", d.Name, d.Path)
	}
	return fmt.Sprintf("%s @ file://%s", d.Name, d.Path)
}

// Index returns the index a distribution came from. Only registry
// distributions have one.
func Index(d ResolvedDist) (IndexURL, bool) {
	switch d := d.(type) {
	case *RegistryBuiltDist:
		return d.Index, true
	case *RegistrySourceDist:
		return d.Index, true
	case *InstalledDist, *DirectURLBuiltDist, *PathBuiltDist,
		*DirectURLSourceDist, *GitSourceDist, *PathSourceDist, *DirectorySourceDist:
		return "", false
	}
	panic(fmt.Sprintf("dist: unknown distribution type %T", d))
}

// Kind names the variant of a distribution.
func Kind(d ResolvedDist) string {
	switch d.(type) {
	case *InstalledDist:
		return "installed"
	case *RegistryBuiltDist:
		return "registry-wheel"
	case *DirectURLBuiltDist:
		return "url-wheel"
	case *PathBuiltDist:
		return "path-wheel"
	case *RegistrySourceDist:
		return "registry-sdist"
	case *DirectURLSourceDist:
		return "url-sdist"
	case *GitSourceDist:
		return "git"
	case *PathSourceDist:
		return "path-sdist"
	case *DirectorySourceDist:
		return "directory"
	}
	panic(fmt.Sprintf("dist: unknown distribution type %T", d))
}

// IsInstalled reports whether d is already present in the environment.
func IsInstalled(d ResolvedDist) bool {
	_, ok := d.(*InstalledDist)
	return ok
}
