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

package config

import (
	"os"

	"deps.dev/util/pyresolve"
	"deps.dev/util/pyresolve/dist"
	"deps.dev/util/pyresolve/markers"
	"deps.dev/util/pyresolve/pep440"
	"deps.dev/util/pyresolve/selector"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Universe describes a project and the packages and indexes it can be
// resolved against, without network access:
//
//	[project]
//	requires = ["a>=1"]
//	[project.groups]
//	dev = ["pytest"]
//
//	[[package]]
//	name = "a"
//	version = "1.0"
//	requires = ["b; python_version >= '3.8'"]
//	[package.extras]
//	socks = ["pysocks"]
//	[[package.artifact]]
//	index = "https://pypi.org/simple"
//	filename = "a-1.0-py3-none-any.whl"
//	hashes = ["sha256:..."]
type Universe struct {
	Project  Project   `toml:"project"`
	Packages []Package `toml:"package"`

	path  string `toml:"-"`
	lines []int  `toml:"-"`
}

// Project holds the requirements of the project being resolved.
type Project struct {
	Requires []string            `toml:"requires"`
	Groups   map[string][]string `toml:"groups"`
}

// Package is one version of a package.
type Package struct {
	Name          string              `toml:"name"`
	Version       string              `toml:"version"`
	Requires      []string            `toml:"requires"`
	BuildRequires []string            `toml:"build_requires"`
	Extras        map[string][]string `toml:"extras"`
	Groups        map[string][]string `toml:"groups"`
	// Unavailable, if set, is why the metadata of this version cannot be
	// used.
	Unavailable string     `toml:"unavailable"`
	Artifacts   []Artifact `toml:"artifact"`
}

// Artifact is a file of a package version in an index.
type Artifact struct {
	Index    string   `toml:"index"`
	Filename string   `toml:"filename"`
	URL      string   `toml:"url"`
	Hashes   []string `toml:"hashes"`
}

// ReadUniverse reads and parses a universe file.
func ReadUniverse(path string) (*Universe, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading universe")
	}
	return ParseUniverse(path, b)
}

// ParseUniverse parses the contents of a universe file; path is only used
// in errors.
func ParseUniverse(path string, b []byte) (*Universe, error) {
	tree, err := toml.LoadBytes(b)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	u := &Universe{}
	if err := tree.Unmarshal(u); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	u.path = path
	if pkgs, ok := tree.Get("package").([]*toml.Tree); ok {
		for _, p := range pkgs {
			u.lines = append(u.lines, p.Position().Line)
		}
	}
	return u, nil
}

func (u *Universe) errorf(i int, format string, args ...any) error {
	e := &Error{Path: u.path, Err: errors.Errorf(format, args...)}
	if i >= 0 && i < len(u.lines) {
		e.Line = u.lines[i]
	}
	return e
}

func (u *Universe) wrap(i int, err error) error {
	e := &Error{Path: u.path, Err: err}
	if i >= 0 && i < len(u.lines) {
		e.Line = u.lines[i]
	}
	return e
}

// Manifest returns the project's requirements, with markers evaluated
// against env.
func (u *Universe) Manifest(env markers.Environment) (pyresolve.Manifest, error) {
	var m pyresolve.Manifest
	var err error
	if m.Requirements, err = evaluate(env, u.Project.Requires); err != nil {
		return m, u.wrap(-1, err)
	}
	for g, rs := range u.Project.Groups {
		reqs, err := evaluate(env, rs)
		if err != nil {
			return m, u.wrap(-1, errors.Wrapf(err, "group %s", g))
		}
		if m.Groups == nil {
			m.Groups = make(map[string][]pyresolve.Requirement)
		}
		m.Groups[g] = reqs
	}
	return m, nil
}

// Load builds a client serving the universe's packages, with markers
// evaluated against the client's default environment, and one index per
// distinct artifact index, in order of first appearance.
func (u *Universe) Load() (*pyresolve.LocalClient, []*selector.LocalIndex, error) {
	lc := pyresolve.NewLocalClient()
	var indexes []*selector.LocalIndex
	byURL := make(map[dist.IndexURL]*selector.LocalIndex)
	for i, p := range u.Packages {
		if p.Name == "" || p.Version == "" {
			return nil, nil, u.errorf(i, "package needs a name and a version")
		}
		name := pyresolve.NewPackageName(p.Name)
		v, err := pep440.Parse(p.Version)
		if err != nil {
			return nil, nil, u.wrap(i, err)
		}
		if p.Unavailable != "" {
			lc.AddFailure(name, v, &pyresolve.MetadataError{Package: name, Version: v, Reason: p.Unavailable})
		} else {
			md, err := p.metadata(lc.Env)
			if err != nil {
				return nil, nil, u.wrap(i, errors.Wrapf(err, "%s %s", name, v))
			}
			lc.AddVersion(name, v, md)
		}
		for _, a := range p.Artifacts {
			if a.Index == "" || a.Filename == "" {
				return nil, nil, u.errorf(i, "artifact needs an index and a filename")
			}
			art := selector.Artifact{Filename: a.Filename, URL: a.URL}
			for _, h := range a.Hashes {
				d, err := dist.ParseHashDigest(h)
				if err != nil {
					return nil, nil, u.wrap(i, err)
				}
				art.Hashes = append(art.Hashes, d)
			}
			url := dist.IndexURL(a.Index)
			idx, ok := byURL[url]
			if !ok {
				idx = selector.NewLocalIndex(url)
				byURL[url] = idx
				indexes = append(indexes, idx)
			}
			idx.Add(name, v, art)
		}
	}
	return lc, indexes, nil
}

func (p *Package) metadata(env markers.Environment) (*pyresolve.Metadata, error) {
	md := &pyresolve.Metadata{}
	var err error
	if md.Requires, err = evaluate(env, p.Requires); err != nil {
		return nil, err
	}
	build, err := evaluate(env, p.BuildRequires)
	if err != nil {
		return nil, err
	}
	for _, r := range build {
		r.Kind = pyresolve.Build
		md.Requires = append(md.Requires, r)
	}
	for e, rs := range p.Extras {
		reqs, err := evaluate(env, rs, e)
		if err != nil {
			return nil, errors.Wrapf(err, "extra %s", e)
		}
		if md.Extras == nil {
			md.Extras = make(map[string][]pyresolve.Requirement)
		}
		md.Extras[e] = reqs
	}
	for g, rs := range p.Groups {
		reqs, err := evaluate(env, rs)
		if err != nil {
			return nil, errors.Wrapf(err, "group %s", g)
		}
		if md.Groups == nil {
			md.Groups = make(map[string][]pyresolve.Requirement)
		}
		md.Groups[g] = reqs
	}
	return md, nil
}

// evaluate parses requirements and evaluates their markers with the given
// extras requested.
func evaluate(env markers.Environment, ss []string, extras ...string) ([]pyresolve.Requirement, error) {
	reqs, err := parseRequirements(ss)
	if err != nil {
		return nil, err
	}
	for i := range reqs {
		if err := reqs[i].Evaluate(env, extras...); err != nil {
			return nil, err
		}
	}
	return reqs, nil
}

func parseRequirements(ss []string) ([]pyresolve.Requirement, error) {
	var reqs []pyresolve.Requirement
	for _, s := range ss {
		r, err := pyresolve.ParseRequirement(s)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, nil
}

// Available indexes the given indexes by URL, for File.Options.
func Available(indexes ...selector.Index) map[dist.IndexURL]selector.Index {
	m := make(map[dist.IndexURL]selector.Index, len(indexes))
	for _, idx := range indexes {
		m[idx.URL()] = idx
	}
	return m
}
