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

// Package config reads the TOML files that configure a resolution: the
// resolver settings file and the universe files describing packages and
// indexes for offline runs.
package config

import (
	"fmt"
	"os"
	"slices"

	"deps.dev/util/pyresolve/dist"
	"deps.dev/util/pyresolve/graph"
	"deps.dev/util/pyresolve/pep440"
	"deps.dev/util/pyresolve/resolver"
	"deps.dev/util/pyresolve/selector"
	"deps.dev/util/pyresolve/solver"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FileName is the conventional name of the settings file.
const FileName = "pyresolve.toml"

// Error reports a problem in a configuration file. Line is zero when the
// position is unknown.
type Error struct {
	Path string
	Line int
	Err  error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IndexConfig is a package index, listed in priority order.
type IndexConfig struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`

	line int `toml:"-"`
}

// File holds the settings of a resolution.
type File struct {
	Prerelease         string        `toml:"prerelease" default:"explicit"`
	RequireHashes      bool          `toml:"require_hashes"`
	HashAlgorithm      string        `toml:"hash_algorithm" default:"sha256"`
	AllowRuntimeCycles bool          `toml:"allow_runtime_cycles" default:"true"`
	Concurrency        int           `toml:"concurrency"`
	MaxRounds          int           `toml:"max_rounds"`
	LogLevel           string        `toml:"log_level" default:"warning"`
	Groups             []string      `toml:"groups"`
	SupportedTags      []string      `toml:"supported_tags"`
	Indexes            []IndexConfig `toml:"index"`

	path string `toml:"-"`
}

var fileKeys = []string{
	"prerelease", "require_hashes", "hash_algorithm", "allow_runtime_cycles",
	"concurrency", "max_rounds", "log_level", "groups", "supported_tags", "index",
}

// ReadFile reads and parses a settings file.
func ReadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	return Parse(path, b)
}

// Parse parses the contents of a settings file; path is only used in
// errors.
func Parse(path string, b []byte) (*File, error) {
	tree, err := toml.LoadBytes(b)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	for _, k := range tree.Keys() {
		if !slices.Contains(fileKeys, k) {
			return nil, &Error{Path: path, Line: tree.GetPosition(k).Line, Err: errors.Errorf("unknown key %q", k)}
		}
	}
	f := &File{path: path}
	if err := tree.Unmarshal(f); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	if idx, ok := tree.Get("index").([]*toml.Tree); ok {
		for i := range f.Indexes {
			if i < len(idx) {
				f.Indexes[i].line = idx[i].Position().Line
			}
		}
	}
	for _, ic := range f.Indexes {
		if ic.URL == "" {
			return nil, &Error{Path: path, Line: ic.line, Err: errors.Errorf("index %q has no url", ic.Name)}
		}
	}
	return f, nil
}

// Logger returns a logger at the configured level, writing to stderr.
func (f *File) Logger() (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(f.LogLevel)
	if err != nil {
		return nil, &Error{Path: f.path, Err: err}
	}
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(lvl)
	return l, nil
}

// SolverOptions converts the settings that concern the version solver.
func (f *File) SolverOptions() ([]solver.Option, error) {
	mode, err := pep440.ParsePrereleaseMode(f.Prerelease)
	if err != nil {
		return nil, &Error{Path: f.path, Err: err}
	}
	opts := []solver.Option{solver.WithPrerelease(mode)}
	if f.Concurrency > 0 {
		opts = append(opts, solver.WithConcurrency(f.Concurrency))
	}
	if f.MaxRounds > 0 {
		opts = append(opts, solver.WithMaxRounds(f.MaxRounds))
	}
	return opts, nil
}

// Options converts the settings into resolver options. The configured
// indexes are looked up by URL in available.
func (f *File) Options(available map[dist.IndexURL]selector.Index) ([]resolver.Option, error) {
	solverOpts, err := f.SolverOptions()
	if err != nil {
		return nil, err
	}
	var selectorOpts []selector.Option
	if f.Concurrency > 0 {
		selectorOpts = append(selectorOpts, selector.WithConcurrency(f.Concurrency))
	}
	if f.RequireHashes {
		selectorOpts = append(selectorOpts, selector.WithRequireHashes(f.HashAlgorithm))
	}
	if len(f.SupportedTags) > 0 {
		tags, err := selector.ParseTags(f.SupportedTags...)
		if err != nil {
			return nil, &Error{Path: f.path, Err: err}
		}
		selectorOpts = append(selectorOpts, selector.WithTags(tags))
	}
	for _, ic := range f.Indexes {
		idx, ok := available[dist.IndexURL(ic.URL)]
		if !ok {
			return nil, &Error{Path: f.path, Line: ic.line, Err: errors.Errorf("index %q is not available", ic.URL)}
		}
		selectorOpts = append(selectorOpts, selector.WithIndexes(idx))
	}

	opts := []resolver.Option{
		resolver.WithSolverOptions(solverOpts...),
		resolver.WithSelectorOptions(selectorOpts...),
		resolver.WithGraphOptions(graph.WithAllowRuntimeCycles(f.AllowRuntimeCycles)),
	}
	if len(f.Groups) > 0 {
		opts = append(opts, resolver.WithGroups(f.Groups...))
	}
	return opts, nil
}
