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

package selector

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"deps.dev/util/pyresolve"
	"deps.dev/util/pyresolve/dist"
	"deps.dev/util/pyresolve/pep440"
	"github.com/armon/go-radix"
	"github.com/pkg/errors"
)

// Artifact is a file an index offers for one version of a package.
type Artifact struct {
	Filename string
	URL      string
	Hashes   []dist.HashDigest
}

// IsWheel reports whether the artifact is a built distribution.
func (a Artifact) IsWheel() bool { return strings.HasSuffix(a.Filename, ".whl") }

// hash returns the artifact's digest for the given algorithm.
func (a Artifact) hash(alg string) (dist.HashDigest, bool) {
	for _, h := range a.Hashes {
		if h.Algorithm == alg {
			return h, true
		}
	}
	return dist.HashDigest{}, false
}

// Index is a package index. Implementations must be safe for concurrent
// use.
type Index interface {
	// URL identifies the index.
	URL() dist.IndexURL
	// Artifacts lists the files the index has for a version. It returns an
	// error wrapping pyresolve.ErrNotFound if it has none.
	Artifacts(ctx context.Context, name pyresolve.PackageName, v pep440.Version) ([]Artifact, error)
}

type artifactKey struct {
	name    pyresolve.PackageName
	version string
}

// LocalIndex is an in-memory Index.
type LocalIndex struct {
	url dist.IndexURL

	mu        sync.RWMutex
	artifacts map[artifactKey][]Artifact
}

// NewLocalIndex creates an empty index identified by url.
func NewLocalIndex(url dist.IndexURL) *LocalIndex {
	return &LocalIndex{url: url, artifacts: make(map[artifactKey][]Artifact)}
}

// Add lists artifacts for a version. An artifact without a URL is given one
// under the index URL.
func (li *LocalIndex) Add(name pyresolve.PackageName, v pep440.Version, arts ...Artifact) {
	li.mu.Lock()
	defer li.mu.Unlock()
	k := artifactKey{name, v.Canon()}
	for _, a := range arts {
		if a.URL == "" {
			a.URL = fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(string(li.url), "/"), name, a.Filename)
		}
		li.artifacts[k] = append(li.artifacts[k], a)
	}
}

// URL implements Index.
func (li *LocalIndex) URL() dist.IndexURL { return li.url }

// Artifacts implements Index.
func (li *LocalIndex) Artifacts(ctx context.Context, name pyresolve.PackageName, v pep440.Version) ([]Artifact, error) {
	li.mu.RLock()
	defer li.mu.RUnlock()
	arts, ok := li.artifacts[artifactKey{name, v.Canon()}]
	if !ok {
		return nil, errors.Wrapf(pyresolve.ErrNotFound, "%s %s in %s", name, v, li.url)
	}
	return slices.Clone(arts), nil
}

// IndexTable finds the index an artifact URL belongs to.
type IndexTable struct {
	t *radix.Tree
}

// NewIndexTable creates a table of the given indexes. When two indexes
// have the same URL the first one wins.
func NewIndexTable(indexes ...Index) *IndexTable {
	t := &IndexTable{t: radix.New()}
	for _, idx := range indexes {
		prefix := strings.TrimSuffix(string(idx.URL()), "/") + "/"
		if _, ok := t.t.Get(prefix); !ok {
			t.t.Insert(prefix, idx)
		}
	}
	return t
}

// Lookup returns the index with the longest URL that is a prefix of url.
func (t *IndexTable) Lookup(url string) (Index, bool) {
	if _, v, ok := t.t.LongestPrefix(url); ok {
		return v.(Index), true
	}
	return nil, false
}

// Len returns the number of indexes in the table.
func (t *IndexTable) Len() int { return t.t.Len() }
