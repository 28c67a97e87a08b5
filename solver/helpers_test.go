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

package solver

import (
	"context"
	"strings"
	"sync"
	"testing"

	"deps.dev/util/pyresolve"
	"deps.dev/util/pyresolve/pep440"
)

// parseUniverse builds a client from a description such as:
//
//	a 1.0
//		b>=2.0
//		[socks] pysocks
//		:test pytest
//	b 2.0
//
// Unindented lines introduce a version; indented lines list its
// requirements, optionally under an extra or a dependency group.
func parseUniverse(t *testing.T, text string) *pyresolve.LocalClient {
	t.Helper()
	lc := pyresolve.NewLocalClient()
	var (
		name pyresolve.PackageName
		ver  pep440.Version
		md   *pyresolve.Metadata
	)
	flush := func() {
		if md != nil {
			lc.AddVersion(name, ver, md)
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line[0] != '\t' && line[0] != ' ' {
			flush()
			fields := strings.Fields(line)
			if len(fields) != 2 {
				t.Fatalf("bad version line %q", line)
			}
			name = pyresolve.NewPackageName(fields[0])
			ver = pep440.MustParse(fields[1])
			md = &pyresolve.Metadata{}
			continue
		}
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "["):
			extra, req, _ := strings.Cut(line[1:], "] ")
			if md.Extras == nil {
				md.Extras = make(map[string][]pyresolve.Requirement)
			}
			md.Extras[extra] = append(md.Extras[extra], pyresolve.MustParseRequirement(req))
		case strings.HasPrefix(line, ":"):
			group, req, _ := strings.Cut(line[1:], " ")
			if md.Groups == nil {
				md.Groups = make(map[string][]pyresolve.Requirement)
			}
			md.Groups[group] = append(md.Groups[group], pyresolve.MustParseRequirement(req))
		default:
			md.Requires = append(md.Requires, pyresolve.MustParseRequirement(line))
		}
	}
	flush()
	return lc
}

func manifest(reqs ...string) pyresolve.Manifest {
	var m pyresolve.Manifest
	for _, r := range reqs {
		m.Requirements = append(m.Requirements, pyresolve.MustParseRequirement(r))
	}
	return m
}

// countingClient counts the requests made to the wrapped client.
type countingClient struct {
	pyresolve.Client

	mu     sync.Mutex
	counts map[string]int
}

func newCountingClient(c pyresolve.Client) *countingClient {
	return &countingClient{Client: c, counts: make(map[string]int)}
}

func (c *countingClient) count(key string) {
	c.mu.Lock()
	c.counts[key]++
	c.mu.Unlock()
}

func (c *countingClient) Versions(ctx context.Context, name pyresolve.PackageName) ([]pep440.Version, error) {
	c.count("versions " + string(name))
	return c.Client.Versions(ctx, name)
}

func (c *countingClient) Metadata(ctx context.Context, name pyresolve.PackageName, v pep440.Version) (*pyresolve.Metadata, error) {
	c.count("metadata " + string(name) + " " + v.String())
	return c.Client.Metadata(ctx, name, v)
}

// reversingClient lists versions in the opposite order to the wrapped
// client.
type reversingClient struct {
	pyresolve.Client
}

func (c reversingClient) Versions(ctx context.Context, name pyresolve.PackageName) ([]pep440.Version, error) {
	vs, err := c.Client.Versions(ctx, name)
	for i, j := 0, len(vs)-1; i < j; i, j = i+1, j-1 {
		vs[i], vs[j] = vs[j], vs[i]
	}
	return vs, err
}

// brokenClient fails every request for one package with err.
type brokenClient struct {
	pyresolve.Client
	name pyresolve.PackageName
	err  error
}

func (c brokenClient) Versions(ctx context.Context, name pyresolve.PackageName) ([]pep440.Version, error) {
	if name == c.name {
		return nil, c.err
	}
	return c.Client.Versions(ctx, name)
}
