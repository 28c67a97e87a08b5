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
	"strings"

	"deps.dev/util/pyresolve"
	"deps.dev/util/pyresolve/pep440"
)

// Resolution is the outcome of a successful run: one version for every
// package needed, including the virtual packages standing for the extras
// and dependency groups that were requested.
type Resolution struct {
	// Packages is sorted by package and excludes the root.
	Packages []Pin
	Manifest pyresolve.Manifest
	// Groups are the root dependency groups that were active.
	Groups []string
	// Sources holds the non-registry source requested for a package, if
	// any.
	Sources map[pyresolve.PackageName]pyresolve.Source

	versions map[pyresolve.PackageName]pep440.Version
	metadata map[pyresolve.PackageName]*pyresolve.Metadata
}

// Version returns the version chosen for name.
func (r *Resolution) Version(name pyresolve.PackageName) (pep440.Version, bool) {
	v, ok := r.versions[name]
	return v, ok
}

// Metadata returns the metadata of the version chosen for name. The same
// value is shared by every caller and must not be modified.
func (r *Resolution) Metadata(name pyresolve.PackageName) *pyresolve.Metadata {
	return r.metadata[name]
}

// String lists the chosen versions one per line.
func (r *Resolution) String() string {
	var b strings.Builder
	for _, p := range r.Packages {
		b.WriteString(p.String())
		b.WriteByte('\n')
	}
	return b.String()
}
