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

package graph

import (
	"cmp"
	"fmt"
	"strings"

	"deps.dev/util/pyresolve"
	"deps.dev/util/pyresolve/dist"
	"deps.dev/util/pyresolve/pep440"
)

// AnnotatedDist is a resolved package version with its chosen distribution.
// A package installed plainly and the same package installed for one of its
// extras or dependency groups are distinct AnnotatedDists; they share the
// distribution, hashes and metadata.
type AnnotatedDist struct {
	Dist    dist.ResolvedDist
	Name    pyresolve.PackageName
	Version pep440.Version
	// Extra or Group is set when the node stands for an extra or a
	// dependency group of the package. At most one of them is set.
	Extra  string
	Group  string
	Hashes []dist.HashDigest
	// Metadata is shared with every other node for the same version and
	// must not be modified.
	Metadata *pyresolve.Metadata
}

// IsBase reports whether d is the plain package rather than one of its
// extras or groups.
func (d *AnnotatedDist) IsBase() bool { return d.Extra == "" && d.Group == "" }

// Index returns the index the distribution came from, if it came from one.
func (d *AnnotatedDist) Index() (dist.IndexURL, bool) { return dist.Index(d.Dist) }

// PackageName implements dist.Named.
func (d *AnnotatedDist) PackageName() pyresolve.PackageName { return d.Name }

func (d *AnnotatedDist) String() string {
	s := d.Dist.String()
	var suffix string
	switch {
	case d.Extra != "":
		suffix = "[" + d.Extra + "]"
	case d.Group != "":
		suffix = ":" + d.Group
	default:
		return s
	}
	return strings.Replace(s, string(d.Name), string(d.Name)+suffix, 1)
}

// key is the identity of a node.
type key struct {
	name    pyresolve.PackageName
	version string // Canonical spelling.
	extra   string
	group   string
}

func (d *AnnotatedDist) key() key {
	return key{name: d.Name, version: d.Version.Canon(), extra: d.Extra, group: d.Group}
}

// Compare orders distributions by name, version, extra and group.
func (d *AnnotatedDist) Compare(o *AnnotatedDist) int {
	if c := cmp.Compare(d.Name, o.Name); c != 0 {
		return c
	}
	if c := d.Version.Compare(o.Version); c != 0 {
		return c
	}
	if c := cmp.Compare(d.Extra, o.Extra); c != 0 {
		return c
	}
	return cmp.Compare(d.Group, o.Group)
}

// GoString is used by test failure messages.
func (d *AnnotatedDist) GoString() string {
	return fmt.Sprintf("AnnotatedDist(%s)", d)
}
