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
	"cmp"
	"fmt"

	"deps.dev/util/pyresolve"
	"deps.dev/util/pyresolve/pep440"
)

// Package is a node of the search. Besides real packages it can be the root
// of the resolution, or a virtual package standing for an extra or a
// dependency group of a package. Choosing a version for the virtual package
// a[x] pins a to the same version and brings in the dependencies of extra x.
type Package struct {
	Name  pyresolve.PackageName // Empty for the root.
	Extra string
	Group string
}

// Root is the package standing for the project being resolved.
var Root = Package{}

// rootVersion is the only version of the root and its groups.
var rootVersion = pep440.MustParse("0")

// IsRoot reports whether p is the root or one of its dependency groups.
func (p Package) IsRoot() bool { return p.Name == "" }

// IsVirtual reports whether p stands for an extra or a group.
func (p Package) IsVirtual() bool { return p.Extra != "" || p.Group != "" }

// Base returns the real package behind p.
func (p Package) Base() Package { return Package{Name: p.Name} }

func (p Package) String() string {
	name := string(p.Name)
	if p.IsRoot() {
		name = "root"
	}
	switch {
	case p.Extra != "":
		return fmt.Sprintf("%s[%s]", name, p.Extra)
	case p.Group != "":
		return fmt.Sprintf("%s:%s", name, p.Group)
	}
	return name
}

// Compare orders packages by name, then extra, then group.
func (p Package) Compare(q Package) int {
	if c := cmp.Compare(p.Name, q.Name); c != 0 {
		return c
	}
	if c := cmp.Compare(p.Extra, q.Extra); c != 0 {
		return c
	}
	return cmp.Compare(p.Group, q.Group)
}

// targets returns the packages a requirement refers to: the plain package,
// or one virtual package per requested extra and group.
func targets(r pyresolve.Requirement) []Package {
	if len(r.Extras) == 0 && len(r.Groups) == 0 {
		return []Package{{Name: r.Name}}
	}
	var ps []Package
	for _, e := range r.Extras {
		ps = append(ps, Package{Name: r.Name, Extra: e})
	}
	for _, g := range r.Groups {
		ps = append(ps, Package{Name: r.Name, Group: g})
	}
	return ps
}

// Pin is a package with its chosen version.
type Pin struct {
	Package Package
	Version pep440.Version
}

func (p Pin) String() string { return fmt.Sprintf("%s==%s", p.Package, p.Version) }
