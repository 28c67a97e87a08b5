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

package markers

// Environment maps marker variable names, such as "python_version", to their
// values on the target platform.
type Environment map[string]string

// Variables lists the environment marker variables defined by PEP 508.
var Variables = []string{
	"implementation_name",
	"implementation_version",
	"os_name",
	"platform_machine",
	"platform_python_implementation",
	"platform_release",
	"platform_system",
	"platform_version",
	"python_full_version",
	"python_version",
	"sys_platform",
}

// DefaultEnvironment returns the environment of a CPython 3.12 interpreter
// on 64-bit Linux.
func DefaultEnvironment() Environment {
	return Environment{
		"implementation_name":            "cpython",
		"implementation_version":         "3.12.3",
		"os_name":                        "posix",
		"platform_machine":               "x86_64",
		"platform_python_implementation": "CPython",
		"platform_release":               "6.1.0",
		"platform_system":                "Linux",
		"platform_version":               "#1 SMP",
		"python_full_version":            "3.12.3",
		"python_version":                 "3.12",
		"sys_platform":                   "linux",
	}
}
