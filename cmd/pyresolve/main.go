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
pyresolve resolves the dependencies of a Python project and prints the
resulting graph.

With -universe, packages, their artifacts and, unless requirements are
given on the command line, the project itself are read from a universe
file and the full installable graph is printed. With -api, versions and
dependencies are fetched from the deps.dev API; it serves no artifacts, so
only the chosen versions are printed.

	pyresolve -universe universe.toml
	pyresolve -api 'requests[socks]>=2.31' 'urllib3<2'
*/
package main

import (
	"context"
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	pb "deps.dev/api/v3"
	"deps.dev/util/pyresolve"
	"deps.dev/util/pyresolve/config"
	"deps.dev/util/pyresolve/dist"
	"deps.dev/util/pyresolve/graph"
	"deps.dev/util/pyresolve/resolver"
	"deps.dev/util/pyresolve/selector"
	"deps.dev/util/pyresolve/solver"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

var (
	configFile   = flag.String("config", "", "settings file, see config.File")
	universeFile = flag.String("universe", "", "universe file to resolve against")
	useAPI       = flag.Bool("api", false, "fetch package data from api.deps.dev")
	groups       = flag.String("groups", "", "comma-separated root dependency groups to activate")
	verbose      = flag.Bool("v", false, "log debugging output")
)

func main() {
	log.SetFlags(0)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pyresolve [flags] [requirement...]\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if (*universeFile == "") == !*useAPI {
		log.Print("exactly one of -universe and -api is required")
		flag.Usage()
		os.Exit(2)
	}

	var (
		f   *config.File
		err error
	)
	if *configFile != "" {
		f, err = config.ReadFile(*configFile)
	} else {
		f, err = config.Parse(config.FileName, nil)
	}
	if err != nil {
		log.Fatal(err)
	}
	logger, err := f.Logger()
	if err != nil {
		log.Fatal(err)
	}
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	ctx := context.Background()
	if *useAPI {
		solveAPI(ctx, f, logger)
		return
	}
	resolveUniverse(ctx, f, logger)
}

func manifestFromArgs() pyresolve.Manifest {
	var m pyresolve.Manifest
	for _, a := range flag.Args() {
		r, err := pyresolve.ParseRequirement(a)
		if err != nil {
			log.Fatal(err)
		}
		m.Requirements = append(m.Requirements, r)
	}
	return m
}

// solveAPI chooses versions using the deps.dev API.
func solveAPI(ctx context.Context, f *config.File, logger *logrus.Logger) {
	if flag.NArg() == 0 {
		log.Fatal("requirements are needed with -api")
	}
	m := manifestFromArgs()
	client := pyresolve.NewAPIClient(dial())
	for i := range m.Requirements {
		if err := m.Requirements[i].Evaluate(client.Env); err != nil {
			log.Fatal(err)
		}
	}
	opts, err := f.SolverOptions()
	if err != nil {
		log.Fatal(err)
	}
	active := f.Groups
	if *groups != "" {
		active = append(active, strings.Split(*groups, ",")...)
	}
	start := time.Now()
	res, err := solver.New(client, append(opts, solver.WithLogger(logger))...).Solve(ctx, m, active)
	if err != nil {
		fail(err)
	}
	log.Printf("Solved in %v", time.Since(start))
	fmt.Print(res)
}

// resolveUniverse builds the full graph from a universe file.
func resolveUniverse(ctx context.Context, f *config.File, logger *logrus.Logger) {
	u, err := config.ReadUniverse(*universeFile)
	if err != nil {
		log.Fatal(err)
	}
	client, indexes, err := u.Load()
	if err != nil {
		log.Fatal(err)
	}
	m := manifestFromArgs()
	if flag.NArg() == 0 {
		if m, err = u.Manifest(client.Env); err != nil {
			log.Fatal(err)
		}
	} else {
		for i := range m.Requirements {
			if err := m.Requirements[i].Evaluate(client.Env); err != nil {
				log.Fatal(err)
			}
		}
	}

	available := make([]selector.Index, len(indexes))
	for i, idx := range indexes {
		available[i] = idx
	}
	opts, err := f.Options(config.Available(available...))
	if err != nil {
		log.Fatal(err)
	}
	if len(f.Indexes) == 0 {
		// Search the universe's indexes in the order they appear.
		opts = append(opts, resolver.WithSelectorOptions(selector.WithIndexes(available...)))
	}
	if *groups != "" {
		opts = append(opts, resolver.WithGroups(strings.Split(*groups, ",")...))
	}
	opts = append(opts, resolver.WithLogger(logger))

	start := time.Now()
	res, err := resolver.New(client, opts...).Resolve(ctx, m)
	if err != nil {
		fail(err)
	}
	log.Printf("Resolved in %v", time.Since(start))
	for _, ex := range res.Excluded {
		log.Printf("Excluded %s %s: %s", ex.Name, ex.Version, ex.Reason)
	}
	fmt.Print(res.Graph)
	fmt.Println()
	printDists(res.Graph.Dists())
}

// printDists prints one line per distribution to install.
func printDists(ds []*graph.AnnotatedDist) {
	w := tabwriter.NewWriter(os.Stdout, 10, 2, 2, ' ', 0)
	for _, d := range ds {
		var hashes []string
		for _, h := range d.Hashes {
			hashes = append(hashes, h.String())
		}
		idx, _ := d.Index()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d, dist.Kind(d.Dist), idx, strings.Join(hashes, " "))
	}
	w.Flush()
}

func fail(err error) {
	var nse *solver.NoSolutionError
	if errors.As(err, &nse) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.Fatal(err)
}

// dial connects to the deps.dev gRPC API.
func dial() pb.InsightsClient {
	certPool, err := x509.SystemCertPool()
	if err != nil {
		log.Fatalf("Getting system cert pool: %v", err)
	}
	creds := credentials.NewClientTLSFromCert(certPool, "")
	conn, err := grpc.Dial("api.deps.dev:443", grpc.WithTransportCredentials(creds))
	if err != nil {
		log.Fatalf("Dialing: %v", err)
	}
	return pb.NewInsightsClient(conn)
}
