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

package pyresolve

import (
	"context"

	pb "deps.dev/api/v3"
	"deps.dev/util/pyresolve/markers"
	"deps.dev/util/pyresolve/pep440"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// APIClient is a Client that fetches data from the deps.dev API. The API
// reports each version's direct dependencies as resolved edges, so extras
// and dependency groups are not available through it. It performs no
// caching and is safe for concurrent use.
type APIClient struct {
	c pb.InsightsClient
	// Env is the environment markers are evaluated against.
	Env markers.Environment
	// Limiter bounds the request rate. A nil Limiter means no limit.
	Limiter *rate.Limiter
}

// NewAPIClient creates a new APIClient using the provided gRPC client to
// call the deps.dev Insights service.
func NewAPIClient(c pb.InsightsClient) *APIClient {
	return &APIClient{
		c:   c,
		Env: markers.DefaultEnvironment(),
		// gRPC multiplexes concurrent requests over one connection; keep
		// the rate polite.
		Limiter: rate.NewLimiter(500, 1),
	}
}

func (a *APIClient) wait(ctx context.Context) error {
	if a.Limiter == nil {
		return nil
	}
	return a.Limiter.Wait(ctx)
}

// classify turns a gRPC error into the error taxonomy the resolver expects:
// missing data wraps ErrNotFound, transient failures become a FetchError,
// anything else is returned as is.
func classify(err error, name PackageName, v pep440.Version) error {
	switch status.Code(err) {
	case codes.OK:
		return nil
	case codes.NotFound:
		if v.IsZero() {
			return errors.Wrapf(ErrNotFound, "package %s", name)
		}
		return &FetchError{Package: name, Version: v, Err: ErrNotFound}
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return &FetchError{Package: name, Version: v, Err: err}
	}
	return err
}

// Versions implements Client.
func (a *APIClient) Versions(ctx context.Context, name PackageName) ([]pep440.Version, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := a.c.GetPackage(ctx, &pb.GetPackageRequest{
		PackageKey: &pb.PackageKey{
			System: pb.System_PYPI,
			Name:   string(name),
		},
	})
	if err != nil {
		return nil, classify(err, name, pep440.Version{})
	}
	var vs []pep440.Version
	for _, pv := range resp.GetVersions() {
		v, err := pep440.Parse(pv.GetVersionKey().GetVersion())
		if err != nil {
			// Legacy versions that are not PEP 440 can never be chosen.
			continue
		}
		vs = append(vs, v)
	}
	return vs, nil
}

// Metadata implements Client. The direct dependencies are the edges leaving
// the first node of the version's resolved dependency graph.
func (a *APIClient) Metadata(ctx context.Context, name PackageName, v pep440.Version) (*Metadata, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := a.c.GetDependencies(ctx, &pb.GetDependenciesRequest{
		VersionKey: &pb.VersionKey{
			System:  pb.System_PYPI,
			Name:    string(name),
			Version: v.String(),
		},
	})
	if err != nil {
		return nil, classify(err, name, v)
	}
	nodes := resp.GetNodes()
	md := &Metadata{}
	for _, e := range resp.GetEdges() {
		if e.GetFromNode() != 0 {
			continue
		}
		to := int(e.GetToNode())
		if to >= len(nodes) {
			return nil, &MetadataError{Package: name, Version: v, Reason: "dependency edge to unknown node"}
		}
		dep := nodes[to].GetVersionKey().GetName()
		r, err := ParseRequirement(dep + e.GetRequirement())
		if err != nil {
			return nil, &MetadataError{Package: name, Version: v, Reason: err.Error()}
		}
		if err := md.add(r, a.Env); err != nil {
			return nil, &MetadataError{Package: name, Version: v, Reason: err.Error()}
		}
	}
	return md, nil
}
