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
	"sync"

	"deps.dev/util/pyresolve"
	"deps.dev/util/pyresolve/pep440"
	"github.com/golang/groupcache/singleflight"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// fetched is a cached provider response. Responses are never mutated once
// stored.
type fetched struct {
	val any
	err error
}

// prefetcher issues provider requests on behalf of one run. The solver
// blocks on the response it needs while requests for other packages run in
// the background; every response is cached for the rest of the run.
type prefetcher struct {
	client pyresolve.Client
	log    *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	flight singleflight.Group

	mu        sync.Mutex
	cache     map[string]fetched
	requested map[string]bool
	// pending holds requests not started because the concurrency limit
	// was reached. They start as slots free up, and at the latest in wait.
	pending []func() error
	fatal   error // The first error that cancelled the run.
}

func newPrefetcher(ctx context.Context, client pyresolve.Client, concurrency int, log *logrus.Logger) *prefetcher {
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	return &prefetcher{
		client:    client,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		group:     g,
		cache:     make(map[string]fetched),
		requested: make(map[string]bool),
	}
}

// close cancels outstanding requests, waits for them to finish and returns
// the first fatal error.
func (f *prefetcher) close() error {
	f.cancel()
	// The first fatal error is kept in f.fatal.
	_ = f.group.Wait()
	return f.err()
}

// err returns the first fatal error seen so far.
func (f *prefetcher) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fatal
}

// wait runs every requested prefetch to completion and returns the first
// fatal error. Every request is made, so the outcome does not depend on
// timing.
func (f *prefetcher) wait() error {
	for {
		f.mu.Lock()
		pending := f.pending
		f.pending = nil
		f.mu.Unlock()
		if len(pending) == 0 {
			break
		}
		for _, fn := range pending {
			f.group.Go(fn)
		}
	}
	_ = f.group.Wait()
	return f.err()
}

// recoverable reports whether a provider error only rules out a package or
// one of its versions, rather than ending the run.
func recoverable(err error) bool {
	var fe *pyresolve.FetchError
	var me *pyresolve.MetadataError
	return errors.Is(err, pyresolve.ErrNotFound) || errors.As(err, &fe) || errors.As(err, &me)
}

func versionsKey(name pyresolve.PackageName) string {
	return "versions\x00" + string(name)
}

func metadataKey(name pyresolve.PackageName, v pep440.Version) string {
	return "metadata\x00" + string(name) + "\x00" + v.Canon()
}

// do returns the cached response for key, calling fn at most once per run
// to produce it.
func (f *prefetcher) do(key string, fn func(context.Context) (any, error)) (any, error) {
	f.mu.Lock()
	r, ok := f.cache[key]
	f.mu.Unlock()
	if ok {
		return r.val, r.err
	}
	return f.flight.Do(key, func() (any, error) {
		f.mu.Lock()
		r, ok := f.cache[key]
		f.mu.Unlock()
		if ok {
			return r.val, r.err
		}
		val, err := fn(f.ctx)
		if err != nil && f.ctx.Err() != nil {
			// Do not cache the result of a cancelled request.
			return val, err
		}
		f.mu.Lock()
		f.cache[key] = fetched{val: val, err: err}
		f.mu.Unlock()
		return val, err
	})
}

// prefetch queues a background fetch of key unless it is already cached or
// requested.
func (f *prefetcher) prefetch(key string, fn func(context.Context) (any, error)) {
	if f.ctx.Err() != nil {
		return
	}
	f.mu.Lock()
	_, cached := f.cache[key]
	if cached || f.requested[key] {
		f.mu.Unlock()
		return
	}
	f.requested[key] = true
	f.pending = append(f.pending, func() error {
		_, err := f.do(key, fn)
		if err == nil || recoverable(err) || f.ctx.Err() != nil {
			return nil
		}
		f.mu.Lock()
		if f.fatal == nil {
			f.fatal = err
		}
		f.mu.Unlock()
		// Returning the error cancels every other request.
		return err
	})
	f.mu.Unlock()
	f.start()
}

// start launches pending requests, oldest first, while there are free
// slots.
func (f *prefetcher) start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.pending) > 0 && f.group.TryGo(f.pending[0]) {
		f.pending = f.pending[1:]
	}
}

// cause returns the fatal background error that cancelled the run, if err
// is the resulting cancellation.
func (f *prefetcher) cause(err error) error {
	if f.ctx.Err() == nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fatal != nil {
		return f.fatal
	}
	return err
}

func (f *prefetcher) fetchVersions(name pyresolve.PackageName) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		return f.client.Versions(ctx, name)
	}
}

func (f *prefetcher) fetchMetadata(name pyresolve.PackageName, v pep440.Version) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		return f.client.Metadata(ctx, name, v)
	}
}

// versions blocks until the versions of name are known.
func (f *prefetcher) versions(name pyresolve.PackageName) ([]pep440.Version, error) {
	val, err := f.do(versionsKey(name), f.fetchVersions(name))
	if err != nil {
		return nil, f.cause(err)
	}
	return val.([]pep440.Version), nil
}

// metadata blocks until the metadata of name at v is known.
func (f *prefetcher) metadata(name pyresolve.PackageName, v pep440.Version) (*pyresolve.Metadata, error) {
	val, err := f.do(metadataKey(name, v), f.fetchMetadata(name, v))
	if err != nil {
		return nil, f.cause(err)
	}
	return val.(*pyresolve.Metadata), nil
}

func (f *prefetcher) prefetchVersions(name pyresolve.PackageName) {
	if f.log.IsLevelEnabled(logrus.TraceLevel) {
		f.log.WithField("package", name).Trace("prefetching versions")
	}
	f.prefetch(versionsKey(name), f.fetchVersions(name))
}

func (f *prefetcher) prefetchMetadata(name pyresolve.PackageName, v pep440.Version) {
	if f.log.IsLevelEnabled(logrus.TraceLevel) {
		f.log.WithFields(logrus.Fields{"package": name, "version": v}).Trace("prefetching metadata")
	}
	f.prefetch(metadataKey(name, v), f.fetchMetadata(name, v))
}
