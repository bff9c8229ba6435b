package zipfs

import (
	"fmt"
	"sync"

	"github.com/nguyengg/zipfs/util"
	"golang.org/x/sync/singleflight"
)

// RegistryOptions customises NewRegistry.
type RegistryOptions struct {
	// Load produces the byte slice for an archive file plus a release function. Defaults to
	// util.MapFile, which memory-maps where the platform supports it.
	Load func(path string) ([]byte, func() error, error)

	// FS collects options applied to each archive's FS.
	FS []func(*Options)
}

// Registry opens archives by file path, at most once each, and keeps them open until Close.
//
// The original use case is a directory of ZIP files exposed as one filesystem: every mount-point
// callback funnels through Get, so concurrent lookups of the same archive must not map and parse it
// twice. Registry is safe for concurrent use.
type Registry struct {
	load  func(path string) ([]byte, func() error, error)
	fsOpt []func(*Options)

	group singleflight.Group

	mu       sync.Mutex
	archives map[string]*openArchive
}

type openArchive struct {
	fs      *FS
	release func() error
}

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...func(*RegistryOptions)) *Registry {
	opts := &RegistryOptions{Load: util.MapFile}
	for _, fn := range optFns {
		fn(opts)
	}

	return &Registry{
		load:     opts.Load,
		fsOpt:    opts.FS,
		archives: make(map[string]*openArchive),
	}
}

// Get returns the FS for the archive at path, opening it on first use. Concurrent calls for the same
// path share a single open; failed opens are not cached and will be retried.
func (r *Registry) Get(path string) (*FS, error) {
	r.mu.Lock()
	if oa, ok := r.archives[path]; ok {
		r.mu.Unlock()
		return oa.fs, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(path, func() (any, error) {
		// Re-check: a previous flight may have stored it between the fast path and here.
		r.mu.Lock()
		if oa, ok := r.archives[path]; ok {
			r.mu.Unlock()
			return oa, nil
		}
		r.mu.Unlock()

		data, release, err := r.load(path)
		if err != nil {
			return nil, fmt.Errorf("load archive %q error: %w", path, err)
		}

		fsys, err := New(data, r.fsOpt...)
		if err != nil {
			_ = release()
			return nil, fmt.Errorf("open archive %q error: %w", path, err)
		}

		oa := &openArchive{fs: fsys, release: release}
		r.mu.Lock()
		r.archives[path] = oa
		r.mu.Unlock()
		return oa, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*openArchive).fs, nil
}

// Len returns the number of open archives.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.archives)
}

// Close releases every open archive's backing data. The registry must not be used afterwards; any FS
// obtained from it becomes invalid because its borrowed slice is gone.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for path, oa := range r.archives {
		if e := oa.release(); e != nil && err == nil {
			err = fmt.Errorf("release archive %q error: %w", path, e)
		}
	}

	r.archives = make(map[string]*openArchive)
	return err
}
