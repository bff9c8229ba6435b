// Package zipfs presents ZIP archives as read-only hierarchical filesystems.
//
// The flat, name-keyed entry table of a [zar.Archive] becomes a tree: paths resolve to files or
// directories, directory listings enumerate direct children, and intermediate path components that have
// no explicit ZIP record are synthesized on the fly. Decompressed payloads are held in a bounded LRU
// cache so repeated reads of hot entries stay cheap.
package zipfs

import (
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/nguyengg/zipfs/lru"
	"github.com/nguyengg/zipfs/zar"
)

// DefaultCacheSize is the default number of entries kept decompressed per archive.
const DefaultCacheSize = 1024

// Kind classifies the result of a Locate.
type Kind int

const (
	None Kind = iota
	File
	Dir
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Dir:
		return "dir"
	default:
		return "none"
	}
}

// Options customises New and NewFromArchive.
type Options struct {
	// CacheSize is the capacity of the per-archive entry cache. Defaults to DefaultCacheSize.
	CacheSize int

	// Archive collects options forwarded to zar.Open by New.
	Archive []func(*zar.Options)
}

// FS is the hierarchical view over one archive.
//
// The underlying archive index is immutable and shared freely; the entry cache is guarded by an
// internal mutex, so an FS is safe for concurrent use.
type FS struct {
	ar *zar.Archive

	mu    sync.Mutex
	cache *lru.Cache[int, *zar.Entry]
}

// New parses data as a ZIP archive and wraps it. data is borrowed for the lifetime of the FS; see
// zar.Open.
func New(data []byte, optFns ...func(*Options)) (*FS, error) {
	opts := apply(optFns)

	ar, err := zar.Open(data, opts.Archive...)
	if err != nil {
		return nil, err
	}

	return newFS(ar, opts), nil
}

// NewFromArchive wraps an already-opened archive.
func NewFromArchive(ar *zar.Archive, optFns ...func(*Options)) *FS {
	return newFS(ar, apply(optFns))
}

func apply(optFns []func(*Options)) *Options {
	opts := &Options{CacheSize: DefaultCacheSize}
	for _, fn := range optFns {
		fn(opts)
	}

	return opts
}

func newFS(ar *zar.Archive, opts *Options) *FS {
	return &FS{ar: ar, cache: lru.New[int, *zar.Entry](opts.CacheSize)}
}

// Archive returns the underlying archive.
func (f *FS) Archive() *zar.Archive {
	return f.ar
}

// Len returns the number of real entries in the archive.
func (f *FS) Len() int {
	return f.ar.Len()
}

// Locate resolves a slash-separated path to an entry kind and index.
//
// The empty path and "/" denote the archive root, whose index is -1. A path naming an entry directly
// resolves to that entry; a path that is a proper prefix of other entries resolves to a directory even
// when the archive holds no record for it (the index is then that of one of its descendants).
func (f *FS) Locate(path string) (Kind, int) {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return Dir, -1
	}

	if i, ok := f.ar.Find(path); ok {
		if strings.HasSuffix(path, "/") {
			return Dir, i
		}

		info, err := f.ar.Stat(i)
		if err == nil && info.Dir {
			return Dir, i
		}

		return File, i
	}

	dname := path
	if !strings.HasSuffix(dname, "/") {
		dname += "/"
		if i, ok := f.ar.Find(dname); ok {
			return Dir, i
		}
	}

	// No record, but descendants imply the directory exists.
	if i := f.ar.Search(dname); i < f.ar.Len() && strings.HasPrefix(f.ar.Name(i), dname) {
		return Dir, i
	}

	return None, 0
}

// Stat describes one entry or synthesized directory.
type Stat struct {
	// Path is the full path within the archive. Directory paths keep their trailing "/".
	Path string

	// Size is the uncompressed size; 0 for directories.
	Size uint64

	// ModTime is the raw DOS timestamp; zero for synthesized directories.
	ModTime zar.DOSTime

	Dir bool
}

// Stat returns metadata for the entry at index i without touching its payload.
func (f *FS) Stat(i int) (Stat, error) {
	info, err := f.ar.Stat(i)
	if err != nil {
		return Stat{}, err
	}

	return Stat{
		Path:    info.Name,
		Size:    info.UncompressedSize,
		ModTime: info.ModTime,
		Dir:     info.Dir,
	}, nil
}

// Read returns the decompressed content of the entry at index i, serving it from the cache when
// possible. Directories read as empty.
//
// The returned slice is shared with the cache and with any other caller of Read for the same index; it
// must not be modified. It remains valid after eviction, but until then all reads of an entry observe
// the same backing bytes.
func (f *FS) Read(i int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.cache.Get(i); ok {
		return (*cached).Data()
	}

	e, err := f.ar.Entry(i)
	if err != nil {
		return nil, err
	}

	// Cache before decompressing so a retry after a transient DecompressionFailed hits the same entry;
	// a failed Data leaves no decompressed allocation behind.
	f.cache.Insert(i, e)
	return e.Data()
}

// ClearCache drops every cached entry, releasing their decompressed buffers to the next GC.
func (f *FS) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cache.Clear()
}

// DirEntry is one direct child produced by Each.
type DirEntry struct {
	// Name is the child's name relative to the enumerated directory. Directory children keep a single
	// trailing "/"; file children contain no "/" at all.
	Name string

	// Size is the uncompressed size for files, 0 for directories.
	Size uint64

	// ModTime is the raw DOS timestamp, zero for synthesized directories.
	ModTime zar.DOSTime

	Dir bool

	// Index is the entry's archive index, or -1 for synthesized directories that exist only as path
	// components of deeper entries.
	Index int
}

// Each visits the direct children of dir in name order, stopping early if visit returns false.
//
// dir must be the empty string (the root) or a path; a missing trailing "/" is added. Arbitrarily deep
// descendants under an unlisted intermediate directory collapse into a single synthesized directory
// child. The entry naming dir itself is not visited.
func (f *FS) Each(dir string, visit func(DirEntry) bool) {
	dir = strings.TrimPrefix(dir, "/")
	if dir != "" && !strings.HasSuffix(dir, "/") {
		dir += "/"
	}

	// lastDir collapses runs of descendants sharing the same first path component; entries are sorted
	// by name so all of a directory's descendants are contiguous.
	var lastDir string

	for i := f.ar.Search(dir); i < f.ar.Len(); i++ {
		name := f.ar.Name(i)
		if !strings.HasPrefix(name, dir) {
			return
		}
		if name == dir {
			continue
		}

		rel := name[len(dir):]
		slash := strings.IndexByte(rel, '/')

		switch {
		case slash < 0:
			info, err := f.ar.Stat(i)
			if err != nil {
				continue
			}

			if !visit(DirEntry{Name: rel, Size: info.UncompressedSize, ModTime: info.ModTime, Index: i}) {
				return
			}

		case slash == len(rel)-1:
			info, err := f.ar.Stat(i)
			if err != nil {
				continue
			}

			lastDir = rel
			if !visit(DirEntry{Name: rel, ModTime: info.ModTime, Dir: true, Index: i}) {
				return
			}

		default:
			d := rel[:slash+1]
			if d == lastDir {
				continue
			}

			lastDir = d
			if !visit(DirEntry{Name: d, Dir: true, Index: -1}) {
				return
			}
		}
	}
}

// Children returns the direct children of dir as an iterator over the same sequence Each visits.
func (f *FS) Children(dir string) iter.Seq[DirEntry] {
	return func(yield func(DirEntry) bool) {
		f.Each(dir, yield)
	}
}

// ReadPath is Locate followed by Read: the content of the file at path.
func (f *FS) ReadPath(path string) ([]byte, error) {
	kind, i := f.Locate(path)
	switch kind {
	case File:
		return f.Read(i)
	case Dir:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", zar.ErrNotFound, path)
	}
}
