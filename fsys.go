package zipfs

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/nguyengg/zipfs/zar"
)

// FS implements the standard library filesystem interfaces so an archive can be traversed with
// fs.WalkDir, served with http.FileServerFS, and so on.
var (
	_ fs.FS         = (*FS)(nil)
	_ fs.StatFS     = (*FS)(nil)
	_ fs.ReadDirFS  = (*FS)(nil)
	_ fs.ReadFileFS = (*FS)(nil)
)

// Open implements fs.FS.
func (f *FS) Open(name string) (fs.File, error) {
	info, i, err := f.statPath(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	if info.IsDir() {
		dir := ""
		if name != "." {
			dir = name + "/"
		}

		return &dirFile{fsys: f, dir: dir, info: info}, nil
	}

	data, err := f.Read(i)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	return &file{Reader: *bytes.NewReader(data), info: info}, nil
}

// Stat implements fs.StatFS.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	info, _, err := f.statPath(name)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}

	return info, nil
}

// ReadDir implements fs.ReadDirFS.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	file, err := f.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dir, ok := file.(fs.ReadDirFile)
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}

	return dir.ReadDir(-1)
}

// ReadFile implements fs.ReadFileFS. Unlike FS.Read, the returned slice is the caller's to modify.
func (f *FS) ReadFile(name string) ([]byte, error) {
	info, i, err := f.statPath(name)
	if err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: err}
	}

	if info.IsDir() {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}

	data, err := f.Read(i)
	if err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: err}
	}

	return append([]byte(nil), data...), nil
}

// statPath resolves an io/fs path to a fileInfo and entry index (-1 for the root and for synthesized
// directories).
func (f *FS) statPath(name string) (fileInfo, int, error) {
	if !fs.ValidPath(name) {
		return fileInfo{}, 0, fs.ErrInvalid
	}

	if name == "." {
		return fileInfo{name: ".", mode: fs.ModeDir | 0o555}, -1, nil
	}

	kind, i := f.Locate(name)
	switch kind {
	case File:
		st, err := f.Stat(i)
		if err != nil {
			return fileInfo{}, 0, err
		}

		return fileInfo{
			name:    path.Base(name),
			size:    int64(st.Size),
			mode:    0o444,
			modTime: st.ModTime,
		}, i, nil

	case Dir:
		fi := fileInfo{name: path.Base(name), mode: fs.ModeDir | 0o555}
		if i >= 0 && f.ar.Name(i) == name+"/" {
			// The directory has its own record; surface its timestamp.
			if st, err := f.Stat(i); err == nil {
				fi.modTime = st.ModTime
			}
		} else {
			// Synthesized directory.
			i = -1
		}

		return fi, i, nil

	default:
		return fileInfo{}, 0, fs.ErrNotExist
	}
}

type fileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime zar.DOSTime
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return fi.size }
func (fi fileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi fileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi fileInfo) Sys() any           { return nil }
func (fi fileInfo) ModTime() time.Time {
	if fi.modTime.IsZero() {
		return time.Time{}
	}

	return fi.modTime.Time()
}

// file is an open file backed by the cached decompressed payload.
type file struct {
	bytes.Reader
	info fileInfo
}

func (f *file) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *file) Close() error               { return nil }

var _ io.ReadSeeker = (*file)(nil)

// dirFile is an open directory; its children are gathered on first ReadDir.
type dirFile struct {
	fsys *FS
	dir  string
	info fileInfo

	entries []fs.DirEntry
	read    bool
	off     int
}

func (d *dirFile) Stat() (fs.FileInfo, error) { return d.info, nil }
func (d *dirFile) Close() error               { return nil }

func (d *dirFile) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: strings.TrimSuffix(d.dir, "/"), Err: fs.ErrInvalid}
}

// ReadDir implements fs.ReadDirFile with the usual n <= 0 / n > 0 batching semantics.
func (d *dirFile) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.read {
		d.read = true
		d.fsys.Each(d.dir, func(de DirEntry) bool {
			fi := fileInfo{
				name:    strings.TrimSuffix(de.Name, "/"),
				size:    int64(de.Size),
				mode:    0o444,
				modTime: de.ModTime,
			}
			if de.Dir {
				fi.size = 0
				fi.mode = fs.ModeDir | 0o555
			}

			d.entries = append(d.entries, fs.FileInfoToDirEntry(fi))
			return true
		})

		// Children arrive ordered by their stored names, where directories carry a trailing "/";
		// fs.ReadDirFS wants them sorted by the bare filename.
		sort.Slice(d.entries, func(i, j int) bool {
			return d.entries[i].Name() < d.entries[j].Name()
		})
	}

	if n <= 0 {
		entries := d.entries[d.off:]
		d.off = len(d.entries)
		return entries, nil
	}

	if d.off >= len(d.entries) {
		return nil, io.EOF
	}

	end := min(d.off+n, len(d.entries))
	entries := d.entries[d.off:end]
	d.off = end
	return entries, nil
}
