package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/zipfs"
	"github.com/nguyengg/zipfs/zar"
)

type Mount struct {
	CacheSize           int  `long:"cache-size" description:"number of decompressed members cached per archive" default:"1024"`
	OffsetOverflowQuirk bool `long:"offset-overflow-quirk" description:"retry local header offsets with bit 32 set, for >4GiB archives written without ZIP64 info"`
	Args                struct {
		Root       flags.Filename `positional-arg-name:"root" description:"directory containing ZIP archives" required:"yes"`
		MountPoint flags.Filename `positional-arg-name:"mountpoint" description:"where to mount the filesystem" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Mount) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	root := string(c.Args.Root)
	if fi, err := os.Stat(root); err != nil {
		return fmt.Errorf("stat root error: %w", err)
	} else if !fi.IsDir() {
		return fmt.Errorf("root %q is not a directory", root)
	}

	reg := zipfs.NewRegistry(func(opts *zipfs.RegistryOptions) {
		opts.FS = append(opts.FS, func(opts *zipfs.Options) {
			opts.CacheSize = c.CacheSize
			if c.OffsetOverflowQuirk {
				opts.Archive = append(opts.Archive, func(opts *zar.Options) {
					opts.OffsetOverflowQuirk = true
				})
			}
		})
	})
	defer reg.Close()

	mountPoint := string(c.Args.MountPoint)
	conn, err := fuse.Mount(mountPoint, fuse.FSName("zipfs"), fuse.Subtype("zipfs"), fuse.ReadOnly())
	if err != nil {
		return fmt.Errorf("mount error: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		slog.Info("unmounting", "mountpoint", mountPoint)
		if err := fuse.Unmount(mountPoint); err != nil {
			slog.Warn("unmount error", "err", err)
		}
	}()

	slog.Info("serving", "root", root, "mountpoint", mountPoint)
	if err = fusefs.Serve(conn, &mountFS{reg: reg, root: root}); err != nil {
		return fmt.Errorf("serve error: %w", err)
	}

	return ctx.Err()
}

// mountFS bridges the archive registry to the FUSE connection: every ZIP file directly under root
// appears as a top-level directory named after the file.
type mountFS struct {
	reg  *zipfs.Registry
	root string
}

var _ fusefs.FS = (*mountFS)(nil)

func (m *mountFS) Root() (fusefs.Node, error) {
	return &rootDir{m}, nil
}

// rootDir lists the archives.
type rootDir struct {
	m *mountFS
}

var (
	_ fusefs.Node               = (*rootDir)(nil)
	_ fusefs.NodeStringLookuper = (*rootDir)(nil)
	_ fusefs.HandleReadDirAller = (*rootDir)(nil)
)

func (d *rootDir) Attr(_ context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeDir | 0o555
	return nil
}

func (d *rootDir) Lookup(_ context.Context, name string) (fusefs.Node, error) {
	path := filepath.Join(d.m.root, name)
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return nil, fuse.ENOENT
	}

	// Opening happens lazily on first descent into the archive so a directory of thousands of ZIPs
	// doesn't map them all up front.
	return &archiveDir{m: d.m, path: path}, nil
}

func (d *rootDir) ReadDirAll(context.Context) ([]fuse.Dirent, error) {
	entries, err := os.ReadDir(d.m.root)
	if err != nil {
		return nil, err
	}

	var dirents []fuse.Dirent
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".zip") {
			continue
		}

		dirents = append(dirents, fuse.Dirent{Name: e.Name(), Type: fuse.DT_Dir})
	}

	return dirents, nil
}

// archiveDir is a directory within one archive; dir is "" for the archive root and otherwise ends in
// "/".
type archiveDir struct {
	m    *mountFS
	path string
	dir  string
}

var (
	_ fusefs.Node               = (*archiveDir)(nil)
	_ fusefs.NodeStringLookuper = (*archiveDir)(nil)
	_ fusefs.HandleReadDirAller = (*archiveDir)(nil)
)

func (d *archiveDir) Attr(_ context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeDir | 0o555

	if d.dir == "" {
		return nil
	}

	fsys, err := d.m.reg.Get(d.path)
	if err != nil {
		return err
	}

	if kind, i := fsys.Locate(d.dir); kind == zipfs.Dir && i >= 0 {
		if st, err := fsys.Stat(i); err == nil && st.Path == d.dir && !st.ModTime.IsZero() {
			a.Mtime = st.ModTime.Time()
		}
	}

	return nil
}

func (d *archiveDir) Lookup(_ context.Context, name string) (fusefs.Node, error) {
	fsys, err := d.m.reg.Get(d.path)
	if err != nil {
		slog.Debug("open archive error", "path", d.path, "err", err)
		return nil, fuse.ENOENT
	}

	switch kind, i := fsys.Locate(d.dir + name); kind {
	case zipfs.File:
		return &fileNode{m: d.m, path: d.path, index: i}, nil
	case zipfs.Dir:
		return &archiveDir{m: d.m, path: d.path, dir: d.dir + name + "/"}, nil
	default:
		return nil, fuse.ENOENT
	}
}

func (d *archiveDir) ReadDirAll(context.Context) ([]fuse.Dirent, error) {
	fsys, err := d.m.reg.Get(d.path)
	if err != nil {
		return nil, err
	}

	var dirents []fuse.Dirent
	fsys.Each(d.dir, func(de zipfs.DirEntry) bool {
		dirent := fuse.Dirent{Name: strings.TrimSuffix(de.Name, "/"), Type: fuse.DT_File}
		if de.Dir {
			dirent.Type = fuse.DT_Dir
		}

		dirents = append(dirents, dirent)
		return true
	})

	return dirents, nil
}

// fileNode is a file member; reads return the cached decompressed payload.
type fileNode struct {
	m     *mountFS
	path  string
	index int
}

var (
	_ fusefs.Node           = (*fileNode)(nil)
	_ fusefs.HandleReadAller = (*fileNode)(nil)
)

func (f *fileNode) Attr(_ context.Context, a *fuse.Attr) error {
	fsys, err := f.m.reg.Get(f.path)
	if err != nil {
		return err
	}

	st, err := fsys.Stat(f.index)
	if err != nil {
		return err
	}

	a.Mode = 0o444
	a.Size = st.Size
	if !st.ModTime.IsZero() {
		a.Mtime = st.ModTime.Time()
	}

	return nil
}

func (f *fileNode) ReadAll(context.Context) ([]byte, error) {
	fsys, err := f.m.reg.Get(f.path)
	if err != nil {
		return nil, err
	}

	data, err := fsys.Read(f.index)
	if err != nil {
		slog.Debug("read member error", "path", f.path, "index", f.index, "err", err)
		return nil, fuse.EIO
	}

	return data, nil
}
