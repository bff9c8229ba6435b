package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/zipfs"
	"github.com/nguyengg/zipfs/internal"
	"github.com/valyala/bytebufferpool"
)

type List struct {
	Long      bool `short:"l" long:"long" description:"long listing with sizes and modification times"`
	Recursive bool `short:"R" long:"recursive" description:"descend into subdirectories"`
	Dir       string `short:"C" long:"dir" description:"list this directory within each archive instead of the root"`
	Args      struct {
		Files []flags.Filename `positional-arg-name:"file" description:"the ZIP archives to list" required:"yes"`
	} `positional-args:"yes"`
}

func (c *List) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	n := len(c.Args.Files)
	for i, file := range c.Args.Files {
		logger := internal.NewLogger(i, n, file)

		fsys, release, err := openArchive(string(file))
		if err != nil {
			logger.Printf("open archive error: %v", err)
			continue
		}

		if err, _ = c.list(fsys), release(); err != nil {
			logger.Printf("list error: %v", err)
		}
	}

	return nil
}

func (c *List) list(fsys *zipfs.FS) error {
	if c.Recursive {
		root := "."
		if c.Dir != "" {
			root = strings.TrimSuffix(c.Dir, "/")
		}

		return fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == "." {
				return nil
			}

			name := path
			if d.IsDir() {
				name += "/"
			}

			fi, err := d.Info()
			if err != nil {
				return err
			}

			c.println(name, fi)
			return nil
		})
	}

	fsys.Each(c.Dir, func(de zipfs.DirEntry) bool {
		c.println(de.Name, dirEntryInfo{de})
		return true
	})
	return nil
}

// println writes one listing line, pooling the line buffer since listings can run to tens of thousands
// of entries.
func (c *List) println(name string, fi fs.FileInfo) {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	if c.Long {
		mtime := "                   "
		if t := fi.ModTime(); !t.IsZero() {
			mtime = t.Format(time.DateTime)
		}

		_, _ = fmt.Fprintf(bb, "%10s  %s  ", humanize.IBytes(uint64(fi.Size())), mtime)
	}

	_, _ = bb.WriteString(name)
	_ = bb.WriteByte('\n')
	_, _ = os.Stdout.Write(bb.B)
}

// dirEntryInfo adapts a zipfs.DirEntry to fs.FileInfo for the flat listing path.
type dirEntryInfo struct {
	de zipfs.DirEntry
}

func (d dirEntryInfo) Name() string      { return strings.TrimSuffix(d.de.Name, "/") }
func (d dirEntryInfo) Size() int64       { return int64(d.de.Size) }
func (d dirEntryInfo) IsDir() bool       { return d.de.Dir }
func (d dirEntryInfo) Sys() any          { return nil }
func (d dirEntryInfo) Mode() fs.FileMode {
	if d.de.Dir {
		return fs.ModeDir | 0o555
	}

	return 0o444
}
func (d dirEntryInfo) ModTime() time.Time {
	if d.de.ModTime.IsZero() {
		return time.Time{}
	}

	return d.de.ModTime.Time()
}
