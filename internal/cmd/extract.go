package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/zipfs/internal"
	"github.com/nguyengg/zipfs/util"
	"github.com/schollz/progressbar/v3"
)

type Extract struct {
	Dir       string `short:"d" long:"dir" description:"parent directory for the extracted files" default:"."`
	NoProgress bool  `long:"no-progress" description:"disable the progress bar"`
	Args      struct {
		Files []flags.Filename `positional-arg-name:"file" description:"the ZIP archives to extract" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Extract) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	n := len(c.Args.Files)
	for i, file := range c.Args.Files {
		logger := internal.NewLogger(i, n, file)

		if err := c.extract(ctx, string(file)); err != nil {
			if ctx.Err() != nil {
				return err
			}

			logger.Printf("extract error: %v", err)
			continue
		}

		logger.Printf("done")
	}

	return nil
}

func (c *Extract) extract(ctx context.Context, name string) error {
	fsys, release, err := openArchive(name)
	if err != nil {
		return fmt.Errorf("open archive error: %w", err)
	}
	defer release()

	stem, _ := util.StemAndExt(filepath.Base(name))
	dir, err := util.MkExclDir(c.Dir, stem, 0755)
	if err != nil {
		return fmt.Errorf("create output directory error: %w", err)
	}

	var bar io.Writer = io.Discard
	if !c.NoProgress {
		var total int64
		for i := range fsys.Len() {
			if st, err := fsys.Stat(i); err == nil && !st.Dir {
				total += int64(st.Size)
			}
		}

		pb := progressbar.DefaultBytes(total, filepath.Base(name))
		defer pb.Close()
		bar = pb
	}

	buf := make([]byte, 32*1024)
	for i := range fsys.Len() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		st, err := fsys.Stat(i)
		if err != nil {
			return err
		}

		path := filepath.Join(dir, filepath.FromSlash(strings.TrimSuffix(st.Path, "/")))
		if st.Dir {
			if err = os.MkdirAll(path, 0755); err != nil {
				return fmt.Errorf("create directory (path=%s) error: %w", path, err)
			}

			continue
		}

		data, err := fsys.Read(i)
		if err != nil {
			return fmt.Errorf("read member (name=%s) error: %w", st.Path, err)
		}

		if err = os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("create parent directories (path=%s) error: %w", path, err)
		}

		dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("create file (path=%s) error: %w", path, err)
		}

		_, err = util.CopyBufferWithContext(ctx, io.MultiWriter(dst, bar), bytes.NewReader(data), buf)
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("extract member (name=%s) to file (path=%s) error: %w", st.Path, path, err)
		}
	}

	return nil
}
