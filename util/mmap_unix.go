//go:build unix

package util

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MapFile maps the named file read-only and returns its bytes plus a release function that unmaps them.
//
// The mapping is private and read-only; the returned slice must not be written to, and must not be used
// after release. Empty files return an empty slice without mapping (mmap of length 0 is an error).
func MapFile(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("stat %q error: %w", path, err)
	}

	size := fi.Size()
	if size == 0 {
		return []byte{}, func() error { return nil }, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap %q error: %w", path, err)
	}

	return data, func() error { return unix.Munmap(data) }, nil
}
