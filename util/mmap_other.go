//go:build !unix

package util

import "os"

// MapFile reads the named file into memory on platforms without mmap support here. The release function
// only drops the reference.
func MapFile(path string) ([]byte, func() error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	return data, func() error { return nil }, nil
}
