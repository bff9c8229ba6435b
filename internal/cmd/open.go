package cmd

import (
	"github.com/nguyengg/zipfs"
	"github.com/nguyengg/zipfs/util"
)

// openArchive maps the named file and parses it. The release function unmaps the data; the FS must not
// be used afterwards.
func openArchive(path string, optFns ...func(*zipfs.Options)) (*zipfs.FS, func() error, error) {
	data, release, err := util.MapFile(path)
	if err != nil {
		return nil, nil, err
	}

	fsys, err := zipfs.New(data, optFns...)
	if err != nil {
		_ = release()
		return nil, nil, err
	}

	return fsys, release, nil
}
