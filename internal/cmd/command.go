// Package cmd implements the zipfs command line.
package cmd

import (
	"github.com/jessevdk/go-flags"
)

// Zipfs is the top-level command group.
type Zipfs struct {
	Verbose bool `short:"v" long:"verbose" description:"enable debug logging"`

	List    List    `command:"ls" description:"list the contents of ZIP archives"`
	Cat     Cat     `command:"cat" description:"print archive members to stdout"`
	Extract Extract `command:"extract" alias:"x" description:"extract archives"`
	Mount   Mount   `command:"mount" description:"mount a directory of ZIP archives as a read-only filesystem"`
}

// NewParser creates the flags parser for the zipfs binary.
func NewParser() (*Zipfs, *flags.Parser, error) {
	opts := &Zipfs{}

	p := flags.NewNamedParser("zipfs", flags.Default)
	if _, err := p.AddGroup("Global Options", "", opts); err != nil {
		return nil, nil, err
	}

	return opts, p, nil
}
