package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
)

type Cat struct {
	Args struct {
		File    flags.Filename `positional-arg-name:"file" description:"the ZIP archive" required:"yes"`
		Members []string       `positional-arg-name:"member" description:"the member paths to print" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Cat) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	fsys, release, err := openArchive(string(c.Args.File))
	if err != nil {
		return fmt.Errorf("open archive error: %w", err)
	}
	defer release()

	for _, member := range c.Args.Members {
		data, err := fsys.ReadPath(member)
		if err != nil {
			return fmt.Errorf("read %q error: %w", member, err)
		}

		if _, err = os.Stdout.Write(data); err != nil {
			return fmt.Errorf("write %q error: %w", member, err)
		}
	}

	return nil
}
