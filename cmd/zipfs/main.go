package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/zipfs/internal/cmd"
	"github.com/nguyengg/zipfs/internal/logging"
)

func main() {
	opts, p, err := cmd.NewParser()
	if err != nil {
		os.Exit(1)
	}

	p.CommandHandler = func(command flags.Commander, args []string) error {
		logging.Setup(opts.Verbose)
		return command.Execute(args)
	}

	if _, err = p.Parse(); err != nil && !flags.WroteHelp(err) {
		os.Exit(1)
	}
}
