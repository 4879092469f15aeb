package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/hopscotch/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		// Flag and usage errors never carry a coded exit.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCommandError)
	}
}
