package main

import (
	"errors"
	"fmt"
	"os"

	"calrepeat/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}

	// Commands report their own failures; anything else comes from cobra.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run 'calrepeat --help' for usage.")
	}
	os.Exit(cli.GetExitCode(err))
}
