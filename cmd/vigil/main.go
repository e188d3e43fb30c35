package main

import (
	"fmt"
	"os"

	"github.com/roach88/vigil/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "vigil: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
