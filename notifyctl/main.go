package main

import (
	"fmt"
	"os"

	"github.com/Udit004/alumni-networking-sub003/src/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
