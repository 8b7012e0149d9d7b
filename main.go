package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"swiftkernel/cmd"
)

func main() {
	var cli cmd.CLI
	ctx := kong.Parse(&cli,
		kong.Name("swiftkernel"),
		kong.Description("A Jupyter kernel that drives a persistent Swift REPL."),
		kong.UsageOnError(),
	)

	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
