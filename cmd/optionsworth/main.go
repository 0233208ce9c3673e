package main

import (
	"context"
	"fmt"
	"os"

	"optionsworth/internal/cli"
)

func main() {
	root := cli.NewRootCommand(context.Background())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
