package main

import (
	"fmt"
	"os"

	"github.com/Ramsey-B/clover/cmd"
)

func main() {
	if err := cmd.RootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "clover: %v\n", err)
		os.Exit(1)
	}
}
