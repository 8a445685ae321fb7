package main

import (
	"fmt"
	"os"

	"github.com/haricheung/assignment-helper/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sah: %v\n", err)
		os.Exit(1)
	}
}
