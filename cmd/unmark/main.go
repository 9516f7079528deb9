package main

import (
	"os"

	"github.com/guiyumin/unmark/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
