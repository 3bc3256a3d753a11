package main

import (
	"os"

	"github.com/harun/erigo/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
