package main

import (
	"os"

	"github.com/bnema/convtree/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
