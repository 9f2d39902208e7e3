package main

import (
	"os"

	"github.com/bnema/odfops/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
