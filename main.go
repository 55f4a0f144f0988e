package main

import (
	"os"

	"github.com/jandubois/smokecheck/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
