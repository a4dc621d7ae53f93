package main

import (
	"os"

	"github.com/Huangmachi/exp-IPMAN/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
