package main

import (
	"os"

	"github.com/mikaelmello/delayprobe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
