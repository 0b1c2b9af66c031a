package main

import (
	"os"

	"github.com/flo-mic/osbctl/internal/cmd"
)

func main() {
	if err := cmd.Root().Execute(); err != nil {
		os.Exit(1)
	}
}
