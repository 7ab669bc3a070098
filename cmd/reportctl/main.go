package main

import (
	"os"
)

func main() {
	if err := newRootCmd(newRuntime).Execute(); err != nil {
		os.Exit(1)
	}
}
