package main

import (
	"os"

	appLog "coursecal/internal/log"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := newRootCmd()
	root.Version = version

	err := root.Execute()
	appLog.Sync()
	if err != nil {
		os.Exit(1)
	}
}
