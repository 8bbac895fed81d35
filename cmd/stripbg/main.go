// Command stripbg removes backgrounds from batches of images.
package main

import (
	"os"

	"github.com/stripbg/stripbg/internal/cli"
)

// version is injected at build time via -ldflags.
var version = "dev"

func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		os.Exit(1)
	}
}
