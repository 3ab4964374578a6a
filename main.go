package main

import (
	"fmt"
	"os"

	"github.com/freightdesk/linkage-engine/cmd"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := cmd.RootCommand(Version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
