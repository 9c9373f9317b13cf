// Command dittofs runs the NFSv3 server described by a YAML
// configuration file: it exposes "init", "start", "stop", "status",
// "logs", and "config" subcommands built on cobra.
package main

import (
	"os"

	"github.com/marmos91/nfsv3d/cmd/dittofs/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
