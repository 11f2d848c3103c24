// Command jobsd serves the job lifecycle API.
package main

import (
	"os"

	"github.com/jdziat/service-jobs/cmd/jobsd/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
