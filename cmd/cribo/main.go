package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version info, set by ldflags during build.
	Version = "dev"
	Commit  = "unknown"

	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func main() {
	root := &cobra.Command{
		Use:   "cribo",
		Short: bold("Cribo") + " bundles a first-party source tree into a single file",
		Long:  "Cribo bundles a first-party source tree and its relative imports into a\nsingle emitted file. Standard-library and third-party imports are kept as\nimport statements, hoisted to the top of the output.",
	}
	root.Version = Version + " (" + Commit + ")"

	root.AddCommand(newBundleCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newGraphCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}
}
