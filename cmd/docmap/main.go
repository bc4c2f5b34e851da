package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information - will be set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "docmap",
		Short: "docmap document-mapping toolkit",
		Long: `docmap maps plain Go structs to documents in a schema-flexible
document store. This tool ships a demo walkthrough and version information.`,
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(demoCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
