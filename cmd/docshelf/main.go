package main

import (
	"os"

	_ "github.com/nebari-dev/docshelf/docs" // Load swagger docs
	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "docshelf",
	Short: "docshelf - document storage backend with role-based access control",
	Long: `docshelf serves a REST API for user accounts and owned documents,
and forwards ingestion requests to an external ingestion service.`,
	Example: `  # Run the API server
  docshelf serve --port 8080

  # Create an administrator account
  docshelf create-admin --email root@example.com --username root`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
