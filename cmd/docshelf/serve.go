package main

import (
	"fmt"
	"os"

	"github.com/nebari-dev/docshelf/internal/server"
	"github.com/spf13/cobra"
)

var servePort int

// @title docshelf API
// @version 1.0
// @description Document storage with role-based access control
// @host localhost:3000
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the docshelf API server",
	Long: `Start the docshelf HTTP API.

Examples:
  docshelf serve                # Use the configured port (default 3000)
  docshelf serve --port 8080    # Override port

Environment variables:
  PORT, DOCSHELF_SERVER_PORT             Server port (default: 3000)
  JWT_SECRET, DOCSHELF_AUTH_JWT_SECRET   Token signing secret
  DATABASE_URL, DOCSHELF_DATABASE_DSN    Database connection string
  DOCSHELF_DATABASE_DRIVER               Database driver: sqlite, postgres
  PYTHON_BACKEND_URL                     Ingestion service URL
  DOCSHELF_STORAGE_BACKEND               File storage: local, s3
  ADMIN_EMAIL                            Bootstrap admin email
  ADMIN_USERNAME                         Bootstrap admin username
  ADMIN_PASSWORD                         Bootstrap admin password`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := server.Config{
		Port:    servePort,
		Version: Version,
	}

	if err := server.RunWithSignalHandling(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
