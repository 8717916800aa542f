// Package cli implements the cvlens command line client.
package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "cvlens",
	Short: "CVLens resume analysis client",
	Long:  "Command line client for the CVLens resume analysis service: upload resumes, list them, and follow analysis progress",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// .env is optional; real environment variables and flags still win
	_ = godotenv.Load()

	defaultServer := os.Getenv("CVLENS_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultServer,
		"CVLens server base URL")

	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newWatchCmd())
}
