// Package cmd provides the command-line interface for tablesim.
package cmd

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "tablesim",
	Short: "Tablesim runs concurrent resource-arbitration exercises of the " +
		"dining-philosophers family.",
	Long: `Tablesim seats N actors around a ring of N forks and drives them ` +
		`through a bounded number of think-eat cycles without deadlock. ` +
		`Arbitration policies, tracing, and live monitoring are selected ` +
		`with flags; defaults can also be set with TABLESIM_* variables in ` +
		`the environment or a .env file.`,
}

func init() {
	// Flag defaults can come from a .env file, so it must be read before
	// the flags are registered.
	_ = godotenv.Load()
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func envOrInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	number, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}

	return number
}

func envOrString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	return value
}
