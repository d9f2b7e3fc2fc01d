package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "finvizor",
	Short: "Finvizor - value screening advisor with a simulated portfolio",
	Long: `Finvizor fuses the Finviz E/P and ROE screener rankings into one
composite table, filters it with Yahoo analyst estimates and keeps a
simulated FIFO portfolio aligned with the best undervalued candidates.

Usage:
  go run ./cmd/finvizor [command]

Examples:
  go run ./cmd/finvizor serve
  go run ./cmd/finvizor cycle
  go run ./cmd/finvizor status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
