// Command mm runs the binary-option market maker: it subscribes to a basket
// of spot price feeds and a prediction venue's orderbook/fill streams,
// computes a fair value per contract, and posts/cancels quotes to capture
// edge while respecting a hard per-market loss budget.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mm",
	Short: "Binary-option market maker",
	Long: `mm prices and quotes binary YES/NO prediction-market contracts against
a blended spot price and a venue orderbook, sizing every quote to a
configurable max-loss-per-market budget.`,
}

// Execute runs the root command. Called once from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
