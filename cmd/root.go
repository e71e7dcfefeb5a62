package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var (
	configPath = "./config/aa.yaml"
	timeout    = 2 * time.Minute
	rootCmd    = &cobra.Command{
		Use:   "ap-aa",
		Short: "Ava Protocol smart account CLI",
		Long: `Build, sign and send ERC-4337 UserOperations from a smart account.

Such as "ap-aa address" to print the counterfactual account address or
"ap-aa send-userop --to 0x... --value 1000" to submit a transfer.
`,
		SilenceUsage: true,
	}
)

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", configPath, "Path to config file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", timeout, "Give up after this long")
}
