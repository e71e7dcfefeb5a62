package cmd

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/AvaProtocol/ap-aa-sdk/core/config"
)

var (
	waitReceipt bool

	sendUserOpCmd = &cobra.Command{
		Use:   "send-userop",
		Short: "Build, sign and send a UserOperation",
		Long: `Build a UserOperation for the given calls, sign it with the owner key and
send it to the bundler. With --wait the command polls for the receipt and
prints the transaction hash that included it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			calls, err := callsFromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			overrides, err := overridesFromFlags(cmd.Flags())
			if err != nil {
				return err
			}

			ctx, cancel := commandContext()
			defer cancel()

			s, err := newSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			hash, err := s.client.SendCalls(ctx, calls, overrides)
			if err != nil {
				return err
			}
			return s.report(ctx, cmd, hash)
		},
	}
)

// report prints the UserOperation hash and, with --wait, its receipt.
func (s *session) report(ctx context.Context, cmd *cobra.Command, hash common.Hash) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "userOpHash: %s\n", hash.Hex())
	fmt.Fprintf(out, "explorer:   %s\n", config.UserOpExplorerURL(s.chainID, hash.Hex()))
	if !waitReceipt {
		return nil
	}

	receipt, err := s.client.WaitForUserOperationReceipt(ctx, hash)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "txHash:     %s\n", receipt.Receipt.TransactionHash.Hex())
	fmt.Fprintf(out, "success:    %t\n", receipt.Success)
	if !receipt.Success && receipt.Reason != "" {
		fmt.Fprintf(out, "reason:     %s\n", receipt.Reason)
	}
	return nil
}

func init() {
	addCallFlags(sendUserOpCmd.Flags())
	addOverrideFlags(sendUserOpCmd.Flags())
	rootCmd.PersistentFlags().BoolVar(&waitReceipt, "wait", false, "Wait for the UserOperation receipt")
	rootCmd.AddCommand(sendUserOpCmd)
}
