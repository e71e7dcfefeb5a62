package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the smart account address",
	Long: `Print the smart account address and whether it is deployed.

The address is counterfactual until the first UserOperation deploys it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		addr, err := s.account.GetAddress(ctx)
		if err != nil {
			return err
		}
		owner, err := s.account.GetOwner().GetAddress(ctx)
		if err != nil {
			return err
		}
		state, err := s.account.GetDeploymentState(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "address:    %s\n", addr.Hex())
		fmt.Fprintf(out, "kind:       %s\n", s.account.Kind())
		fmt.Fprintf(out, "owner:      %s\n", owner.Hex())
		fmt.Fprintf(out, "deployment: %s\n", state)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addressCmd)
}
