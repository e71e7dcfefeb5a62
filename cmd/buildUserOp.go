package cmd

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/userop"
)

var (
	signBuilt bool

	buildUserOpCmd = &cobra.Command{
		Use:   "build-userop",
		Short: "Build a UserOperation without sending it",
		Long: `Run the middleware pipeline for the given calls and print the resulting
UserOperation as JSON. The signature is the dummy signature unless --sign is set.`,
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

			op, err := s.client.BuildUserOperation(ctx, calls, overrides)
			if err != nil {
				return err
			}
			if signBuilt {
				if op, err = s.client.SignUserOperation(ctx, op); err != nil {
					return err
				}
			}
			return printUserOp(cmd, op)
		},
	}
)

func printUserOp(cmd *cobra.Command, op *userop.UserOperation) error {
	out, err := json.MarshalIndent(op, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func init() {
	addCallFlags(buildUserOpCmd.Flags())
	addOverrideFlags(buildUserOpCmd.Flags())
	buildUserOpCmd.Flags().BoolVar(&signBuilt, "sign", false, "Sign the built UserOperation with the owner key")
	rootCmd.AddCommand(buildUserOpCmd)
}
