package cmd

import (
	"github.com/spf13/cobra"

	"github.com/AvaProtocol/ap-aa-sdk/core/chainio/aa/plugin"
)

var uninstallPluginCmd = &cobra.Command{
	Use:   "uninstall-plugin",
	Short: "Uninstall an ERC-6900 plugin from a modular account",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		p := plugin.UninstallParams{}

		var err error
		if p.Plugin, err = pluginFlag(cmd); err != nil {
			return err
		}
		if p.Config, err = hexFlag(flags, "config-data"); err != nil {
			return err
		}
		if p.UninstallData, err = hexFlag(flags, "uninstall-data"); err != nil {
			return err
		}
		if p.Overrides, err = overridesFromFlags(flags); err != nil {
			return err
		}

		ctx, cancel := commandContext()
		defer cancel()

		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		hash, err := plugin.NewManager(s.client, s.node, s.cfg.Logger).UninstallPlugin(ctx, p)
		if err != nil {
			return err
		}
		return s.report(ctx, cmd, hash)
	},
}

func init() {
	uninstallPluginCmd.Flags().String("plugin", "", "Plugin contract address")
	uninstallPluginCmd.Flags().String("config-data", "", "Hex config passed to the account")
	uninstallPluginCmd.Flags().String("uninstall-data", "", "Hex data passed to onUninstall")
	uninstallPluginCmd.MarkFlagRequired("plugin")
	addOverrideFlags(uninstallPluginCmd.Flags())
	rootCmd.AddCommand(uninstallPluginCmd)
}
