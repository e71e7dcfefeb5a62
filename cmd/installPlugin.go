package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/AvaProtocol/ap-aa-sdk/core/chainio/aa/plugin"
)

var installPluginCmd = &cobra.Command{
	Use:   "install-plugin",
	Short: "Install an ERC-6900 plugin on a modular account",
	Long: `Send an installPlugin UserOperation. The manifest hash is read from the
plugin unless --manifest-hash is given. Dependencies are written as
<address>:<functionId>.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		p := plugin.InstallParams{}

		var err error
		if p.Plugin, err = pluginFlag(cmd); err != nil {
			return err
		}
		if p.ManifestHash, err = manifestHashFlag(flags); err != nil {
			return err
		}
		if p.InitData, err = hexFlag(flags, "init-data"); err != nil {
			return err
		}
		deps, err := flags.GetStringSlice("dependency")
		if err != nil {
			return err
		}
		if p.Dependencies, err = parseDependencies(deps); err != nil {
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

		hash, err := plugin.NewManager(s.client, s.node, s.cfg.Logger).InstallPlugin(ctx, p)
		if err != nil {
			return err
		}
		return s.report(ctx, cmd, hash)
	},
}

func pluginFlag(cmd *cobra.Command) (common.Address, error) {
	v, err := cmd.Flags().GetString("plugin")
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("invalid plugin address %q", v)
	}
	return common.HexToAddress(v), nil
}

func manifestHashFlag(flags *pflag.FlagSet) (*common.Hash, error) {
	b, err := hexFlag(flags, "manifest-hash")
	if err != nil || b == nil {
		return nil, err
	}
	if len(b) != common.HashLength {
		return nil, fmt.Errorf("invalid manifest hash length %d", len(b))
	}
	hash := common.BytesToHash(b)
	return &hash, nil
}

func parseDependencies(values []string) ([]plugin.FunctionReference, error) {
	deps := make([]plugin.FunctionReference, 0, len(values))
	for _, v := range values {
		addr, id, ok := strings.Cut(v, ":")
		if !ok || !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid dependency %q, want <address>:<functionId>", v)
		}
		n, err := strconv.ParseUint(id, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid dependency function id %q: %w", id, err)
		}
		deps = append(deps, plugin.NewFunctionReference(common.HexToAddress(addr), uint8(n)))
	}
	return deps, nil
}

func init() {
	installPluginCmd.Flags().String("plugin", "", "Plugin contract address")
	installPluginCmd.Flags().String("manifest-hash", "", "Expected keccak256 of the plugin manifest")
	installPluginCmd.Flags().String("init-data", "", "Hex data passed to onInstall")
	installPluginCmd.Flags().StringSlice("dependency", nil, "Dependency function reference <address>:<functionId>")
	installPluginCmd.MarkFlagRequired("plugin")
	addOverrideFlags(installPluginCmd.Flags())
	rootCmd.AddCommand(installPluginCmd)
}
