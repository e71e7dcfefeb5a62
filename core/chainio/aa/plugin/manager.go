// Package plugin installs and uninstalls ERC-6900 plugins on a modular
// account by sending installPlugin and uninstallPlugin UserOperations.
package plugin

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/samber/lo"

	"github.com/AvaProtocol/ap-aa-sdk/core/chainio/aa"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/bundler"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/client"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/userop"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/logger"
)

// Sender is the build, sign and send path. *client.SmartAccountClient
// implements it.
type Sender interface {
	SendCalls(ctx context.Context, calls userop.Calls, overrides *userop.Overrides) (common.Hash, error)
}

type InstallParams struct {
	Plugin common.Address
	// ManifestHash skips the pluginManifest() read when set.
	ManifestHash  *common.Hash
	InitData      []byte
	Dependencies  []FunctionReference
	InjectedHooks []InjectedHook
	Overrides     *userop.Overrides
}

type UninstallParams struct {
	Plugin        common.Address
	Config        []byte
	UninstallData []byte
	Overrides     *userop.Overrides
}

type Manager struct {
	sender Sender
	chain  bundler.ContractCaller
	logger logger.Logger
}

func NewManager(sender Sender, chain bundler.ContractCaller, log logger.Logger) *Manager {
	return &Manager{
		sender: sender,
		chain:  chain,
		logger: logger.ForComponent(log, "plugin_manager"),
	}
}

// ManifestHash reads pluginManifest() once and hashes its ABI encoding.
func (m *Manager) ManifestHash(ctx context.Context, plugin common.Address) (common.Hash, error) {
	values, err := bundler.ReadContract(ctx, m.chain, plugin, PluginABI, "pluginManifest")
	if err != nil {
		return common.Hash{}, err
	}

	encoded, err := PluginABI.Methods["pluginManifest"].Outputs.Pack(values...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode plugin manifest: %w", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

// EncodeInstallPlugin returns the installPlugin call data. Missing init data,
// dependencies and hooks are encoded as empty values.
func (m *Manager) EncodeInstallPlugin(ctx context.Context, p InstallParams) ([]byte, error) {
	var manifestHash common.Hash
	if p.ManifestHash != nil {
		manifestHash = *p.ManifestHash
	} else {
		h, err := m.ManifestHash(ctx, p.Plugin)
		if err != nil {
			return nil, err
		}
		manifestHash = h
	}

	deps := lo.Map(p.Dependencies, func(d FunctionReference, _ int) [21]byte { return d })
	hooks := p.InjectedHooks
	if hooks == nil {
		hooks = []InjectedHook{}
	}

	return PluginManagerABI.Pack("installPlugin",
		p.Plugin,
		manifestHash,
		orEmpty(p.InitData),
		deps,
		hooks,
	)
}

func EncodeUninstallPlugin(p UninstallParams) ([]byte, error) {
	return PluginManagerABI.Pack("uninstallPlugin", p.Plugin, orEmpty(p.Config), orEmpty(p.UninstallData))
}

// InstallPlugin sends installPlugin as the account's own call data and
// returns the UserOperation hash.
func (m *Manager) InstallPlugin(ctx context.Context, p InstallParams) (common.Hash, error) {
	callData, err := m.EncodeInstallPlugin(ctx, p)
	if err != nil {
		return common.Hash{}, err
	}

	hash, err := m.sender.SendCalls(ctx, userop.RawCallData(callData), p.Overrides)
	if err != nil {
		return common.Hash{}, err
	}
	m.logger.Info("install plugin sent", "plugin", p.Plugin.Hex(), "userop", hash.Hex())
	return hash, nil
}

func (m *Manager) UninstallPlugin(ctx context.Context, p UninstallParams) (common.Hash, error) {
	callData, err := EncodeUninstallPlugin(p)
	if err != nil {
		return common.Hash{}, err
	}

	hash, err := m.sender.SendCalls(ctx, userop.RawCallData(callData), p.Overrides)
	if err != nil {
		return common.Hash{}, err
	}
	m.logger.Info("uninstall plugin sent", "plugin", p.Plugin.Hex(), "userop", hash.Hex())
	return hash, nil
}

// Actions is a client extension exposing installPlugin and uninstallPlugin.
func Actions(chain bundler.ContractCaller, log logger.Logger) func(*client.SmartAccountClient) aa.Capabilities {
	return func(c *client.SmartAccountClient) aa.Capabilities {
		m := NewManager(c, chain, log)
		return aa.Capabilities{
			"installPlugin":   m.InstallPlugin,
			"uninstallPlugin": m.UninstallPlugin,
		}
	}
}

func orEmpty(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
