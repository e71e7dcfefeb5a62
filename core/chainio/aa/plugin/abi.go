package plugin

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AvaProtocol/ap-aa-sdk/core/chainio/aa"
)

const (
	manifestFunctionTuple = `{"name":"functionType","type":"uint8"},{"name":"functionId","type":"uint8"},{"name":"dependencyIndex","type":"uint256"}`

	associatedFunctionTuple = `{"name":"executionSelector","type":"bytes4"},
		{"name":"associatedFunction","type":"tuple","components":[` + manifestFunctionTuple + `]}`

	pluginABIJSON = `[
	{"type":"function","name":"pluginManifest","stateMutability":"pure","inputs":[],
	 "outputs":[{"name":"","type":"tuple","components":[
		{"name":"interfaceIds","type":"bytes4[]"},
		{"name":"dependencyInterfaceIds","type":"bytes4[]"},
		{"name":"executionFunctions","type":"bytes4[]"},
		{"name":"permittedExecutionSelectors","type":"bytes4[]"},
		{"name":"permitAnyExternalAddress","type":"bool"},
		{"name":"canSpendNativeToken","type":"bool"},
		{"name":"permittedExternalCalls","type":"tuple[]","components":[
			{"name":"externalAddress","type":"address"},
			{"name":"permitAnySelector","type":"bool"},
			{"name":"selectors","type":"bytes4[]"}]},
		{"name":"userOpValidationFunctions","type":"tuple[]","components":[` + associatedFunctionTuple + `]},
		{"name":"runtimeValidationFunctions","type":"tuple[]","components":[` + associatedFunctionTuple + `]},
		{"name":"preUserOpValidationHooks","type":"tuple[]","components":[` + associatedFunctionTuple + `]},
		{"name":"preRuntimeValidationHooks","type":"tuple[]","components":[` + associatedFunctionTuple + `]},
		{"name":"executionHooks","type":"tuple[]","components":[
			{"name":"executionSelector","type":"bytes4"},
			{"name":"preExecHook","type":"tuple","components":[` + manifestFunctionTuple + `]},
			{"name":"postExecHook","type":"tuple","components":[` + manifestFunctionTuple + `]}]}
	 ]}]}
	]`

	pluginManagerABIJSON = `[
	{"type":"function","name":"installPlugin","stateMutability":"nonpayable","inputs":[
		{"name":"plugin","type":"address"},
		{"name":"manifestHash","type":"bytes32"},
		{"name":"pluginInitData","type":"bytes"},
		{"name":"dependencies","type":"bytes21[]"},
		{"name":"injectedHooks","type":"tuple[]","components":[
			{"name":"providingPlugin","type":"address"},
			{"name":"selector","type":"bytes4"},
			{"name":"injectedHooksInfo","type":"tuple","components":[
				{"name":"preExecHookFunctionId","type":"uint8"},
				{"name":"isPostHookUsed","type":"bool"},
				{"name":"postExecHookFunctionId","type":"uint8"}]},
			{"name":"hookApplyData","type":"bytes"}]}],
	 "outputs":[]},
	{"type":"function","name":"uninstallPlugin","stateMutability":"nonpayable","inputs":[
		{"name":"plugin","type":"address"},
		{"name":"config","type":"bytes"},
		{"name":"pluginUninstallData","type":"bytes"}],
	 "outputs":[]}
	]`
)

var (
	PluginABI        = aa.MustParseABI("plugin", pluginABIJSON)
	PluginManagerABI = aa.MustParseABI("plugin manager", pluginManagerABIJSON)
)

// FunctionReference packs a plugin address and a function id into bytes21.
type FunctionReference [21]byte

func NewFunctionReference(plugin common.Address, functionID uint8) FunctionReference {
	var ref FunctionReference
	copy(ref[:20], plugin.Bytes())
	ref[20] = functionID
	return ref
}

type InjectedHooksInfo struct {
	PreExecHookFunctionId  uint8
	IsPostHookUsed         bool
	PostExecHookFunctionId uint8
}

// InjectedHook asks a dependency plugin to hook one of the new plugin's
// execution selectors.
type InjectedHook struct {
	ProvidingPlugin   common.Address
	Selector          [4]byte
	InjectedHooksInfo InjectedHooksInfo
	HookApplyData     []byte
}

// Manifest types mirror the pluginManifest() tuple so callers and tests can
// build or inspect manifests.
type ManifestFunction struct {
	FunctionType    uint8
	FunctionId      uint8
	DependencyIndex *big.Int
}

type ManifestAssociatedFunction struct {
	ExecutionSelector  [4]byte
	AssociatedFunction ManifestFunction
}

type ManifestExternalCallPermission struct {
	ExternalAddress   common.Address
	PermitAnySelector bool
	Selectors         [][4]byte
}

type ManifestExecutionHook struct {
	ExecutionSelector [4]byte
	PreExecHook       ManifestFunction
	PostExecHook      ManifestFunction
}

type Manifest struct {
	InterfaceIds                [][4]byte
	DependencyInterfaceIds      [][4]byte
	ExecutionFunctions          [][4]byte
	PermittedExecutionSelectors [][4]byte
	PermitAnyExternalAddress    bool
	CanSpendNativeToken         bool
	PermittedExternalCalls      []ManifestExternalCallPermission
	UserOpValidationFunctions   []ManifestAssociatedFunction
	RuntimeValidationFunctions  []ManifestAssociatedFunction
	PreUserOpValidationHooks    []ManifestAssociatedFunction
	PreRuntimeValidationHooks   []ManifestAssociatedFunction
	ExecutionHooks              []ManifestExecutionHook
}
