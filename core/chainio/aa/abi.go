package aa

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Only the fragments the SDK calls are kept here rather than full generated bindings.
const (
	entryPointABIJSON = `[
	{"type":"function","name":"getNonce","stateMutability":"view",
	 "inputs":[{"name":"sender","type":"address"},{"name":"key","type":"uint192"}],
	 "outputs":[{"name":"nonce","type":"uint256"}]},
	{"type":"function","name":"getSenderAddress","stateMutability":"nonpayable",
	 "inputs":[{"name":"initCode","type":"bytes"}],"outputs":[]},
	{"type":"error","name":"SenderAddressResult",
	 "inputs":[{"name":"sender","type":"address"}]}
	]`

	simpleAccountABIJSON = `[
	{"type":"function","name":"execute","stateMutability":"nonpayable",
	 "inputs":[{"name":"dest","type":"address"},{"name":"value","type":"uint256"},{"name":"func","type":"bytes"}],
	 "outputs":[]},
	{"type":"function","name":"executeBatch","stateMutability":"nonpayable",
	 "inputs":[{"name":"dest","type":"address[]"},{"name":"func","type":"bytes[]"}],
	 "outputs":[]}
	]`

	simpleFactoryABIJSON = `[
	{"type":"function","name":"createAccount","stateMutability":"nonpayable",
	 "inputs":[{"name":"owner","type":"address"},{"name":"salt","type":"uint256"}],
	 "outputs":[{"name":"ret","type":"address"}]}
	]`

	modularAccountABIJSON = `[
	{"type":"function","name":"execute","stateMutability":"payable",
	 "inputs":[{"name":"target","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"}],
	 "outputs":[{"name":"result","type":"bytes"}]},
	{"type":"function","name":"executeBatch","stateMutability":"payable",
	 "inputs":[{"name":"calls","type":"tuple[]","components":[
	   {"name":"target","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"}]}],
	 "outputs":[{"name":"results","type":"bytes[]"}]}
	]`

	modularFactoryABIJSON = `[
	{"type":"function","name":"createAccount","stateMutability":"nonpayable",
	 "inputs":[{"name":"salt","type":"uint256"},{"name":"owners","type":"address[]"}],
	 "outputs":[{"name":"addr","type":"address"}]}
	]`
)

var (
	EntryPointABI     = mustParseABI("entrypoint", entryPointABIJSON)
	SimpleAccountABI  = mustParseABI("simple account", simpleAccountABIJSON)
	SimpleFactoryABI  = mustParseABI("simple factory", simpleFactoryABIJSON)
	ModularAccountABI = mustParseABI("modular account", modularAccountABIJSON)
	ModularFactoryABI = mustParseABI("modular factory", modularFactoryABIJSON)
)

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Errorf("invalid %s ABI: %w", name, err))
	}
	return parsed
}

// MustParseABI is exported for sibling packages that carry their own fragments.
func MustParseABI(name, raw string) abi.ABI {
	return mustParseABI(name, raw)
}
