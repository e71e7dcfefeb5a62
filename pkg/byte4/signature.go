package byte4

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// GetMethodFromCalldata returns the ABI method whose selector matches the
// first 4 bytes of calldata.
func GetMethodFromCalldata(parsedABI abi.ABI, calldata []byte) (*abi.Method, error) {
	if len(calldata) < 4 {
		return nil, fmt.Errorf("invalid selector length: %d", len(calldata))
	}

	method, err := parsedABI.MethodById(calldata[:4])
	if err != nil {
		return nil, fmt.Errorf("no matching method found for selector: 0x%x", calldata[:4])
	}
	return method, nil
}

// Describe returns the method name of calldata in the first ABI that knows
// the selector, or the hex selector. Empty calldata is "0x".
func Describe(calldata []byte, abis ...abi.ABI) string {
	if len(calldata) < 4 {
		return hexutil.Encode(calldata)
	}
	for _, parsed := range abis {
		if m, err := GetMethodFromCalldata(parsed, calldata); err == nil {
			return m.Name
		}
	}
	return hexutil.Encode(calldata[:4])
}
