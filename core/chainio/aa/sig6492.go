package aa

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ERC6492MagicBytes terminates every ERC-6492 wrapped signature.
var ERC6492MagicBytes = common.FromHex("0x6492649264926492649264926492649264926492649264926492649264926492")

var (
	addressType, _ = abi.NewType("address", "", nil)
	bytesType, _   = abi.NewType("bytes", "", nil)

	sig6492Args = abi.Arguments{
		{Type: addressType}, // factory
		{Type: bytesType},   // factory calldata
		{Type: bytesType},   // signature
	}
)

var ErrNot6492 = errors.New("signature is not ERC-6492 wrapped")

// Create6492Signature returns signature unchanged for a deployed account and
// abi.encode(factory, factoryCallData, signature) ‖ magic otherwise, so a
// verifier can deploy the account before checking the signature.
func Create6492Signature(isDeployed bool, factory common.Address, factoryCallData, signature []byte) ([]byte, error) {
	if isDeployed {
		return signature, nil
	}
	return Wrap6492(factory, factoryCallData, signature)
}

func Wrap6492(factory common.Address, factoryCallData, signature []byte) ([]byte, error) {
	encoded, err := sig6492Args.Pack(factory, nonNilBytes(factoryCallData), nonNilBytes(signature))
	if err != nil {
		return nil, fmt.Errorf("encode 6492 signature: %w", err)
	}
	return append(encoded, ERC6492MagicBytes...), nil
}

// Is6492 reports whether sig ends with the ERC-6492 magic suffix.
func Is6492(sig []byte) bool {
	return len(sig) >= len(ERC6492MagicBytes) && bytes.HasSuffix(sig, ERC6492MagicBytes)
}

// Unwrap6492 reverses Wrap6492.
func Unwrap6492(sig []byte) (factory common.Address, factoryCallData, signature []byte, err error) {
	if !Is6492(sig) {
		return common.Address{}, nil, nil, ErrNot6492
	}

	values, err := sig6492Args.Unpack(sig[:len(sig)-len(ERC6492MagicBytes)])
	if err != nil {
		return common.Address{}, nil, nil, fmt.Errorf("decode 6492 signature: %w", err)
	}
	return values[0].(common.Address), values[1].([]byte), values[2].([]byte), nil
}
