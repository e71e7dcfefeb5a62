package aa

import (
	"github.com/ethereum/go-ethereum/common"
)

var (
	// EntryPoint v0.6
	EntrypointAddress = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")

	DefaultSimpleFactoryAddress  = common.HexToAddress("0x29adA1b5217242DEaBB142BC3b1bCfFdd56008e7")
	DefaultLightFactoryAddress   = common.HexToAddress("0x00004EC70002a32400f8ae005A26081065620D20")
	DefaultModularFactoryAddress = common.HexToAddress("0x000000e92D78D90000007F0082006FDA09BD5f11")
)

// dummySignature has a valid ECDSA shape so bundler simulation gets past
// signature parsing and charges realistic verification gas.
var dummySignature = common.FromHex("0xfffffffffffffffffffffffffffffff0000000000000000000000000000000007aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1c")

// DefaultFactoryAddress returns the factory used when none is configured.
func DefaultFactoryAddress(kind Kind) common.Address {
	switch kind {
	case KindLight:
		return DefaultLightFactoryAddress
	case KindModular:
		return DefaultModularFactoryAddress
	default:
		return DefaultSimpleFactoryAddress
	}
}
