// Package decodehook decodes the string form of JSON-RPC params and CLI
// flags into go-ethereum types with mapstructure.
package decodehook

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/mitchellh/mapstructure"
)

var (
	addressType = reflect.TypeOf(common.Address{})
	bigIntType  = reflect.TypeOf(&big.Int{})
	bytesType   = reflect.TypeOf([]byte{})
)

// Hex turns strings into common.Address (checked), *big.Int (decimal or 0x,
// at most 256 bits, never negative) and []byte (0x hex). Other values pass
// through untouched.
func Hex(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	switch to {
	case addressType:
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid address %q", s)
		}
		return common.HexToAddress(s), nil
	case bigIntType:
		v, ok := math.ParseBig256(s)
		if !ok || v.Sign() < 0 {
			return nil, fmt.Errorf("invalid quantity %q", s)
		}
		return v, nil
	case bytesType:
		return hexutil.Decode(s)
	}
	return data, nil
}

// Decode decodes input into out with the Hex hook.
func Decode(input interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: Hex,
		Result:     out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
