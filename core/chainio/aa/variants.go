package aa

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"

	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/userop"
)

// Kind names an account implementation.
type Kind string

const (
	KindSimple  Kind = "simple"
	KindLight   Kind = "light"
	KindModular Kind = "modular"
)

// ParseKind accepts the names used in config files.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindSimple, KindLight, KindModular:
		return Kind(s), nil
	case "":
		return KindSimple, nil
	}
	return "", fmt.Errorf("unknown account kind %q", s)
}

// variant is the per-contract encoding an Account delegates to.
type variant interface {
	kind() Kind
	factoryCallData(owner common.Address, salt *big.Int) ([]byte, error)
	encodeExecute(target common.Address, value *big.Int, data []byte) ([]byte, error)
	encodeBatchExecute(calls []userop.Call) ([]byte, error)
	supportsTypedData() bool
}

func newVariant(kind Kind) (variant, error) {
	switch kind {
	case KindSimple, "":
		return simpleVariant{k: KindSimple}, nil
	case KindLight:
		return simpleVariant{k: KindLight, typedData: true}, nil
	case KindModular:
		return modularVariant{}, nil
	}
	return nil, fmt.Errorf("unknown account kind %q", kind)
}

// simpleVariant covers SimpleAccount and LightAccount, which share the
// execute/executeBatch ABI. executeBatch takes no values so every batched
// call is sent with zero value.
type simpleVariant struct {
	k         Kind
	typedData bool
}

func (v simpleVariant) kind() Kind              { return v.k }
func (v simpleVariant) supportsTypedData() bool { return v.typedData }

func (v simpleVariant) factoryCallData(owner common.Address, salt *big.Int) ([]byte, error) {
	return SimpleFactoryABI.Pack("createAccount", owner, salt)
}

func (v simpleVariant) encodeExecute(target common.Address, value *big.Int, data []byte) ([]byte, error) {
	return SimpleAccountABI.Pack("execute", target, value, data)
}

func (v simpleVariant) encodeBatchExecute(calls []userop.Call) ([]byte, error) {
	targets := lo.Map(calls, func(c userop.Call, _ int) common.Address { return c.Target })
	data := lo.Map(calls, func(c userop.Call, _ int) []byte { return nonNilBytes(c.Data) })
	return SimpleAccountABI.Pack("executeBatch", targets, data)
}

// modularVariant is the ERC-6900 multi-owner modular account.
type modularVariant struct{}

// modularCall mirrors the Call tuple of executeBatch.
type modularCall struct {
	Target common.Address
	Value  *big.Int
	Data   []byte
}

func (modularVariant) kind() Kind              { return KindModular }
func (modularVariant) supportsTypedData() bool { return true }

func (modularVariant) factoryCallData(owner common.Address, salt *big.Int) ([]byte, error) {
	return ModularFactoryABI.Pack("createAccount", salt, []common.Address{owner})
}

func (modularVariant) encodeExecute(target common.Address, value *big.Int, data []byte) ([]byte, error) {
	return ModularAccountABI.Pack("execute", target, value, data)
}

func (modularVariant) encodeBatchExecute(calls []userop.Call) ([]byte, error) {
	tuples := lo.Map(calls, func(c userop.Call, _ int) modularCall {
		return modularCall{Target: c.Target, Value: c.ValueOrZero(), Data: nonNilBytes(c.Data)}
	})
	return ModularAccountABI.Pack("executeBatch", tuples)
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
