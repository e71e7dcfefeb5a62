package userop

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Calls is what a caller wants the account to execute: a single Call, a
// BatchCall or RawCallData that is used verbatim as the callData field.
type Calls interface {
	isCalls()
}

// Call is one execution request. A nil Value means zero.
type Call struct {
	Target common.Address `mapstructure:"to"`
	Value  *big.Int       `mapstructure:"value"`
	Data   []byte         `mapstructure:"data"`
}

// BatchCall executes its calls in order.
type BatchCall []Call

// RawCallData is passed through without encoding.
type RawCallData []byte

func (Call) isCalls()        {}
func (BatchCall) isCalls()   {}
func (RawCallData) isCalls() {}

// ValueOrZero returns the call value, or 0 when unset.
func (c Call) ValueOrZero() *big.Int {
	if c.Value == nil {
		return new(big.Int)
	}
	return c.Value
}
