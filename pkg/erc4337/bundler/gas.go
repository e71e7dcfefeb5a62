package bundler

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// GasEstimation is the eth_estimateUserOperationGas result.
type GasEstimation struct {
	PreVerificationGas   *big.Int
	VerificationGasLimit *big.Int
	CallGasLimit         *big.Int
}

type gasEstimationJSON struct {
	PreVerificationGas   *hexutil.Big `json:"preVerificationGas"`
	VerificationGasLimit *hexutil.Big `json:"verificationGasLimit"`
	// some bundlers still answer with the pre v0.6 name
	VerificationGas *hexutil.Big `json:"verificationGas"`
	CallGasLimit    *hexutil.Big `json:"callGasLimit"`
}

func (g gasEstimationJSON) toGasEstimation() *GasEstimation {
	vgl := g.VerificationGasLimit
	if vgl == nil {
		vgl = g.VerificationGas
	}
	return &GasEstimation{
		PreVerificationGas:   bigOrZero(g.PreVerificationGas),
		VerificationGasLimit: bigOrZero(vgl),
		CallGasLimit:         bigOrZero(g.CallGasLimit),
	}
}

func bigOrZero(v *hexutil.Big) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToInt()
}
