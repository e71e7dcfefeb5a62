package eip1559

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var ErrBaseFeeUnavailable = errors.New("latest block has no base fee")

var (
	// DefaultPriorityFeeFloor applies to chains without a specific floor (0.1 gwei).
	DefaultPriorityFeeFloor = big.NewInt(100_000_000)

	bumpNumerator   = big.NewInt(4)
	bumpDenominator = big.NewInt(3)
)

// FeeReader is the node access SuggestFee needs.
type FeeReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
}

// PriorityFee bumps the network tip by a third and never goes below floor.
func PriorityFee(tip, floor *big.Int) *big.Int {
	bumped := new(big.Int).Mul(tip, bumpNumerator)
	bumped.Quo(bumped, bumpDenominator)
	if floor != nil && bumped.Cmp(floor) < 0 {
		return new(big.Int).Set(floor)
	}
	return bumped
}

// MaxFee is baseFee + priorityFee.
func MaxFee(baseFee, priorityFee *big.Int) *big.Int {
	return new(big.Int).Add(baseFee, priorityFee)
}

// SuggestFee reads the latest base fee and the network tip concurrently and
// returns (maxFeePerGas, maxPriorityFeePerGas).
func SuggestFee(ctx context.Context, client FeeReader, floor *big.Int) (*big.Int, *big.Int, error) {
	var (
		header *types.Header
		tipCap *big.Int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		header, err = client.HeaderByNumber(gctx, nil)
		return err
	})
	g.Go(func() error {
		var err error
		tipCap, err = client.SuggestGasTipCap(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if header == nil || header.BaseFee == nil {
		return nil, nil, ErrBaseFeeUnavailable
	}

	maxPriorityFeePerGas := PriorityFee(tipCap, floor)
	return MaxFee(header.BaseFee, maxPriorityFeePerGas), maxPriorityFeePerGas, nil
}

// FormatGwei renders a wei amount in gwei for logs and CLI output.
func FormatGwei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -9).String()
}
