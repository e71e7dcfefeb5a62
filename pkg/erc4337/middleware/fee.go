package middleware

import (
	"context"
	"math/big"

	"github.com/AvaProtocol/ap-aa-sdk/pkg/eip1559"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/userop"
)

// DefaultFeeDataGetter sets maxPriorityFeePerGas = max(tip * 4/3, floor) and
// maxFeePerGas = baseFee + maxPriorityFeePerGas from the latest block.
func DefaultFeeDataGetter(reader eip1559.FeeReader, floor *big.Int) StageFunc {
	if floor == nil {
		floor = eip1559.DefaultPriorityFeeFloor
	}
	return func(ctx context.Context, draft userop.Draft, overrides *userop.Overrides) (userop.Draft, error) {
		maxFee, maxPriority, err := eip1559.SuggestFee(ctx, reader, floor)
		if err != nil {
			return userop.Draft{}, err
		}
		return userop.Draft{
			MaxFeePerGas:         userop.Known(maxFee),
			MaxPriorityFeePerGas: userop.Known(maxPriority),
		}, nil
	}
}
