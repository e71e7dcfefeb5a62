package middleware

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/bundler"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/userop"
)

// GasEstimator is the bundler call the estimator stage uses.
type GasEstimator interface {
	EstimateUserOperationGas(ctx context.Context, op *userop.UserOperation, entrypoint common.Address, stateOverride map[string]any) (*bundler.GasEstimation, error)
}

// BundlerGasEstimator asks the bundler for the three gas limits. The draft is
// resolved first, so its signature must already be the account's dummy one.
func BundlerGasEstimator(estimator GasEstimator, entryPoint common.Address) StageFunc {
	return func(ctx context.Context, draft userop.Draft, overrides *userop.Overrides) (userop.Draft, error) {
		op, err := draft.Resolve(ctx)
		if err != nil {
			return userop.Draft{}, err
		}

		est, err := estimator.EstimateUserOperationGas(ctx, op, entryPoint, nil)
		if err != nil {
			return userop.Draft{}, fmt.Errorf("estimate user operation gas: %w", err)
		}

		return userop.Draft{
			PreVerificationGas:   userop.Known(est.PreVerificationGas),
			VerificationGasLimit: userop.Known(est.VerificationGasLimit),
			CallGasLimit:         userop.Known(est.CallGasLimit),
		}, nil
	}
}
