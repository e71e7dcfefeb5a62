package middleware

import (
	"context"
	"fmt"

	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/userop"
)

// PaymasterDataProvider is implemented by paymaster.VerifyingPaymaster.
type PaymasterDataProvider interface {
	DummyPaymasterAndData() []byte
	PaymasterAndData(ctx context.Context, op *userop.UserOperation) ([]byte, error)
}

// PaymasterMiddleware returns the dummy and the real paymaster stage for
// WithPaymasterMiddleware. A caller override of paymasterAndData skips the
// signing request.
func PaymasterMiddleware(p PaymasterDataProvider) (dummy, real StageFunc) {
	dummy = func(ctx context.Context, draft userop.Draft, overrides *userop.Overrides) (userop.Draft, error) {
		return userop.Draft{PaymasterAndData: userop.Known(p.DummyPaymasterAndData())}, nil
	}

	real = func(ctx context.Context, draft userop.Draft, overrides *userop.Overrides) (userop.Draft, error) {
		if overrides != nil && overrides.PaymasterAndData != nil {
			return userop.Draft{}, nil
		}

		op, err := draft.Resolve(ctx)
		if err != nil {
			return userop.Draft{}, err
		}

		data, err := p.PaymasterAndData(ctx, op)
		if err != nil {
			return userop.Draft{}, fmt.Errorf("paymaster data: %w", err)
		}
		return userop.Draft{PaymasterAndData: userop.Known(data)}, nil
	}

	return dummy, real
}
