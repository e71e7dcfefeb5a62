package middleware

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/ap-aa-sdk/core/testutil"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/userop"
)

var sender = common.HexToAddress("0x1111111111111111111111111111111111111111")

func baseDraft() userop.Draft {
	return userop.Draft{
		Sender:    userop.Known(sender),
		Nonce:     userop.Known(big.NewInt(0)),
		Signature: userop.Known([]byte{0x01}),
	}
}

func setCallGas(v int64) StageFunc {
	return func(ctx context.Context, draft userop.Draft, overrides *userop.Overrides) (userop.Draft, error) {
		return userop.Draft{CallGasLimit: userop.Known(big.NewInt(v))}, nil
	}
}

func TestStageOrder(t *testing.T) {
	s := NewStack(nil, nil)
	names := []string{}
	for _, st := range s.Stages() {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{
		StageDummyPaymasterData,
		StageFeeDataGetter,
		StageGasEstimator,
		StageOverridesApply,
		StageCustomMiddleware,
		StagePaymasterData,
	}, names)
}

func TestLaterStageWins(t *testing.T) {
	s := NewStack(nil, nil,
		WithGasEstimator(setCallGas(100)),
		WithCustomMiddleware(setCallGas(200)),
	)

	draft, err := s.Run(context.Background(), baseDraft(), nil)
	require.NoError(t, err)

	op, err := draft.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(200), op.CallGasLimit.Int64())
	assert.Equal(t, []byte{}, op.PaymasterAndData)
}

func TestOverridesWinOverLaterStages(t *testing.T) {
	s := NewStack(nil, nil,
		WithGasEstimator(setCallGas(100)),
		WithCustomMiddleware(setCallGas(200)),
	)

	draft, err := s.Run(context.Background(), baseDraft(), &userop.Overrides{CallGasLimit: big.NewInt(7)})
	require.NoError(t, err)

	op, err := draft.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), op.CallGasLimit.Int64())
}

func TestLaterStageWinsMaxFee(t *testing.T) {
	chain := testutil.NewFakeChain()
	chain.BaseFee = big.NewInt(12_000_000_000)
	chain.TipCap = big.NewInt(1_500_000_000)
	setMaxFee := func(ctx context.Context, draft userop.Draft, overrides *userop.Overrides) (userop.Draft, error) {
		return userop.Draft{MaxFeePerGas: userop.Known(big.NewInt(20_000_000_000))}, nil
	}
	s := NewStack(chain, nil, WithCustomMiddleware(setMaxFee))

	draft, err := s.Run(context.Background(), baseDraft(), nil)
	require.NoError(t, err)
	op, err := draft.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(20_000_000_000), op.MaxFeePerGas.Int64())
	assert.Equal(t, int64(2_000_000_000), op.MaxPriorityFeePerGas.Int64())

	draft, err = s.Run(context.Background(), baseDraft(), &userop.Overrides{MaxFeePerGas: big.NewInt(5)})
	require.NoError(t, err)
	op, err = draft.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), op.MaxFeePerGas.Int64())
	assert.Equal(t, int64(2_000_000_000), op.MaxPriorityFeePerGas.Int64())
}

func TestDefaultFeeStage(t *testing.T) {
	chain := testutil.NewFakeChain()
	chain.BaseFee = big.NewInt(12_000_000_000)
	chain.TipCap = big.NewInt(1_500_000_000)

	s := NewStack(chain, nil)
	draft, err := s.Run(context.Background(), baseDraft(), nil)
	require.NoError(t, err)

	op, err := draft.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2_000_000_000), op.MaxPriorityFeePerGas.Int64())
	assert.Equal(t, int64(14_000_000_000), op.MaxFeePerGas.Int64())
}

func TestFeeStageAppliesFloor(t *testing.T) {
	chain := testutil.NewFakeChain()
	chain.BaseFee = big.NewInt(100)
	chain.TipCap = big.NewInt(3)

	s := NewStack(chain, big.NewInt(10_000_000))
	draft, err := s.Run(context.Background(), baseDraft(), nil)
	require.NoError(t, err)

	op, err := draft.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), op.MaxPriorityFeePerGas.Int64())
	assert.Equal(t, int64(10_000_100), op.MaxFeePerGas.Int64())
}

func TestMissingBaseFeeFailsFeeStage(t *testing.T) {
	chain := testutil.NewFakeChain()
	chain.BaseFee = nil

	s := NewStack(chain, nil)
	_, err := s.Run(context.Background(), baseDraft(), nil)
	require.Error(t, err)

	var stageErr *StageFailureError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageFeeDataGetter, stageErr.Stage)
	assert.ErrorIs(t, err, ErrFeeDataUnavailable)
}

func TestStageFailureStopsRun(t *testing.T) {
	boom := errors.New("boom")
	ran := false
	s := NewStack(nil, nil,
		WithGasEstimator(func(ctx context.Context, draft userop.Draft, overrides *userop.Overrides) (userop.Draft, error) {
			return userop.Draft{}, boom
		}),
		WithCustomMiddleware(func(ctx context.Context, draft userop.Draft, overrides *userop.Overrides) (userop.Draft, error) {
			ran = true
			return userop.Draft{}, nil
		}),
	)

	_, err := s.Run(context.Background(), baseDraft(), nil)
	var stageErr *StageFailureError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageGasEstimator, stageErr.Stage)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
}

func TestBundlerGasEstimator(t *testing.T) {
	chain := testutil.NewFakeChain()
	s := NewStack(chain, nil, WithGasEstimator(BundlerGasEstimator(chain, testutil.EntryPoint)))

	draft, err := s.Run(context.Background(), baseDraft(), &userop.Overrides{VerificationGasLimit: big.NewInt(1)})
	require.NoError(t, err)

	op, err := draft.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), op.PreVerificationGas.Int64())
	assert.Equal(t, int64(1), op.VerificationGasLimit.Int64())
	assert.Equal(t, int64(35_000), op.CallGasLimit.Int64())
	assert.Equal(t, 1, chain.RPCCalls("eth_estimateUserOperationGas"))
}

type fakePaymaster struct {
	signed int
}

func (p *fakePaymaster) DummyPaymasterAndData() []byte { return []byte{0xde, 0xad} }

func (p *fakePaymaster) PaymasterAndData(ctx context.Context, op *userop.UserOperation) ([]byte, error) {
	p.signed++
	return append([]byte{0xbe, 0xef}, op.CallGasLimit.Bytes()...), nil
}

func TestPaymasterMiddlewareSeesFinalGas(t *testing.T) {
	pm := &fakePaymaster{}
	var seenDummy []byte
	dummy, real := PaymasterMiddleware(pm)
	s := NewStack(nil, nil,
		WithPaymasterMiddleware(dummy, real),
		WithGasEstimator(func(ctx context.Context, draft userop.Draft, overrides *userop.Overrides) (userop.Draft, error) {
			seenDummy, _ = draft.PaymasterAndData.Get(ctx)
			return userop.Draft{CallGasLimit: userop.Known(big.NewInt(5))}, nil
		}),
	)

	draft, err := s.Run(context.Background(), baseDraft(), nil)
	require.NoError(t, err)

	op, err := draft.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, seenDummy)
	assert.Equal(t, []byte{0xbe, 0xef, 0x05}, op.PaymasterAndData)
	assert.Equal(t, 1, pm.signed)
}

func TestPaymasterOverrideSkipsSigning(t *testing.T) {
	pm := &fakePaymaster{}
	dummy, real := PaymasterMiddleware(pm)
	s := NewStack(nil, nil, WithPaymasterMiddleware(dummy, real))

	draft, err := s.Run(context.Background(), baseDraft(), &userop.Overrides{PaymasterAndData: []byte{0x42}})
	require.NoError(t, err)

	op, err := draft.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x42}, op.PaymasterAndData)
	assert.Equal(t, 0, pm.signed)
}
