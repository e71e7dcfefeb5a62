package userop

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var entryPoint = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")

func sampleOp() *UserOperation {
	return &UserOperation{
		Sender:               common.HexToAddress("0x5Df343de7d99fd64b2479189692C1dAb8f46184a"),
		Nonce:                big.NewInt(3),
		InitCode:             []byte{},
		CallData:             common.FromHex("0xb61d27f6"),
		CallGasLimit:         big.NewInt(35000),
		VerificationGasLimit: big.NewInt(70000),
		PreVerificationGas:   big.NewInt(21000),
		MaxFeePerGas:         big.NewInt(13_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(12_000_000_000),
		PaymasterAndData:     []byte{},
		Signature:            common.FromHex("0xdeadbeef"),
	}
}

func word(v *big.Int) []byte { return common.LeftPadBytes(v.Bytes(), 32) }

func TestGetUserOpHashMatchesManualEncoding(t *testing.T) {
	op := sampleOp()
	chainID := big.NewInt(11155111)

	var inner []byte
	inner = append(inner, common.LeftPadBytes(op.Sender.Bytes(), 32)...)
	inner = append(inner, word(op.Nonce)...)
	inner = append(inner, crypto.Keccak256(op.InitCode)...)
	inner = append(inner, crypto.Keccak256(op.CallData)...)
	inner = append(inner, word(op.CallGasLimit)...)
	inner = append(inner, word(op.VerificationGasLimit)...)
	inner = append(inner, word(op.PreVerificationGas)...)
	inner = append(inner, word(op.MaxFeePerGas)...)
	inner = append(inner, word(op.MaxPriorityFeePerGas)...)
	inner = append(inner, crypto.Keccak256(op.PaymasterAndData)...)
	assert.Equal(t, inner, op.Pack())

	var outer []byte
	outer = append(outer, crypto.Keccak256(inner)...)
	outer = append(outer, common.LeftPadBytes(entryPoint.Bytes(), 32)...)
	outer = append(outer, word(chainID)...)

	assert.Equal(t, crypto.Keccak256Hash(outer), op.GetUserOpHash(entryPoint, chainID))
}

func TestGetUserOpHashIgnoresSignature(t *testing.T) {
	op := sampleOp()
	other := op.Copy()
	other.Signature = []byte{0x01}

	assert.Equal(t, op.GetUserOpHash(entryPoint, big.NewInt(1)), other.GetUserOpHash(entryPoint, big.NewInt(1)))
	assert.NotEqual(t, op.GetUserOpHash(entryPoint, big.NewInt(1)), op.GetUserOpHash(entryPoint, big.NewInt(2)))
}

func TestUserOperationWireFormat(t *testing.T) {
	data, err := json.Marshal(sampleOp())
	require.NoError(t, err)

	var raw map[string]string
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "0x3", raw["nonce"])
	assert.Equal(t, "0x88b8", raw["callGasLimit"])
	assert.Equal(t, "0x", raw["initCode"])
	assert.Equal(t, "0xdeadbeef", raw["signature"])

	var decoded UserOperation
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, sampleOp().GetUserOpHash(entryPoint, big.NewInt(1)), decoded.GetUserOpHash(entryPoint, big.NewInt(1)))
}

func TestPendingRunsOnceAcrossCopies(t *testing.T) {
	var calls atomic.Int32
	nonce := Pending(func(ctx context.Context) (*big.Int, error) {
		calls.Add(1)
		return big.NewInt(7), nil
	})

	a := Draft{Sender: Known(common.Address{1}), Nonce: nonce}
	b := a.Merge(Draft{CallGasLimit: Known(big.NewInt(1))})

	opA, err := a.Resolve(context.Background())
	require.NoError(t, err)
	opB, err := b.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(7), opA.Nonce.Int64())
	assert.Equal(t, int64(7), opB.Nonce.Int64())
}

func TestMergeLaterWins(t *testing.T) {
	base := Draft{
		Sender:       Known(common.Address{1}),
		CallGasLimit: Known(big.NewInt(1)),
		MaxFeePerGas: Known(big.NewInt(5)),
	}
	merged := base.Merge(Draft{CallGasLimit: Known(big.NewInt(2))})

	v, _ := merged.CallGasLimit.Peek()
	assert.Equal(t, int64(2), v.Int64())
	v, _ = merged.MaxFeePerGas.Peek()
	assert.Equal(t, int64(5), v.Int64())

	orig, _ := base.CallGasLimit.Peek()
	assert.Equal(t, int64(1), orig.Int64())
}

func TestResolveDefaults(t *testing.T) {
	op, err := Draft{Sender: Known(common.Address{9})}.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, op.Nonce.Sign())
	assert.Equal(t, 0, op.MaxFeePerGas.Sign())
	assert.NotNil(t, op.PaymasterAndData)
	assert.Empty(t, op.PaymasterAndData)
	assert.NotNil(t, op.Signature)
}

func TestResolveErrors(t *testing.T) {
	_, err := Draft{}.Resolve(context.Background())
	assert.ErrorIs(t, err, ErrSenderUnset)

	boom := errors.New("rpc down")
	_, err = Draft{
		Sender: Known(common.Address{1}),
		Nonce:  Pending(func(context.Context) (*big.Int, error) { return nil, boom }),
	}.Resolve(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "nonce")
}

func TestOverridesPatchOnlySetFields(t *testing.T) {
	o := &Overrides{MaxFeePerGas: big.NewInt(99)}
	assert.False(t, o.IsEmpty())
	assert.True(t, (*Overrides)(nil).IsEmpty())

	d := o.Apply(Draft{MaxFeePerGas: Known(big.NewInt(1)), CallGasLimit: Known(big.NewInt(3))})
	v, _ := d.MaxFeePerGas.Peek()
	assert.Equal(t, int64(99), v.Int64())
	v, _ = d.CallGasLimit.Peek()
	assert.Equal(t, int64(3), v.Int64())
	assert.False(t, o.Patch().PaymasterAndData.IsSet())
}
