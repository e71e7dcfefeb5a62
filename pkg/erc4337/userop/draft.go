package userop

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

var ErrSenderUnset = errors.New("user operation sender is not set")

// Draft is a UserOperation under construction. Middleware stages receive a
// Draft and return a patch Draft that only sets the fields they change.
type Draft struct {
	Sender               Deferred[common.Address]
	Nonce                Deferred[*big.Int]
	InitCode             Deferred[[]byte]
	CallData             Deferred[[]byte]
	CallGasLimit         Deferred[*big.Int]
	VerificationGasLimit Deferred[*big.Int]
	PreVerificationGas   Deferred[*big.Int]
	MaxFeePerGas         Deferred[*big.Int]
	MaxPriorityFeePerGas Deferred[*big.Int]
	PaymasterAndData     Deferred[[]byte]
	Signature            Deferred[[]byte]
}

func pick[T any](base, patch Deferred[T]) Deferred[T] {
	if patch.IsSet() {
		return patch
	}
	return base
}

// Merge returns d with every field that is set in patch replaced by the
// patch value. Neither input is modified.
func (d Draft) Merge(patch Draft) Draft {
	return Draft{
		Sender:               pick(d.Sender, patch.Sender),
		Nonce:                pick(d.Nonce, patch.Nonce),
		InitCode:             pick(d.InitCode, patch.InitCode),
		CallData:             pick(d.CallData, patch.CallData),
		CallGasLimit:         pick(d.CallGasLimit, patch.CallGasLimit),
		VerificationGasLimit: pick(d.VerificationGasLimit, patch.VerificationGasLimit),
		PreVerificationGas:   pick(d.PreVerificationGas, patch.PreVerificationGas),
		MaxFeePerGas:         pick(d.MaxFeePerGas, patch.MaxFeePerGas),
		MaxPriorityFeePerGas: pick(d.MaxPriorityFeePerGas, patch.MaxPriorityFeePerGas),
		PaymasterAndData:     pick(d.PaymasterAndData, patch.PaymasterAndData),
		Signature:            pick(d.Signature, patch.Signature),
	}
}

func resolveInto[T any](g *errgroup.Group, ctx context.Context, name string, d Deferred[T], dst *T) {
	g.Go(func() error {
		v, err := d.Get(ctx)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", name, err)
		}
		*dst = v
		return nil
	})
}

// Resolve runs every pending field concurrently and returns the final
// operation. Unset numeric fields become 0 and unset byte fields become
// empty. The first failing field cancels the rest.
func (d Draft) Resolve(ctx context.Context) (*UserOperation, error) {
	if !d.Sender.IsSet() {
		return nil, ErrSenderUnset
	}

	op := &UserOperation{}
	g, gctx := errgroup.WithContext(ctx)

	resolveInto(g, gctx, "sender", d.Sender, &op.Sender)
	resolveInto(g, gctx, "nonce", d.Nonce, &op.Nonce)
	resolveInto(g, gctx, "initCode", d.InitCode, &op.InitCode)
	resolveInto(g, gctx, "callData", d.CallData, &op.CallData)
	resolveInto(g, gctx, "callGasLimit", d.CallGasLimit, &op.CallGasLimit)
	resolveInto(g, gctx, "verificationGasLimit", d.VerificationGasLimit, &op.VerificationGasLimit)
	resolveInto(g, gctx, "preVerificationGas", d.PreVerificationGas, &op.PreVerificationGas)
	resolveInto(g, gctx, "maxFeePerGas", d.MaxFeePerGas, &op.MaxFeePerGas)
	resolveInto(g, gctx, "maxPriorityFeePerGas", d.MaxPriorityFeePerGas, &op.MaxPriorityFeePerGas)
	resolveInto(g, gctx, "paymasterAndData", d.PaymasterAndData, &op.PaymasterAndData)
	resolveInto(g, gctx, "signature", d.Signature, &op.Signature)

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, v := range []**big.Int{
		&op.Nonce, &op.CallGasLimit, &op.VerificationGasLimit, &op.PreVerificationGas,
		&op.MaxFeePerGas, &op.MaxPriorityFeePerGas,
	} {
		if *v == nil {
			*v = new(big.Int)
		}
	}
	for _, b := range []*[]byte{&op.InitCode, &op.CallData, &op.PaymasterAndData, &op.Signature} {
		if *b == nil {
			*b = []byte{}
		}
	}
	return op, nil
}
