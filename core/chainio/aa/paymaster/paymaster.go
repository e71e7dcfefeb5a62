// Package paymaster produces paymasterAndData for a VerifyingPaymaster
// (https://github.com/eth-optimism/paymaster-reference): the paymaster
// sponsors an operation when it carries a signature of the paymaster's
// verifying signer over getHash(userOp, validUntil, validAfter).
package paymaster

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/AvaProtocol/ap-aa-sdk/core/chainio/aa"
	"github.com/AvaProtocol/ap-aa-sdk/core/chainio/signer"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/bundler"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/userop"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/logger"
)

const verifyingPaymasterABIJSON = `[
{"type":"function","name":"getHash","stateMutability":"view",
 "inputs":[
  {"name":"userOp","type":"tuple","components":[
   {"name":"sender","type":"address"},
   {"name":"nonce","type":"uint256"},
   {"name":"initCode","type":"bytes"},
   {"name":"callData","type":"bytes"},
   {"name":"callGasLimit","type":"uint256"},
   {"name":"verificationGasLimit","type":"uint256"},
   {"name":"preVerificationGas","type":"uint256"},
   {"name":"maxFeePerGas","type":"uint256"},
   {"name":"maxPriorityFeePerGas","type":"uint256"},
   {"name":"paymasterAndData","type":"bytes"},
   {"name":"signature","type":"bytes"}]},
  {"name":"validUntil","type":"uint48"},
  {"name":"validAfter","type":"uint48"}],
 "outputs":[{"name":"","type":"bytes32"}]}
]`

// VerifyingPaymasterABI holds the getHash fragment.
var VerifyingPaymasterABI = aa.MustParseABI("verifying paymaster", verifyingPaymasterABIJSON)

var (
	uint48Type, _  = abi.NewType("uint48", "", nil)
	validityArgs   = abi.Arguments{{Type: uint48Type}, {Type: uint48Type}}
	dummySignature = common.FromHex("0xfffffffffffffffffffffffffffffff0000000000000000000000000000000007aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1c")
)

const (
	// address(20) + abi.encode(uint48,uint48)(64) + signature(65)
	PaymasterAndDataLength = 20 + 64 + 65

	DefaultValidity = 15 * time.Minute
	// validAfter is backdated to tolerate clock drift between us and the bundler
	clockSkew = 2 * time.Minute
)

var ErrInvalidPaymasterAndData = errors.New("invalid verifying paymasterAndData")

// Params configures a VerifyingPaymaster. Signer is the paymaster's verifying signer.
type Params struct {
	Address  common.Address
	Signer   signer.SmartAccountSigner
	Chain    bundler.ContractCaller
	Validity time.Duration
	Logger   logger.Logger
}

type VerifyingPaymaster struct {
	address  common.Address
	signer   signer.SmartAccountSigner
	chain    bundler.ContractCaller
	validity time.Duration
	now      func() time.Time
	logger   logger.Logger
}

func NewVerifyingPaymaster(p Params) (*VerifyingPaymaster, error) {
	if p.Signer == nil || p.Chain == nil {
		return nil, errors.New("verifying paymaster requires a signer and a chain reader")
	}
	if p.Validity <= 0 {
		p.Validity = DefaultValidity
	}
	return &VerifyingPaymaster{
		address:  p.Address,
		signer:   p.Signer,
		chain:    p.Chain,
		validity: p.Validity,
		now:      time.Now,
		logger:   logger.ForComponent(p.Logger, "paymaster"),
	}, nil
}

func (p *VerifyingPaymaster) Address() common.Address { return p.address }

// DummyPaymasterAndData has the final length and a well formed signature so
// gas estimation sees the real verification cost.
func (p *VerifyingPaymaster) DummyPaymasterAndData() []byte {
	data, _ := EncodePaymasterAndData(p.address, big.NewInt(0), big.NewInt(0), dummySignature)
	return data
}

// PaymasterAndData signs op, whose gas and fee fields must be final.
func (p *VerifyingPaymaster) PaymasterAndData(ctx context.Context, op *userop.UserOperation) ([]byte, error) {
	now := p.now()
	validUntil := big.NewInt(now.Add(p.validity).Unix())
	validAfter := big.NewInt(now.Add(-clockSkew).Unix())

	hash, err := p.GetHash(ctx, op, validUntil, validAfter)
	if err != nil {
		return nil, err
	}

	// the contract checks ECDSA.toEthSignedMessageHash(getHash(...)), which is EIP-191 over 32 bytes
	sig, err := p.signer.SignMessage(ctx, hash.Bytes())
	if err != nil {
		return nil, fmt.Errorf("sign paymaster hash: %w", err)
	}

	p.logger.Debug("signed paymaster data",
		"sender", op.Sender.Hex(),
		"validUntil", validUntil.String(),
		"validAfter", validAfter.String())

	return EncodePaymasterAndData(p.address, validUntil, validAfter, sig)
}

// GetHash asks the paymaster contract for the hash to sign. The
// paymasterAndData sent along is a placeholder of the final length because
// the contract hashes the op calldata up to that field's offset.
func (p *VerifyingPaymaster) GetHash(ctx context.Context, op *userop.UserOperation, validUntil, validAfter *big.Int) (common.Hash, error) {
	hashOp := op.Copy()
	hashOp.PaymasterAndData = p.DummyPaymasterAndData()

	values, err := bundler.ReadContract(ctx, p.chain, p.address, VerifyingPaymasterABI, "getHash", *hashOp, validUntil, validAfter)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get paymaster hash: %w", err)
	}
	hash, ok := values[0].([32]byte)
	if !ok {
		return common.Hash{}, fmt.Errorf("unexpected getHash result %T", values[0])
	}
	return common.Hash(hash), nil
}

func EncodePaymasterAndData(paymaster common.Address, validUntil, validAfter *big.Int, sig []byte) ([]byte, error) {
	encoded, err := validityArgs.Pack(validUntil, validAfter)
	if err != nil {
		return nil, fmt.Errorf("failed to ABI encode timestamps: %w", err)
	}

	data := make([]byte, 0, PaymasterAndDataLength)
	data = append(data, paymaster.Bytes()...)
	data = append(data, encoded...)
	data = append(data, sig...)
	return data, nil
}

func DecodePaymasterAndData(data []byte) (paymaster common.Address, validUntil, validAfter *big.Int, sig []byte, err error) {
	if len(data) != PaymasterAndDataLength {
		return common.Address{}, nil, nil, nil, fmt.Errorf("%w: length %d", ErrInvalidPaymasterAndData, len(data))
	}

	values, err := validityArgs.Unpack(data[20:84])
	if err != nil {
		return common.Address{}, nil, nil, nil, fmt.Errorf("%w: %v", ErrInvalidPaymasterAndData, err)
	}
	return common.BytesToAddress(data[:20]), values[0].(*big.Int), values[1].(*big.Int), common.CopyBytes(data[84:]), nil
}
