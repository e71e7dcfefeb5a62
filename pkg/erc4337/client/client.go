// Package client binds a smart account, a bundler transport and a middleware
// stack into a SmartAccountClient that builds, signs and submits
// UserOperations.
package client

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AvaProtocol/ap-aa-sdk/core/chainio/aa"
	"github.com/AvaProtocol/ap-aa-sdk/metrics"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/byte4"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/eip1559"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/bundler"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/middleware"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/userop"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/logger"
	"github.com/AvaProtocol/ap-aa-sdk/version"
)

const (
	HeaderSigner         = "Aa-Sdk-Signer"
	HeaderFactoryAddress = "Aa-Sdk-Factory-Address"
	HeaderVersion        = "Aa-Sdk-Version"
)

// Transport is the bundler and node RPC surface the client drives.
// *bundler.BundlerClient implements it.
type Transport interface {
	middleware.GasEstimator
	eip1559.FeeReader

	ChainID(ctx context.Context) (*big.Int, error)
	SendUserOperation(ctx context.Context, op *userop.UserOperation, entrypoint common.Address) (common.Hash, error)
	GetUserOperationReceipt(ctx context.Context, hash common.Hash) (*bundler.UserOperationReceipt, error)
	SetHeader(key, value string)
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

type Params struct {
	Transport Transport
	// Account is optional. Building, signing and account-bound requests fail
	// with ErrNoAccountBound without it.
	Account *aa.Account
	// ChainID skips the eth_chainId lookup when set.
	ChainID *big.Int
	// FeeFloor is the minimum maxPriorityFeePerGas of the default fee stage.
	FeeFloor *big.Int
	// Middleware replaces stages of the default stack. The default gas
	// estimator asks the bundler.
	Middleware []middleware.Option
	Logger     logger.Logger
	Metrics    metrics.MetricsGenerator
}

type SmartAccountClient struct {
	transport Transport
	account   *aa.Account
	stack     *middleware.Stack

	chainMu sync.Mutex
	chainID *big.Int

	logger  logger.Logger
	metrics metrics.MetricsGenerator
}

func New(p Params) (*SmartAccountClient, error) {
	if p.Transport == nil {
		return nil, fmt.Errorf("client: transport is required")
	}

	log := logger.ForComponent(p.Logger, "client")
	m := metrics.EnsureMetrics(p.Metrics)
	floor := p.FeeFloor
	if floor == nil {
		floor = eip1559.DefaultPriorityFeeFloor
	}

	entryPoint := aa.EntrypointAddress
	if p.Account != nil {
		entryPoint = p.Account.GetEntryPointAddress()
	}

	opts := []middleware.Option{
		middleware.WithGasEstimator(middleware.BundlerGasEstimator(p.Transport, entryPoint)),
		middleware.WithLogger(p.Logger),
		middleware.WithMetrics(m),
	}
	opts = append(opts, p.Middleware...)

	c := &SmartAccountClient{
		transport: p.Transport,
		account:   p.Account,
		stack:     middleware.NewStack(p.Transport, floor, opts...),
		logger:    log,
		metrics:   m,
	}
	if p.ChainID != nil {
		c.chainID = new(big.Int).Set(p.ChainID)
	}

	c.setHeaders()
	return c, nil
}

func (c *SmartAccountClient) setHeaders() {
	c.transport.SetHeader(HeaderVersion, version.Get())
	if c.account == nil {
		return
	}
	c.transport.SetHeader(HeaderSigner, c.account.GetOwner().SignerType())
	c.transport.SetHeader(HeaderFactoryAddress, c.account.GetFactoryAddress().Hex())
}

// Account returns the bound account or nil.
func (c *SmartAccountClient) Account() *aa.Account { return c.account }

func (c *SmartAccountClient) Stack() *middleware.Stack { return c.stack }

// ChainID returns the configured chain id, or asks the node once.
func (c *SmartAccountClient) ChainID(ctx context.Context) (*big.Int, error) {
	c.chainMu.Lock()
	defer c.chainMu.Unlock()

	if c.chainID != nil {
		return new(big.Int).Set(c.chainID), nil
	}
	id, err := c.transport.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	c.chainID = id
	return new(big.Int).Set(id), nil
}

func (c *SmartAccountClient) encodeCalls(calls userop.Calls) ([]byte, error) {
	switch v := calls.(type) {
	case userop.Call:
		return c.account.EncodeExecute(v.Target, v.ValueOrZero(), v.Data)
	case *userop.Call:
		return c.account.EncodeExecute(v.Target, v.ValueOrZero(), v.Data)
	case userop.BatchCall:
		return c.account.EncodeBatchExecute(v)
	case userop.RawCallData:
		return common.CopyBytes(v), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedCall, calls)
	}
}

// BuildUserOperation produces an unsigned UserOperation for calls. The draft
// starts with the account's sender, init code, encoded call data and dummy
// signature and a pending nonce, then runs through the middleware stack. All
// remaining pending fields are resolved concurrently. Nothing is signed or
// sent.
func (c *SmartAccountClient) BuildUserOperation(ctx context.Context, calls userop.Calls, overrides *userop.Overrides) (*userop.UserOperation, error) {
	if c.account == nil {
		return nil, ErrNoAccountBound
	}

	callData, err := c.encodeCalls(calls)
	if err != nil {
		return nil, err
	}

	initCode, err := c.account.GetInitCode(ctx)
	if err != nil {
		return nil, err
	}
	sender, err := c.account.GetAddress(ctx)
	if err != nil {
		return nil, err
	}

	draft := userop.Draft{
		Sender:    userop.Known(sender),
		Nonce:     userop.Pending(c.account.GetNonce),
		InitCode:  userop.Known(initCode),
		CallData:  userop.Known(callData),
		Signature: userop.Known(c.account.GetDummySignature()),
	}

	draft, err = c.stack.Run(ctx, draft, overrides)
	if err != nil {
		return nil, err
	}

	op, err := draft.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	c.metrics.IncUserOpBuilt(string(c.account.Kind()))
	c.logger.Debug("built user operation",
		"sender", op.Sender.Hex(),
		"nonce", op.Nonce.String(),
		"call", byte4.Describe(op.CallData, aa.SimpleAccountABI, aa.ModularAccountABI),
		"deploying", len(op.InitCode) > 0,
		"max_fee_gwei", eip1559.FormatGwei(op.MaxFeePerGas))
	return op, nil
}

// SignUserOperation returns a copy of op carrying the owner's signature over
// its hash.
func (c *SmartAccountClient) SignUserOperation(ctx context.Context, op *userop.UserOperation) (*userop.UserOperation, error) {
	if c.account == nil {
		return nil, ErrNoAccountBound
	}

	chainID, err := c.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	hash := op.GetUserOpHash(c.account.GetEntryPointAddress(), chainID)
	sig, err := c.account.SignUserOperationHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("sign user operation: %w", err)
	}

	signed := op.Copy()
	signed.Signature = sig
	return signed, nil
}

// SendUserOperation submits a signed op and returns the bundler's hash.
func (c *SmartAccountClient) SendUserOperation(ctx context.Context, op *userop.UserOperation) (common.Hash, error) {
	entryPoint := aa.EntrypointAddress
	if c.account != nil {
		entryPoint = c.account.GetEntryPointAddress()
	}

	hash, err := c.transport.SendUserOperation(ctx, op, entryPoint)
	if err != nil {
		c.metrics.IncUserOpSubmitted("rejected")
		return common.Hash{}, err
	}

	c.metrics.IncUserOpSubmitted("accepted")
	c.logger.Info("user operation sent", "hash", hash.Hex(), "sender", op.Sender.Hex(), "nonce", op.Nonce.String())
	return hash, nil
}

// SendCalls builds, signs and sends calls in one go.
func (c *SmartAccountClient) SendCalls(ctx context.Context, calls userop.Calls, overrides *userop.Overrides) (common.Hash, error) {
	op, err := c.BuildUserOperation(ctx, calls, overrides)
	if err != nil {
		return common.Hash{}, err
	}
	signed, err := c.SignUserOperation(ctx, op)
	if err != nil {
		return common.Hash{}, err
	}
	return c.SendUserOperation(ctx, signed)
}
