package aa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/AvaProtocol/ap-aa-sdk/core/chainio/signer"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/bundler"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/userop"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/logger"
)

var defaultSalt = big.NewInt(0)

// ChainReader is the node access an account needs. *bundler.BundlerClient
// satisfies it.
type ChainReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// DeploymentState moves from Undefined to Deployed or NotDeployed. Deployed
// never changes back for the lifetime of an Account.
type DeploymentState int

const (
	DeploymentStateUndefined DeploymentState = iota
	DeploymentStateDeployed
	DeploymentStateNotDeployed
)

func (s DeploymentState) String() string {
	switch s {
	case DeploymentStateDeployed:
		return "deployed"
	case DeploymentStateNotDeployed:
		return "not_deployed"
	default:
		return "undefined"
	}
}

// AccountParams configures an Account. Chain and Signer are required.
type AccountParams struct {
	Kind       Kind
	Chain      ChainReader
	Signer     signer.SmartAccountSigner
	EntryPoint common.Address
	Factory    common.Address
	// Address pins the account address. Without it the counterfactual
	// address is derived from the init code.
	Address *common.Address
	Salt    *big.Int
	Logger  logger.Logger
}

// Account is a smart contract account owned by a single signer.
type Account struct {
	variant    variant
	chain      ChainReader
	owner      signer.SmartAccountSigner
	entryPoint common.Address
	factory    common.Address
	salt       *big.Int
	logger     logger.Logger

	mu              sync.Mutex
	address         *common.Address
	deploymentState DeploymentState

	addressGroup singleflight.Group
}

func NewAccount(params AccountParams) (*Account, error) {
	if params.Chain == nil {
		return nil, errors.New("account requires a chain reader")
	}
	if params.Signer == nil {
		return nil, errors.New("account requires a signer")
	}

	v, err := newVariant(params.Kind)
	if err != nil {
		return nil, err
	}

	a := &Account{
		variant:    v,
		chain:      params.Chain,
		owner:      params.Signer,
		entryPoint: params.EntryPoint,
		factory:    params.Factory,
		salt:       params.Salt,
		logger:     logger.ForComponent(params.Logger, "account").With("kind", string(v.kind())),
	}
	if a.entryPoint == (common.Address{}) {
		a.entryPoint = EntrypointAddress
	}
	if a.factory == (common.Address{}) {
		a.factory = DefaultFactoryAddress(v.kind())
	}
	if a.salt == nil {
		a.salt = defaultSalt
	}
	if params.Address != nil {
		addr := *params.Address
		a.address = &addr
	}
	return a, nil
}

func NewSimpleAccount(params AccountParams) (*Account, error) {
	params.Kind = KindSimple
	return NewAccount(params)
}

func NewLightAccount(params AccountParams) (*Account, error) {
	params.Kind = KindLight
	return NewAccount(params)
}

func NewModularAccount(params AccountParams) (*Account, error) {
	params.Kind = KindModular
	return NewAccount(params)
}

func (a *Account) Kind() Kind                            { return a.variant.kind() }
func (a *Account) GetEntryPointAddress() common.Address { return a.entryPoint }
func (a *Account) GetFactoryAddress() common.Address    { return a.factory }
func (a *Account) GetOwner() signer.SmartAccountSigner  { return a.owner }
func (a *Account) GetDummySignature() []byte            { return common.CopyBytes(dummySignature) }

// GetFactoryCallData returns the factory createAccount call for this owner and salt.
func (a *Account) GetFactoryCallData(ctx context.Context) ([]byte, error) {
	owner, err := a.owner.GetAddress(ctx)
	if err != nil {
		return nil, fmt.Errorf("get owner address: %w", err)
	}
	return a.variant.factoryCallData(owner, a.salt)
}

func (a *Account) accountInitCode(ctx context.Context) ([]byte, error) {
	callData, err := a.GetFactoryCallData(ctx)
	if err != nil {
		return nil, err
	}
	return append(a.factory.Bytes(), callData...), nil
}

// GetAddress returns the pinned or previously derived address. Otherwise it
// simulates EntryPoint.getSenderAddress and reads the address out of the
// SenderAddressResult revert. Concurrent callers share one simulation.
func (a *Account) GetAddress(ctx context.Context) (common.Address, error) {
	a.mu.Lock()
	if a.address != nil {
		addr := *a.address
		a.mu.Unlock()
		return addr, nil
	}
	a.mu.Unlock()

	// The shared simulation ignores cancellation of whichever caller started
	// it; every caller gives up on its own context instead.
	ch := a.addressGroup.DoChan("address", func() (interface{}, error) {
		addr, err := a.deriveAddress(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		a.address = &addr
		a.mu.Unlock()
		a.logger.Debug("derived counterfactual address", "address", addr.Hex())
		return addr, nil
	})

	select {
	case <-ctx.Done():
		return common.Address{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return common.Address{}, res.Err
		}
		return res.Val.(common.Address), nil
	}
}

func (a *Account) deriveAddress(ctx context.Context) (common.Address, error) {
	initCode, err := a.accountInitCode(ctx)
	if err != nil {
		return common.Address{}, err
	}

	input, err := EntryPointABI.Pack("getSenderAddress", initCode)
	if err != nil {
		return common.Address{}, err
	}

	_, callErr := a.chain.CallContract(ctx, ethereum.CallMsg{To: &a.entryPoint, Data: input}, nil)
	if callErr == nil {
		return common.Address{}, &AddressResolutionError{Err: errors.New("getSenderAddress returned without reverting")}
	}
	return senderFromRevert(callErr)
}

func senderFromRevert(callErr error) (common.Address, error) {
	var dataErr rpc.DataError
	if !errors.As(callErr, &dataErr) {
		return common.Address{}, &AddressResolutionError{Err: callErr}
	}

	revert, err := revertBytes(dataErr.ErrorData())
	if err != nil {
		return common.Address{}, &AddressResolutionError{Err: err}
	}

	resultErr := EntryPointABI.Errors["SenderAddressResult"]
	if len(revert) < 4 || !bytes.Equal(revert[:4], resultErr.ID[:4]) {
		return common.Address{}, &AddressResolutionError{Err: callErr}
	}

	values, err := resultErr.Inputs.Unpack(revert[4:])
	if err != nil || len(values) != 1 {
		return common.Address{}, &AddressResolutionError{Err: fmt.Errorf("malformed SenderAddressResult: %v", err)}
	}
	return values[0].(common.Address), nil
}

func revertBytes(data interface{}) ([]byte, error) {
	switch d := data.(type) {
	case string:
		return hexutil.Decode(d)
	case []byte:
		return d, nil
	case hexutil.Bytes:
		return d, nil
	}
	return nil, fmt.Errorf("unexpected revert data %T", data)
}

// GetInitCode returns empty bytes once the account has code, and
// factory ‖ factoryCallData while it does not. Only the Deployed result is
// cached across calls.
func (a *Account) GetInitCode(ctx context.Context) ([]byte, error) {
	a.mu.Lock()
	deployed := a.deploymentState == DeploymentStateDeployed
	a.mu.Unlock()
	if deployed {
		return []byte{}, nil
	}

	addr, err := a.GetAddress(ctx)
	if err != nil {
		return nil, err
	}

	code, err := a.chain.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, err
	}

	if len(code) > 0 {
		a.setDeploymentState(DeploymentStateDeployed)
		return []byte{}, nil
	}

	a.setDeploymentState(DeploymentStateNotDeployed)
	return a.accountInitCode(ctx)
}

func (a *Account) setDeploymentState(s DeploymentState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deploymentState == DeploymentStateDeployed {
		return
	}
	if a.deploymentState != s {
		a.logger.Debug("deployment state changed", "from", a.deploymentState.String(), "to", s.String())
	}
	a.deploymentState = s
}

// GetDeploymentState resolves the state through GetInitCode the first time
// and answers from the cache afterwards.
func (a *Account) GetDeploymentState(ctx context.Context) (DeploymentState, error) {
	a.mu.Lock()
	state := a.deploymentState
	a.mu.Unlock()
	if state != DeploymentStateUndefined {
		return state, nil
	}

	initCode, err := a.GetInitCode(ctx)
	if err != nil {
		return DeploymentStateUndefined, err
	}
	if len(initCode) == 0 {
		return DeploymentStateDeployed, nil
	}
	return DeploymentStateNotDeployed, nil
}

func (a *Account) IsDeployed(ctx context.Context) (bool, error) {
	state, err := a.GetDeploymentState(ctx)
	if err != nil {
		return false, err
	}
	return state == DeploymentStateDeployed, nil
}

// GetNonce returns 0 for an undeployed account, otherwise EntryPoint.getNonce(sender, 0).
func (a *Account) GetNonce(ctx context.Context) (*big.Int, error) {
	deployed, err := a.IsDeployed(ctx)
	if err != nil {
		return nil, err
	}
	if !deployed {
		return big.NewInt(0), nil
	}

	addr, err := a.GetAddress(ctx)
	if err != nil {
		return nil, err
	}

	values, err := bundler.ReadContract(ctx, a.chain, a.entryPoint, EntryPointABI, "getNonce", addr, big.NewInt(0))
	if err != nil {
		return nil, err
	}
	return values[0].(*big.Int), nil
}

// EncodeExecute encodes a single call. A nil value means zero.
func (a *Account) EncodeExecute(target common.Address, value *big.Int, data []byte) ([]byte, error) {
	if value == nil {
		value = new(big.Int)
	}
	return a.variant.encodeExecute(target, value, nonNilBytes(data))
}

// EncodeBatchExecute encodes calls in order. Simple and light accounts drop
// per-call values.
func (a *Account) EncodeBatchExecute(calls []userop.Call) ([]byte, error) {
	if a.variant.kind() != KindModular {
		for _, c := range calls {
			if c.Value != nil && c.Value.Sign() != 0 {
				a.logger.Warn("batched call value is ignored by this account kind", "target", c.Target.Hex(), "value", c.Value.String())
			}
		}
	}
	return a.variant.encodeBatchExecute(calls)
}

// ParseMessage turns a message argument into the bytes to sign: a 0x-prefixed
// hex string is decoded, any other string is taken as UTF-8.
func ParseMessage(msg string) []byte {
	if strings.HasPrefix(msg, "0x") || strings.HasPrefix(msg, "0X") {
		if b, err := hexutil.Decode("0x" + msg[2:]); err == nil {
			return b
		}
	}
	return []byte(msg)
}

func (a *Account) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	return a.owner.SignMessage(ctx, msg)
}

func (a *Account) SignTypedData(ctx context.Context, typedData apitypes.TypedData) ([]byte, error) {
	if !a.variant.supportsTypedData() {
		return nil, &CapabilityNotImplementedError{Account: a.variant.kind(), Capability: "signTypedData"}
	}
	return a.owner.SignTypedData(ctx, typedData)
}

// SignUserOperationHash signs the userOpHash the way the account's
// validateUserOp expects it, an EIP-191 signature by the owner.
func (a *Account) SignUserOperationHash(ctx context.Context, hash common.Hash) ([]byte, error) {
	return a.owner.SignMessage(ctx, hash.Bytes())
}

func (a *Account) SignMessageWith6492(ctx context.Context, msg []byte) ([]byte, error) {
	return a.signWith6492(ctx, func(ctx context.Context) ([]byte, error) {
		return a.SignMessage(ctx, msg)
	})
}

func (a *Account) SignTypedDataWith6492(ctx context.Context, typedData apitypes.TypedData) ([]byte, error) {
	return a.signWith6492(ctx, func(ctx context.Context) ([]byte, error) {
		return a.SignTypedData(ctx, typedData)
	})
}

func (a *Account) signWith6492(ctx context.Context, sign func(context.Context) ([]byte, error)) ([]byte, error) {
	var (
		deployed bool
		sig      []byte
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		deployed, err = a.IsDeployed(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sig, err = sign(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if deployed {
		return sig, nil
	}

	factoryCallData, err := a.GetFactoryCallData(ctx)
	if err != nil {
		return nil, err
	}
	return Create6492Signature(false, a.factory, factoryCallData, sig)
}
