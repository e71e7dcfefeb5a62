// Package testutil provides an in-memory node and bundler for unit tests, so
// account, middleware and client code can run without a live RPC endpoint.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/bundler"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/userop"
)

const (
	// anvil/hardhat account #0
	OwnerKeyHex  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	OwnerAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

var EntryPoint = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")

// Selector returns the 4-byte id of a canonical signature such as "getNonce(address,uint192)".
func Selector(sig string) [4]byte {
	var s [4]byte
	copy(s[:], crypto.Keccak256([]byte(sig))[:4])
	return s
}

// RevertError mimics the geth json-rpc error carrying revert data.
type RevertError struct {
	Data []byte
}

func (e *RevertError) Error() string          { return "execution reverted" }
func (e *RevertError) ErrorCode() int         { return 3 }
func (e *RevertError) ErrorData() interface{} { return hexutil.Encode(e.Data) }

// CallHandler answers an eth_call with the full input.
type CallHandler func(input []byte) ([]byte, error)

// FakeChain implements the node and bundler methods the SDK uses.
type FakeChain struct {
	mu sync.Mutex

	ChainIDValue *big.Int
	// BaseFee is reported on the latest header. Nil models a pre-London chain.
	BaseFee *big.Int
	TipCap  *big.Int
	// Estimate is returned by EstimateUserOperationGas.
	Estimate *bundler.GasEstimation

	code     map[common.Address][]byte
	handlers map[common.Address]map[[4]byte]CallHandler
	calls    map[[4]byte]int
	rpcCalls map[string]int

	Headers  map[string]string
	Sent     []*userop.UserOperation
	Receipts map[common.Hash]*bundler.UserOperationReceipt
	// Passthrough answers CallContext for methods the fake does not model.
	Passthrough func(method string, args ...interface{}) (interface{}, error)
}

func NewFakeChain() *FakeChain {
	return &FakeChain{
		ChainIDValue: big.NewInt(11155111),
		BaseFee:      big.NewInt(1_000_000_000),
		TipCap:       big.NewInt(1_000_000_000),
		Estimate: &bundler.GasEstimation{
			PreVerificationGas:   big.NewInt(50_000),
			VerificationGasLimit: big.NewInt(100_000),
			CallGasLimit:         big.NewInt(35_000),
		},
		code:     map[common.Address][]byte{},
		handlers: map[common.Address]map[[4]byte]CallHandler{},
		calls:    map[[4]byte]int{},
		rpcCalls: map[string]int{},
		Headers:  map[string]string{},
		Receipts: map[common.Hash]*bundler.UserOperationReceipt{},
	}
}

// SetCode marks addr as deployed (non-empty code) or not.
func (f *FakeChain) SetCode(addr common.Address, code []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.code[addr] = code
}

// HandleCall registers fn for calls to `to` with the selector of sig.
func (f *FakeChain) HandleCall(to common.Address, sig string, fn CallHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers[to] == nil {
		f.handlers[to] = map[[4]byte]CallHandler{}
	}
	f.handlers[to][Selector(sig)] = fn
}

// HandleSenderAddress makes getSenderAddress revert with SenderAddressResult(sender).
func (f *FakeChain) HandleSenderAddress(entryPoint, sender common.Address) {
	addrTy, _ := abi.NewType("address", "", nil)
	encoded, _ := abi.Arguments{{Type: addrTy}}.Pack(sender)
	sel := Selector("SenderAddressResult(address)")
	revert := append(sel[:], encoded...)

	f.HandleCall(entryPoint, "getSenderAddress(bytes)", func([]byte) ([]byte, error) {
		return nil, &RevertError{Data: revert}
	})
}

// HandleNonce answers EntryPoint.getNonce with nonce.
func (f *FakeChain) HandleNonce(entryPoint common.Address, nonce *big.Int) {
	f.HandleCall(entryPoint, "getNonce(address,uint192)", func([]byte) ([]byte, error) {
		return common.LeftPadBytes(nonce.Bytes(), 32), nil
	})
}

// Calls returns how often a call with the selector of sig was made.
func (f *FakeChain) Calls(sig string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[Selector(sig)]
}

// RPCCalls returns how often method was invoked.
func (f *FakeChain) RPCCalls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rpcCalls[method]
}

func (f *FakeChain) count(method string) {
	f.mu.Lock()
	f.rpcCalls[method]++
	f.mu.Unlock()
}

func (f *FakeChain) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	f.count("eth_getCode")
	f.mu.Lock()
	defer f.mu.Unlock()
	return common.CopyBytes(f.code[account]), nil
}

func (f *FakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.count("eth_call")
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("fake chain: malformed call")
	}

	var sel [4]byte
	copy(sel[:], msg.Data[:4])

	f.mu.Lock()
	f.calls[sel]++
	fn := f.handlers[*msg.To][sel]
	f.mu.Unlock()

	if fn == nil {
		return nil, &RevertError{}
	}
	return fn(msg.Data)
}

func (f *FakeChain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	f.count("eth_getBlockByNumber")
	return &types.Header{Number: big.NewInt(1), BaseFee: f.BaseFee}, nil
}

func (f *FakeChain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	f.count("eth_maxPriorityFeePerGas")
	return new(big.Int).Set(f.TipCap), nil
}

func (f *FakeChain) ChainID(ctx context.Context) (*big.Int, error) {
	f.count("eth_chainId")
	return new(big.Int).Set(f.ChainIDValue), nil
}

func (f *FakeChain) EstimateUserOperationGas(ctx context.Context, op *userop.UserOperation, entrypoint common.Address, stateOverride map[string]any) (*bundler.GasEstimation, error) {
	f.count("eth_estimateUserOperationGas")
	return f.Estimate, nil
}

// SendUserOperation records op and returns its hash.
func (f *FakeChain) SendUserOperation(ctx context.Context, op *userop.UserOperation, entrypoint common.Address) (common.Hash, error) {
	f.count("eth_sendUserOperation")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, op.Copy())
	return op.GetUserOpHash(entrypoint, f.ChainIDValue), nil
}

func (f *FakeChain) GetUserOperationReceipt(ctx context.Context, hash common.Hash) (*bundler.UserOperationReceipt, error) {
	f.count("eth_getUserOperationReceipt")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Receipts[hash], nil
}

func (f *FakeChain) SetHeader(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Headers[key] = value
}

// CallContext forwards to Passthrough and stores its answer in result, which
// must be a *interface{} or a pointer to the answer's type.
func (f *FakeChain) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	f.count(method)
	if f.Passthrough == nil {
		return fmt.Errorf("fake chain: method %s not supported", method)
	}
	v, err := f.Passthrough(method, args...)
	if err != nil {
		return err
	}
	switch r := result.(type) {
	case *interface{}:
		*r = v
	case *string:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("fake chain: %s answered %T", method, v)
		}
		*r = s
	default:
		return fmt.Errorf("fake chain: unsupported result type %T", result)
	}
	return nil
}
