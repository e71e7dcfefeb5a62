// Provide primitive to work with a bundler RPC and the node behind it.
// The client is stateless apart from the transport headers.
package bundler

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/userop"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/logger"
)

// BundlerClient talks to an endpoint that serves both the ERC-4337 bundler
// namespace and the regular eth namespace, like the hosted AA providers do.
type BundlerClient struct {
	client *rpc.Client
	eth    *ethclient.Client
	logger logger.Logger
}

// NewBundlerClient dials url, which may be http(s), ws(s) or an ipc path.
func NewBundlerClient(ctx context.Context, url string, log logger.Logger) (*BundlerClient, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("error creating bundler client: %w", err)
	}
	return NewBundlerClientFromRPC(c, log), nil
}

// NewBundlerClientFromRPC wraps an existing rpc client.
func NewBundlerClientFromRPC(c *rpc.Client, log logger.Logger) *BundlerClient {
	return &BundlerClient{
		client: c,
		eth:    ethclient.NewClient(c),
		logger: logger.ForComponent(log, "bundler"),
	}
}

// Close closes the underlying RPC client connection.
func (bc *BundlerClient) Close() {
	bc.client.Close()
}

// SetHeader sets a header sent with every HTTP request.
func (bc *BundlerClient) SetHeader(key, value string) {
	bc.client.SetHeader(key, value)
}

// CallContext is the raw passthrough for methods the SDK does not model.
func (bc *BundlerClient) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	return bc.client.CallContext(ctx, result, method, args...)
}

// SendUserOperation submits a signed operation and returns its userOpHash.
func (bc *BundlerClient) SendUserOperation(
	ctx context.Context,
	op *userop.UserOperation,
	entrypoint common.Address,
) (common.Hash, error) {
	var hash common.Hash

	bc.logger.Debug("sending user operation",
		"sender", op.Sender.Hex(),
		"nonce", op.Nonce.String(),
		"entrypoint", entrypoint.Hex(),
		"initCodeLen", len(op.InitCode),
		"callDataLen", len(op.CallData))

	if err := bc.client.CallContext(ctx, &hash, "eth_sendUserOperation", op, entrypoint); err != nil {
		return common.Hash{}, &ChainSendError{Method: "eth_sendUserOperation", Err: err}
	}

	bc.logger.Info("user operation accepted by bundler", "userOpHash", hash.Hex(), "sender", op.Sender.Hex())
	return hash, nil
}

// EstimateUserOperationGas estimates the gas required for a UserOperation.
// https://eips.ethereum.org/EIPS/eip-4337#rpc-methods-eth-namespace
// The signature is ignored by the bundler but must be of the right length, so
// callers pass the account's dummy signature. stateOverride has the eth_call
// state override set semantics and is omitted when nil.
func (bc *BundlerClient) EstimateUserOperationGas(
	ctx context.Context,
	op *userop.UserOperation,
	entrypoint common.Address,
	stateOverride map[string]any,
) (*GasEstimation, error) {
	args := []interface{}{op, entrypoint}
	if stateOverride != nil {
		args = append(args, stateOverride)
	}

	var result gasEstimationJSON
	if err := bc.client.CallContext(ctx, &result, "eth_estimateUserOperationGas", args...); err != nil {
		return nil, readErr("eth_estimateUserOperationGas", err)
	}

	est := result.toGasEstimation()
	bc.logger.Debug("estimated user operation gas",
		"preVerificationGas", est.PreVerificationGas.String(),
		"verificationGasLimit", est.VerificationGasLimit.String(),
		"callGasLimit", est.CallGasLimit.String())
	return est, nil
}

// GetUserOperationByHash returns nil without error when the bundler does not
// know the hash.
func (bc *BundlerClient) GetUserOperationByHash(ctx context.Context, hash common.Hash) (*UserOperationByHash, error) {
	var result *UserOperationByHash
	if err := bc.client.CallContext(ctx, &result, "eth_getUserOperationByHash", hash); err != nil {
		return nil, readErr("eth_getUserOperationByHash", err)
	}
	return result, nil
}

// GetUserOperationReceipt returns nil without error until the operation is mined.
func (bc *BundlerClient) GetUserOperationReceipt(ctx context.Context, hash common.Hash) (*UserOperationReceipt, error) {
	var result *UserOperationReceipt
	if err := bc.client.CallContext(ctx, &result, "eth_getUserOperationReceipt", hash); err != nil {
		return nil, readErr("eth_getUserOperationReceipt", err)
	}
	return result, nil
}

func (bc *BundlerClient) SupportedEntryPoints(ctx context.Context) ([]common.Address, error) {
	var result []common.Address
	if err := bc.client.CallContext(ctx, &result, "eth_supportedEntryPoints"); err != nil {
		return nil, readErr("eth_supportedEntryPoints", err)
	}
	return result, nil
}

func (bc *BundlerClient) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := bc.eth.ChainID(ctx)
	return id, readErr("eth_chainId", err)
}

// HeaderByNumber returns the latest header when number is nil.
func (bc *BundlerClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	h, err := bc.eth.HeaderByNumber(ctx, number)
	return h, readErr("eth_getBlockByNumber", err)
}

func (bc *BundlerClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	code, err := bc.eth.CodeAt(ctx, account, blockNumber)
	return code, readErr("eth_getCode", err)
}

// CallContract simulates msg. A revert surfaces as a ChainReadError wrapping
// an rpc.DataError that carries the revert data.
func (bc *BundlerClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	out, err := bc.eth.CallContract(ctx, msg, blockNumber)
	return out, readErr("eth_call", err)
}

// SuggestGasTipCap reads eth_maxPriorityFeePerGas.
func (bc *BundlerClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	tip, err := bc.eth.SuggestGasTipCap(ctx)
	return tip, readErr("eth_maxPriorityFeePerGas", err)
}

// ReadContract calls a view method and unpacks its outputs.
func (bc *BundlerClient) ReadContract(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	return ReadContract(ctx, bc, to, contractABI, method, args...)
}

// ContractCaller is the subset of the client ReadContract needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ReadContract packs method with args, runs it against to at the latest block
// and unpacks the result.
func ReadContract(ctx context.Context, caller ContractCaller, to common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	input, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		var cre *ChainReadError
		if errors.As(err, &cre) {
			return nil, err
		}
		return nil, &ChainReadError{Method: method, Err: err}
	}

	values, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, &ChainReadError{Method: method, Err: fmt.Errorf("unpack result: %w", err)}
	}
	return values, nil
}
