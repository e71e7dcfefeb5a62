package client

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"

	"github.com/AvaProtocol/ap-aa-sdk/core/chainio/aa"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/decodehook"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/userop"
)

// TransactionRequest is the eth_sendTransaction parameter. Gas and fee
// fields of the request are ignored; the middleware stack sets them.
type TransactionRequest struct {
	From  *common.Address `mapstructure:"from"`
	To    common.Address  `mapstructure:"to"`
	Value *big.Int        `mapstructure:"value"`
	Data  []byte          `mapstructure:"data"`
}

func decodeTransaction(raw interface{}) (TransactionRequest, error) {
	var tx TransactionRequest
	if err := decodehook.Decode(raw, &tx); err != nil {
		return tx, fmt.Errorf("%w: eth_sendTransaction: %v", ErrInvalidParams, err)
	}
	return tx, nil
}

// SendTransaction wraps tx into a UserOperation, sends it and waits for the
// bundle transaction. It returns the transaction hash, as eth_sendTransaction
// callers expect.
func (c *SmartAccountClient) SendTransaction(ctx context.Context, tx TransactionRequest) (common.Hash, error) {
	if c.account == nil {
		return common.Hash{}, ErrNoAccountBound
	}
	if tx.From != nil {
		if err := c.checkAddress(ctx, "eth_sendTransaction", tx.From.Hex()); err != nil {
			return common.Hash{}, err
		}
	}

	hash, err := c.SendCalls(ctx, userop.Call{Target: tx.To, Value: tx.Value, Data: tx.Data}, nil)
	if err != nil {
		return common.Hash{}, err
	}
	receipt, err := c.WaitForUserOperationReceipt(ctx, hash)
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.Receipt.TransactionHash, nil
}

func (c *SmartAccountClient) checkAddress(ctx context.Context, method, got string) error {
	if c.account == nil {
		return ErrNoAccountBound
	}
	addr, err := c.account.GetAddress(ctx)
	if err != nil {
		return err
	}
	if !common.IsHexAddress(got) || common.HexToAddress(got) != addr {
		return &AddressMismatchError{Method: method, Expected: addr, Got: got}
	}
	return nil
}

func stringParam(method string, params []interface{}, i int) (string, error) {
	if len(params) <= i {
		return "", fmt.Errorf("%w: %s expects at least %d params", ErrInvalidParams, method, i+1)
	}
	s, ok := params[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s param %d is %T, not a string", ErrInvalidParams, method, i, params[i])
	}
	return s, nil
}

// typedDataParam accepts typed data as a JSON string or as an already
// decoded object.
func typedDataParam(raw interface{}) (apitypes.TypedData, error) {
	var td apitypes.TypedData
	var buf []byte
	switch v := raw.(type) {
	case string:
		buf = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return td, err
		}
		buf = b
	}
	if err := json.Unmarshal(buf, &td); err != nil {
		return td, fmt.Errorf("%w: typed data: %v", ErrInvalidParams, err)
	}
	return td, nil
}

func (c *SmartAccountClient) signMessageRequest(ctx context.Context, method, address, message string) (interface{}, error) {
	if err := c.checkAddress(ctx, method, address); err != nil {
		return nil, err
	}
	sig, err := c.account.SignMessage(ctx, aa.ParseMessage(message))
	if err != nil {
		return nil, err
	}
	return hexutil.Encode(sig), nil
}

// Request is an EIP-1193 style entry point. eth_sendTransaction, eth_sign,
// personal_sign, eth_signTypedData_v4 and eth_chainId are served by the bound
// account and client. Every other method goes to the transport untouched.
func (c *SmartAccountClient) Request(ctx context.Context, method string, params ...interface{}) (interface{}, error) {
	log := c.logger.With("request_id", ulid.Make().String(), "method", method)
	log.Debug("provider request")

	switch method {
	case "eth_sendTransaction":
		if len(params) < 1 {
			return nil, fmt.Errorf("%w: eth_sendTransaction expects a transaction", ErrInvalidParams)
		}
		tx, err := decodeTransaction(params[0])
		if err != nil {
			return nil, err
		}
		hash, err := c.SendTransaction(ctx, tx)
		if err != nil {
			return nil, err
		}
		return hash.Hex(), nil

	case "eth_sign":
		address, err := stringParam(method, params, 0)
		if err != nil {
			return nil, err
		}
		data, err := stringParam(method, params, 1)
		if err != nil {
			return nil, err
		}
		return c.signMessageRequest(ctx, method, address, data)

	case "personal_sign":
		data, err := stringParam(method, params, 0)
		if err != nil {
			return nil, err
		}
		address, err := stringParam(method, params, 1)
		if err != nil {
			return nil, err
		}
		return c.signMessageRequest(ctx, method, address, data)

	case "eth_signTypedData_v4":
		address, err := stringParam(method, params, 0)
		if err != nil {
			return nil, err
		}
		if len(params) < 2 {
			return nil, fmt.Errorf("%w: %s expects typed data", ErrInvalidParams, method)
		}
		if err := c.checkAddress(ctx, method, address); err != nil {
			return nil, err
		}
		td, err := typedDataParam(params[1])
		if err != nil {
			return nil, err
		}
		sig, err := c.account.SignTypedData(ctx, td)
		if err != nil {
			return nil, err
		}
		return hexutil.Encode(sig), nil

	case "eth_chainId":
		id, err := c.ChainID(ctx)
		if err != nil {
			return nil, err
		}
		return hexutil.EncodeBig(id), nil
	}

	var result interface{}
	if err := c.transport.CallContext(ctx, &result, method, params...); err != nil {
		log.Debug("passthrough request failed", "error", err)
		return nil, err
	}
	return result, nil
}
