package client

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sethvargo/go-retry"

	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/bundler"
)

var (
	receiptPollInterval    = 500 * time.Millisecond
	receiptPollIntervalMax = 8 * time.Second
)

var errReceiptPending = errors.New("user operation not mined yet")

// WaitForUserOperationReceipt polls eth_getUserOperationReceipt with a capped
// exponential backoff until the operation is mined. Only a missing receipt
// is retried; RPC errors are returned as they are. Bound the wait with ctx.
func (c *SmartAccountClient) WaitForUserOperationReceipt(ctx context.Context, hash common.Hash) (*bundler.UserOperationReceipt, error) {
	backoff, err := retry.NewExponential(receiptPollInterval)
	if err != nil {
		return nil, err
	}
	backoff = retry.WithCappedDuration(receiptPollIntervalMax, backoff)

	var receipt *bundler.UserOperationReceipt
	attempts := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		r, err := c.transport.GetUserOperationReceipt(ctx, hash)
		if err != nil {
			return err
		}
		if r == nil {
			return retry.RetryableError(errReceiptPending)
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("user operation mined",
		"hash", hash.Hex(),
		"tx", receipt.Receipt.TransactionHash.Hex(),
		"success", receipt.Success,
		"attempts", attempts)
	return receipt, nil
}
