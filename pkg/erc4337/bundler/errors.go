package bundler

import "fmt"

// ChainReadError wraps a failed read against the node (eth_call, eth_getCode,
// eth_getBlockByNumber, ...). The underlying rpc error stays reachable with
// errors.As, including its revert data.
type ChainReadError struct {
	Method string
	Err    error
}

func (e *ChainReadError) Error() string {
	return fmt.Sprintf("chain read %s failed: %v", e.Method, e.Err)
}

func (e *ChainReadError) Unwrap() error { return e.Err }

// ChainSendError wraps a rejected eth_sendUserOperation.
type ChainSendError struct {
	Method string
	Err    error
}

func (e *ChainSendError) Error() string {
	return fmt.Sprintf("chain send %s failed: %v", e.Method, e.Err)
}

func (e *ChainSendError) Unwrap() error { return e.Err }

func readErr(method string, err error) error {
	if err == nil {
		return nil
	}
	return &ChainReadError{Method: method, Err: err}
}
