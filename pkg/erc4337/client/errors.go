package client

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNoAccountBound  = errors.New("no smart account bound to client")
	ErrUnsupportedCall = errors.New("unsupported call type")
	ErrInvalidParams   = errors.New("invalid request params")
)

// AddressMismatchError is returned by Request when a signing method names an
// address other than the bound account's.
type AddressMismatchError struct {
	Method   string
	Expected common.Address
	Got      string
}

func (e *AddressMismatchError) Error() string {
	return fmt.Sprintf("%s: cannot sign for %s, bound account is %s", e.Method, e.Got, e.Expected.Hex())
}
