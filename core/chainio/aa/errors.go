package aa

import (
	"errors"
	"fmt"
)

var ErrCapabilityNotImplemented = errors.New("capability not implemented")

// CapabilityNotImplementedError is returned when an account kind cannot
// provide an operation, e.g. typed data signing on a simple account.
type CapabilityNotImplementedError struct {
	Account    Kind
	Capability string
}

func (e *CapabilityNotImplementedError) Error() string {
	return fmt.Sprintf("%s: %s account does not support %s", ErrCapabilityNotImplemented, e.Account, e.Capability)
}

func (e *CapabilityNotImplementedError) Is(target error) bool {
	return target == ErrCapabilityNotImplemented
}

// AddressResolutionError means getSenderAddress did not revert with
// SenderAddressResult. Err holds whatever came back instead.
type AddressResolutionError struct {
	Err error
}

func (e *AddressResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve counterfactual account address: %v", e.Err)
}

func (e *AddressResolutionError) Unwrap() error { return e.Err }
