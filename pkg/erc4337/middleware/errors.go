package middleware

import (
	"fmt"

	"github.com/AvaProtocol/ap-aa-sdk/pkg/eip1559"
)

// ErrFeeDataUnavailable is returned by the fee stage when the node reports no base fee.
var ErrFeeDataUnavailable = eip1559.ErrBaseFeeUnavailable

// StageFailureError carries the name of the stage that aborted a run.
type StageFailureError struct {
	Stage string
	Err   error
}

func (e *StageFailureError) Error() string {
	return fmt.Sprintf("middleware stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageFailureError) Unwrap() error { return e.Err }
