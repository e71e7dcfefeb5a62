package userop

import "math/big"

// Overrides are caller supplied values that win over anything the middleware
// computes. A nil field means "no override".
type Overrides struct {
	CallGasLimit         *big.Int `mapstructure:"callGasLimit"`
	VerificationGasLimit *big.Int `mapstructure:"verificationGasLimit"`
	PreVerificationGas   *big.Int `mapstructure:"preVerificationGas"`
	MaxFeePerGas         *big.Int `mapstructure:"maxFeePerGas"`
	MaxPriorityFeePerGas *big.Int `mapstructure:"maxPriorityFeePerGas"`
	PaymasterAndData     []byte   `mapstructure:"paymasterAndData"`
}

// IsEmpty reports whether no field is overridden. A nil receiver is empty.
func (o *Overrides) IsEmpty() bool {
	return o == nil || (o.CallGasLimit == nil &&
		o.VerificationGasLimit == nil &&
		o.PreVerificationGas == nil &&
		o.MaxFeePerGas == nil &&
		o.MaxPriorityFeePerGas == nil &&
		o.PaymasterAndData == nil)
}

// Patch returns a draft that sets exactly the overridden fields.
func (o *Overrides) Patch() Draft {
	var p Draft
	if o == nil {
		return p
	}
	if o.CallGasLimit != nil {
		p.CallGasLimit = Known(o.CallGasLimit)
	}
	if o.VerificationGasLimit != nil {
		p.VerificationGasLimit = Known(o.VerificationGasLimit)
	}
	if o.PreVerificationGas != nil {
		p.PreVerificationGas = Known(o.PreVerificationGas)
	}
	if o.MaxFeePerGas != nil {
		p.MaxFeePerGas = Known(o.MaxFeePerGas)
	}
	if o.MaxPriorityFeePerGas != nil {
		p.MaxPriorityFeePerGas = Known(o.MaxPriorityFeePerGas)
	}
	if o.PaymasterAndData != nil {
		p.PaymasterAndData = Known(o.PaymasterAndData)
	}
	return p
}

// Apply merges the overrides into d.
func (o *Overrides) Apply(d Draft) Draft {
	if o.IsEmpty() {
		return d
	}
	return d.Merge(o.Patch())
}
