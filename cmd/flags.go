package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/pflag"

	"github.com/AvaProtocol/ap-aa-sdk/pkg/decodehook"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/userop"
)

// overrideFlags maps CLI flags to userop.Overrides keys.
var overrideFlags = map[string]string{
	"call-gas-limit":           "callGasLimit",
	"verification-gas-limit":   "verificationGasLimit",
	"pre-verification-gas":     "preVerificationGas",
	"max-fee-per-gas":          "maxFeePerGas",
	"max-priority-fee-per-gas": "maxPriorityFeePerGas",
	"paymaster-and-data":       "paymasterAndData",
}

func addOverrideFlags(flags *pflag.FlagSet) {
	flags.String("call-gas-limit", "", "Override callGasLimit")
	flags.String("verification-gas-limit", "", "Override verificationGasLimit")
	flags.String("pre-verification-gas", "", "Override preVerificationGas")
	flags.String("max-fee-per-gas", "", "Override maxFeePerGas (wei)")
	flags.String("max-priority-fee-per-gas", "", "Override maxPriorityFeePerGas (wei)")
	flags.String("paymaster-and-data", "", "Override paymasterAndData (hex)")
}

func addCallFlags(flags *pflag.FlagSet) {
	flags.StringSlice("to", nil, "Call target, repeat for a batch")
	flags.StringSlice("value", nil, "Wei sent with each call, in --to order")
	flags.StringSlice("data", nil, "Hex call data of each call, in --to order")
	flags.String("raw-calldata", "", "Use this hex as the UserOperation callData as is")
}

// hexFlag decodes a 0x hex flag. An empty flag yields nil.
func hexFlag(flags *pflag.FlagSet, name string) ([]byte, error) {
	v, err := flags.GetString(name)
	if err != nil || v == "" {
		return nil, err
	}
	b, err := hexutil.Decode(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return b, nil
}

// overridesFromFlags returns nil when no override flag was given.
func overridesFromFlags(flags *pflag.FlagSet) (*userop.Overrides, error) {
	values := map[string]interface{}{}
	for name, key := range overrideFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return nil, err
		}
		values[key] = v
	}
	if len(values) == 0 {
		return nil, nil
	}

	var o userop.Overrides
	if err := decodehook.Decode(values, &o); err != nil {
		return nil, fmt.Errorf("overrides: %w", err)
	}
	return &o, nil
}

// callsFromFlags builds a Call, a BatchCall when --to is repeated, or
// RawCallData from --raw-calldata.
func callsFromFlags(flags *pflag.FlagSet) (userop.Calls, error) {
	raw, err := flags.GetString("raw-calldata")
	if err != nil {
		return nil, err
	}
	if raw != "" {
		b, err := hexutil.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("raw-calldata: %w", err)
		}
		return userop.RawCallData(b), nil
	}

	targets, err := flags.GetStringSlice("to")
	if err != nil {
		return nil, err
	}
	values, err := flags.GetStringSlice("value")
	if err != nil {
		return nil, err
	}
	data, err := flags.GetStringSlice("data")
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("either --to or --raw-calldata is required")
	}
	if len(values) > len(targets) || len(data) > len(targets) {
		return nil, fmt.Errorf("more --value or --data than --to")
	}

	items := make([]map[string]interface{}, len(targets))
	for i, to := range targets {
		item := map[string]interface{}{"to": to}
		if i < len(values) {
			item["value"] = values[i]
		}
		if i < len(data) {
			item["data"] = data[i]
		}
		items[i] = item
	}

	var calls []userop.Call
	if err := decodehook.Decode(items, &calls); err != nil {
		return nil, fmt.Errorf("calls: %w", err)
	}
	if len(calls) == 1 {
		return calls[0], nil
	}
	return userop.BatchCall(calls), nil
}
