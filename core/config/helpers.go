package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/AvaProtocol/ap-aa-sdk/core/chainio/aa"
)

// ValidationError lists every config field that failed validation.
type ValidationError struct {
	Fields validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = fmt.Sprintf("%s failed %q", f.Namespace(), f.Tag())
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

func validEthAddress(fl validator.FieldLevel) bool {
	return common.IsHexAddress(fl.Field().String())
}

func validHexKey(fl validator.FieldLevel) bool {
	_, err := crypto.HexToECDSA(strings.TrimPrefix(fl.Field().String(), "0x"))
	return err == nil
}

func validAccountKind(fl validator.FieldLevel) bool {
	_, err := aa.ParseKind(fl.Field().String())
	return err == nil
}

func newValidator() (*validator.Validate, error) {
	v := validator.New()
	if err := v.RegisterValidation("eth_address", validEthAddress); err != nil {
		return nil, fmt.Errorf("failed to register validator for eth_address: %w", err)
	}
	if err := v.RegisterValidation("hex_key", validHexKey); err != nil {
		return nil, fmt.Errorf("failed to register validator for hex_key: %w", err)
	}
	if err := v.RegisterValidation("account_kind", validAccountKind); err != nil {
		return nil, fmt.Errorf("failed to register validator for account_kind: %w", err)
	}
	return v, nil
}

func parseOptionalAddress(s string) *common.Address {
	if s == "" {
		return nil
	}
	addr := common.HexToAddress(s)
	return &addr
}

var weiPerGwei = decimal.New(1, 9)

// parseGwei converts a decimal gwei amount to wei. Empty input is nil.
func parseGwei(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid gwei amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid gwei amount %q: negative", s)
	}
	return d.Mul(weiPerGwei).BigInt(), nil
}
