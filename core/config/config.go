package config

import (
	"fmt"
	"math/big"
	"os"
	"time"

	sdklogging "github.com/Layr-Labs/eigensdk-go/logging"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/AvaProtocol/ap-aa-sdk/core/chainio/aa"
	"github.com/AvaProtocol/ap-aa-sdk/core/chainio/signer"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/logger"
)

// Config is the validated, typed form of ConfigRaw that the CLI wires into
// an account, a bundler client and a SmartAccountClient.
type Config struct {
	Environment sdklogging.LogLevel
	Logger      logger.Logger

	EthRpcUrl  string
	BundlerUrl string
	// ChainID is nil when the node should be asked.
	ChainID *big.Int

	EntrypointAddress common.Address
	AccountKind       aa.Kind
	FactoryAddress    common.Address
	// AccountAddress pins the account instead of deriving it.
	AccountAddress *common.Address
	Salt           *big.Int

	// PriorityFeeFloor overrides the per chain floor when set.
	PriorityFeeFloor *big.Int

	Signer    signer.SmartAccountSigner
	Paymaster *PaymasterConfig
}

type PaymasterConfig struct {
	Address  common.Address
	Signer   signer.SmartAccountSigner
	Validity time.Duration
}

// ConfigRaw is read from the YAML config file.
type ConfigRaw struct {
	Environment       sdklogging.LogLevel `yaml:"environment" validate:"omitempty,oneof=development production"`
	EthRpcUrl         string              `yaml:"eth_rpc_url" validate:"required,url"`
	BundlerUrl        string              `yaml:"bundler_url" validate:"omitempty,url"`
	ChainId           int64               `yaml:"chain_id" validate:"gte=0"`
	EntrypointAddress string              `yaml:"entrypoint_address" validate:"omitempty,eth_address"`

	AccountKind    string `yaml:"account_kind" validate:"omitempty,account_kind"`
	FactoryAddress string `yaml:"factory_address" validate:"omitempty,eth_address"`
	AccountAddress string `yaml:"account_address" validate:"omitempty,eth_address"`
	Salt           int64  `yaml:"salt" validate:"gte=0"`

	// PriorityFeeFloorGwei is a decimal amount of gwei, e.g. "0.01".
	PriorityFeeFloorGwei string `yaml:"priority_fee_floor_gwei" validate:"omitempty,numeric"`

	Signer    SignerRaw     `yaml:"signer"`
	Paymaster *PaymasterRaw `yaml:"paymaster"`
}

// SignerRaw selects the owner key source. Exactly one source is used, in
// the order private key, mnemonic, remote.
type SignerRaw struct {
	EcdsaPrivateKey string `yaml:"ecdsa_private_key" validate:"required_without_all=Mnemonic RemoteUrl"`
	Mnemonic        string `yaml:"mnemonic"`
	DerivationPath  string `yaml:"derivation_path"`
	RemoteUrl       string `yaml:"remote_url" validate:"omitempty,url"`
	RemoteApiKey    string `yaml:"remote_api_key"`
}

type PaymasterRaw struct {
	Address         string `yaml:"address" validate:"required,eth_address"`
	SignerKey       string `yaml:"signer_key" validate:"required,hex_key"`
	ValiditySeconds int64  `yaml:"validity_seconds" validate:"gte=0"`
}

// NewConfig reads, validates and converts the YAML file at configFilePath.
func NewConfig(configFilePath string) (*Config, error) {
	raw, err := ReadConfigRaw(configFilePath)
	if err != nil {
		return nil, err
	}
	return raw.Build()
}

func ReadConfigRaw(configFilePath string) (*ConfigRaw, error) {
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", configFilePath, err)
	}

	var raw ConfigRaw
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", configFilePath, err)
	}
	return &raw, nil
}

func (raw *ConfigRaw) Validate() error {
	v, err := newValidator()
	if err != nil {
		return err
	}
	if err := v.Struct(raw); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return &ValidationError{Fields: verrs}
		}
		return err
	}
	return nil
}

// Build validates raw and converts it to a Config.
func (raw *ConfigRaw) Build() (*Config, error) {
	if err := raw.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(string(raw.Environment))
	if err != nil {
		return nil, err
	}

	kind, err := aa.ParseKind(raw.AccountKind)
	if err != nil {
		return nil, err
	}

	owner, err := raw.Signer.build()
	if err != nil {
		log.Error("Cannot load account signer", "err", err)
		return nil, err
	}

	floor, err := parseGwei(raw.PriorityFeeFloorGwei)
	if err != nil {
		return nil, err
	}

	c := &Config{
		Environment:       raw.Environment,
		Logger:            log,
		EthRpcUrl:         raw.EthRpcUrl,
		BundlerUrl:        raw.BundlerUrl,
		EntrypointAddress: aa.EntrypointAddress,
		AccountKind:       kind,
		FactoryAddress:    aa.DefaultFactoryAddress(kind),
		AccountAddress:    parseOptionalAddress(raw.AccountAddress),
		Salt:              big.NewInt(raw.Salt),
		PriorityFeeFloor:  floor,
		Signer:            owner,
	}
	if c.BundlerUrl == "" {
		c.BundlerUrl = c.EthRpcUrl
	}
	if raw.ChainId > 0 {
		c.ChainID = big.NewInt(raw.ChainId)
	}
	if raw.EntrypointAddress != "" {
		c.EntrypointAddress = common.HexToAddress(raw.EntrypointAddress)
	}
	if raw.FactoryAddress != "" {
		c.FactoryAddress = common.HexToAddress(raw.FactoryAddress)
	}

	if raw.Paymaster != nil {
		pmSigner, err := signer.FromPrivateKeyHex(raw.Paymaster.SignerKey)
		if err != nil {
			return nil, fmt.Errorf("paymaster signer: %w", err)
		}
		c.Paymaster = &PaymasterConfig{
			Address:  common.HexToAddress(raw.Paymaster.Address),
			Signer:   pmSigner,
			Validity: time.Duration(raw.Paymaster.ValiditySeconds) * time.Second,
		}
	}

	return c, nil
}

func (s SignerRaw) build() (signer.SmartAccountSigner, error) {
	switch {
	case s.EcdsaPrivateKey != "":
		return signer.FromPrivateKeyHex(s.EcdsaPrivateKey)
	case s.Mnemonic != "":
		path := s.DerivationPath
		if path == "" {
			path = signer.DefaultDerivationPath
		}
		return signer.NewMnemonicSigner(s.Mnemonic, path)
	default:
		return signer.NewRemoteSigner(s.RemoteUrl, s.RemoteApiKey), nil
	}
}

// FeeFloor returns the configured priority fee floor, or the default of
// chainID.
func (c *Config) FeeFloor(chainID *big.Int) *big.Int {
	if c.PriorityFeeFloor != nil {
		return c.PriorityFeeFloor
	}
	return PriorityFeeFloor(chainID)
}

func (c *Config) AccountParams(chain aa.ChainReader) aa.AccountParams {
	return aa.AccountParams{
		Kind:       c.AccountKind,
		Chain:      chain,
		Signer:     c.Signer,
		EntryPoint: c.EntrypointAddress,
		Factory:    c.FactoryAddress,
		Address:    c.AccountAddress,
		Salt:       c.Salt,
		Logger:     c.Logger,
	}
}
