package config

import (
	"math/big"

	"github.com/AvaProtocol/ap-aa-sdk/pkg/eip1559"
)

type ChainEnv string

const (
	EthereumEnv        = ChainEnv("ethereum")
	SepoliaEnv         = ChainEnv("sepolia")
	ArbitrumEnv        = ChainEnv("arbitrum")
	ArbitrumGoerliEnv  = ChainEnv("arbitrum-goerli")
	ArbitrumSepoliaEnv = ChainEnv("arbitrum-sepolia")
	BaseEnv            = ChainEnv("base")
	BaseSepoliaEnv     = ChainEnv("base-sepolia")
	UnknownEnv         = ChainEnv("unknown")
)

var (
	MainnetChainID = big.NewInt(1)

	// ArbitrumPriorityFeeFloor applies to the Arbitrum family (0.01 gwei).
	ArbitrumPriorityFeeFloor = big.NewInt(10_000_000)

	chainEnvs = map[int64]ChainEnv{
		1:        EthereumEnv,
		11155111: SepoliaEnv,
		42161:    ArbitrumEnv,
		421613:   ArbitrumGoerliEnv,
		421614:   ArbitrumSepoliaEnv,
		8453:     BaseEnv,
		84532:    BaseSepoliaEnv,
	}
)

func ChainEnvOf(chainID *big.Int) ChainEnv {
	if chainID == nil || !chainID.IsInt64() {
		return UnknownEnv
	}
	if env, ok := chainEnvs[chainID.Int64()]; ok {
		return env
	}
	return UnknownEnv
}

func IsMainnet(chainID *big.Int) bool {
	return chainID != nil && chainID.Cmp(MainnetChainID) == 0
}

func IsArbitrum(chainID *big.Int) bool {
	switch ChainEnvOf(chainID) {
	case ArbitrumEnv, ArbitrumGoerliEnv, ArbitrumSepoliaEnv:
		return true
	}
	return false
}

// PriorityFeeFloor is the minimum maxPriorityFeePerGas for chainID.
func PriorityFeeFloor(chainID *big.Int) *big.Int {
	if IsArbitrum(chainID) {
		return new(big.Int).Set(ArbitrumPriorityFeeFloor)
	}
	return new(big.Int).Set(eip1559.DefaultPriorityFeeFloor)
}

// UserOpExplorerURL links a UserOperation hash on jiffyscan.
func UserOpExplorerURL(chainID *big.Int, userOpHash string) string {
	network := string(ChainEnvOf(chainID))
	if IsMainnet(chainID) {
		network = "mainnet"
	}
	return "https://jiffyscan.xyz/userOpHash/" + userOpHash + "?network=" + network
}
