package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	eip191Prefix = "\x19Ethereum Signed Message:\n"
)

// SmartAccountSigner is the owner key of a smart account. Implementations
// never expose key material, only signatures.
type SmartAccountSigner interface {
	// SignerType is a short label reported to the RPC provider.
	SignerType() string
	GetAddress(ctx context.Context) (common.Address, error)
	// SignMessage returns an EIP-191 personal_sign signature over msg with v in {27, 28}.
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
	// SignTypedData returns an EIP-712 signature with v in {27, 28}.
	SignTypedData(ctx context.Context, typedData apitypes.TypedData) ([]byte, error)
}

// HashMessage returns the EIP-191 digest of data.
func HashMessage(data []byte) common.Hash {
	prefix := []byte(eip191Prefix + fmt.Sprint(len(data)))
	return crypto.Keccak256Hash(append(prefix, data...))
}

// Generate EIP191 signature
func SignMessage(key *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	return signHash(key, HashMessage(data))
}

// SignTypedData generates an EIP712 signature
func SignTypedData(key *ecdsa.PrivateKey, typedData apitypes.TypedData) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("hash typed data: %w", err)
	}
	return signHash(key, common.BytesToHash(hash))
}

func signHash(key *ecdsa.PrivateKey, hash common.Hash) ([]byte, error) {
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return nil, err
	}
	// https://stackoverflow.com/questions/69762108/implementing-ethereum-personal-sign-eip-191-from-go-ethereum-gives-different-s
	sig[64] += 27
	return sig, nil
}

// RecoverMessageSigner returns the address that produced an EIP-191 signature over data.
func RecoverMessageSigner(data, sig []byte) (common.Address, error) {
	return recoverHash(HashMessage(data), sig)
}

func recoverHash(hash common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(sig))
	}
	normalized := common.CopyBytes(sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(hash.Bytes(), normalized)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// LocalSigner holds an in-process secp256k1 key.
type LocalSigner struct {
	key        *ecdsa.PrivateKey
	address    common.Address
	signerType string
}

func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{
		key:        key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
		signerType: "local",
	}
}

func FromPrivateKeyHex(privateKeyHex string) (*LocalSigner, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewLocalSigner(privateKey), nil
}

func (s *LocalSigner) SignerType() string { return s.signerType }

func (s *LocalSigner) GetAddress(ctx context.Context) (common.Address, error) {
	return s.address, nil
}

func (s *LocalSigner) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	return SignMessage(s.key, msg)
}

func (s *LocalSigner) SignTypedData(ctx context.Context, typedData apitypes.TypedData) ([]byte, error) {
	return SignTypedData(s.key, typedData)
}
