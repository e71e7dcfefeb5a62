package signer

import (
	"fmt"

	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
)

// DefaultDerivationPath is the first account of the standard Ethereum BIP-44 tree.
const DefaultDerivationPath = "m/44'/60'/0'/0/0"

// NewMnemonicSigner derives the key at path (DefaultDerivationPath when
// empty) from a BIP-39 mnemonic and returns it as a local signer.
func NewMnemonicSigner(mnemonic, path string) (*LocalSigner, error) {
	if path == "" {
		path = DefaultDerivationPath
	}

	wallet, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}

	derivationPath, err := hdwallet.ParseDerivationPath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid derivation path %q: %w", path, err)
	}

	account, err := wallet.Derive(derivationPath, false)
	if err != nil {
		return nil, fmt.Errorf("derive %s: %w", path, err)
	}

	key, err := wallet.PrivateKey(account)
	if err != nil {
		return nil, err
	}

	s := NewLocalSigner(key)
	s.signerType = "mnemonic"
	return s, nil
}
