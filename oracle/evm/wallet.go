package evm

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"

	"github.com/GPTx-global/oracle-relayer/oracle/config"
)

// Wallet is the signing account of an adapter.
type Wallet struct {
	key     *ecdsa.PrivateKey
	Address common.Address
}

// NewWallet loads the key from a hex private key or derives it from a mnemonic.
func NewWallet(secret config.Secret) (*Wallet, error) {
	if secret.PrivateKey != "" {
		key, err := crypto.HexToECDSA(secret.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		return walletOf(key), nil
	}

	hd, err := hdwallet.NewFromMnemonic(secret.Mnemonic)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}

	path, err := hdwallet.ParseDerivationPath(secret.DerivationPath)
	if err != nil {
		return nil, fmt.Errorf("invalid derivation path %q: %w", secret.DerivationPath, err)
	}

	account, err := hd.Derive(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to derive account: %w", err)
	}

	key, err := hd.PrivateKey(account)
	if err != nil {
		return nil, fmt.Errorf("failed to export private key: %w", err)
	}

	return walletOf(key), nil
}

func walletOf(key *ecdsa.PrivateKey) *Wallet {
	return &Wallet{key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}
}
