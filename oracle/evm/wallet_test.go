package evm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GPTx-global/oracle-relayer/oracle/config"
)

func TestNewWallet(t *testing.T) {
	t.Run("mnemonic", func(t *testing.T) {
		w, err := NewWallet(config.Secret{Mnemonic: testMnemonic, DerivationPath: config.DefaultDerivationPath})
		require.NoError(t, err)
		require.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", w.Address.Hex())
	})

	t.Run("private key", func(t *testing.T) {
		w, err := NewWallet(config.Secret{PrivateKey: "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"})
		require.NoError(t, err)
		require.Equal(t, "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", w.Address.Hex())
	})

	t.Run("bad private key", func(t *testing.T) {
		_, err := NewWallet(config.Secret{PrivateKey: "zz"})
		require.Error(t, err)
	})

	t.Run("bad path", func(t *testing.T) {
		_, err := NewWallet(config.Secret{Mnemonic: testMnemonic, DerivationPath: "x/1"})
		require.Error(t, err)
	})
}
