package config

import (
	"os"
	"strings"

	errorsmod "cosmossdk.io/errors"
	"github.com/tyler-smith/go-bip39"

	"github.com/GPTx-global/oracle-relayer/oracle/types"
)

// DefaultDerivationPath is the first account of the standard Ethereum HD path.
const DefaultDerivationPath = "m/44'/60'/0'/0/0"

// Secret is the signing material of a network wallet. Exactly one of
// PrivateKey and Mnemonic is set.
type Secret struct {
	PrivateKey     string
	Mnemonic       string
	DerivationPath string
}

// Secret reads the wallet secret of n from the environment. A private key wins
// over a mnemonic when both env keys are configured and set.
func (n Network) Secret() (Secret, error) {
	if n.PrivateKeyEnvKey != "" {
		if key := strings.TrimSpace(os.Getenv(n.PrivateKeyEnvKey)); key != "" {
			return Secret{PrivateKey: strings.TrimPrefix(key, "0x")}, nil
		}
	}

	if n.MnemonicEnvKey != "" {
		if mnemonic := strings.TrimSpace(os.Getenv(n.MnemonicEnvKey)); mnemonic != "" {
			if !bip39.IsMnemonicValid(mnemonic) {
				return Secret{}, errorsmod.Wrapf(types.ErrMissingSecret, "network %s: %s is not a valid mnemonic", n.ID, n.MnemonicEnvKey)
			}

			path := n.DerivationPath
			if path == "" {
				path = DefaultDerivationPath
			}
			return Secret{Mnemonic: mnemonic, DerivationPath: path}, nil
		}
	}

	return Secret{}, errorsmod.Wrapf(types.ErrMissingSecret, "network %s: set %s", n.ID, n.secretEnvKeys())
}

func (n Network) secretEnvKeys() string {
	var keys []string
	for _, k := range []string{n.PrivateKeyEnvKey, n.MnemonicEnvKey} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "a private key or mnemonic env key"
	}
	return strings.Join(keys, " or ")
}
