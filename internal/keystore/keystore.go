package keystore

import (
	"fmt"
	"os"

	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	"github.com/oberon-tech/oberon-chain/pkg/crypto"
)

// BIP-44 derivation path constants for the consensus signing key.
// Full path: m/44'/7771'/0'/0/0
const (
	purposeBIP44 = bip32.FirstHardenedChild + 44
	coinType     = bip32.FirstHardenedChild + 7771
	accountSign  = bip32.FirstHardenedChild + 0
)

// GenerateMnemonic creates a new 24-word BIP-39 mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// DeriveSigningKey derives the consensus signing key from a mnemonic at
// m/44'/7771'/0'/0/0. The same mnemonic always yields the same key, so a
// lost keystore file is recoverable.
func DeriveSigningKey(mnemonic string) (*crypto.PrivateKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")

	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	for _, index := range []uint32{purposeBIP44, coinType, accountSign, 0, 0} {
		key, err = key.NewChildKey(index)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", index, err)
		}
	}
	return crypto.PrivateKeyFromBytes(key.Key)
}

// Save encrypts the signing key with the passphrase and writes it to path.
func Save(path string, key *crypto.PrivateKey, passphrase []byte) error {
	container, err := Encrypt(key.Serialize(), passphrase, DefaultParams())
	if err != nil {
		return fmt.Errorf("encrypt signing key: %w", err)
	}
	if err := os.WriteFile(path, container, 0600); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}
	return nil
}

// Load reads and decrypts the signing key at path.
func Load(path string, passphrase []byte) (*crypto.PrivateKey, error) {
	container, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	secret, err := Decrypt(container, passphrase)
	if err != nil {
		return nil, err
	}
	return crypto.PrivateKeyFromBytes(secret)
}
