// Package keystore manages the node's consensus signing key: BIP-39
// derivation for generation and recovery, and an encrypted on-disk
// container for day-to-day use.
package keystore

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// saltSize is the length of the random Argon2 salt.
const saltSize = 32

// Container format: salt(32) | memory(4) | iterations(4) | parallelism(1) | nonce(24) | ciphertext
const headerSize = saltSize + 4 + 4 + 1

// Params holds Argon2id parameters.
type Params struct {
	Memory      uint32 // in KiB
	Iterations  uint32
	Parallelism uint8
}

// DefaultParams returns recommended Argon2id parameters.
func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024, // 64 MB
		Iterations:  3,
		Parallelism: 4,
	}
}

// deriveKey uses Argon2id to derive a 32-byte encryption key.
func deriveKey(password, salt []byte, params Params) []byte {
	return argon2.IDKey(
		password,
		salt,
		params.Iterations,
		params.Memory,
		params.Parallelism,
		chacha20poly1305.KeySize,
	)
}

// Encrypt seals data with a password using Argon2id + XChaCha20-Poly1305.
func Encrypt(data, password []byte, params Params) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key := deriveKey(password, salt, params)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, data, nil)

	out := make([]byte, 0, headerSize+len(nonce)+len(ciphertext))
	out = append(out, salt...)
	out = binary.LittleEndian.AppendUint32(out, params.Memory)
	out = binary.LittleEndian.AppendUint32(out, params.Iterations)
	out = append(out, params.Parallelism)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// Decrypt opens a container produced by Encrypt. A wrong password or a
// tampered container yields an error.
func Decrypt(container, password []byte) ([]byte, error) {
	if len(container) < headerSize+chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("container too short: %d bytes", len(container))
	}

	salt := container[:saltSize]
	params := Params{
		Memory:      binary.LittleEndian.Uint32(container[saltSize:]),
		Iterations:  binary.LittleEndian.Uint32(container[saltSize+4:]),
		Parallelism: container[saltSize+8],
	}
	rest := container[headerSize:]
	nonce := rest[:chacha20poly1305.NonceSizeX]
	ciphertext := rest[chacha20poly1305.NonceSizeX:]

	key := deriveKey(password, salt, params)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt key container: %w", err)
	}
	return plaintext, nil
}
