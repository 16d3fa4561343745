// authority_key.go prints the compressed public key and address for a
// node's signing mnemonic, for pasting into engine.authorities.
// Usage: go run scripts/authority_key.go <mnemonic-file>
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/oberon-tech/oberon-chain/internal/keystore"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: authority_key <mnemonic-file>")
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	mnemonic := strings.TrimSpace(string(data))
	key, err := keystore.DeriveSigningKey(mnemonic)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("pubkey=%s\n", hex.EncodeToString(key.PublicKey()))
	fmt.Printf("address=%s\n", key.Address().String())
}
