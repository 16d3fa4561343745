// Oberon node daemon.
//
// Usage:
//
//	oberond [--conf path] [--datadir path]   Run node
//	oberond --help                           Show help
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/oberon-tech/oberon-chain/config"
	"github.com/oberon-tech/oberon-chain/internal/keystore"
	"github.com/oberon-tech/oberon-chain/internal/log"
	"github.com/oberon-tech/oberon-chain/internal/node"
	"github.com/oberon-tech/oberon-chain/pkg/crypto"
)

func main() {
	confPath := flag.String("conf", "", "path to .conf file")
	dataDir := flag.String("datadir", "", "data directory (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *confPath != "" {
		values, err := config.LoadFile(*confPath)
		if err != nil {
			fatal(err)
		}
		if err := config.Apply(cfg, values); err != nil {
			fatal(err)
		}
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if err := config.Validate(cfg); err != nil {
		fatal(err)
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal(err)
	}

	signer, err := loadSigner(cfg)
	if err != nil {
		fatal(err)
	}

	n, err := node.New(cfg, signer)
	if err != nil {
		fatal(err)
	}
	if err := n.Start(); err != nil {
		n.Stop()
		fatal(err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	n.Stop()
}

// loadSigner opens the configured signing key, creating a fresh one on
// first run. The recovery mnemonic is printed exactly once, at creation.
func loadSigner(cfg *config.Config) (*crypto.PrivateKey, error) {
	path := cfg.KeyFilePath()
	if path == "" {
		return nil, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		mnemonic, err := keystore.GenerateMnemonic()
		if err != nil {
			return nil, err
		}
		key, err := keystore.DeriveSigningKey(mnemonic)
		if err != nil {
			return nil, err
		}
		pass, err := promptPassphrase("New keystore passphrase: ")
		if err != nil {
			return nil, err
		}
		if err := keystore.Save(path, key, pass); err != nil {
			return nil, err
		}
		fmt.Printf("Signing key created (address %s).\nRecovery mnemonic (write it down, it is not stored):\n\n  %s\n\n", key.Address(), mnemonic)
		return key, nil
	}

	pass, err := promptPassphrase("Keystore passphrase: ")
	if err != nil {
		return nil, err
	}
	return keystore.Load(path, pass)
}

func promptPassphrase(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	pass, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	return pass, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
