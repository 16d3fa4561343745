package engine

import (
	"errors"
	"fmt"

	"github.com/oberon-tech/oberon-chain/pkg/types"
)

// Engine errors.
var (
	// ErrUnsupported is returned by hooks an engine deliberately does not
	// implement, such as Sign on an engine without a signing identity.
	// Hitting it at runtime is a node configuration error.
	ErrUnsupported = errors.New("operation not supported by this engine")

	// ErrNoSigner means the engine needs a signing key that was never
	// configured.
	ErrNoSigner = errors.New("no signer configured")

	// ErrClientNotRegistered means a chain-state-dependent operation ran
	// before the running client was registered with the caller.
	ErrClientNotRegistered = errors.New("client not registered")
)

// NotAuthorizedError reports a seal or vote produced by a signer outside
// the authority set.
type NotAuthorizedError struct {
	Signer types.Address
}

func (e *NotAuthorizedError) Error() string {
	return fmt.Sprintf("Engine error (Signer %s is not authorized.)", e.Signer)
}
