package engine

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/oberon-tech/oberon-chain/pkg/block"
	"github.com/oberon-tech/oberon-chain/pkg/types"
)

// EpochVerifier validates headers against one epoch's fixed authority
// configuration. Implementations are immutable once constructed.
type EpochVerifier interface {
	// VerifyLight performs cheap checks against this epoch's rules.
	VerifyLight(header *block.Header) error
	// VerifyHeavy performs the full check, signatures included.
	VerifyHeavy(header *block.Header) error
}

// NoOpVerifier accepts every header. It is the verifier for engines
// without epoch transitions.
type NoOpVerifier struct{}

// VerifyLight accepts the header.
func (NoOpVerifier) VerifyLight(*block.Header) error { return nil }

// VerifyHeavy accepts the header.
func (NoOpVerifier) VerifyHeavy(*block.Header) error { return nil }

// EpochSignal is the answer to "does this header signal an epoch change?".
type EpochSignal uint8

const (
	// EpochSignalNo means the header does not signal a transition.
	EpochSignalNo EpochSignal = iota
	// EpochSignalUnsure means the engine cannot decide yet; the caller
	// must ask again once more chain context is available.
	EpochSignalUnsure
	// EpochSignalYes means the header signals a transition, with proof.
	EpochSignalYes
)

// EpochChange is the result of evaluating one header for a transition
// signal. Proof is set only when Signal is EpochSignalYes.
type EpochChange struct {
	Signal EpochSignal
	Proof  Proof
}

// NoEpochChange reports that the header signals nothing.
func NoEpochChange() EpochChange {
	return EpochChange{Signal: EpochSignalNo}
}

// UnsureEpochChange reports that more chain context is needed.
func UnsureEpochChange() EpochChange {
	return EpochChange{Signal: EpochSignalUnsure}
}

// SignalsEpochChange reports a transition with the extracted proof.
func SignalsEpochChange(proof Proof) EpochChange {
	return EpochChange{Signal: EpochSignalYes, Proof: proof}
}

// Proof is an opaque, engine-specific, self-describing byte blob
// sufficient to reconstruct the next epoch's verifier without trusting
// the submitter.
type Proof []byte

// HeaderLookup resolves ancestor headers by hash. A nil result means the
// header is unknown. Lookups are supplied per call and may hit storage;
// the engine must not assume results are cached, and must not call one
// lookup from more than one goroutine within a single invocation.
type HeaderLookup func(types.Hash) *block.Header

// PendingTransitionLookup resolves previously stored pending transitions
// by the hash of the header that signalled them.
type PendingTransitionLookup func(types.Hash) (PendingTransition, bool)

// PendingTransition is an epoch transition observed but not yet proven
// final. It is keyed externally by the signalling header's hash, written
// once, and read thereafter.
type PendingTransition struct {
	Proof []byte
}

// ErrTransitionDecode is returned when a stored pending transition fails
// to decode. Callers treat it as "no pending transition found".
var ErrTransitionDecode = errors.New("malformed pending transition encoding")

// Encode serializes the transition as a uvarint length-prefixed proof.
func (p PendingTransition) Encode() []byte {
	buf := make([]byte, 0, binary.MaxVarintLen64+len(p.Proof))
	buf = binary.AppendUvarint(buf, uint64(len(p.Proof)))
	return append(buf, p.Proof...)
}

// DecodePendingTransition parses the canonical encoding. Truncated or
// malformed input yields ErrTransitionDecode, never a panic.
func DecodePendingTransition(data []byte) (PendingTransition, error) {
	size, n := binary.Uvarint(data)
	if n <= 0 {
		return PendingTransition{}, fmt.Errorf("%w: bad length prefix", ErrTransitionDecode)
	}
	rest := data[n:]
	if uint64(len(rest)) < size {
		return PendingTransition{}, fmt.Errorf("%w: truncated proof, have %d want %d", ErrTransitionDecode, len(rest), size)
	}
	if uint64(len(rest)) > size {
		return PendingTransition{}, fmt.Errorf("%w: %d trailing bytes", ErrTransitionDecode, uint64(len(rest))-size)
	}
	proof := make([]byte, size)
	copy(proof, rest)
	return PendingTransition{Proof: proof}, nil
}

// ConstructedVerifier is the result of building a new epoch's verifier
// from a transition proof. Exactly one of the three states holds.
type ConstructedVerifier struct {
	verifier      EpochVerifier
	finalityProof []byte
	hash          types.Hash
	err           error
}

// TrustedVerifier wraps a verifier that is usable immediately.
func TrustedVerifier(v EpochVerifier) ConstructedVerifier {
	return ConstructedVerifier{verifier: v}
}

// UnconfirmedVerifier wraps a verifier the caller may only trust after
// independently proving that finalityProof finalizes hash under the
// previous epoch's rules.
func UnconfirmedVerifier(v EpochVerifier, finalityProof []byte, hash types.Hash) ConstructedVerifier {
	return ConstructedVerifier{verifier: v, finalityProof: finalityProof, hash: hash}
}

// VerifierError reports that construction failed. This is fatal for the
// transition: block acceptance past this point must halt.
func VerifierError(err error) ConstructedVerifier {
	return ConstructedVerifier{err: err}
}

// Err returns the construction error, if any.
func (c ConstructedVerifier) Err() error { return c.err }

// Trusted returns the verifier when it needs no further confirmation.
func (c ConstructedVerifier) Trusted() (EpochVerifier, bool) {
	if c.err != nil || c.finalityProof != nil {
		return nil, false
	}
	return c.verifier, true
}

// Unconfirmed returns the verifier together with the finality proof and
// the hash it must be proven to finalize.
func (c ConstructedVerifier) Unconfirmed() (EpochVerifier, []byte, types.Hash, bool) {
	if c.err != nil || c.finalityProof == nil {
		return nil, nil, types.Hash{}, false
	}
	return c.verifier, c.finalityProof, c.hash, true
}
