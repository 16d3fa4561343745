// Package engine defines the pluggable consensus engine contract.
//
// A consensus mechanism (authority round, proof of work, ...) plugs into
// the node's block-import pipeline by implementing Engine. The pipeline
// drives the four verification phases in strict cost order, the block
// producer drives the seal lifecycle, and the epoch tracker drives the
// transition protocol. Engines hold no chain data: every header, block
// and proof is borrowed for the duration of one call, and chain lookups
// are threaded in per call.
package engine

import (
	"github.com/oberon-tech/oberon-chain/pkg/block"
	"github.com/oberon-tech/oberon-chain/pkg/types"
)

// Client is the minimal view of the running node an engine may consult
// during external verification. It is registered once at startup, after
// which VerifyBlockExternal becomes meaningful.
type Client interface {
	// HeaderByHash resolves a stored header, nil if unknown.
	HeaderByHash(hash types.Hash) *block.Header
	// BestHeader returns the current chain head.
	BestHeader() *block.Header
}

// Engine is a consensus mechanism for the chain. Implementations must be
// safe for concurrent calls against different headers; internal mutable
// state (a validator cache, a round clock) is guarded by the engine
// itself, never by the caller.
type Engine interface {
	// Name identifies the engine in logs and config.
	Name() string

	// SealFields declares how many opaque seal entries this engine's
	// headers carry. Deterministic for a given configuration and header
	// shape; a header accepted into the chain carries exactly this many.
	SealFields(header *block.Header) int

	// SealsInternally reports whether the engine self-seals and whether
	// this node is currently qualified to do it.
	SealsInternally() SealingStatus

	// GenerateSeal attempts to seal the block given its parent. It is
	// synchronous, side-effect-free and must never block waiting for
	// external input: returning NoSeal and being asked again later is
	// the only form of suspension.
	GenerateSeal(blk *block.LiveBlock, parent *block.Header) Seal

	// VerifyLocalSeal validates a seal this node itself produced.
	// Internally-sealing engines may keep this light since GenerateSeal
	// guarantees validity by construction; externally-sealed engines
	// must perform the full check.
	VerifyLocalSeal(header *block.Header) error

	// VerifyBlockBasic runs phase 1: cheap, structural, self-contained
	// checks. Must not touch chain state.
	VerifyBlockBasic(header *block.Header) error

	// VerifyBlockUnordered runs phase 2: expensive but still
	// self-contained checks, such as seal signature verification.
	VerifyBlockUnordered(header *block.Header) error

	// VerifyBlockFamily runs phase 3: checks requiring the immediate
	// parent.
	VerifyBlockFamily(header, parent *block.Header) error

	// VerifyBlockExternal runs phase 4: checks requiring the registered
	// client's chain state. Calling it before RegisterClient is a caller
	// error, not an engine fault.
	VerifyBlockExternal(header *block.Header) error

	// RegisterClient hands the engine a view of the running node.
	RegisterClient(client Client)

	// GenesisEpochData produces the seed data for the epoch-0 verifier.
	// Failure here is fatal at chain start.
	GenesisEpochData(header *block.Header) ([]byte, error)

	// SignalsEpochEnd reports whether the header signals an epoch
	// transition that will require finality. Engines that transition
	// immediately answer No here and Yes from IsEpochEnd.
	SignalsEpochEnd(header *block.Header) EpochChange

	// IsEpochEnd reports whether an epoch ends at or before chainHead:
	// either an immediate transition occurs or a previously signalled
	// transition has reached finality. The engine may walk arbitrarily
	// far back through the supplied lookups. Returns the transition
	// proof, or nil.
	IsEpochEnd(chainHead *block.Header, headers HeaderLookup, transitions PendingTransitionLookup) []byte

	// EpochVerifier constructs the next epoch's verifier from a
	// finalized transition proof.
	EpochVerifier(header *block.Header, proof []byte) ConstructedVerifier

	// Step advances round-based protocols. It is driven by an external
	// scheduler on its own cadence and may run concurrently with
	// verification; it must not assume exclusive access to chain state.
	Step()

	// OnNewBlock mutates the block before transactions are applied.
	// epochBegin tells the engine the block opens a new epoch.
	OnNewBlock(blk *block.LiveBlock, epochBegin bool) error

	// OnCloseBlock mutates the block after transactions, before sealing.
	// Runs exactly once per block.
	OnCloseBlock(blk *block.LiveBlock) error

	// Sign signs consensus-internal data with the node's configured
	// signing identity. Engines without one return ErrUnsupported.
	Sign(hash types.Hash) ([]byte, error)
}

// NullEngine is the default implementation of every optional hook.
// Concrete engines embed it and override selectively; it is also a
// complete (if permissive) engine on its own, used when a chain needs no
// consensus checks at all.
type NullEngine struct{}

// Name identifies the engine.
func (NullEngine) Name() string { return "null" }

// SealFields declares no seal entries.
func (NullEngine) SealFields(*block.Header) int { return 0 }

// SealsInternally reports that sealing requires external input.
func (NullEngine) SealsInternally() SealingStatus { return SealingExternal }

// GenerateSeal produces no seal.
func (NullEngine) GenerateSeal(*block.LiveBlock, *block.Header) Seal { return NoSeal() }

// VerifyLocalSeal accepts the header.
func (NullEngine) VerifyLocalSeal(*block.Header) error { return nil }

// VerifyBlockBasic accepts the header.
func (NullEngine) VerifyBlockBasic(*block.Header) error { return nil }

// VerifyBlockUnordered accepts the header.
func (NullEngine) VerifyBlockUnordered(*block.Header) error { return nil }

// VerifyBlockFamily accepts the header.
func (NullEngine) VerifyBlockFamily(_, _ *block.Header) error { return nil }

// VerifyBlockExternal accepts the header.
func (NullEngine) VerifyBlockExternal(*block.Header) error { return nil }

// RegisterClient ignores the client.
func (NullEngine) RegisterClient(Client) {}

// GenesisEpochData produces empty epoch-0 data.
func (NullEngine) GenesisEpochData(*block.Header) ([]byte, error) { return nil, nil }

// SignalsEpochEnd reports no transition.
func (NullEngine) SignalsEpochEnd(*block.Header) EpochChange { return NoEpochChange() }

// IsEpochEnd reports no epoch end.
func (NullEngine) IsEpochEnd(*block.Header, HeaderLookup, PendingTransitionLookup) []byte {
	return nil
}

// EpochVerifier constructs the accept-everything verifier.
func (NullEngine) EpochVerifier(*block.Header, []byte) ConstructedVerifier {
	return TrustedVerifier(NoOpVerifier{})
}

// Step does nothing.
func (NullEngine) Step() {}

// OnNewBlock leaves the block untouched.
func (NullEngine) OnNewBlock(*block.LiveBlock, bool) error { return nil }

// OnCloseBlock leaves the block untouched.
func (NullEngine) OnCloseBlock(*block.LiveBlock) error { return nil }

// Sign is unsupported: engines that need node-level signing override it.
func (NullEngine) Sign(types.Hash) ([]byte, error) { return nil, ErrUnsupported }
