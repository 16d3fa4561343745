package engine

import (
	"fmt"

	"github.com/oberon-tech/oberon-chain/pkg/block"
)

// SealKind classifies a produced seal.
type SealKind uint8

const (
	// SealNone means the engine cannot produce a seal right now.
	SealNone SealKind = iota
	// SealProposal marks a seal meant for broadcast only. Proposal-sealed
	// headers must never enter the persistent chain.
	SealProposal
	// SealRegular marks a seal eligible for chain inclusion.
	SealRegular
)

// Seal is the engine-specific proof-of-validity attached to a header:
// an ordered list of opaque byte strings, one per declared seal field.
type Seal struct {
	Kind   SealKind
	Fields [][]byte
}

// NoSeal reports that sealing is not currently possible.
func NoSeal() Seal {
	return Seal{Kind: SealNone}
}

// ProposalSeal builds a broadcast-only seal.
func ProposalSeal(fields ...[]byte) Seal {
	return Seal{Kind: SealProposal, Fields: fields}
}

// RegularSeal builds a seal eligible for chain inclusion.
func RegularSeal(fields ...[]byte) Seal {
	return Seal{Kind: SealRegular, Fields: fields}
}

// SealingStatus reports whether an engine seals blocks itself and, if so,
// whether this node is currently qualified to do it.
type SealingStatus uint8

const (
	// SealingExternal means the engine never self-seals; an external
	// sealer (a miner) supplies the seal.
	SealingExternal SealingStatus = iota
	// SealingNotReady means the engine self-seals in principle but this
	// node is not currently qualified (not the active authority).
	SealingNotReady
	// SealingReady means this node is currently qualified to seal.
	SealingReady
)

// AttachSeal installs a generated seal on a block destined for the chain.
// Only regular seals may be attached: proposal seals are broadcast-only
// and attaching one is a programming error in the block producer.
func AttachSeal(blk *block.LiveBlock, s Seal) error {
	switch s.Kind {
	case SealRegular:
		blk.Header.Seal = s.Fields
		return nil
	case SealProposal:
		return fmt.Errorf("proposal seal cannot be committed to the chain")
	default:
		return fmt.Errorf("no seal to attach")
	}
}
