package engine

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/oberon-tech/oberon-chain/pkg/block"
	"github.com/oberon-tech/oberon-chain/pkg/crypto"
)

// Work engine errors.
var (
	ErrInsufficientWork = errors.New("hash does not meet difficulty target")
	ErrZeroDifficulty   = errors.New("difficulty must be > 0")
	ErrBadNonce         = errors.New("seal nonce must be 8 bytes")
)

// maxUint256 is 2^256 - 1.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Work implements proof-of-work consensus. Sealing is external: a miner
// grinds the 8-byte nonce that is the header's single seal entry, and
// the engine only ever verifies. The engine holds no mutable state; the
// difficulty is read from each header.
type Work struct {
	NullEngine

	// Difficulty is the fixed target difficulty enforced on every block.
	Difficulty uint64
}

// NewWork creates a work engine with the given fixed difficulty.
func NewWork(difficulty uint64) (*Work, error) {
	if difficulty == 0 {
		return nil, ErrZeroDifficulty
	}
	return &Work{Difficulty: difficulty}, nil
}

// Name identifies the engine.
func (w *Work) Name() string { return "work" }

// SealFields declares the single nonce entry work headers carry.
func (w *Work) SealFields(*block.Header) int { return 1 }

// SealsInternally reports that sealing requires an external miner.
func (w *Work) SealsInternally() SealingStatus { return SealingExternal }

// VerifyLocalSeal performs the full work check. Locally mined seals get
// no trust shortcut: the nonce came from outside the engine.
func (w *Work) VerifyLocalSeal(header *block.Header) error {
	if err := w.VerifyBlockBasic(header); err != nil {
		return err
	}
	return w.checkWork(header)
}

// VerifyBlockBasic checks the difficulty field and seal shape.
func (w *Work) VerifyBlockBasic(header *block.Header) error {
	if header.Difficulty == 0 {
		return ErrZeroDifficulty
	}
	if header.Difficulty != w.Difficulty {
		return fmt.Errorf("difficulty %d, want %d", header.Difficulty, w.Difficulty)
	}
	if len(header.Seal) != 1 {
		return fmt.Errorf("%w: have %d entries, want 1", ErrMissingSeal, len(header.Seal))
	}
	if len(header.Seal[0]) != 8 {
		return fmt.Errorf("%w: got %d bytes", ErrBadNonce, len(header.Seal[0]))
	}
	return nil
}

// VerifyBlockUnordered re-hashes the header and compares against the
// difficulty target.
func (w *Work) VerifyBlockUnordered(header *block.Header) error {
	return w.checkWork(header)
}

// VerifyBlockFamily checks parent linkage, number continuity and
// timestamp monotonicity.
func (w *Work) VerifyBlockFamily(header, parent *block.Header) error {
	if header.ParentHash != parent.Hash() {
		return fmt.Errorf("parent hash mismatch: header says %s", header.ParentHash)
	}
	if header.Number != parent.Number+1 {
		return fmt.Errorf("number %d does not follow parent %d", header.Number, parent.Number)
	}
	if header.Timestamp <= parent.Timestamp {
		return fmt.Errorf("timestamp %d not after parent %d", header.Timestamp, parent.Timestamp)
	}
	return nil
}

// checkWork verifies that the sealed header hash meets the target.
// The hashed input is the seal-excluded encoding followed by the nonce.
func (w *Work) checkWork(header *block.Header) error {
	if len(header.Seal) != 1 || len(header.Seal[0]) != 8 {
		return ErrBadNonce
	}
	t := target(header.Difficulty)
	input := append(header.SigningBytes(), header.Seal[0]...)
	hash := crypto.Hash(input)
	hashInt := new(big.Int).SetBytes(hash[:])
	if hashInt.Cmp(t) > 0 {
		return ErrInsufficientWork
	}
	return nil
}

// target returns MaxUint256 / difficulty as a 256-bit big.Int.
func target(difficulty uint64) *big.Int {
	d := new(big.Int).SetUint64(difficulty)
	return new(big.Int).Div(maxUint256, d)
}
