package engine

import (
	"errors"
	"testing"

	"github.com/oberon-tech/oberon-chain/pkg/block"
)

func workHeader(parent *block.Header, difficulty uint64, nonce []byte) *block.Header {
	return &block.Header{
		Version:    block.CurrentVersion,
		ParentHash: parent.Hash(),
		Number:     parent.Number + 1,
		Timestamp:  parent.Timestamp + 1,
		Difficulty: difficulty,
		Seal:       [][]byte{nonce},
	}
}

func TestNewWork_ZeroDifficulty(t *testing.T) {
	if _, err := NewWork(0); !errors.Is(err, ErrZeroDifficulty) {
		t.Errorf("expected ErrZeroDifficulty, got: %v", err)
	}
}

func TestWork_SealsExternally(t *testing.T) {
	w, err := NewWork(1)
	if err != nil {
		t.Fatalf("NewWork() error: %v", err)
	}
	if got := w.SealsInternally(); got != SealingExternal {
		t.Errorf("SealsInternally() = %d, want SealingExternal", got)
	}
	blk := block.NewLiveBlock(genesisHeader())
	if seal := w.GenerateSeal(blk, genesisHeader()); seal.Kind != SealNone {
		t.Errorf("GenerateSeal() kind = %d, want SealNone", seal.Kind)
	}
}

// At difficulty 1 the target is the full hash range, so any nonce wins.
func TestWork_DifficultyOne_AnyNonce(t *testing.T) {
	w, err := NewWork(1)
	if err != nil {
		t.Fatalf("NewWork() error: %v", err)
	}
	parent := genesisHeader()
	h := workHeader(parent, 1, []byte{0, 0, 0, 0, 0, 0, 0, 1})

	if err := w.VerifyBlockBasic(h); err != nil {
		t.Errorf("VerifyBlockBasic() error: %v", err)
	}
	if err := w.VerifyBlockUnordered(h); err != nil {
		t.Errorf("VerifyBlockUnordered() error: %v", err)
	}
	if err := w.VerifyBlockFamily(h, parent); err != nil {
		t.Errorf("VerifyBlockFamily() error: %v", err)
	}
	if err := w.VerifyLocalSeal(h); err != nil {
		t.Errorf("VerifyLocalSeal() error: %v", err)
	}
}

// At maximum difficulty the target is 1; no realistic nonce hashes below
// it, so verification must fail with ErrInsufficientWork.
func TestWork_MaxDifficulty_Rejected(t *testing.T) {
	w, err := NewWork(^uint64(0))
	if err != nil {
		t.Fatalf("NewWork() error: %v", err)
	}
	h := workHeader(genesisHeader(), ^uint64(0), []byte{0, 0, 0, 0, 0, 0, 0, 1})
	if err := w.VerifyBlockUnordered(h); !errors.Is(err, ErrInsufficientWork) {
		t.Errorf("got %v, want ErrInsufficientWork", err)
	}
}

func TestWork_VerifyBlockBasic_Rejects(t *testing.T) {
	w, err := NewWork(100)
	if err != nil {
		t.Fatalf("NewWork() error: %v", err)
	}
	parent := genesisHeader()

	wrongDifficulty := workHeader(parent, 50, []byte{0, 0, 0, 0, 0, 0, 0, 1})
	if err := w.VerifyBlockBasic(wrongDifficulty); err == nil {
		t.Error("mismatched difficulty accepted")
	}

	zeroDifficulty := workHeader(parent, 0, []byte{0, 0, 0, 0, 0, 0, 0, 1})
	if err := w.VerifyBlockBasic(zeroDifficulty); !errors.Is(err, ErrZeroDifficulty) {
		t.Errorf("zero difficulty: got %v, want ErrZeroDifficulty", err)
	}

	noSeal := workHeader(parent, 100, nil)
	noSeal.Seal = nil
	if err := w.VerifyBlockBasic(noSeal); !errors.Is(err, ErrMissingSeal) {
		t.Errorf("missing seal: got %v, want ErrMissingSeal", err)
	}

	shortNonce := workHeader(parent, 100, []byte{0x01})
	if err := w.VerifyBlockBasic(shortNonce); !errors.Is(err, ErrBadNonce) {
		t.Errorf("short nonce: got %v, want ErrBadNonce", err)
	}
}

func TestWork_VerifyBlockFamily_Rejects(t *testing.T) {
	w, err := NewWork(1)
	if err != nil {
		t.Fatalf("NewWork() error: %v", err)
	}
	parent := genesisHeader()

	orphan := workHeader(parent, 1, []byte{0, 0, 0, 0, 0, 0, 0, 1})
	orphan.ParentHash[0] ^= 0xff
	if err := w.VerifyBlockFamily(orphan, parent); err == nil {
		t.Error("wrong parent hash accepted")
	}

	skipped := workHeader(parent, 1, []byte{0, 0, 0, 0, 0, 0, 0, 1})
	skipped.Number = parent.Number + 2
	if err := w.VerifyBlockFamily(skipped, parent); err == nil {
		t.Error("skipped number accepted")
	}
}
