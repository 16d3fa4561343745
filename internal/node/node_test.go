package node

import (
	"encoding/hex"
	"testing"

	"github.com/oberon-tech/oberon-chain/config"
	"github.com/oberon-tech/oberon-chain/internal/engine"
	"github.com/oberon-tech/oberon-chain/internal/storage"
	"github.com/oberon-tech/oberon-chain/pkg/block"
	"github.com/oberon-tech/oberon-chain/pkg/crypto"
)

func authorityConfig(t *testing.T, keys ...*crypto.PrivateKey) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Engine.ConfirmationDepth = 2
	cfg.Engine.Authorities = nil
	for _, k := range keys {
		cfg.Engine.Authorities = append(cfg.Engine.Authorities, hex.EncodeToString(k.PublicKey()))
	}
	return cfg
}

func newTestNode(t *testing.T, cfg *config.Config, signer *crypto.PrivateKey, db storage.DB) *Node {
	t.Helper()
	if db == nil {
		db = storage.NewMemory()
	}
	n, err := build(cfg, signer, db)
	if err != nil {
		t.Fatalf("build() error: %v", err)
	}
	return n
}

func newNodeKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	return key
}

// sealedChild builds and seals a child of parent outside the node, the
// way a remote peer's block arrives.
func sealedChild(t *testing.T, key *crypto.PrivateKey, parent *block.Header, extra []byte) *block.Header {
	t.Helper()
	h := &block.Header{
		Version:    block.CurrentVersion,
		ParentHash: parent.Hash(),
		Number:     parent.Number + 1,
		Timestamp:  parent.Timestamp + 1,
		Author:     key.Address(),
		Extra:      extra,
	}
	sealHash := h.SealHash()
	sig, err := key.Sign(sealHash[:])
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	h.Seal = [][]byte{sig}
	return h
}

func TestNode_ProduceAndImport(t *testing.T) {
	key := newNodeKey(t)
	n := newTestNode(t, authorityConfig(t, key), key, nil)

	genesis := n.BestHeader()
	if genesis == nil || genesis.Number != 0 {
		t.Fatalf("unexpected genesis: %+v", genesis)
	}

	for i := uint64(1); i <= 3; i++ {
		header, err := n.ProduceBlock([][]byte{[]byte("tx")})
		if err != nil {
			t.Fatalf("ProduceBlock(%d) error: %v", i, err)
		}
		if header.Number != i {
			t.Fatalf("produced number %d, want %d", header.Number, i)
		}
		if err := n.ImportHeader(header); err != nil {
			t.Fatalf("ImportHeader(%d) error: %v", i, err)
		}
		if n.BestHeader().Hash() != header.Hash() {
			t.Fatalf("head did not advance to block %d", i)
		}
	}

	if got := n.HeaderByHash(genesis.Hash()); got == nil {
		t.Error("genesis not retrievable by hash")
	}
}

func TestNode_ImportRejects(t *testing.T) {
	key, outsider := newNodeKey(t), newNodeKey(t)
	n := newTestNode(t, authorityConfig(t, key), key, nil)
	genesis := n.BestHeader()

	orphan := sealedChild(t, key, genesis, nil)
	orphan.ParentHash[0] ^= 0xff
	sealHash := orphan.SealHash()
	sig, err := key.Sign(sealHash[:])
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	orphan.Seal = [][]byte{sig}
	if err := n.ImportHeader(orphan); err == nil {
		t.Error("orphan header accepted")
	}

	forged := sealedChild(t, outsider, genesis, nil)
	if err := n.ImportHeader(forged); err == nil {
		t.Error("header from outside the authority set accepted")
	}
}

// A side-chain header imports fine but must not move the head.
func TestNode_SideChainImport(t *testing.T) {
	key := newNodeKey(t)
	n := newTestNode(t, authorityConfig(t, key), key, nil)
	genesis := n.BestHeader()

	main1, err := n.ProduceBlock(nil)
	if err != nil {
		t.Fatalf("ProduceBlock() error: %v", err)
	}
	if err := n.ImportHeader(main1); err != nil {
		t.Fatalf("ImportHeader() error: %v", err)
	}

	// Same parent, different timestamp than the produced block.
	side := sealedChild(t, key, genesis, nil)
	if err := n.ImportHeader(side); err != nil {
		t.Fatalf("side-chain import error: %v", err)
	}
	if n.BestHeader().Hash() != main1.Hash() {
		t.Error("side-chain import moved the head")
	}
}

// End-to-end authority rotation: a signalled set change becomes final
// once buried, the engine's working set rotates, and headers from the
// retired set stop importing.
func TestNode_EpochRotation(t *testing.T) {
	oldKey, newKey := newNodeKey(t), newNodeKey(t)
	n := newTestNode(t, authorityConfig(t, oldKey), oldKey, nil)

	announcement := engine.EncodeAuthoritySet([][]byte{newKey.PublicKey()})
	signal := sealedChild(t, oldKey, n.BestHeader(), announcement)
	if err := n.ImportHeader(signal); err != nil {
		t.Fatalf("ImportHeader(signal) error: %v", err)
	}

	head := signal
	for i := 0; i < 2; i++ {
		head = sealedChild(t, oldKey, head, nil)
		if err := n.ImportHeader(head); err != nil {
			t.Fatalf("ImportHeader() error: %v", err)
		}
	}

	accepted := sealedChild(t, newKey, head, nil)
	if err := n.ImportHeader(accepted); err != nil {
		t.Fatalf("post-rotation import from new set: %v", err)
	}
	rejected := sealedChild(t, oldKey, accepted, nil)
	if err := n.ImportHeader(rejected); err == nil {
		t.Error("retired authority still accepted after rotation")
	}
}

// The chain head must survive a restart on the same database.
func TestNode_Restart(t *testing.T) {
	key := newNodeKey(t)
	cfg := authorityConfig(t, key)
	db := storage.NewMemory()

	n1 := newTestNode(t, cfg, key, db)
	header, err := n1.ProduceBlock(nil)
	if err != nil {
		t.Fatalf("ProduceBlock() error: %v", err)
	}
	if err := n1.ImportHeader(header); err != nil {
		t.Fatalf("ImportHeader() error: %v", err)
	}

	n2 := newTestNode(t, cfg, key, db)
	if n2.BestHeader().Hash() != header.Hash() {
		t.Errorf("restarted head = %s, want %s", n2.BestHeader().Hash(), header.Hash())
	}
}

func TestNode_WorkEngine(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Engine.Kind = config.EngineWork
	cfg.Engine.Difficulty = 1
	n := newTestNode(t, cfg, nil, nil)

	genesis := n.BestHeader()
	h := &block.Header{
		Version:    block.CurrentVersion,
		ParentHash: genesis.Hash(),
		Number:     1,
		Timestamp:  genesis.Timestamp + 1,
		Difficulty: 1,
		Seal:       [][]byte{{0, 0, 0, 0, 0, 0, 0, 1}},
	}
	if err := n.ImportHeader(h); err != nil {
		t.Fatalf("ImportHeader() error: %v", err)
	}
	if n.BestHeader().Hash() != h.Hash() {
		t.Error("head did not advance")
	}
}

func TestBuildEngine_Unknown(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.Kind = "stake"
	if _, err := buildEngine(cfg, nil); err == nil {
		t.Error("unknown engine kind accepted")
	}
}
