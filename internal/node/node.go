// Package node wires the configured consensus engine into a running
// import pipeline, epoch tracker, and step scheduler.
package node

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/oberon-tech/oberon-chain/config"
	"github.com/oberon-tech/oberon-chain/internal/engine"
	"github.com/oberon-tech/oberon-chain/internal/log"
	"github.com/oberon-tech/oberon-chain/internal/storage"
	"github.com/oberon-tech/oberon-chain/internal/verify"
	"github.com/oberon-tech/oberon-chain/pkg/block"
	"github.com/oberon-tech/oberon-chain/pkg/crypto"
	"github.com/oberon-tech/oberon-chain/pkg/types"
)

// genesisTimestamp seeds the chain's first header.
const genesisTimestamp uint64 = 1

// Node runs one consensus engine against local storage.
type Node struct {
	cfg      *config.Config
	db       storage.DB
	headers  *storage.HeaderStore
	engine   engine.Engine
	pipeline *verify.Pipeline
	tracker  *verify.Tracker

	mu         sync.Mutex
	head       *block.Header
	epochBegin bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a node from configuration. The signer is the decrypted
// consensus key, nil for verify-only nodes.
func New(cfg *config.Config, signer *crypto.PrivateKey) (*Node, error) {
	db, err := storage.NewBadger(filepath.Join(cfg.DataDir, "chaindata"))
	if err != nil {
		return nil, err
	}
	n, err := build(cfg, signer, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return n, nil
}

// build assembles a node on top of an open database.
func build(cfg *config.Config, signer *crypto.PrivateKey, db storage.DB) (*Node, error) {
	eng, err := buildEngine(cfg, signer)
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:     cfg,
		db:      db,
		headers: storage.NewHeaderStore(db),
		engine:  eng,
		stopCh:  make(chan struct{}),
	}

	genesis, err := n.ensureGenesis()
	if err != nil {
		return nil, err
	}

	n.pipeline = verify.NewPipeline(eng)
	n.pipeline.RegisterClient(n)

	transitions := storage.NewTransitionStore(db)
	tracker, err := verify.NewTracker(eng, transitions, n.headers.Lookup(), genesis)
	if err != nil {
		return nil, err
	}
	n.tracker = tracker

	if auth, ok := eng.(*engine.Authority); ok {
		tracker.OnTransition(func(proof []byte) {
			_, set, err := engine.ParseTransitionProof(proof)
			if err != nil {
				log.Node.Error().Err(err).Msg("enacted transition carries unusable set")
				return
			}
			if err := auth.ApplySet(set); err != nil {
				log.Node.Error().Err(err).Msg("apply authority set")
				return
			}
			n.markEpochBegin()
			log.Node.Info().Int("authorities", len(set)).Msg("authority set rotated")
		})
	}

	return n, nil
}

// buildEngine constructs the configured consensus engine.
func buildEngine(cfg *config.Config, signer *crypto.PrivateKey) (engine.Engine, error) {
	switch cfg.Engine.Kind {
	case config.EngineAuthority:
		set := make([][]byte, len(cfg.Engine.Authorities))
		for i, s := range cfg.Engine.Authorities {
			pub, err := hex.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("authority %d: %w", i, err)
			}
			set[i] = pub
		}
		auth, err := engine.NewAuthority(set, cfg.Engine.ConfirmationDepth)
		if err != nil {
			return nil, err
		}
		if signer != nil {
			if err := auth.SetSigner(signer); err != nil {
				return nil, fmt.Errorf("configured signer rejected: %w", err)
			}
		}
		return auth, nil
	case config.EngineWork:
		return engine.NewWork(cfg.Engine.Difficulty)
	case config.EngineNull:
		return engine.NullEngine{}, nil
	default:
		return nil, fmt.Errorf("unknown engine kind %q", cfg.Engine.Kind)
	}
}

// ensureGenesis loads the chain head, creating the genesis header on
// first start.
func (n *Node) ensureGenesis() (*block.Header, error) {
	if hash, ok := n.headers.GetHead(); ok {
		head := n.headers.GetHeader(hash)
		if head == nil {
			return nil, fmt.Errorf("head %s missing from store", hash)
		}
		n.head = head
		genesis := head
		for genesis.Number > 0 {
			genesis = n.headers.GetHeader(genesis.ParentHash)
			if genesis == nil {
				return nil, fmt.Errorf("broken ancestry below head %s", hash)
			}
		}
		return genesis, nil
	}

	genesis := &block.Header{
		Version:   block.CurrentVersion,
		Timestamp: genesisTimestamp,
	}
	if err := n.headers.PutHeader(genesis); err != nil {
		return nil, err
	}
	if err := n.headers.SetHead(genesis.Hash()); err != nil {
		return nil, err
	}
	n.head = genesis
	log.Node.Info().Str("hash", genesis.Hash().String()).Msg("genesis created")
	return genesis, nil
}

// Start launches the engine's step scheduler.
func (n *Node) Start() error {
	interval := time.Duration(n.cfg.Engine.StepIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n.engine.Step()
			case <-n.stopCh:
				return
			}
		}
	}()
	log.Node.Info().
		Str("engine", n.engine.Name()).
		Dur("step_interval", interval).
		Msg("node started")
	return nil
}

// Stop halts the scheduler and closes storage.
func (n *Node) Stop() {
	close(n.stopCh)
	n.wg.Wait()
	if err := n.db.Close(); err != nil {
		log.Node.Error().Err(err).Msg("close database")
	}
	log.Node.Info().Msg("node stopped")
}

// HeaderByHash implements engine.Client.
func (n *Node) HeaderByHash(hash types.Hash) *block.Header {
	return n.headers.GetHeader(hash)
}

// BestHeader implements engine.Client.
func (n *Node) BestHeader() *block.Header {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.head
}

// ImportHeader verifies and stores an incoming header, advancing the
// chain head and the epoch tracker when it extends the best chain.
func (n *Node) ImportHeader(header *block.Header) error {
	parent := n.headers.GetHeader(header.ParentHash)
	if parent == nil {
		return fmt.Errorf("parent %s unknown", header.ParentHash)
	}
	if err := n.pipeline.VerifyHeader(header, parent); err != nil {
		return err
	}
	if err := n.headers.PutHeader(header); err != nil {
		return err
	}
	if err := n.tracker.OnImport(header); err != nil {
		return err
	}

	n.mu.Lock()
	extendsHead := header.ParentHash == n.head.Hash()
	if extendsHead {
		n.head = header
	}
	n.mu.Unlock()

	if !extendsHead {
		return nil
	}
	if err := n.headers.SetHead(header.Hash()); err != nil {
		return err
	}
	return n.tracker.OnNewHead(header)
}

// ProduceBlock assembles, transforms and seals a block on the current
// head. It fails when the engine cannot seal right now.
func (n *Node) ProduceBlock(txs [][]byte) (*block.Header, error) {
	n.mu.Lock()
	parent := n.head
	epochBegin := n.epochBegin
	n.epochBegin = false
	n.mu.Unlock()

	blk := block.NewLiveBlock(parent)
	if err := n.engine.OnNewBlock(blk, epochBegin); err != nil {
		return nil, fmt.Errorf("open block: %w", err)
	}
	for _, tx := range txs {
		blk.AddTransaction(tx)
	}
	if err := n.engine.OnCloseBlock(blk); err != nil {
		return nil, fmt.Errorf("close block: %w", err)
	}

	seal := n.engine.GenerateSeal(blk, parent)
	if err := engine.AttachSeal(blk, seal); err != nil {
		return nil, err
	}
	if err := n.engine.VerifyLocalSeal(blk.Header); err != nil {
		return nil, fmt.Errorf("local seal rejected: %w", err)
	}
	return blk.Header, nil
}

// markEpochBegin flags the next produced block as opening a new epoch.
func (n *Node) markEpochBegin() {
	n.mu.Lock()
	n.epochBegin = true
	n.mu.Unlock()
}
