package verify

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/oberon-tech/oberon-chain/internal/engine"
	"github.com/oberon-tech/oberon-chain/internal/log"
	"github.com/oberon-tech/oberon-chain/pkg/block"
	"github.com/oberon-tech/oberon-chain/pkg/types"
)

// TransitionStore persists pending epoch transitions keyed by the hash
// of the header that signalled them.
type TransitionStore interface {
	Put(hash types.Hash, pt engine.PendingTransition) error
	Get(hash types.Hash) (engine.PendingTransition, bool)
}

// Tracker runs the epoch transition protocol around an engine: it
// records transition signals as headers are imported, asks the engine
// for finality at every new chain head, and promotes finalized proofs
// into the next epoch's verifier.
//
// Headers whose signal evaluated Unsure are retried on every subsequent
// import until the engine gives a definite answer; the lookback window
// grows one header per import, which is the retry contract engines here
// rely on.
type Tracker struct {
	engine  engine.Engine
	store   TransitionStore
	headers engine.HeaderLookup

	mu      sync.Mutex
	current engine.EpochVerifier
	unsure  map[types.Hash]struct{}
	halted  error

	// onTransition, when set, runs after a new verifier is installed
	// with the proof that produced it.
	onTransition func(proof []byte)

	logger zerolog.Logger
}

// NewTracker builds a tracker seeded with the epoch-0 verifier derived
// from the genesis header. A failure here is fatal at chain start.
func NewTracker(eng engine.Engine, store TransitionStore, headers engine.HeaderLookup, genesis *block.Header) (*Tracker, error) {
	data, err := eng.GenesisEpochData(genesis)
	if err != nil {
		return nil, fmt.Errorf("genesis epoch data: %w", err)
	}
	cv := eng.EpochVerifier(genesis, data)
	if err := cv.Err(); err != nil {
		return nil, fmt.Errorf("genesis epoch verifier: %w", err)
	}
	v, ok := cv.Trusted()
	if !ok {
		return nil, fmt.Errorf("genesis epoch verifier is not trusted")
	}
	return &Tracker{
		engine:  eng,
		store:   store,
		headers: headers,
		current: v,
		unsure:  make(map[types.Hash]struct{}),
		logger:  log.Verify.With().Str("engine", eng.Name()).Logger(),
	}, nil
}

// OnTransition sets a hook invoked with the proof whenever a transition
// is enacted.
func (t *Tracker) OnTransition(fn func(proof []byte)) {
	t.mu.Lock()
	t.onTransition = fn
	t.mu.Unlock()
}

// Current returns the verifier for the current epoch.
func (t *Tracker) Current() engine.EpochVerifier {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// OnImport evaluates a newly imported header for a transition signal and
// retries headers that previously answered Unsure.
func (t *Tracker) OnImport(header *block.Header) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.halted != nil {
		return t.halted
	}
	if err := t.evaluate(header); err != nil {
		return err
	}
	for hash := range t.unsure {
		h := t.headers(hash)
		if h == nil {
			continue
		}
		if err := t.evaluate(h); err != nil {
			return err
		}
	}
	return nil
}

// evaluate runs SignalsEpochEnd for one header and records the outcome.
// Caller holds t.mu.
func (t *Tracker) evaluate(header *block.Header) error {
	hash := header.Hash()
	switch ec := t.engine.SignalsEpochEnd(header); ec.Signal {
	case engine.EpochSignalNo:
		delete(t.unsure, hash)
	case engine.EpochSignalUnsure:
		t.unsure[hash] = struct{}{}
	case engine.EpochSignalYes:
		delete(t.unsure, hash)
		if err := t.store.Put(hash, engine.PendingTransition{Proof: ec.Proof}); err != nil {
			return fmt.Errorf("store pending transition: %w", err)
		}
		t.logger.Info().
			Uint64("number", header.Number).
			Str("hash", hash.String()).
			Msg("epoch transition signalled, pending finality")
	}
	return nil
}

// OnNewHead asks the engine whether an epoch ends at or before the new
// chain head and, if so, enacts the transition. A verifier construction
// failure is fatal: the tracker refuses all further work on this branch
// rather than retry, since an epoch verifier cannot be partially
// trusted.
func (t *Tracker) OnNewHead(head *block.Header) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.halted != nil {
		return t.halted
	}

	proof := t.engine.IsEpochEnd(head, t.headers, t.store.Get)
	if proof == nil {
		return nil
	}

	cv := t.engine.EpochVerifier(head, proof)
	if err := cv.Err(); err != nil {
		t.halted = fmt.Errorf("epoch verifier construction failed: %w", err)
		t.logger.Error().Err(err).
			Uint64("head", head.Number).
			Msg("halting block acceptance on this branch")
		return t.halted
	}

	if v, ok := cv.Trusted(); ok {
		t.install(v, proof, head)
		return nil
	}

	v, finalityProof, hash, ok := cv.Unconfirmed()
	if !ok {
		t.halted = fmt.Errorf("epoch verifier in impossible state")
		return t.halted
	}
	if err := t.confirmFinality(finalityProof, hash); err != nil {
		return fmt.Errorf("unconfirmed epoch verifier rejected: %w", err)
	}
	t.install(v, proof, head)
	return nil
}

// confirmFinality proves that the finality proof finalizes the given
// hash under the PREVIOUS epoch's rules. Skipping this check would let
// an attacker smuggle in an authority set whose only endorsement is its
// own signatures. Caller holds t.mu.
func (t *Tracker) confirmFinality(finalityProof []byte, hash types.Hash) error {
	signal := t.headers(hash)
	if signal == nil {
		return fmt.Errorf("signalling header %s unknown", hash)
	}
	if err := t.current.VerifyHeavy(signal); err != nil {
		return fmt.Errorf("signalling header fails previous epoch rules: %w", err)
	}
	pt, ok := t.store.Get(hash)
	if !ok {
		return fmt.Errorf("no pending transition recorded for %s", hash)
	}
	if !bytes.Equal(pt.Proof, finalityProof) {
		return fmt.Errorf("finality proof does not match the signalled transition")
	}
	return nil
}

// install makes v the current epoch's verifier. Caller holds t.mu.
func (t *Tracker) install(v engine.EpochVerifier, proof []byte, head *block.Header) {
	t.current = v
	t.logger.Info().
		Uint64("head", head.Number).
		Int("proof_bytes", len(proof)).
		Msg("epoch transition enacted")
	if t.onTransition != nil {
		t.onTransition(proof)
	}
}
