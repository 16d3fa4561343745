// Package verify drives consensus verification for incoming headers:
// the phased header pipeline and the epoch transition tracker.
package verify

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/oberon-tech/oberon-chain/internal/engine"
	"github.com/oberon-tech/oberon-chain/internal/log"
	"github.com/oberon-tech/oberon-chain/pkg/block"
)

// Pipeline runs the four verification phases in strict cost order and
// stops at the first failure, so cheap rejects never pay for expensive
// checks. Phases for a single header are sequential; different headers
// may be verified from different goroutines concurrently.
type Pipeline struct {
	engine engine.Engine

	mu         sync.RWMutex
	registered bool

	logger zerolog.Logger
}

// NewPipeline creates a verification pipeline for the given engine.
func NewPipeline(eng engine.Engine) *Pipeline {
	return &Pipeline{
		engine: eng,
		logger: log.Verify.With().Str("engine", eng.Name()).Logger(),
	}
}

// RegisterClient registers the running node with the engine and unlocks
// the external verification phase.
func (p *Pipeline) RegisterClient(client engine.Client) {
	p.engine.RegisterClient(client)
	p.mu.Lock()
	p.registered = true
	p.mu.Unlock()
}

// VerifyHeader validates an untrusted header against its parent. Each
// phase error is attributed so callers can tell malformed data from data
// that fails against this specific chain state.
func (p *Pipeline) VerifyHeader(header, parent *block.Header) error {
	if want, have := p.engine.SealFields(header), len(header.Seal); want != have {
		return fmt.Errorf("header carries %d seal entries, engine declares %d", have, want)
	}
	if err := p.engine.VerifyBlockBasic(header); err != nil {
		return fmt.Errorf("basic verification: %w", err)
	}
	if err := p.engine.VerifyBlockUnordered(header); err != nil {
		return fmt.Errorf("unordered verification: %w", err)
	}
	if err := p.engine.VerifyBlockFamily(header, parent); err != nil {
		return fmt.Errorf("family verification: %w", err)
	}
	p.mu.RLock()
	registered := p.registered
	p.mu.RUnlock()
	if !registered {
		return fmt.Errorf("external verification: %w", engine.ErrClientNotRegistered)
	}
	if err := p.engine.VerifyBlockExternal(header); err != nil {
		return fmt.Errorf("external verification: %w", err)
	}
	p.logger.Debug().
		Uint64("number", header.Number).
		Str("hash", header.Hash().String()).
		Msg("header verified")
	return nil
}
