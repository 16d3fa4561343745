package storage

import (
	"errors"
	"fmt"

	"github.com/oberon-tech/oberon-chain/internal/engine"
	"github.com/oberon-tech/oberon-chain/internal/log"
	"github.com/oberon-tech/oberon-chain/pkg/types"
)

// prefixTransition keys pending epoch transitions: et/<hash(32)> -> encoding.
var prefixTransition = []byte("et/")

// TransitionStore persists pending epoch transitions keyed by the hash
// of the header that signalled them. Entries are written once and read
// until the transition is enacted or the branch abandoned.
type TransitionStore struct {
	db DB
}

// NewTransitionStore creates a transition store backed by the given database.
func NewTransitionStore(db DB) *TransitionStore {
	return &TransitionStore{db: db}
}

// Put stores a pending transition under the signalling header's hash.
func (s *TransitionStore) Put(hash types.Hash, pt engine.PendingTransition) error {
	if err := s.db.Put(transitionKey(hash), pt.Encode()); err != nil {
		return fmt.Errorf("transition put: %w", err)
	}
	return nil
}

// Get retrieves the pending transition for a header hash. A missing key
// or an entry that fails to decode both report "not found": a corrupt
// record must not take down header verification.
func (s *TransitionStore) Get(hash types.Hash) (engine.PendingTransition, bool) {
	data, err := s.db.Get(transitionKey(hash))
	if errors.Is(err, ErrNotFound) {
		return engine.PendingTransition{}, false
	}
	if err != nil {
		log.Storage.Warn().Err(err).Str("hash", hash.String()).Msg("transition read failed")
		return engine.PendingTransition{}, false
	}
	pt, err := engine.DecodePendingTransition(data)
	if err != nil {
		log.Storage.Warn().Err(err).Str("hash", hash.String()).Msg("discarding undecodable transition")
		return engine.PendingTransition{}, false
	}
	return pt, true
}

// Delete removes the pending transition for a header hash.
func (s *TransitionStore) Delete(hash types.Hash) error {
	return s.db.Delete(transitionKey(hash))
}

func transitionKey(hash types.Hash) []byte {
	key := make([]byte, 0, len(prefixTransition)+types.HashSize)
	key = append(key, prefixTransition...)
	return append(key, hash[:]...)
}
