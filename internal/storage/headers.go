package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oberon-tech/oberon-chain/internal/engine"
	"github.com/oberon-tech/oberon-chain/internal/log"
	"github.com/oberon-tech/oberon-chain/pkg/block"
	"github.com/oberon-tech/oberon-chain/pkg/types"
)

// Key prefixes and state keys for the header store.
var (
	prefixHeader = []byte("h/") // h/<hash(32)> -> header JSON
	keyHead      = []byte("s/head")
)

// HeaderStore persists headers and the chain head to a DB.
type HeaderStore struct {
	db DB
}

// NewHeaderStore creates a header store backed by the given database.
func NewHeaderStore(db DB) *HeaderStore {
	return &HeaderStore{db: db}
}

// PutHeader stores a header by its hash.
func (hs *HeaderStore) PutHeader(h *block.Header) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("header marshal: %w", err)
	}
	hash := h.Hash()
	if err := hs.db.Put(headerKey(hash), data); err != nil {
		return fmt.Errorf("header put: %w", err)
	}
	return nil
}

// GetHeader retrieves a header by hash, nil if unknown.
func (hs *HeaderStore) GetHeader(hash types.Hash) *block.Header {
	data, err := hs.db.Get(headerKey(hash))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		log.Storage.Warn().Err(err).Str("hash", hash.String()).Msg("header read failed")
		return nil
	}
	var h block.Header
	if err := json.Unmarshal(data, &h); err != nil {
		log.Storage.Warn().Err(err).Str("hash", hash.String()).Msg("corrupt header record")
		return nil
	}
	return &h
}

// Lookup returns a header lookup usable by consensus engines.
func (hs *HeaderStore) Lookup() engine.HeaderLookup {
	return hs.GetHeader
}

// SetHead records the current chain head hash.
func (hs *HeaderStore) SetHead(hash types.Hash) error {
	if err := hs.db.Put(keyHead, hash[:]); err != nil {
		return fmt.Errorf("set head: %w", err)
	}
	return nil
}

// GetHead returns the current chain head hash, false when the store is
// empty.
func (hs *HeaderStore) GetHead() (types.Hash, bool) {
	data, err := hs.db.Get(keyHead)
	if err != nil || len(data) != types.HashSize {
		return types.Hash{}, false
	}
	var hash types.Hash
	copy(hash[:], data)
	return hash, true
}

func headerKey(hash types.Hash) []byte {
	key := make([]byte, 0, len(prefixHeader)+types.HashSize)
	key = append(key, prefixHeader...)
	return append(key, hash[:]...)
}
