// Package block defines block headers and in-construction blocks.
package block

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/oberon-tech/oberon-chain/pkg/crypto"
	"github.com/oberon-tech/oberon-chain/pkg/types"
)

// CurrentVersion is the header format version produced by this node.
const CurrentVersion uint32 = 1

// MaxExtraSize bounds the free-form extra data field.
const MaxExtraSize = 1024

// Header contains block metadata. The trailing Seal entries are opaque to
// everything except the consensus engine that produced them: decoders learn
// where header fields end and seal fields begin from the engine's declared
// seal field count.
type Header struct {
	Version    uint32        `json:"version"`
	ParentHash types.Hash    `json:"parent_hash"`
	Number     uint64        `json:"number"`
	Timestamp  uint64        `json:"timestamp"`
	Author     types.Address `json:"author"`
	Difficulty uint64        `json:"difficulty,omitempty"`
	Extra      []byte        `json:"-"`
	Seal       [][]byte      `json:"-"`
}

// headerJSON is the JSON representation of Header with hex-encoded byte fields.
type headerJSON struct {
	Version    uint32        `json:"version"`
	ParentHash types.Hash    `json:"parent_hash"`
	Number     uint64        `json:"number"`
	Timestamp  uint64        `json:"timestamp"`
	Author     types.Address `json:"author"`
	Difficulty uint64        `json:"difficulty,omitempty"`
	Extra      string        `json:"extra,omitempty"`
	Seal       []string      `json:"seal,omitempty"`
}

// MarshalJSON encodes the header with hex-encoded extra data and seal entries.
func (h *Header) MarshalJSON() ([]byte, error) {
	j := headerJSON{
		Version:    h.Version,
		ParentHash: h.ParentHash,
		Number:     h.Number,
		Timestamp:  h.Timestamp,
		Author:     h.Author,
		Difficulty: h.Difficulty,
	}
	if len(h.Extra) > 0 {
		j.Extra = hex.EncodeToString(h.Extra)
	}
	for _, field := range h.Seal {
		j.Seal = append(j.Seal, hex.EncodeToString(field))
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes a header with hex-encoded extra data and seal entries.
func (h *Header) UnmarshalJSON(data []byte) error {
	var j headerJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	h.Version = j.Version
	h.ParentHash = j.ParentHash
	h.Number = j.Number
	h.Timestamp = j.Timestamp
	h.Author = j.Author
	h.Difficulty = j.Difficulty
	h.Extra = nil
	h.Seal = nil
	if j.Extra != "" {
		b, err := hex.DecodeString(j.Extra)
		if err != nil {
			return err
		}
		h.Extra = b
	}
	for _, field := range j.Seal {
		b, err := hex.DecodeString(field)
		if err != nil {
			return err
		}
		h.Seal = append(h.Seal, b)
	}
	return nil
}

// Hash computes the full header hash, seal entries included. This is the
// hash blocks are keyed by in the chain store.
func (h *Header) Hash() types.Hash {
	buf := h.SigningBytes()
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(h.Seal)))
	for _, field := range h.Seal {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(field)))
		buf = append(buf, field...)
	}
	return crypto.Hash(buf)
}

// SealHash computes the hash over the seal-excluded header fields.
// This is what engines sign or grind work over, so the hash is stable
// while the seal is being produced.
func (h *Header) SealHash() types.Hash {
	return crypto.Hash(h.SigningBytes())
}

// SigningBytes returns the canonical seal-excluded header encoding.
// Format: version(4) | parent_hash(32) | number(8) | timestamp(8) |
// author(20) | difficulty(8) | extra_len(4) | extra
func (h *Header) SigningBytes() []byte {
	buf := make([]byte, 0, 84+len(h.Extra))
	buf = binary.LittleEndian.AppendUint32(buf, h.Version)
	buf = append(buf, h.ParentHash[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, h.Number)
	buf = binary.LittleEndian.AppendUint64(buf, h.Timestamp)
	buf = append(buf, h.Author[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, h.Difficulty)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(h.Extra)))
	buf = append(buf, h.Extra...)
	return buf
}
