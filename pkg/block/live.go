package block

import "time"

// LiveBlock is a block under construction. It is owned exclusively by the
// block-producing call stack for the duration of one assembly: the engine
// mutates it through its block-transformation hooks, transactions are
// applied, and finally a seal is attached.
type LiveBlock struct {
	Header *Header

	// Transactions holds the opaque encoded transactions applied so far.
	// Engine hooks may prepend system entries (epoch markers, rewards).
	Transactions [][]byte
}

// NewLiveBlock starts assembling a block on top of the given parent.
// The timestamp is the wall clock, floored to parent+1 so rapid
// production never violates timestamp monotonicity.
func NewLiveBlock(parent *Header) *LiveBlock {
	ts := uint64(time.Now().Unix())
	if ts <= parent.Timestamp {
		ts = parent.Timestamp + 1
	}
	return &LiveBlock{
		Header: &Header{
			Version:    CurrentVersion,
			ParentHash: parent.Hash(),
			Number:     parent.Number + 1,
			Timestamp:  ts,
		},
	}
}

// AddTransaction appends an encoded transaction to the block body.
func (b *LiveBlock) AddTransaction(data []byte) {
	b.Transactions = append(b.Transactions, data)
}
