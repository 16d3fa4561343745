package engine

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oberon-tech/oberon-chain/pkg/block"
	"github.com/oberon-tech/oberon-chain/pkg/crypto"
	"github.com/oberon-tech/oberon-chain/pkg/types"
)

// Authority engine errors.
var (
	ErrNoAuthorities   = errors.New("no authorities configured")
	ErrNotAuthority    = errors.New("signer is not a configured authority")
	ErrMissingSeal     = errors.New("header missing seal entry")
	ErrInvalidSeal     = errors.New("invalid seal signature")
	ErrBadAnnouncement = errors.New("malformed authority-set announcement")
)

// setMagic prefixes an authority-set announcement in a header's extra
// data. Everything after it is a concatenation of compressed public keys.
var setMagic = []byte("oas1")

// Authority implements round-scheduled proof-of-authority consensus.
// A fixed set of authorities takes turns sealing blocks; a header's
// single seal entry is the Schnorr signature of the active authority.
// An epoch transition is signalled by embedding a new authority set in a
// header's extra data and becomes final once the signalling header is
// buried under ConfirmationDepth descendants.
type Authority struct {
	NullEngine

	mu sync.RWMutex

	// authorities is the current set of compressed public keys, in round
	// order.
	authorities [][]byte

	// byAddr indexes the set by derived address for seal verification.
	byAddr map[types.Address][]byte

	// signer is the local sealing key, nil when this node only verifies.
	signer crypto.Signer

	// client is the registered node view, nil before registration.
	client Client

	// depth is the burial depth required before a signalled transition
	// is treated as final.
	depth uint64

	// steps counts scheduler ticks since start.
	steps atomic.Uint64
}

// NewAuthority creates an authority engine from the genesis set of
// compressed public keys and the finality confirmation depth.
func NewAuthority(authorities [][]byte, depth uint64) (*Authority, error) {
	if len(authorities) == 0 {
		return nil, ErrNoAuthorities
	}
	if depth == 0 {
		return nil, fmt.Errorf("confirmation depth must be > 0")
	}
	set := make([][]byte, len(authorities))
	byAddr := make(map[types.Address][]byte, len(authorities))
	for i, pub := range authorities {
		if len(pub) != crypto.PubKeySize {
			return nil, fmt.Errorf("authority %d: public key must be %d bytes, got %d", i, crypto.PubKeySize, len(pub))
		}
		k := append([]byte(nil), pub...)
		set[i] = k
		byAddr[crypto.AddressFromPubKey(k)] = k
	}
	return &Authority{
		authorities: set,
		byAddr:      byAddr,
		depth:       depth,
	}, nil
}

// SetSigner configures the local sealing key. The key must belong to a
// configured authority.
func (a *Authority) SetSigner(signer crypto.Signer) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !containsKey(a.authorities, signer.PublicKey()) {
		return ErrNotAuthority
	}
	a.signer = signer
	return nil
}

// Name identifies the engine.
func (a *Authority) Name() string { return "authority" }

// SealFields declares the single signature entry authority headers carry.
func (a *Authority) SealFields(*block.Header) int { return 1 }

// SealsInternally reports whether this node currently holds an authority
// key and may therefore seal.
func (a *Authority) SealsInternally() SealingStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.signer == nil || !containsKey(a.authorities, a.signer.PublicKey()) {
		return SealingNotReady
	}
	return SealingReady
}

// GenerateSeal signs the block with the local authority key. The seal is
// regular when the signer is the scheduled authority for this round and
// a proposal otherwise, so out-of-turn blocks can be broadcast without
// ever being committed. Returns NoSeal when the node cannot seal.
func (a *Authority) GenerateSeal(blk *block.LiveBlock, parent *block.Header) Seal {
	a.mu.RLock()
	signer := a.signer
	set := a.authorities
	a.mu.RUnlock()

	if signer == nil || !containsKey(set, signer.PublicKey()) {
		return NoSeal()
	}
	if blk.Header.Author != signer.Address() {
		return NoSeal()
	}

	hash := blk.Header.SealHash()
	sig, err := signer.Sign(hash[:])
	if err != nil {
		return NoSeal()
	}
	if bytes.Equal(scheduledKey(set, blk.Header.Number), signer.PublicKey()) {
		return RegularSeal(sig)
	}
	return ProposalSeal(sig)
}

// VerifyLocalSeal checks a locally produced seal. GenerateSeal only ever
// emits signatures it just created, so a shape check suffices here.
func (a *Authority) VerifyLocalSeal(header *block.Header) error {
	if len(header.Seal) != 1 {
		return fmt.Errorf("%w: have %d entries, want 1", ErrMissingSeal, len(header.Seal))
	}
	if len(header.Seal[0]) != crypto.SignatureSize {
		return fmt.Errorf("%w: signature is %d bytes, want %d", ErrInvalidSeal, len(header.Seal[0]), crypto.SignatureSize)
	}
	return nil
}

// VerifyBlockBasic runs structural checks: seal shape, author presence,
// extra-data bounds, and the announcement format when one is present.
func (a *Authority) VerifyBlockBasic(header *block.Header) error {
	if len(header.Seal) != 1 {
		return fmt.Errorf("%w: have %d entries, want 1", ErrMissingSeal, len(header.Seal))
	}
	if len(header.Seal[0]) != crypto.SignatureSize {
		return fmt.Errorf("%w: signature is %d bytes, want %d", ErrInvalidSeal, len(header.Seal[0]), crypto.SignatureSize)
	}
	if header.Author.IsZero() {
		return fmt.Errorf("header has no author")
	}
	if len(header.Extra) > block.MaxExtraSize {
		return fmt.Errorf("extra data is %d bytes, limit %d", len(header.Extra), block.MaxExtraSize)
	}
	if bytes.HasPrefix(header.Extra, setMagic) {
		if _, err := ParseAuthoritySet(header.Extra); err != nil {
			return err
		}
	}
	return nil
}

// VerifyBlockUnordered verifies the seal signature against the authority
// set. An author outside the set is a NotAuthorizedError.
func (a *Authority) VerifyBlockUnordered(header *block.Header) error {
	a.mu.RLock()
	pub, ok := a.byAddr[header.Author]
	a.mu.RUnlock()
	if !ok {
		return &NotAuthorizedError{Signer: header.Author}
	}
	hash := header.SealHash()
	if !crypto.VerifySignature(hash[:], header.Seal[0], pub) {
		return fmt.Errorf("%w: author %s", ErrInvalidSeal, header.Author)
	}
	return nil
}

// VerifyBlockFamily checks parent linkage, number continuity and
// timestamp monotonicity.
func (a *Authority) VerifyBlockFamily(header, parent *block.Header) error {
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

// VerifyBlockExternal confirms the header connects to the registered
// client's chain.
func (a *Authority) VerifyBlockExternal(header *block.Header) error {
	a.mu.RLock()
	client := a.client
	a.mu.RUnlock()
	if client == nil {
		return ErrClientNotRegistered
	}
	if header.Number > 0 && client.HeaderByHash(header.ParentHash) == nil {
		return fmt.Errorf("parent %s not known to the chain", header.ParentHash)
	}
	return nil
}

// RegisterClient hands the engine a view of the running node.
func (a *Authority) RegisterClient(client Client) {
	a.mu.Lock()
	a.client = client
	a.mu.Unlock()
}

// GenesisEpochData encodes the epoch-0 transition proof: the genesis
// hash followed by the configured authority set.
func (a *Authority) GenesisEpochData(header *block.Header) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return encodeTransitionProof(header.Hash(), a.authorities), nil
}

// SignalsEpochEnd reports a transition when the header's extra data
// carries an authority-set announcement. Unsealed headers answer Unsure:
// the announcement cannot be attributed until the seal arrives, so the
// caller retries once the sealed header is imported.
func (a *Authority) SignalsEpochEnd(header *block.Header) EpochChange {
	if !bytes.HasPrefix(header.Extra, setMagic) {
		return NoEpochChange()
	}
	if len(header.Seal) == 0 {
		return UnsureEpochChange()
	}
	set, err := ParseAuthoritySet(header.Extra)
	if err != nil {
		return NoEpochChange()
	}
	return SignalsEpochChange(encodeTransitionProof(header.Hash(), set))
}

// IsEpochEnd walks back from the chain head looking for a pending
// transition buried under the configured confirmation depth.
func (a *Authority) IsEpochEnd(chainHead *block.Header, headers HeaderLookup, transitions PendingTransitionLookup) []byte {
	a.mu.RLock()
	depth := a.depth
	a.mu.RUnlock()

	h := chainHead
	for i := uint64(0); i <= depth; i++ {
		if pt, ok := transitions(h.Hash()); ok {
			if chainHead.Number-h.Number >= depth {
				return pt.Proof
			}
		}
		if h.Number == 0 {
			return nil
		}
		h = headers(h.ParentHash)
		if h == nil {
			return nil
		}
	}
	return nil
}

// EpochVerifier constructs a verifier for the authority set carried in
// the proof. The genesis set is trusted outright; any later set must be
// confirmed final under the epoch that announced it, which breaks the
// circular dependency between the new set's legitimacy and its own
// signatures.
func (a *Authority) EpochVerifier(header *block.Header, proof []byte) ConstructedVerifier {
	signalHash, set, err := ParseTransitionProof(proof)
	if err != nil {
		return VerifierError(err)
	}
	v := newAuthoritySetVerifier(set)
	if header.Number == 0 {
		return TrustedVerifier(v)
	}
	return UnconfirmedVerifier(v, proof, signalHash)
}

// Step advances the round clock.
func (a *Authority) Step() {
	a.steps.Add(1)
}

// Steps returns the number of scheduler ticks since start.
func (a *Authority) Steps() uint64 {
	return a.steps.Load()
}

// OnNewBlock republishes the current authority set in the first block of
// a new epoch so late-joining nodes can find it without deep history.
func (a *Authority) OnNewBlock(blk *block.LiveBlock, epochBegin bool) error {
	if !epochBegin {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	blk.Header.Extra = EncodeAuthoritySet(a.authorities)
	return nil
}

// OnCloseBlock stamps the author and timestamp ahead of sealing.
func (a *Authority) OnCloseBlock(blk *block.LiveBlock) error {
	a.mu.RLock()
	signer := a.signer
	a.mu.RUnlock()
	if signer == nil {
		return ErrNoSigner
	}
	blk.Header.Author = signer.Address()
	if blk.Header.Timestamp == 0 {
		blk.Header.Timestamp = uint64(time.Now().Unix())
	}
	return nil
}

// Sign signs consensus-internal data with the configured authority key.
func (a *Authority) Sign(hash types.Hash) ([]byte, error) {
	a.mu.RLock()
	signer := a.signer
	a.mu.RUnlock()
	if signer == nil {
		return nil, ErrNoSigner
	}
	return signer.Sign(hash[:])
}

// ApplySet replaces the working authority set once a transition has been
// confirmed by the epoch tracker.
func (a *Authority) ApplySet(set [][]byte) error {
	if len(set) == 0 {
		return ErrNoAuthorities
	}
	byAddr := make(map[types.Address][]byte, len(set))
	copied := make([][]byte, len(set))
	for i, pub := range set {
		if len(pub) != crypto.PubKeySize {
			return fmt.Errorf("%w: key %d is %d bytes", ErrBadAnnouncement, i, len(pub))
		}
		k := append([]byte(nil), pub...)
		copied[i] = k
		byAddr[crypto.AddressFromPubKey(k)] = k
	}
	a.mu.Lock()
	a.authorities = copied
	a.byAddr = byAddr
	a.mu.Unlock()
	return nil
}

// scheduledKey returns the authority whose turn it is at the given block
// number.
func scheduledKey(set [][]byte, number uint64) []byte {
	if len(set) == 0 {
		return nil
	}
	return set[number%uint64(len(set))]
}

func containsKey(set [][]byte, pub []byte) bool {
	for _, k := range set {
		if bytes.Equal(k, pub) {
			return true
		}
	}
	return false
}

// encodeTransitionProof builds the self-describing transition proof:
// the hash of the signalling header followed by the set announcement.
// Carrying the hash lets EpochVerifier name the header whose finality
// the caller must confirm without any side channel.
func encodeTransitionProof(signalHash types.Hash, set [][]byte) Proof {
	out := make([]byte, 0, types.HashSize+len(setMagic)+len(set)*crypto.PubKeySize)
	out = append(out, signalHash[:]...)
	return append(out, EncodeAuthoritySet(set)...)
}

// ParseTransitionProof splits a transition proof into the signalling
// header's hash and the announced authority set.
func ParseTransitionProof(proof []byte) (types.Hash, [][]byte, error) {
	if len(proof) < types.HashSize {
		return types.Hash{}, nil, fmt.Errorf("%w: proof is %d bytes", ErrBadAnnouncement, len(proof))
	}
	var signalHash types.Hash
	copy(signalHash[:], proof[:types.HashSize])
	set, err := ParseAuthoritySet(proof[types.HashSize:])
	if err != nil {
		return types.Hash{}, nil, err
	}
	return signalHash, set, nil
}

// EncodeAuthoritySet serializes a set announcement: magic prefix followed
// by the concatenated compressed public keys in round order.
func EncodeAuthoritySet(set [][]byte) []byte {
	out := make([]byte, 0, len(setMagic)+len(set)*crypto.PubKeySize)
	out = append(out, setMagic...)
	for _, pub := range set {
		out = append(out, pub...)
	}
	return out
}

// ParseAuthoritySet decodes a set announcement. The payload must be a
// non-empty whole number of compressed public keys.
func ParseAuthoritySet(data []byte) ([][]byte, error) {
	if !bytes.HasPrefix(data, setMagic) {
		return nil, fmt.Errorf("%w: missing magic", ErrBadAnnouncement)
	}
	body := data[len(setMagic):]
	if len(body) == 0 || len(body)%crypto.PubKeySize != 0 {
		return nil, fmt.Errorf("%w: payload is %d bytes", ErrBadAnnouncement, len(body))
	}
	set := make([][]byte, 0, len(body)/crypto.PubKeySize)
	for off := 0; off < len(body); off += crypto.PubKeySize {
		pub := make([]byte, crypto.PubKeySize)
		copy(pub, body[off:off+crypto.PubKeySize])
		set = append(set, pub)
	}
	return set, nil
}

// authoritySetVerifier checks headers against one epoch's fixed set.
type authoritySetVerifier struct {
	byAddr map[types.Address][]byte
}

func newAuthoritySetVerifier(set [][]byte) *authoritySetVerifier {
	byAddr := make(map[types.Address][]byte, len(set))
	for _, pub := range set {
		byAddr[crypto.AddressFromPubKey(pub)] = pub
	}
	return &authoritySetVerifier{byAddr: byAddr}
}

// VerifyLight checks seal shape and set membership.
func (v *authoritySetVerifier) VerifyLight(header *block.Header) error {
	if len(header.Seal) != 1 {
		return fmt.Errorf("%w: have %d entries, want 1", ErrMissingSeal, len(header.Seal))
	}
	if _, ok := v.byAddr[header.Author]; !ok {
		return &NotAuthorizedError{Signer: header.Author}
	}
	return nil
}

// VerifyHeavy additionally verifies the seal signature.
func (v *authoritySetVerifier) VerifyHeavy(header *block.Header) error {
	if err := v.VerifyLight(header); err != nil {
		return err
	}
	pub := v.byAddr[header.Author]
	hash := header.SealHash()
	if !crypto.VerifySignature(hash[:], header.Seal[0], pub) {
		return fmt.Errorf("%w: author %s", ErrInvalidSeal, header.Author)
	}
	return nil
}
