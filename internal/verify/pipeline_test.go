package verify

import (
	"errors"
	"testing"

	"github.com/oberon-tech/oberon-chain/internal/engine"
	"github.com/oberon-tech/oberon-chain/pkg/block"
	"github.com/oberon-tech/oberon-chain/pkg/types"
)

// phaseRecorder records which verification phases ran, and can be told
// to fail at a given phase.
type phaseRecorder struct {
	engine.NullEngine

	calls  []string
	failAt string
}

var errPhase = errors.New("phase failure")

func (r *phaseRecorder) Name() string { return "recorder" }

func (r *phaseRecorder) phase(name string) error {
	r.calls = append(r.calls, name)
	if r.failAt == name {
		return errPhase
	}
	return nil
}

func (r *phaseRecorder) VerifyBlockBasic(*block.Header) error { return r.phase("basic") }

func (r *phaseRecorder) VerifyBlockUnordered(*block.Header) error { return r.phase("unordered") }

func (r *phaseRecorder) VerifyBlockFamily(_, _ *block.Header) error { return r.phase("family") }

func (r *phaseRecorder) VerifyBlockExternal(*block.Header) error { return r.phase("external") }

// nullClient satisfies engine.Client for registration.
type nullClient struct{}

func (nullClient) HeaderByHash(types.Hash) *block.Header { return nil }
func (nullClient) BestHeader() *block.Header             { return nil }

func testHeaders() (header, parent *block.Header) {
	parent = &block.Header{Version: block.CurrentVersion, Timestamp: 1}
	header = &block.Header{
		Version:    block.CurrentVersion,
		ParentHash: parent.Hash(),
		Number:     1,
		Timestamp:  2,
	}
	return header, parent
}

func TestPipeline_PhaseOrder(t *testing.T) {
	rec := &phaseRecorder{}
	p := NewPipeline(rec)
	p.RegisterClient(nullClient{})
	header, parent := testHeaders()

	if err := p.VerifyHeader(header, parent); err != nil {
		t.Fatalf("VerifyHeader() error: %v", err)
	}
	want := []string{"basic", "unordered", "family", "external"}
	if len(rec.calls) != len(want) {
		t.Fatalf("ran %d phases, want %d: %v", len(rec.calls), len(want), rec.calls)
	}
	for i, name := range want {
		if rec.calls[i] != name {
			t.Errorf("phase %d = %q, want %q", i, rec.calls[i], name)
		}
	}
}

func TestPipeline_ShortCircuit(t *testing.T) {
	for _, failAt := range []string{"basic", "unordered", "family"} {
		rec := &phaseRecorder{failAt: failAt}
		p := NewPipeline(rec)
		p.RegisterClient(nullClient{})
		header, parent := testHeaders()

		err := p.VerifyHeader(header, parent)
		if !errors.Is(err, errPhase) {
			t.Errorf("failAt %q: got %v, want errPhase", failAt, err)
		}
		if last := rec.calls[len(rec.calls)-1]; last != failAt {
			t.Errorf("failAt %q: ran past the failing phase: %v", failAt, rec.calls)
		}
	}
}

func TestPipeline_ExternalRequiresRegistration(t *testing.T) {
	rec := &phaseRecorder{}
	p := NewPipeline(rec)
	header, parent := testHeaders()

	err := p.VerifyHeader(header, parent)
	if !errors.Is(err, engine.ErrClientNotRegistered) {
		t.Fatalf("got %v, want ErrClientNotRegistered", err)
	}
	for _, name := range rec.calls {
		if name == "external" {
			t.Error("external phase ran without a registered client")
		}
	}

	p.RegisterClient(nullClient{})
	rec.calls = nil
	if err := p.VerifyHeader(header, parent); err != nil {
		t.Errorf("VerifyHeader() after registration: %v", err)
	}
}

func TestPipeline_SealCountMismatch(t *testing.T) {
	rec := &phaseRecorder{}
	p := NewPipeline(rec)
	p.RegisterClient(nullClient{})
	header, parent := testHeaders()
	header.Seal = [][]byte{{0x01}}

	if err := p.VerifyHeader(header, parent); err == nil {
		t.Fatal("seal count mismatch accepted")
	}
	if len(rec.calls) != 0 {
		t.Errorf("phases ran despite seal mismatch: %v", rec.calls)
	}
}
