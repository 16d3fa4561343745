package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestHash_HexRoundTrip(t *testing.T) {
	s := strings.Repeat("ab", HashSize)
	h, err := HexToHash(s)
	if err != nil {
		t.Fatalf("HexToHash() error: %v", err)
	}
	if h.String() != s {
		t.Errorf("String() = %q, want %q", h.String(), s)
	}
	if h.IsZero() {
		t.Error("non-zero hash reported zero")
	}
	if !(Hash{}).IsZero() {
		t.Error("zero hash not reported zero")
	}

	for _, bad := range []string{"zz", "ab", strings.Repeat("ab", HashSize+1)} {
		if _, err := HexToHash(bad); err == nil {
			t.Errorf("HexToHash(%q) accepted", bad)
		}
	}
}

func TestHash_JSON(t *testing.T) {
	h, err := HexToHash(strings.Repeat("cd", HashSize))
	if err != nil {
		t.Fatalf("HexToHash() error: %v", err)
	}
	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var got Hash
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got != h {
		t.Errorf("round trip changed hash: %s != %s", got, h)
	}

	var empty Hash
	if err := json.Unmarshal([]byte(`""`), &empty); err != nil {
		t.Errorf("empty string: %v", err)
	}
	if err := json.Unmarshal([]byte(`"xyz"`), &got); err == nil {
		t.Error("invalid hex accepted")
	}
	if err := json.Unmarshal([]byte(`"abcd"`), &got); err == nil {
		t.Error("short hash accepted")
	}
}

func TestAddress_HexRoundTrip(t *testing.T) {
	s := strings.Repeat("12", AddressSize)
	a, err := HexToAddress(s)
	if err != nil {
		t.Fatalf("HexToAddress() error: %v", err)
	}
	if a.String() != s {
		t.Errorf("String() = %q, want %q", a.String(), s)
	}
	if a.IsZero() {
		t.Error("non-zero address reported zero")
	}

	if _, err := HexToAddress("0102"); err == nil {
		t.Error("short address accepted")
	}
}

func TestAddress_JSON(t *testing.T) {
	a, err := HexToAddress(strings.Repeat("ef", AddressSize))
	if err != nil {
		t.Fatalf("HexToAddress() error: %v", err)
	}
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var got Address
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got != a {
		t.Errorf("round trip changed address: %s != %s", got, a)
	}
}
