package strategy

import (
	"bytes"
	"testing"
)

func TestLookup_KnownCodes(t *testing.T) {
	none := Lookup(CodeNone)
	data := []byte("payload")
	orig := append([]byte(nil), data...)
	none.Encrypt(data)
	if !bytes.Equal(data, orig) {
		t.Fatalf("CodeNone encrypt mutated data")
	}

	xorp := Lookup(CodeXOR)
	xorp.Encrypt(data)
	if bytes.Equal(data, orig) {
		t.Fatalf("CodeXOR encrypt left data unchanged")
	}
	xorp.Decrypt(data)
	if !bytes.Equal(data, orig) {
		t.Fatalf("CodeXOR decrypt did not restore original")
	}
}

func TestLookup_UnknownCodeDegradesToPlaintext(t *testing.T) {
	p := Lookup(99)
	if p.Code != CodeNone {
		t.Fatalf("unknown code resolved to %d, want CodeNone", p.Code)
	}
	data := []byte("abc")
	orig := append([]byte(nil), data...)
	p.Encrypt(data)
	if !bytes.Equal(data, orig) {
		t.Fatalf("unknown code did not degrade to noop")
	}
}

func TestHolder_SetAndCurrent(t *testing.T) {
	h := NewHolder(Lookup(CodeNone))
	enc, dec := h.Current()
	data := []byte("hello")
	orig := append([]byte(nil), data...)
	enc(data)
	if !bytes.Equal(data, orig) {
		t.Fatalf("initial encrypt should be noop")
	}

	h.Set(Lookup(CodeXOR))
	enc, dec = h.Current()
	enc(data)
	if bytes.Equal(data, orig) {
		t.Fatalf("after Set(XOR) encrypt should mutate data")
	}
	dec(data)
	if !bytes.Equal(data, orig) {
		t.Fatalf("XOR decrypt should restore original")
	}
}
