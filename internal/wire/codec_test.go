package wire

import (
	"bytes"
	"testing"
)

func xor(key byte) Cipher {
	return func(b []byte) {
		for i := range b {
			b[i] ^= key
		}
	}
}

func TestSerializeParse_EmptyBodyRoundTrip(t *testing.T) {
	out := make([]byte, DefaultBufferSize)
	n, err := Serialize(out, NewTarget("CHAT\x00\x00\x00\x00"), nil, xor(0x5A))
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if n != 13 {
		t.Fatalf("total = %d, want 13", n)
	}
	wantHeader := []byte{0x00, 0x00, 0x00, 0x0D, 'C', 'H', 'A', 'T', 0, 0, 0, 0}
	if !bytes.Equal(out[:12], wantHeader) {
		t.Fatalf("header = % X, want % X", out[:12], wantHeader)
	}

	target, body, err := Parse(out[:n], xor(0x5A))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if target.String() != "CHAT" {
		t.Fatalf("target = %q, want CHAT", target.String())
	}
	if len(body) != 0 {
		t.Fatalf("body len = %d, want 0", len(body))
	}
}

func TestSerializeParse_FiveByteBody(t *testing.T) {
	out := make([]byte, DefaultBufferSize)
	n, err := Serialize(out, NewTarget("LOGIN\x00\x00\x00"), []byte("hello"), xor(0x5A))
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if n != 18 {
		t.Fatalf("total = %d, want 18", n)
	}
	wantCipher := []byte{0x32, 0x3F, 0x36, 0x36, 0x35}
	if !bytes.Equal(out[12:17], wantCipher) {
		t.Fatalf("ciphertext = % X, want % X", out[12:17], wantCipher)
	}

	target, body, err := Parse(out[:n], xor(0x5A))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if target.String() != "LOGIN" {
		t.Fatalf("target = %q, want LOGIN", target.String())
	}
	if string(body) != "hello" {
		t.Fatalf("body = %q, want hello", body)
	}
}

func TestParse_ChecksumCorruption(t *testing.T) {
	out := make([]byte, DefaultBufferSize)
	n, _ := Serialize(out, NewTarget("LOGIN\x00\x00\x00"), []byte("hello"), xor(0x5A))
	out[12] ^= 0x01 // flip bit 0 of the first ciphertext byte
	if _, _, err := Parse(out[:n], xor(0x5A)); err != ErrChecksumFail {
		t.Fatalf("err = %v, want ErrChecksumFail", err)
	}
}

func TestParse_LengthMismatch(t *testing.T) {
	out := make([]byte, DefaultBufferSize)
	n, _ := Serialize(out, NewTarget("LOGIN\x00\x00\x00"), []byte("hello"), xor(0x5A))
	if n != 18 {
		t.Fatalf("total = %d, want 18", n)
	}
	if _, _, err := Parse(out[:n-1], xor(0x5A)); err != ErrLengthMismatch {
		t.Fatalf("err = %v, want ErrLengthMismatch", err)
	}
}

func TestParse_TooShort(t *testing.T) {
	if _, _, err := Parse(make([]byte, MinFrameSize-1), nil); err != ErrTooShort {
		t.Fatalf("err = %v, want ErrTooShort", err)
	}
}

func TestSerialize_NilBuffer(t *testing.T) {
	if _, err := Serialize(nil, Target{}, nil, nil); err != ErrNilBuffer {
		t.Fatalf("err = %v, want ErrNilBuffer", err)
	}
}

func TestSerialize_ExceedsCapacity(t *testing.T) {
	dst := make([]byte, MinFrameSize-1)
	if _, err := Serialize(dst, Target{}, nil, nil); err != ErrFrameTooLarge {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
}

func TestXORCipher_SelfInverse(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	orig := append([]byte(nil), data...)
	c := xor(0x5A)
	c(data)
	c(data)
	if !bytes.Equal(data, orig) {
		t.Fatalf("double XOR did not restore original")
	}
}

func TestChecksum_CoversEveryByteBeforeTrailer(t *testing.T) {
	out := make([]byte, DefaultBufferSize)
	n, _ := Serialize(out, NewTarget("PING\x00\x00\x00\x00"), []byte("ab"), nil)
	if checksum(out[:n-1]) != out[n-1] {
		t.Fatalf("checksum(frame[:n-1]) != frame[n-1]")
	}
}

// TestRoundTrip_AllShortBodiesBothStrategies exercises serialize/parse for
// every body length up to a small bound under both known strategy codes.
func TestRoundTrip_AllShortBodiesBothStrategies(t *testing.T) {
	ciphers := map[string]Cipher{"none": nil, "xor": xor(0x5A)}
	for name, c := range ciphers {
		for n := 0; n <= 32; n++ {
			body := make([]byte, n)
			for i := range body {
				body[i] = byte(i * 7)
			}
			out := make([]byte, DefaultBufferSize)
			written, err := Serialize(out, NewTarget("T"), body, c)
			if err != nil {
				t.Fatalf("[%s] Serialize(n=%d): %v", name, n, err)
			}
			target, got, err := Parse(out[:written], c)
			if err != nil {
				t.Fatalf("[%s] Parse(n=%d): %v", name, n, err)
			}
			if target.String() != "T" {
				t.Fatalf("[%s] target = %q", name, target.String())
			}
			if !bytes.Equal(got, body) {
				t.Fatalf("[%s] body mismatch at n=%d: got % X want % X", name, n, got, body)
			}
		}
	}
}

func TestStrategyBody_RoundTrip(t *testing.T) {
	body := EncodeStrategyBody(1)
	code, err := DecodeStrategyBody(body)
	if err != nil {
		t.Fatalf("DecodeStrategyBody: %v", err)
	}
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
}

func TestStrategyBody_BadLength(t *testing.T) {
	if _, err := DecodeStrategyBody([]byte{1, 2, 3}); err != ErrBadStrategyBody {
		t.Fatalf("err = %v, want ErrBadStrategyBody", err)
	}
}

func FuzzSerializeParse(f *testing.F) {
	f.Add([]byte("hello"), uint32(1))
	f.Add([]byte{}, uint32(0))
	f.Fuzz(func(t *testing.T, body []byte, codeSeed uint32) {
		if len(body) > DefaultBufferSize-MinFrameSize {
			body = body[:DefaultBufferSize-MinFrameSize]
		}
		c := xor(byte(codeSeed))
		out := make([]byte, DefaultBufferSize)
		n, err := Serialize(out, NewTarget("FUZZ"), body, c)
		if err != nil {
			t.Skip()
		}
		_, got, err := Parse(out[:n], c)
		if err != nil {
			t.Fatalf("Parse after Serialize failed: %v", err)
		}
		if !bytes.Equal(got, body) {
			t.Fatalf("round trip mismatch: got % X want % X", got, body)
		}
	})
}
