// Package strategy maps security strategy codes to the (encrypt, decrypt)
// cipher pair the wire codec applies to frame bodies, and provides a lock-free
// holder for swapping a peer's active pair.
package strategy

import "github.com/kstaniek/go-tcpbus/internal/wire"

// Known strategy codes.
const (
	CodeNone uint32 = 0
	CodeXOR  uint32 = 1
)

// xorKey is the fixed key used by the default XOR strategy (self-inverse).
const xorKey = 0x5A

// Pair is a named (encrypt, decrypt) cipher pair.
type Pair struct {
	Code    uint32
	Encrypt wire.Cipher
	Decrypt wire.Cipher
}

// Noop is the null transform used by CodeNone and unrecognised codes.
func Noop(_ []byte) {}

// XOR returns a self-inverse cipher that XORs every byte with key.
func XOR(key byte) wire.Cipher {
	return func(b []byte) {
		for i := range b {
			b[i] ^= key
		}
	}
}

// Lookup resolves a strategy code to its cipher pair. Unknown codes degrade
// to plaintext. Because XOR is self-inverse, Encrypt and Decrypt are the
// same function value for every known code today; a future asymmetric
// cipher would also need its swap serialized around each serialize/parse
// call instead of relying on Holder's unlocked pointer stores.
func Lookup(code uint32) Pair {
	switch code {
	case CodeXOR:
		c := XOR(xorKey)
		return Pair{Code: CodeXOR, Encrypt: c, Decrypt: c}
	default:
		return Pair{Code: CodeNone, Encrypt: wire.Cipher(Noop), Decrypt: wire.Cipher(Noop)}
	}
}
