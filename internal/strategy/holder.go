package strategy

import (
	"sync/atomic"

	"github.com/kstaniek/go-tcpbus/internal/wire"
)

// Holder stores the currently active cipher pair for a peer (server-side
// context or client connection). The swap is two independent atomic
// pointer stores rather than one locked assignment: safe
// only because every strategy this registry hands out today is self-inverse,
// so a reader observing one direction updated and the other still stale
// briefly still applies a correct transform. A future asymmetric cipher
// would have to serialize serialize/parse calls around the swap instead of
// relying on Holder.
type Holder struct {
	encrypt atomic.Pointer[wire.Cipher]
	decrypt atomic.Pointer[wire.Cipher]
}

// NewHolder creates a Holder initialised to the given pair (CodeNone/Noop by default).
func NewHolder(initial Pair) *Holder {
	h := &Holder{}
	h.Set(initial)
	return h
}

// Set swaps in a new pair. Not synchronized against concurrent Current
// callers beyond the two atomic stores themselves.
func (h *Holder) Set(p Pair) {
	enc := p.Encrypt
	dec := p.Decrypt
	h.encrypt.Store(&enc)
	h.decrypt.Store(&dec)
}

// Current returns the currently active (encrypt, decrypt) pair.
func (h *Holder) Current() (wire.Cipher, wire.Cipher) {
	var enc, dec wire.Cipher
	if p := h.encrypt.Load(); p != nil {
		enc = *p
	}
	if p := h.decrypt.Load(); p != nil {
		dec = *p
	}
	return enc, dec
}
