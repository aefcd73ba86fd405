package strcrypt

import (
	"sync/atomic"

	"github.com/neuralforgeone/Vivisection-Engine/core"
)

// discriminatorCounter uniquifies container keys when the caller does not
// supply a discriminator, standing in for the source-position value the
// original build-time construction used.
var discriminatorCounter atomic.Uint32

// EncryptedString holds a literal as padded ciphertext plus the key that
// produced it. The plaintext exists only transiently inside Decrypt and
// Peek; scratch buffers are zero-filled before those calls return.
type EncryptedString struct {
	cipher  BlockCipher
	key     Key
	words   []uint32
	length  int
	scratch []byte
}

// Option configures an EncryptedString at construction.
type Option func(*config)

type config struct {
	cipher BlockCipher
	seed   *core.Seed
	disc   uint32
	hasDisc bool
}

// WithCipher selects the block cipher. The default is XTEA.
func WithCipher(c BlockCipher) Option {
	return func(cfg *config) { cfg.cipher = c }
}

// WithSeed derives the key from an explicit seed instead of core.DefaultSeed.
func WithSeed(s *core.Seed) Option {
	return func(cfg *config) { cfg.seed = s }
}

// WithDiscriminator fixes the per-literal discriminator, making the derived
// key (and therefore the ciphertext) reproducible.
func WithDiscriminator(d uint32) Option {
	return func(cfg *config) {
		cfg.disc = d
		cfg.hasDisc = true
	}
}

// New encrypts the literal s and returns its container. The key is derived
// from the seed, a per-literal discriminator, the literal's length, and a
// fixed constant; it is stored alongside the ciphertext and obscures rather
// than protects.
func New(s string, opts ...Option) *EncryptedString {
	cfg := config{cipher: XTEA{}, seed: core.DefaultSeed}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.hasDisc {
		cfg.disc = discriminatorCounter.Add(1)
	}

	e := &EncryptedString{cipher: cfg.cipher, length: len(s)}
	e.key[0] = cfg.seed.Value() ^ cfg.disc
	e.key[1] = core.Mix(e.key[0], cfg.disc)
	e.key[2] = core.Mix(e.key[1], uint32(len(s)))
	e.key[3] = core.Mix(e.key[2], 0xDEADBEEF)

	padded := paddedLen(len(s))
	e.words = make([]uint32, padded/4)
	packWords(e.words, s)
	// Padded length is always a block multiple, so this cannot fail.
	EncryptWords(e.cipher, e.words, &e.key)
	return e
}

// Len returns the true, unpadded length of the literal.
func (e *EncryptedString) Len() int {
	return e.length
}

// Decrypt returns an independent copy of the plaintext. Both intermediate
// buffers are zero-filled before returning, so no plaintext survives the
// call beyond the returned string. Safe for concurrent use.
func (e *EncryptedString) Decrypt() string {
	if len(e.words)%2 != 0 {
		core.ReportError(core.CodeStringDecryptFailed, "strcrypt: ciphertext is not block-aligned")
		return ""
	}
	tmp := make([]uint32, len(e.words))
	copy(tmp, e.words)
	DecryptWords(e.cipher, tmp, &e.key)

	buf := make([]byte, len(tmp)*4)
	unpackWords(buf, tmp)
	result := string(buf[:e.length])

	for i := range buf {
		buf[i] = 0
	}
	for i := range tmp {
		tmp[i] = 0
	}
	return result
}

// Peek decrypts into a scratch buffer owned by the container and returns a
// slice aliasing it. This avoids the copy Decrypt makes, but the result is
// valid only until the next Peek on the same container, and the container
// must not be shared between goroutines while the slice is live. It is an
// aliasing hazard, not a general-purpose accessor; prefer Decrypt.
func (e *EncryptedString) Peek() []byte {
	if e.scratch == nil {
		e.scratch = make([]byte, len(e.words)*4)
	}
	tmp := make([]uint32, len(e.words))
	copy(tmp, e.words)
	DecryptWords(e.cipher, tmp, &e.key)
	unpackWords(e.scratch, tmp)
	for i := range tmp {
		tmp[i] = 0
	}
	return e.scratch[:e.length]
}

// Wipe zeroizes the ciphertext, key and scratch buffer. The container is
// unusable afterward.
func (e *EncryptedString) Wipe() {
	for i := range e.words {
		e.words[i] = 0
	}
	for i := range e.scratch {
		e.scratch[i] = 0
	}
	e.key = Key{}
	e.length = 0
}

// paddedLen rounds n up to the next multiple of the 8-byte block size.
func paddedLen(n int) int {
	return ((n + 7) / 8) * 8
}

// packWords packs s into words little-endian, zero-padding the tail.
func packWords(words []uint32, s string) {
	for i := 0; i < len(s); i++ {
		words[i/4] |= uint32(s[i]) << (8 * (i % 4))
	}
}

// unpackWords spreads words back into bytes, little-endian.
func unpackWords(buf []byte, words []uint32) {
	for i := range buf {
		buf[i] = byte(words[i/4] >> (8 * (i % 4)))
	}
}
