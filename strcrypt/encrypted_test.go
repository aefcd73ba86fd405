package strcrypt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuralforgeone/Vivisection-Engine/core"
)

func TestEncryptedString_RoundTrip(t *testing.T) {
	// Lengths straddling the 8-byte padding boundary.
	literals := []string{
		"",
		"a",
		"1234567",
		"12345678",
		"123456789",
		strings.Repeat("x", 63),
		"kernel32.dll",
		"string with spaces and \x00 embedded",
	}

	for name, c := range testCiphers {
		t.Run(name, func(t *testing.T) {
			for _, lit := range literals {
				e := New(lit, WithCipher(c))
				assert.Equal(t, len(lit), e.Len())
				assert.Equal(t, lit, e.Decrypt())
				// Decryption is repeatable; the blob is never re-encrypted.
				assert.Equal(t, lit, e.Decrypt())
			}
		})
	}
}

func TestEncryptedString_CiphertextPadded(t *testing.T) {
	e := New("123456789") // 9 bytes -> 16-byte buffer -> 4 words
	assert.Len(t, e.words, 4)

	e = New("12345678") // exactly one block boundary
	assert.Len(t, e.words, 2)

	e = New("")
	assert.Empty(t, e.words)
	assert.Equal(t, "", e.Decrypt())
}

func TestEncryptedString_DeterministicUnderSeedAndDiscriminator(t *testing.T) {
	seed := core.NewSeed(12345)

	a := New("secret", WithSeed(seed), WithDiscriminator(7))
	b := New("secret", WithSeed(seed), WithDiscriminator(7))
	c := New("secret", WithSeed(seed), WithDiscriminator(8))

	assert.Equal(t, a.words, b.words)
	assert.Equal(t, a.key, b.key)
	assert.NotEqual(t, a.words, c.words, "different discriminators must derive different keys")
}

func TestEncryptedString_DefaultDiscriminatorsDiffer(t *testing.T) {
	seed := core.NewSeed(99)

	a := New("same literal", WithSeed(seed))
	b := New("same literal", WithSeed(seed))

	assert.NotEqual(t, a.key, b.key)
	assert.Equal(t, a.Decrypt(), b.Decrypt())
}

func TestEncryptedString_PlaintextNotInBlob(t *testing.T) {
	lit := "very-recognizable-plaintext"
	e := New(lit)

	raw := make([]byte, len(e.words)*4)
	unpackWords(raw, e.words)
	assert.NotContains(t, string(raw), lit)
}

func TestEncryptedString_Peek(t *testing.T) {
	e := New("peek at me")

	p1 := e.Peek()
	assert.Equal(t, "peek at me", string(p1))

	// The returned slice aliases container-owned scratch: a second Peek
	// reuses the same backing array.
	p2 := e.Peek()
	require.Equal(t, len(p1), len(p2))
	assert.Same(t, &p1[0], &p2[0])
}

func TestEncryptedString_PeekEmpty(t *testing.T) {
	e := New("")
	assert.Empty(t, e.Peek())
}

func TestEncryptedString_Wipe(t *testing.T) {
	e := New("sensitive")
	_ = e.Peek()

	e.Wipe()

	assert.Equal(t, Key{}, e.key)
	for _, w := range e.words {
		assert.Zero(t, w)
	}
	for _, b := range e.scratch {
		assert.Zero(t, b)
	}
	assert.Zero(t, e.Len())
}

func TestEncryptedString_DecryptConcurrent(t *testing.T) {
	e := New("shared between goroutines")

	done := make(chan string)
	for i := 0; i < 8; i++ {
		go func() { done <- e.Decrypt() }()
	}
	for i := 0; i < 8; i++ {
		assert.Equal(t, "shared between goroutines", <-done)
	}
}

func BenchmarkEncryptedString_Decrypt(b *testing.B) {
	e := New(strings.Repeat("benchmark", 8))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.Decrypt()
	}
}
