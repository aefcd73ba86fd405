// Package strcrypt hides compile-known literals behind reversible 64-bit
// block ciphers so plaintext never sits in the binary or lingers in memory
// longer than a single access.
package strcrypt

import "fmt"

// Key is the 4-word key shared by both ciphers. Keys obscure rather than
// cryptographically protect: they are stored alongside their ciphertext.
type Key [4]uint32

// BlockCipher is a reversible cipher over one 64-bit block split into two
// 32-bit words. Decrypt must be the exact inverse of Encrypt under the same
// key for every block value.
type BlockCipher interface {
	EncryptBlock(v0, v1 uint32, key *Key) (uint32, uint32)
	DecryptBlock(v0, v1 uint32, key *Key) (uint32, uint32)
}

// EncryptWords encrypts a word buffer in place. The buffer must hold a whole
// number of 64-bit blocks.
func EncryptWords(c BlockCipher, words []uint32, key *Key) error {
	if len(words)%2 != 0 {
		return fmt.Errorf("strcrypt: buffer of %d words is not a whole number of blocks", len(words))
	}
	for i := 0; i < len(words); i += 2 {
		words[i], words[i+1] = c.EncryptBlock(words[i], words[i+1], key)
	}
	return nil
}

// DecryptWords decrypts a word buffer in place. The buffer must hold a whole
// number of 64-bit blocks.
func DecryptWords(c BlockCipher, words []uint32, key *Key) error {
	if len(words)%2 != 0 {
		return fmt.Errorf("strcrypt: buffer of %d words is not a whole number of blocks", len(words))
	}
	for i := 0; i < len(words); i += 2 {
		words[i], words[i+1] = c.DecryptBlock(words[i], words[i+1], key)
	}
	return nil
}
