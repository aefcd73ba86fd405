package profile

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
	"gopkg.in/yaml.v3"
)

// Sealed profile containers keep distribution configs out of casual reach:
// magic, one algorithm byte, then nonce-prefixed AEAD ciphertext over the
// YAML encoding.

// Algorithm selects the AEAD used for a sealed profile container.
type Algorithm byte

const (
	// AlgChaCha20Poly1305 is the default container algorithm.
	AlgChaCha20Poly1305 Algorithm = 0x01
	// AlgAESGCM is kept for environments with AES hardware support.
	AlgAESGCM Algorithm = 0x02
)

var sealedMagic = [4]byte{'V', 'V', 'S', 'P'}

func aead(alg Algorithm, passphrase string) (cipher.AEAD, error) {
	key := sha256.Sum256([]byte(passphrase))
	switch alg {
	case AlgChaCha20Poly1305:
		return chacha20poly1305.New(key[:])
	case AlgAESGCM:
		block, err := aes.NewCipher(key[:])
		if err != nil {
			return nil, fmt.Errorf("failed to create cipher: %w", err)
		}
		return cipher.NewGCM(block)
	default:
		return nil, fmt.Errorf("unknown sealed profile algorithm %#x", byte(alg))
	}
}

// SaveSealed writes the profile as an encrypted container.
func (p Profile) SaveSealed(path, passphrase string, alg Algorithm) error {
	if err := p.Validate(); err != nil {
		return err
	}
	plaintext, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	a, err := aead(alg, passphrase)
	if err != nil {
		return err
	}
	nonce := make([]byte, a.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(sealedMagic)+1+len(nonce)+len(plaintext)+a.Overhead())
	out = append(out, sealedMagic[:]...)
	out = append(out, byte(alg))
	out = append(out, nonce...)
	out = a.Seal(out, nonce, plaintext, sealedMagic[:])

	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("failed to write sealed profile: %w", err)
	}
	return nil
}

// LoadSealed reads, decrypts and validates a sealed profile container.
func LoadSealed(path, passphrase string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read sealed profile: %w", err)
	}
	if len(data) < len(sealedMagic)+1 || string(data[:4]) != string(sealedMagic[:]) {
		return Profile{}, fmt.Errorf("not a sealed profile container")
	}
	alg := Algorithm(data[4])

	a, err := aead(alg, passphrase)
	if err != nil {
		return Profile{}, err
	}
	body := data[len(sealedMagic)+1:]
	if len(body) < a.NonceSize() {
		return Profile{}, fmt.Errorf("sealed profile truncated")
	}
	nonce, ciphertext := body[:a.NonceSize()], body[a.NonceSize():]
	plaintext, err := a.Open(nil, nonce, ciphertext, sealedMagic[:])
	if err != nil {
		return Profile{}, fmt.Errorf("failed to unseal profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(plaintext, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse sealed profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}
