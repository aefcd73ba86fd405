package strcrypt

import "math/bits"

const feistelRounds = 8

// Feistel is the lighter cipher: an 8-round Feistel network whose round
// function XORs in a key word, rotates, and folds in a golden-ratio
// constant. One extra half-swap at each end makes running the rounds in
// reverse order exactly undo encryption.
type Feistel struct{}

func feistelRound(x, k uint32) uint32 {
	x ^= k
	x = bits.RotateLeft32(x, 7)
	x ^= 0x9E3779B9
	x = bits.RotateLeft32(x, 13)
	x ^= k
	return x
}

func (Feistel) EncryptBlock(v0, v1 uint32, key *Key) (uint32, uint32) {
	for round := 0; round < feistelRounds; round++ {
		v0, v1 = v1^feistelRound(v0, key[round%4]), v0
	}
	return v1, v0
}

func (Feistel) DecryptBlock(v0, v1 uint32, key *Key) (uint32, uint32) {
	v0, v1 = v1, v0
	for round := feistelRounds; round > 0; round-- {
		v0, v1 = v1, v0^feistelRound(v1, key[(round-1)%4])
	}
	return v0, v1
}
