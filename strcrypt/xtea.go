package strcrypt

const (
	xteaDelta  = 0x9E3779B9
	xteaRounds = 32
)

// XTEA is the heavier of the two ciphers: a 32-round Feistel network in the
// XTEA style. Each round mixes one word with a nonlinear function of the
// other, a running sum, and a key word selected by bits of that sum.
// Decryption runs the same update rules with the sum counting down from its
// final encryption value, making the two directions exact arithmetic
// inverses.
type XTEA struct{}

func (XTEA) EncryptBlock(v0, v1 uint32, key *Key) (uint32, uint32) {
	var sum uint32
	for i := 0; i < xteaRounds; i++ {
		v0 += (((v1 << 4) ^ (v1 >> 5)) + v1) ^ (sum + key[sum&3])
		sum += xteaDelta
		v1 += (((v0 << 4) ^ (v0 >> 5)) + v0) ^ (sum + key[(sum>>11)&3])
	}
	return v0, v1
}

func (XTEA) DecryptBlock(v0, v1 uint32, key *Key) (uint32, uint32) {
	sum := uint32(xteaDelta * xteaRounds & 0xFFFFFFFF)
	for i := 0; i < xteaRounds; i++ {
		v1 -= (((v0 << 4) ^ (v0 >> 5)) + v0) ^ (sum + key[(sum>>11)&3])
		sum -= xteaDelta
		v0 -= (((v1 << 4) ^ (v1 >> 5)) + v1) ^ (sum + key[sum&3])
	}
	return v0, v1
}
