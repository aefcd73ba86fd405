// Package resolver locates loaded modules and their exports without going
// through the import table. Module enumeration walks the loader's own
// bookkeeping, exports are matched by hash rather than by name, and only
// when the stealth path fails does the resolver fall back to the documented
// loader API.
package resolver

const (
	fnvOffsetBasis uint32 = 0x811c9dc5
	fnvPrime       uint32 = 0x01000193
)

// Hash computes the 32-bit FNV-1a digest of s. Export names hash
// case-sensitively; precomputed lookup constants must use the exact
// exported spelling.
func Hash(s string) uint32 {
	h := fnvOffsetBasis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

// HashLower computes the FNV-1a digest of s with ASCII letters folded to
// lower case. Module names compare case-insensitively, so their hashes do
// too; the fold covers only A-Z, matching how the loader compares names.
func HashLower(s string) uint32 {
	h := fnvOffsetBasis
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		h ^= uint32(c)
		h *= fnvPrime
	}
	return h
}
