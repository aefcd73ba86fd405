package core

import (
	"sync/atomic"
	"time"
)

// Seed is the mutable obfuscation seed consumed by the VM, the resolver and
// the encrypted-string containers. The original design shared one unguarded
// process-global value between every component; carrying an explicit Seed per
// engine or container removes that cross-instance interference and makes
// deterministic tests possible. DefaultSeed remains for call sites that do
// not care which instance they perturb.
type Seed struct {
	value atomic.Uint32
}

// NewSeed returns a seed initialized to v.
func NewSeed(v uint32) *Seed {
	s := &Seed{}
	s.value.Store(v)
	return s
}

// Value returns the current seed value.
func (s *Seed) Value() uint32 {
	return s.value.Load()
}

// Set overwrites the current seed value.
func (s *Seed) Set(v uint32) {
	s.value.Store(v)
}

// Advance perturbs the seed after a dispatch-table mutation pass.
func (s *Seed) Advance() {
	s.value.Store(s.value.Load() ^ 0xDEADBEEF)
}

// Mix folds two values together with a golden-ratio multiply. Used for key
// derivation and the MANGLE_KEY opcode.
func Mix(a, b uint32) uint32 {
	return (a ^ b) * 0x9e3779b9
}

// DefaultSeed is the process-wide seed used when a component is constructed
// without an explicit one. Seeded from start-of-process wall clock, the
// closest runtime equivalent of the original build-time seed.
var DefaultSeed = NewSeed(uint32(time.Now().Unix() % 86400))
