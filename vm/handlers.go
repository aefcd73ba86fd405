package vm

import (
	"math/bits"

	"github.com/neuralforgeone/Vivisection-Engine/core"
)

// junkSink keeps JUNK_OP computations observable enough that they are not
// folded away, the closest Go equivalent of a volatile scratch write.
var junkSink uint32

// setFlags records whether the destination register became zero.
func setFlags(s *State, dest uint8) {
	if s.Registers[dest] == 0 {
		s.Flags = 1
	} else {
		s.Flags = 0
	}
}

// binOp builds a handler for a two-source arithmetic or bitwise opcode.
func binOp(f func(a, b uint32) uint32) Handler {
	return func(s *State, in Instruction) {
		s.Registers[in.Dest] = f(s.Registers[in.Src1], s.Registers[in.Src2])
		setFlags(s, in.Dest)
	}
}

// canonicalHandlers returns the canonical opcode-to-behavior mapping used to
// seed the dispatch table at construction.
func canonicalHandlers() map[Opcode]Handler {
	return map[Opcode]Handler{
		OpAdd: binOp(func(a, b uint32) uint32 { return a + b }),
		OpSub: binOp(func(a, b uint32) uint32 { return a - b }),
		OpMul: binOp(func(a, b uint32) uint32 { return a * b }),

		// Division by zero is skipped outright: destination and flags are
		// left untouched and no fault is reported. Fail-quiet, unlike the
		// register-bounds fault path.
		OpDiv: func(s *State, in Instruction) {
			if s.Registers[in.Src2] == 0 {
				return
			}
			s.Registers[in.Dest] = s.Registers[in.Src1] / s.Registers[in.Src2]
			setFlags(s, in.Dest)
		},

		OpXor: binOp(func(a, b uint32) uint32 { return a ^ b }),
		OpAnd: binOp(func(a, b uint32) uint32 { return a & b }),
		OpOr:  binOp(func(a, b uint32) uint32 { return a | b }),

		OpNot: func(s *State, in Instruction) {
			s.Registers[in.Dest] = ^s.Registers[in.Src1]
			setFlags(s, in.Dest)
		},

		OpShl: binOp(func(a, b uint32) uint32 { return a << b }),
		OpShr: binOp(func(a, b uint32) uint32 { return a >> b }),

		// Out-of-range addresses make LOAD and STORE no-ops.
		OpLoad: func(s *State, in Instruction) {
			addr := s.Registers[in.Src1]
			if s.validMemory(addr) {
				s.Registers[in.Dest] = s.Memory[addr]
			}
		},
		OpStore: func(s *State, in Instruction) {
			addr := s.Registers[in.Dest]
			if s.validMemory(addr) {
				s.Memory[addr] = s.Registers[in.Src1]
			}
		},
		OpLoadImm: func(s *State, in Instruction) {
			s.Registers[in.Dest] = in.Imm
		},

		OpJump: func(s *State, in Instruction) {
			s.PC = in.Imm
		},
		OpJumpIfZero: func(s *State, in Instruction) {
			if s.Registers[in.Src1] == 0 {
				s.PC = in.Imm
			} else {
				s.PC++
			}
		},
		OpJumpIfNotZero: func(s *State, in Instruction) {
			if s.Registers[in.Src1] != 0 {
				s.PC = in.Imm
			} else {
				s.PC++
			}
		},

		// A CALL on a full stack and a RET on an empty stack are dropped
		// without a fault, but fall through to the next instruction so a
		// quiet drop cannot pin the program counter in place.
		OpCall: func(s *State, in Instruction) {
			if s.SP < CallStackDepth {
				s.CallStack[s.SP] = s.PC + 1
				s.SP++
				s.PC = in.Imm
			} else {
				s.PC++
			}
		},
		OpRet: func(s *State, in Instruction) {
			if s.SP > 0 {
				s.SP--
				s.PC = s.CallStack[s.SP]
			} else {
				s.PC++
			}
		},

		OpMangleKey: func(s *State, in Instruction) {
			s.Registers[in.Dest] = core.Mix(s.Registers[in.Src1], s.Seed.Value())
		},

		// Side-effecting no-op against analysis tools.
		OpJunk: func(s *State, in Instruction) {
			t := s.Registers[0]
			t = (t * 0x9e3779b9) ^ 0xDEADBEEF
			t = bits.RotateLeft32(t, 13)
			junkSink = t
		},
		OpNop: func(s *State, in Instruction) {},
	}
}
