// Package vm implements a small register machine for executing obfuscated
// instruction sequences. Its dispatch table periodically rearranges itself
// as an anti-static-analysis measure; a stable opcode-to-slot map keeps the
// shuffle invisible to executing bytecode.
package vm

import "fmt"

// Opcode enumerates the instruction set. Ordinals are part of the bytecode
// format and must not be reordered.
type Opcode uint8

const (
	OpAdd Opcode = iota
	OpSub
	OpMul
	OpDiv
	OpXor
	OpAnd
	OpOr
	OpNot
	OpShl
	OpShr
	OpLoad
	OpStore
	OpLoadImm
	OpJump
	OpJumpIfZero
	OpJumpIfNotZero
	OpCall
	OpRet
	OpMangleKey
	OpJunk
	OpNop

	opcodeCount = int(OpNop) + 1
)

var opcodeNames = [...]string{
	OpAdd:           "ADD",
	OpSub:           "SUB",
	OpMul:           "MUL",
	OpDiv:           "DIV",
	OpXor:           "XOR",
	OpAnd:           "AND",
	OpOr:            "OR",
	OpNot:           "NOT",
	OpShl:           "SHL",
	OpShr:           "SHR",
	OpLoad:          "LOAD",
	OpStore:         "STORE",
	OpLoadImm:       "LOAD_IMM",
	OpJump:          "JUMP",
	OpJumpIfZero:    "JUMP_IF_ZERO",
	OpJumpIfNotZero: "JUMP_IF_NOT_ZERO",
	OpCall:          "CALL",
	OpRet:           "RET",
	OpMangleKey:     "MANGLE_KEY",
	OpJunk:          "JUNK_OP",
	OpNop:           "NOP",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return fmt.Sprintf("OP(%d)", uint8(op))
}

// Instruction is one immutable bytecode word: an opcode, three register
// indices (valid range 0-7) and a 32-bit immediate.
type Instruction struct {
	Op   Opcode
	Dest uint8
	Src1 uint8
	Src2 uint8
	Imm  uint32
}

// RRR builds a three-register instruction (arithmetic, bitwise, memory).
func RRR(op Opcode, dest, src1, src2 uint8) Instruction {
	return Instruction{Op: op, Dest: dest, Src1: src1, Src2: src2}
}

// RI builds a register-immediate instruction (LOAD_IMM).
func RI(op Opcode, dest uint8, imm uint32) Instruction {
	return Instruction{Op: op, Dest: dest, Imm: imm}
}

// Jmp builds an unconditional transfer to target (JUMP, CALL).
func Jmp(op Opcode, target uint32) Instruction {
	return Instruction{Op: op, Imm: target}
}

// JmpIf builds a conditional transfer testing cond against zero.
func JmpIf(op Opcode, cond uint8, target uint32) Instruction {
	return Instruction{Op: op, Src1: cond, Imm: target}
}

// String renders the instruction in listing form, e.g. "ADD r2, r0, r1".
func (in Instruction) String() string {
	switch in.Op {
	case OpAdd, OpSub, OpMul, OpDiv, OpXor, OpAnd, OpOr, OpShl, OpShr:
		return fmt.Sprintf("%s r%d, r%d, r%d", in.Op, in.Dest, in.Src1, in.Src2)
	case OpNot, OpMangleKey:
		return fmt.Sprintf("%s r%d, r%d", in.Op, in.Dest, in.Src1)
	case OpLoad:
		return fmt.Sprintf("%s r%d, [r%d]", in.Op, in.Dest, in.Src1)
	case OpStore:
		return fmt.Sprintf("%s [r%d], r%d", in.Op, in.Dest, in.Src1)
	case OpLoadImm:
		return fmt.Sprintf("%s r%d, %d", in.Op, in.Dest, in.Imm)
	case OpJump, OpCall:
		return fmt.Sprintf("%s %d", in.Op, in.Imm)
	case OpJumpIfZero, OpJumpIfNotZero:
		return fmt.Sprintf("%s r%d, %d", in.Op, in.Src1, in.Imm)
	default:
		return in.Op.String()
	}
}
