package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuralforgeone/Vivisection-Engine/core"
)

// captureReports swallows error-hook output and collects the reports a test
// expects to trigger.
func captureReports(t *testing.T) *[]core.Report {
	t.Helper()
	var reports []core.Report
	core.SetErrorHandler(func(r core.Report) { reports = append(reports, r) })
	t.Cleanup(func() { core.SetErrorHandler(nil) })
	return &reports
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	return New(core.NewSeed(0x1234), opts...)
}

func TestExecute_Arithmetic(t *testing.T) {
	captureReports(t)
	e := newTestEngine(t)

	e.Execute([]Instruction{
		RI(OpLoadImm, 0, 5),
		RI(OpLoadImm, 1, 3),
		RRR(OpAdd, 2, 0, 1),
	})

	require.False(t, e.Halted())
	assert.Equal(t, uint32(8), e.State().Registers[2])
	assert.Equal(t, uint32(0), e.State().Flags)
}

func TestExecute_ArithmeticAndBitwise(t *testing.T) {
	captureReports(t)

	cases := []struct {
		op   Opcode
		a, b uint32
		want uint32
	}{
		{OpAdd, 7, 5, 12},
		{OpSub, 7, 5, 2},
		{OpMul, 7, 5, 35},
		{OpDiv, 35, 5, 7},
		{OpXor, 0b1100, 0b1010, 0b0110},
		{OpAnd, 0b1100, 0b1010, 0b1000},
		{OpOr, 0b1100, 0b1010, 0b1110},
		{OpShl, 1, 4, 16},
		{OpShr, 16, 4, 1},
	}

	for _, tc := range cases {
		t.Run(tc.op.String(), func(t *testing.T) {
			e := newTestEngine(t)
			e.Execute([]Instruction{
				RI(OpLoadImm, 0, tc.a),
				RI(OpLoadImm, 1, tc.b),
				RRR(tc.op, 2, 0, 1),
			})
			require.False(t, e.Halted())
			assert.Equal(t, tc.want, e.State().Registers[2])
		})
	}
}

func TestExecute_ZeroFlag(t *testing.T) {
	captureReports(t)
	e := newTestEngine(t)

	e.Execute([]Instruction{
		RI(OpLoadImm, 0, 9),
		RRR(OpSub, 1, 0, 0),
	})

	assert.Equal(t, uint32(0), e.State().Registers[1])
	assert.Equal(t, uint32(1), e.State().Flags)
}

func TestExecute_Not(t *testing.T) {
	captureReports(t)
	e := newTestEngine(t)

	e.Execute([]Instruction{
		RI(OpLoadImm, 0, 0),
		RRR(OpNot, 1, 0, 0),
	})

	assert.Equal(t, uint32(0xFFFFFFFF), e.State().Registers[1])
	assert.Equal(t, uint32(0), e.State().Flags)
}

func TestExecute_DivByZeroIsSkipped(t *testing.T) {
	reports := captureReports(t)
	e := newTestEngine(t)

	e.Execute([]Instruction{
		RI(OpLoadImm, 0, 10),
		RI(OpLoadImm, 1, 0),
		RI(OpLoadImm, 2, 77),
		RRR(OpAdd, 3, 0, 0), // flags now 0
		RRR(OpDiv, 2, 0, 1), // divisor is zero
	})

	require.False(t, e.Halted())
	assert.Equal(t, uint32(77), e.State().Registers[2], "destination must be untouched")
	assert.Equal(t, uint32(0), e.State().Flags, "flags must be untouched")
	assert.Empty(t, *reports, "division by zero is fail-quiet, never a fault")
}

func TestExecute_InvalidRegisterFaults(t *testing.T) {
	reports := captureReports(t)
	e := newTestEngine(t)

	e.Execute([]Instruction{
		RI(OpLoadImm, 0, 1),
		{Op: OpAdd, Dest: 9, Src1: 0, Src2: 0},
		RI(OpLoadImm, 1, 99), // must never run
	})

	require.True(t, e.Halted())
	assert.Equal(t, core.CodeVMInvalidRegister, e.Fault())
	assert.Equal(t, uint32(1), e.State().PC, "state is left as-of-fault")
	assert.Zero(t, e.State().Registers[1])
	require.Len(t, *reports, 1)
	assert.Equal(t, core.CodeVMInvalidRegister, (*reports)[0].Code)
}

func TestExecute_InvalidOpcodeFaults(t *testing.T) {
	reports := captureReports(t)

	t.Run("beyond table", func(t *testing.T) {
		e := newTestEngine(t)
		e.Execute([]Instruction{{Op: Opcode(40)}})
		require.True(t, e.Halted())
		assert.Equal(t, core.CodeVMInvalidOpcode, e.Fault())
	})

	t.Run("empty slot", func(t *testing.T) {
		e := newTestEngine(t)
		e.Execute([]Instruction{{Op: Opcode(25)}}) // within table, never registered
		require.True(t, e.Halted())
		assert.Equal(t, core.CodeVMInvalidOpcode, e.Fault())
	})

	assert.Len(t, *reports, 2)
}

func TestExecute_EmptyBytecode(t *testing.T) {
	reports := captureReports(t)
	e := newTestEngine(t)

	e.Execute(nil)

	assert.True(t, e.Halted())
	assert.Equal(t, core.CodeVMExecution, e.Fault())
	assert.Len(t, *reports, 1)
}

func TestExecute_MemoryRoundTrip(t *testing.T) {
	captureReports(t)
	e := newTestEngine(t)

	e.Execute([]Instruction{
		RI(OpLoadImm, 0, 5),                   // address
		RI(OpLoadImm, 1, 42),                  // data
		{Op: OpStore, Dest: 0, Src1: 1},       // memory[r0] = r1
		{Op: OpLoad, Dest: 2, Src1: 0},        // r2 = memory[r0]
	})

	require.False(t, e.Halted())
	assert.Equal(t, uint32(42), e.State().Memory[5])
	assert.Equal(t, uint32(42), e.State().Registers[2])
}

func TestExecute_MemoryOutOfRangeIsNoop(t *testing.T) {
	reports := captureReports(t)
	e := newTestEngine(t)
	e.State().Memory[0] = 0xAAAA

	e.Execute([]Instruction{
		RI(OpLoadImm, 0, 300), // past the 256-word window
		RI(OpLoadImm, 1, 7),
		RI(OpLoadImm, 2, 0xBEEF),
		{Op: OpStore, Dest: 0, Src1: 1},
		{Op: OpLoad, Dest: 2, Src1: 0},
	})

	require.False(t, e.Halted())
	assert.Equal(t, uint32(0xBEEF), e.State().Registers[2], "LOAD from bad address leaves dest")
	assert.Equal(t, uint32(0xAAAA), e.State().Memory[0])
	assert.Empty(t, *reports)
}

func TestExecute_Jumps(t *testing.T) {
	captureReports(t)

	t.Run("unconditional", func(t *testing.T) {
		e := newTestEngine(t)
		e.Execute([]Instruction{
			Jmp(OpJump, 2),
			RI(OpLoadImm, 0, 1), // skipped
			RI(OpLoadImm, 1, 2),
		})
		assert.Zero(t, e.State().Registers[0])
		assert.Equal(t, uint32(2), e.State().Registers[1])
	})

	t.Run("jump if zero taken", func(t *testing.T) {
		e := newTestEngine(t)
		e.Execute([]Instruction{
			JmpIf(OpJumpIfZero, 0, 2), // r0 == 0, taken
			RI(OpLoadImm, 1, 1),       // skipped
			RI(OpLoadImm, 2, 2),
		})
		assert.Zero(t, e.State().Registers[1])
		assert.Equal(t, uint32(2), e.State().Registers[2])
	})

	t.Run("jump if zero falls through", func(t *testing.T) {
		e := newTestEngine(t)
		e.Execute([]Instruction{
			RI(OpLoadImm, 0, 1),
			JmpIf(OpJumpIfZero, 0, 3),
			RI(OpLoadImm, 1, 1),
		})
		assert.Equal(t, uint32(1), e.State().Registers[1])
	})

	t.Run("jump if not zero", func(t *testing.T) {
		e := newTestEngine(t)
		e.Execute([]Instruction{
			RI(OpLoadImm, 0, 1),
			JmpIf(OpJumpIfNotZero, 0, 3),
			RI(OpLoadImm, 1, 1), // skipped
		})
		assert.Zero(t, e.State().Registers[1])
	})
}

func TestExecute_CallAndReturn(t *testing.T) {
	captureReports(t)
	e := newTestEngine(t)

	e.Execute([]Instruction{
		Jmp(OpCall, 2),      // 0: call subroutine
		RI(OpLoadImm, 1, 2), // 1: runs after RET
		RI(OpLoadImm, 0, 1), // 2: subroutine body
		Jmp(OpRet, 0),       // 3: return to pc 1
	})

	require.False(t, e.Halted())
	assert.Equal(t, uint32(1), e.State().Registers[0])
	assert.Equal(t, uint32(2), e.State().Registers[1], "execution resumed at pc 1")
	assert.Zero(t, e.State().SP, "matched call/return leaves the stack empty")
}

func TestExecute_CallOnFullStackIsDropped(t *testing.T) {
	reports := captureReports(t)
	e := newTestEngine(t)
	e.State().SP = CallStackDepth

	e.Execute([]Instruction{
		Jmp(OpCall, 0), // would loop forever if taken
		RI(OpLoadImm, 0, 5),
	})

	require.False(t, e.Halted())
	assert.Equal(t, uint32(5), e.State().Registers[0], "dropped call falls through")
	assert.Equal(t, uint32(CallStackDepth), e.State().SP)
	assert.Empty(t, *reports, "stack overflow is fail-quiet")
}

func TestExecute_ReturnOnEmptyStackIsDropped(t *testing.T) {
	reports := captureReports(t)
	e := newTestEngine(t)

	e.Execute([]Instruction{
		Jmp(OpRet, 0),
		RI(OpLoadImm, 0, 5),
	})

	require.False(t, e.Halted())
	assert.Equal(t, uint32(5), e.State().Registers[0])
	assert.Empty(t, *reports, "stack underflow is fail-quiet")
}

func TestExecute_MangleKey(t *testing.T) {
	captureReports(t)
	seed := core.NewSeed(0xCAFE)
	e := New(seed)

	e.Execute([]Instruction{
		RI(OpLoadImm, 0, 11),
		{Op: OpMangleKey, Dest: 1, Src1: 0},
	})

	assert.Equal(t, core.Mix(11, 0xCAFE), e.State().Registers[1])
}

func TestExecute_JunkAndNopLeaveState(t *testing.T) {
	captureReports(t)
	e := newTestEngine(t)
	e.State().Registers[0] = 123

	e.Execute([]Instruction{
		{Op: OpJunk},
		{Op: OpNop},
	})

	require.False(t, e.Halted())
	assert.Equal(t, uint32(123), e.State().Registers[0])
	assert.Zero(t, e.State().Flags)
}

func TestExecute_DebuggerGuard(t *testing.T) {
	captureReports(t)

	responded := false
	e := New(core.NewSeed(1), WithDebuggerGuard(
		func() bool { return true },
		func() { responded = true },
	))

	e.Execute([]Instruction{{Op: OpNop}})

	assert.True(t, responded)
	assert.False(t, e.Halted(), "the guard responds, it does not fault execution")
}

func TestRegisterHandler_Replaces(t *testing.T) {
	captureReports(t)
	e := newTestEngine(t)

	e.RegisterHandler(OpJunk, func(s *State, in Instruction) {
		s.Registers[7] = 0x77
	})
	e.Execute([]Instruction{{Op: OpJunk}})

	assert.Equal(t, uint32(0x77), e.State().Registers[7])
}

func BenchmarkExecute_Arithmetic(b *testing.B) {
	core.SetErrorHandler(func(core.Report) {})
	defer core.SetErrorHandler(nil)

	e := New(core.NewSeed(1))
	program := []Instruction{
		RI(OpLoadImm, 0, 5),
		RI(OpLoadImm, 1, 3),
		RRR(OpAdd, 2, 0, 1),
		RRR(OpMul, 3, 2, 0),
		RRR(OpXor, 4, 3, 1),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Execute(program)
	}
}
