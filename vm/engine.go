package vm

import (
	"github.com/neuralforgeone/Vivisection-Engine/core"
)

const (
	// NumRegisters is the size of the general register file.
	NumRegisters = 8
	// MemoryWords is the size of the scratch memory array.
	MemoryWords = 256
	// CallStackDepth bounds CALL nesting.
	CallStackDepth = 32
	// DispatchSlots is the fixed size of the dispatch table. Slots beyond
	// the defined opcodes stay empty and are skipped by mutation.
	DispatchSlots = 32

	defaultMutationInterval = 100
	mutationSwaps           = 5
)

// State is the machine state owned exclusively by one Engine. It is exposed
// so callers can seed inputs before Execute and inspect results after; it
// must not be shared across goroutines without external synchronization.
type State struct {
	Registers [NumRegisters]uint32
	PC        uint32
	Flags     uint32
	Memory    [MemoryWords]uint32
	CallStack [CallStackDepth]uint32
	SP        uint32
	Seed      *core.Seed
}

func (s *State) validRegister(r uint8) bool { return r < NumRegisters }
func (s *State) validMemory(addr uint32) bool { return addr < MemoryWords }

// Handler executes one instruction against the machine state.
type Handler func(*State, Instruction)

// Engine interprets flat instruction arrays. The dispatch table has a fixed
// physical layout of 32 slots whose contents are periodically shuffled; the
// slot map is updated in lockstep so an opcode always reaches the behavior
// semantically associated with it, while the memory layout an analyst sees
// keeps changing.
type Engine struct {
	state State

	table [DispatchSlots]Handler // physical slots
	slot  [DispatchSlots]uint8   // opcode ordinal -> physical slot
	opAt  [DispatchSlots]uint8   // physical slot -> opcode ordinal, emptySlot if vacant

	executed    uint64 // instructions executed, cumulative across Execute calls
	mutations   uint64
	mutate      bool
	mutateEvery uint64

	halted bool
	fault  core.Code

	debuggerCheck func() bool
	debuggerAct   func()
}

const emptySlot = 0xFF

// Option configures an Engine at construction.
type Option func(*Engine)

// WithMutation enables or disables dispatch-table mutation.
func WithMutation(enabled bool) Option {
	return func(e *Engine) { e.mutate = enabled }
}

// WithMutationInterval sets how many executed instructions separate
// mutation passes. Values below 1 are rejected at the call site by
// profile validation; a zero here falls back to the default.
func WithMutationInterval(n uint64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.mutateEvery = n
		}
	}
}

// WithDebuggerGuard installs the anti-debug collaborator: check runs at the
// start of every Execute, and act is invoked when it reports a debugger.
// The engine performs no detection of its own.
func WithDebuggerGuard(check func() bool, act func()) Option {
	return func(e *Engine) {
		e.debuggerCheck = check
		e.debuggerAct = act
	}
}

// New constructs an Engine around the given seed. A nil seed selects
// core.DefaultSeed, preserving the original shared-seed behavior.
func New(seed *core.Seed, opts ...Option) *Engine {
	if seed == nil {
		seed = core.DefaultSeed
	}
	e := &Engine{
		mutate:      true,
		mutateEvery: defaultMutationInterval,
	}
	e.state.Seed = seed
	for i := range e.opAt {
		e.opAt[i] = emptySlot
	}
	for op, h := range canonicalHandlers() {
		e.table[op] = h
		e.slot[op] = uint8(op)
		e.opAt[op] = uint8(op)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the machine state for seeding inputs and inspecting
// results. Faults leave the state exactly as it was when the fault hit.
func (e *Engine) State() *State { return &e.state }

// Halted reports whether the last Execute call stopped on a fault.
func (e *Engine) Halted() bool { return e.halted }

// Fault returns the code of the fault that halted the last Execute call,
// or core.Success.
func (e *Engine) Fault() core.Code { return e.fault }

// Executed returns the cumulative instruction count across Execute calls.
func (e *Engine) Executed() uint64 { return e.executed }

// Mutations returns how many dispatch-mutation passes have run.
func (e *Engine) Mutations() uint64 { return e.mutations }

// RegisterHandler replaces the behavior bound to an opcode. The replacement
// lands in whatever physical slot the opcode currently maps to.
func (e *Engine) RegisterHandler(op Opcode, h Handler) {
	if int(op) >= DispatchSlots {
		return
	}
	e.table[e.slot[op]] = h
}

// Execute interprets the program from pc 0 until it runs off the end or
// faults. Faults (invalid register, invalid opcode) are reported through the
// shared error facility and halt execution with state left as-of-fault;
// nothing propagates as a panic across the interpreter boundary. The caller
// inspects Halted, Fault and State afterward.
func (e *Engine) Execute(program []Instruction) {
	if e.debuggerCheck != nil && e.debuggerCheck() {
		core.ReportError(core.CodeDebuggerDetected, "vm: debugger present at bootstrap")
		if e.debuggerAct != nil {
			e.debuggerAct()
		}
	}

	e.halted = false
	e.fault = core.Success

	if len(program) == 0 {
		e.halt(core.CodeVMExecution, "vm: empty bytecode")
		return
	}

	st := &e.state
	st.PC = 0
	for st.PC < uint32(len(program)) {
		inst := program[st.PC]

		if !st.validRegister(inst.Dest) || !st.validRegister(inst.Src1) || !st.validRegister(inst.Src2) {
			e.halt(core.CodeVMInvalidRegister, "vm: invalid register index")
			return
		}

		if int(inst.Op) >= DispatchSlots {
			e.halt(core.CodeVMInvalidOpcode, "vm: invalid or unregistered opcode")
			return
		}
		handler := e.table[e.slot[inst.Op]]
		if handler == nil {
			e.halt(core.CodeVMInvalidOpcode, "vm: invalid or unregistered opcode")
			return
		}

		handler(st, inst)

		switch inst.Op {
		case OpJump, OpJumpIfZero, OpJumpIfNotZero, OpCall, OpRet:
			// Control transfers set pc themselves.
		default:
			st.PC++
		}

		e.executed++
		if e.mutate && e.executed%e.mutateEvery == 0 {
			e.mutateDispatch()
		}
	}
}

func (e *Engine) halt(code core.Code, msg string) {
	e.halted = true
	e.fault = code
	core.ReportError(code, msg)
}

// mutateDispatch performs up to mutationSwaps pairwise swaps of physical
// dispatch slots, driven by a linear-congruential sequence seeded from the
// engine's seed, then advances the seed. The slot map is corrected after
// each swap so opcode identity survives the shuffle.
func (e *Engine) mutateDispatch() {
	seed := e.state.Seed.Value()
	for i := 0; i < mutationSwaps; i++ {
		seed = seed*1103515245 + 12345
		a := (seed >> 16) % DispatchSlots
		seed = seed*1103515245 + 12345
		b := (seed >> 16) % DispatchSlots

		if e.table[a] == nil || e.table[b] == nil {
			continue
		}
		e.table[a], e.table[b] = e.table[b], e.table[a]
		oa, ob := e.opAt[a], e.opAt[b]
		e.opAt[a], e.opAt[b] = ob, oa
		e.slot[oa], e.slot[ob] = uint8(b), uint8(a)
	}
	e.state.Seed.Advance()
	e.mutations++
}
