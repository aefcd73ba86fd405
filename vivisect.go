// Package vivisect ties the protection engine together: a profile decides
// which defenses are active, and the Engine wires the virtual machine,
// resolver, string encryption and debugger detection accordingly.
package vivisect

import (
	"fmt"
	"sync"

	"github.com/neuralforgeone/Vivisection-Engine/core"
	"github.com/neuralforgeone/Vivisection-Engine/evasion"
	"github.com/neuralforgeone/Vivisection-Engine/profile"
	"github.com/neuralforgeone/Vivisection-Engine/resolver"
	"github.com/neuralforgeone/Vivisection-Engine/strcrypt"
	"github.com/neuralforgeone/Vivisection-Engine/vm"
)

// Version of the engine.
const Version = "1.0.0"

var initOnce sync.Once

// Engine is the top-level facade over the protection components, configured
// by one profile.
type Engine struct {
	profile  profile.Profile
	seed     *core.Seed
	vm       *vm.Engine
	resolver *resolver.Resolver
}

// EngineOption adjusts construction beyond what the profile expresses.
type EngineOption func(*engineConfig)

type engineConfig struct {
	seed     *core.Seed
	respond  evasion.Response
	resolver *resolver.Resolver
}

// WithSeed pins the engine to an explicit seed instead of the process-wide
// default, making key derivation and dispatch mutation reproducible.
func WithSeed(s *core.Seed) EngineOption {
	return func(c *engineConfig) { c.seed = s }
}

// WithDebuggerResponse selects what happens when a debugger is detected.
// The default reports through the error hook and continues.
func WithDebuggerResponse(r evasion.Response) EngineOption {
	return func(c *engineConfig) { c.respond = r }
}

// WithResolver substitutes a preconfigured resolver.
func WithResolver(r *resolver.Resolver) EngineOption {
	return func(c *engineConfig) { c.resolver = r }
}

// New validates the profile and assembles an engine from it.
func New(p profile.Profile, opts ...EngineOption) (*Engine, error) {
	initOnce.Do(core.RegisterDefaultRecoveries)

	if err := p.Validate(); err != nil {
		return nil, err
	}

	cfg := engineConfig{
		seed:    core.DefaultSeed,
		respond: evasion.Report,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	vmOpts := []vm.Option{
		vm.WithMutation(p.MutateVMHandlers),
		vm.WithMutationInterval(uint64(p.VMMutationFrequency)),
	}
	if p.AntiDebug {
		vmOpts = append(vmOpts, vm.WithDebuggerGuard(evasion.DebuggerPresent, cfg.respond))
	}

	r := cfg.resolver
	if r == nil {
		r = resolver.New()
	}

	return &Engine{
		profile:  p,
		seed:     cfg.seed,
		vm:       vm.New(cfg.seed, vmOpts...),
		resolver: r,
	}, nil
}

// Profile returns the profile the engine was built from.
func (e *Engine) Profile() profile.Profile { return e.profile }

// Seed returns the engine's seed.
func (e *Engine) Seed() *core.Seed { return e.seed }

// VM returns the engine's virtual machine.
func (e *Engine) VM() *vm.Engine { return e.vm }

// Resolver returns the engine's API resolver.
func (e *Engine) Resolver() *resolver.Resolver { return e.resolver }

// Run executes bytecode on the engine's VM. It fails when the profile has
// VM execution disabled, or when execution faults.
func (e *Engine) Run(program []vm.Instruction) error {
	if !e.profile.VMExecution {
		core.ReportError(core.CodeFeatureUnavailable, "vivisect: vm execution disabled by profile")
		return fmt.Errorf("vivisect: vm execution disabled by profile")
	}
	e.vm.Execute(program)
	if e.vm.Halted() {
		return fmt.Errorf("vivisect: vm fault %d (%s)", uint32(e.vm.Fault()), e.vm.Fault().Category())
	}
	return nil
}

// ProtectString encrypts a literal under the engine's seed. With string
// encryption disabled by profile the literal is still wrapped, just with
// the default options, so call sites stay uniform.
func (e *Engine) ProtectString(s string, opts ...strcrypt.Option) *strcrypt.EncryptedString {
	return strcrypt.New(s, append([]strcrypt.Option{strcrypt.WithSeed(e.seed)}, opts...)...)
}
