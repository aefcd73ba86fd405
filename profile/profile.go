// Package profile carries the engine's protection configuration: which
// transformations run and how aggressively. Profiles load from YAML for
// operator editing and from sealed containers for distribution.
package profile

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/neuralforgeone/Vivisection-Engine/core"
)

// Profile is the full set of protection knobs. The zero value is not
// meaningful; start from a preset or a loaded file.
type Profile struct {
	// Control flow settings.
	ControlFlowFlattening bool `yaml:"control_flow_flattening"`
	BogusFlowComplexity   int  `yaml:"bogus_flow_complexity"`
	OpaquePredicateCount  int  `yaml:"opaque_predicate_count"`

	// String encryption settings.
	StringEncryption         bool `yaml:"string_encryption"`
	DistributeAcrossSections bool `yaml:"distribute_across_sections"`
	EncryptionRounds         int  `yaml:"encryption_rounds"`

	// VM settings.
	VMExecution         bool `yaml:"vm_execution"`
	VMHandlerCount      int  `yaml:"vm_handler_count"`
	MutateVMHandlers    bool `yaml:"mutate_vm_handlers"`
	VMMutationFrequency int  `yaml:"vm_mutation_frequency"`

	// Anti-debug settings.
	AntiDebug                bool `yaml:"anti_debug"`
	TimingChecks             bool `yaml:"timing_checks"`
	ExceptionChecks          bool `yaml:"exception_checks"`
	HardwareBreakpointChecks bool `yaml:"hardware_breakpoint_checks"`

	// Junk code settings.
	JunkCode        bool `yaml:"junk_code"`
	JunkCodeDensity int  `yaml:"junk_code_density"`
	RealisticJunk   bool `yaml:"realistic_junk"`

	// Mixed boolean-arithmetic settings.
	MBA           bool `yaml:"mba"`
	MBAComplexity int  `yaml:"mba_complexity"`
	MBAChainDepth int  `yaml:"mba_chain_depth"`

	PerformanceMonitoring bool `yaml:"performance_monitoring"`
}

// Minimal keeps only the cheap protections on.
func Minimal() Profile {
	return Profile{
		ControlFlowFlattening:    true,
		BogusFlowComplexity:      2,
		OpaquePredicateCount:     1,
		StringEncryption:         true,
		DistributeAcrossSections: false,
		EncryptionRounds:         1,
		VMExecution:              false,
		VMHandlerCount:           16,
		MutateVMHandlers:         false,
		VMMutationFrequency:      1000,
		AntiDebug:                true,
		TimingChecks:             true,
		ExceptionChecks:          false,
		HardwareBreakpointChecks: false,
		JunkCode:                 false,
		JunkCodeDensity:          1,
		RealisticJunk:            false,
		MBA:                      false,
		MBAComplexity:            2,
		MBAChainDepth:            1,
	}
}

// Balanced is the default trade-off between protection and overhead.
func Balanced() Profile {
	return Profile{
		ControlFlowFlattening:    true,
		BogusFlowComplexity:      5,
		OpaquePredicateCount:     3,
		StringEncryption:         true,
		DistributeAcrossSections: true,
		EncryptionRounds:         2,
		VMExecution:              true,
		VMHandlerCount:           32,
		MutateVMHandlers:         true,
		VMMutationFrequency:      100,
		AntiDebug:                true,
		TimingChecks:             true,
		ExceptionChecks:          true,
		HardwareBreakpointChecks: true,
		JunkCode:                 true,
		JunkCodeDensity:          3,
		RealisticJunk:            true,
		MBA:                      true,
		MBAComplexity:            5,
		MBAChainDepth:            2,
	}
}

// Maximum turns everything up. Expect measurable runtime overhead.
func Maximum() Profile {
	return Profile{
		ControlFlowFlattening:    true,
		BogusFlowComplexity:      10,
		OpaquePredicateCount:     8,
		StringEncryption:         true,
		DistributeAcrossSections: true,
		EncryptionRounds:         3,
		VMExecution:              true,
		VMHandlerCount:           64,
		MutateVMHandlers:         true,
		VMMutationFrequency:      50,
		AntiDebug:                true,
		TimingChecks:             true,
		ExceptionChecks:          true,
		HardwareBreakpointChecks: true,
		JunkCode:                 true,
		JunkCodeDensity:          7,
		RealisticJunk:            true,
		MBA:                      true,
		MBAComplexity:            10,
		MBAChainDepth:            4,
	}
}

// Validate checks every knob against its documented range. Out-of-range
// values are rejected, never clamped; a profile that fails validation is
// reported as a configuration error and must not be applied.
func (p Profile) Validate() error {
	checks := []struct {
		name     string
		value    int
		min, max int
	}{
		{"bogus_flow_complexity", p.BogusFlowComplexity, 0, 20},
		{"opaque_predicate_count", p.OpaquePredicateCount, 0, 50},
		{"encryption_rounds", p.EncryptionRounds, 1, 10},
		{"vm_handler_count", p.VMHandlerCount, 8, 256},
		{"vm_mutation_frequency", p.VMMutationFrequency, 1, 1<<31 - 1},
		{"junk_code_density", p.JunkCodeDensity, 0, 10},
		{"mba_complexity", p.MBAComplexity, 0, 20},
		{"mba_chain_depth", p.MBAChainDepth, 1, 10},
	}
	for _, c := range checks {
		if c.value < c.min || c.value > c.max {
			core.ReportError(core.CodeInvalidProfile,
				fmt.Sprintf("profile: %s=%d outside [%d, %d]", c.name, c.value, c.min, c.max))
			return fmt.Errorf("profile: %s=%d outside [%d, %d]", c.name, c.value, c.min, c.max)
		}
	}
	return nil
}

// Load reads and validates a YAML profile.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Save validates the profile and writes it as YAML, readable only by the
// owner.
func (p Profile) Save(path string) error {
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// Override adjusts a subset of knobs for one function. Nil fields inherit
// from the global profile.
type Override struct {
	ControlFlowFlattening *bool `yaml:"control_flow_flattening,omitempty"`
	StringEncryption      *bool `yaml:"string_encryption,omitempty"`
	VMExecution           *bool `yaml:"vm_execution,omitempty"`
	AntiDebug             *bool `yaml:"anti_debug,omitempty"`
	JunkCode              *bool `yaml:"junk_code,omitempty"`
	MBA                   *bool `yaml:"mba,omitempty"`
	// Complexity steers both bogus-flow and MBA complexity at once.
	Complexity *int `yaml:"complexity,omitempty"`
}

// Apply returns the global profile with the override's set fields replaced.
func (o Override) Apply(global Profile) Profile {
	p := global
	if o.ControlFlowFlattening != nil {
		p.ControlFlowFlattening = *o.ControlFlowFlattening
	}
	if o.StringEncryption != nil {
		p.StringEncryption = *o.StringEncryption
	}
	if o.VMExecution != nil {
		p.VMExecution = *o.VMExecution
	}
	if o.AntiDebug != nil {
		p.AntiDebug = *o.AntiDebug
	}
	if o.JunkCode != nil {
		p.JunkCode = *o.JunkCode
	}
	if o.MBA != nil {
		p.MBA = *o.MBA
	}
	if o.Complexity != nil {
		p.BogusFlowComplexity = *o.Complexity
		p.MBAComplexity = *o.Complexity
	}
	return p
}

// Registry resolves per-function overrides against a global profile.
type Registry struct {
	mu        sync.RWMutex
	global    Profile
	overrides map[string]Override
}

// NewRegistry creates a registry around the given global profile.
func NewRegistry(global Profile) *Registry {
	return &Registry{
		global:    global,
		overrides: make(map[string]Override),
	}
}

// SetGlobal replaces the global profile after validating it.
func (r *Registry) SetGlobal(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.global = p
	r.mu.Unlock()
	return nil
}

// Global returns the current global profile.
func (r *Registry) Global() Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.global
}

// Register installs an override for the named function.
func (r *Registry) Register(function string, o Override) {
	r.mu.Lock()
	r.overrides[function] = o
	r.mu.Unlock()
}

// Effective returns the profile that applies to the named function: the
// global profile with its override merged in, or the global profile alone.
func (r *Registry) Effective(function string) Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if o, ok := r.overrides[function]; ok {
		return o.Apply(r.global)
	}
	return r.global
}

// Clear drops every registered override.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.overrides = make(map[string]Override)
	r.mu.Unlock()
}
