// Command vivisect exercises the protection engine from the command line:
// run bytecode through the mutating VM, encrypt string literals, list the
// exports of a loaded module, and manage protection profiles.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	vivisect "github.com/neuralforgeone/Vivisection-Engine"
	"github.com/neuralforgeone/Vivisection-Engine/core"
	"github.com/neuralforgeone/Vivisection-Engine/profile"
	"github.com/neuralforgeone/Vivisection-Engine/resolver"
	"github.com/neuralforgeone/Vivisection-Engine/strcrypt"
	"github.com/neuralforgeone/Vivisection-Engine/vm"
)

func main() {
	var (
		mode        = flag.String("mode", "demo", "Operation mode: demo, encrypt, modules, or profile")
		profilePath = flag.String("profile", "", "Protection profile file (YAML)")
		preset      = flag.String("preset", "balanced", "Profile preset: minimal, balanced, or maximum")
		literal     = flag.String("literal", "", "String literal for encrypt mode")
		module      = flag.String("module", "kernel32.dll", "Module name for modules mode")
		output      = flag.String("output", "", "Output file path for profile mode")
		seedValue   = flag.Uint("seed", 0, "Fixed engine seed (0 uses the time-derived default)")
		debug       = flag.Bool("debug", false, "Enable debug logging")
		showVersion = flag.Bool("version", false, "Show version information")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("vivisect v%s\n", vivisect.Version)
		os.Exit(0)
	}

	logger := core.NewLogger(*debug)
	defer logger.Close()

	p, err := selectProfile(*profilePath, *preset)
	if err != nil {
		logger.Error("Profile selection failed: %v", err)
		os.Exit(1)
	}

	var opts []vivisect.EngineOption
	if *seedValue != 0 {
		opts = append(opts, vivisect.WithSeed(core.NewSeed(uint32(*seedValue))))
	}

	engine, err := vivisect.New(p, opts...)
	if err != nil {
		logger.Error("Engine initialization failed: %v", err)
		os.Exit(1)
	}

	switch *mode {
	case "demo":
		err = runDemo(logger, engine)
	case "encrypt":
		err = runEncrypt(logger, engine, *literal)
	case "modules":
		err = runModules(logger, engine, *module)
	case "profile":
		err = runProfile(logger, p, *output)
	default:
		logger.Error("Unknown mode: %s", *mode)
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func selectProfile(path, preset string) (profile.Profile, error) {
	if path != "" {
		return profile.Load(path)
	}
	switch preset {
	case "minimal":
		return profile.Minimal(), nil
	case "balanced":
		return profile.Balanced(), nil
	case "maximum":
		return profile.Maximum(), nil
	}
	return profile.Profile{}, fmt.Errorf("unknown preset %q", preset)
}

// demoProgram sums 1..10 in a loop, then stores the result to scratch
// memory through a subroutine, touching arithmetic, branches, memory and
// the call stack.
func demoProgram() []vm.Instruction {
	return []vm.Instruction{
		vm.RI(vm.OpLoadImm, 0, 0),  // 0: accumulator
		vm.RI(vm.OpLoadImm, 1, 10), // 1: counter
		vm.RI(vm.OpLoadImm, 2, 1),  // 2: decrement

		vm.JmpIf(vm.OpJumpIfZero, 1, 7), // 3
		vm.RRR(vm.OpAdd, 0, 0, 1),       // 4: r0 += r1
		vm.RRR(vm.OpSub, 1, 1, 2),       // 5: r1 -= 1
		vm.Jmp(vm.OpJump, 3),            // 6

		vm.Jmp(vm.OpCall, 9),  // 7: store the result
		vm.Jmp(vm.OpJump, 12), // 8: done

		vm.RI(vm.OpLoadImm, 3, 0),        // 9: scratch address
		vm.RRR(vm.OpStore, 3, 0, 0),      // 10: memory[r3] = r0
		vm.Jmp(vm.OpRet, 0),              // 11
	}
}

func runDemo(logger *core.Logger, engine *vivisect.Engine) error {
	logger.Info("Executing demo bytecode on the mutating VM")

	if err := engine.Run(demoProgram()); err != nil {
		return err
	}
	st := engine.VM().State()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleColoredBright)
	t.AppendHeader(table.Row{"Register", "Value"})
	for i, v := range st.Registers {
		t.AppendRow(table.Row{fmt.Sprintf("r%d", i), v})
	}
	t.AppendRow(table.Row{"flags", st.Flags})
	t.Render()

	logger.Info("Executed %d instructions, %d dispatch mutations", engine.VM().Executed(), engine.VM().Mutations())
	return nil
}

func runEncrypt(logger *core.Logger, engine *vivisect.Engine, literal string) error {
	if literal == "" {
		return fmt.Errorf("encrypt mode requires -literal")
	}

	for name, c := range map[string]strcrypt.BlockCipher{
		"xtea":    strcrypt.XTEA{},
		"feistel": strcrypt.Feistel{},
	} {
		s := engine.ProtectString(literal, strcrypt.WithCipher(c))
		logger.Info("%s: %d plaintext bytes -> %d ciphertext words", name, s.Len(), (s.Len()+7)/8*2)
		if got := s.Decrypt(); got != literal {
			return fmt.Errorf("round trip mismatch under %s", name)
		}
		s.Wipe()
	}
	logger.Info("Round trip verified under both ciphers")
	return nil
}

func runModules(logger *core.Logger, engine *vivisect.Engine, module string) error {
	logger.Info("Resolving exports of %s (module hash %#x)", module, resolver.HashLower(module))

	exports, err := engine.Resolver().Exports(module)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleColoredBright)
	t.AppendHeader(table.Row{"Ordinal", "Name", "RVA", "Forwarded"})
	for _, e := range exports {
		t.AppendRow(table.Row{e.Ordinal, e.Name, fmt.Sprintf("%#x", e.RVA), e.Forwarded})
	}
	t.Render()
	return nil
}

func runProfile(logger *core.Logger, p profile.Profile, output string) error {
	if output != "" {
		if err := p.Save(output); err != nil {
			return err
		}
		logger.Info("Profile written to %s", output)
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleColoredBright)
	t.AppendHeader(table.Row{"Setting", "Value"})
	t.AppendRows([]table.Row{
		{"control_flow_flattening", p.ControlFlowFlattening},
		{"bogus_flow_complexity", p.BogusFlowComplexity},
		{"opaque_predicate_count", p.OpaquePredicateCount},
		{"string_encryption", p.StringEncryption},
		{"encryption_rounds", p.EncryptionRounds},
		{"vm_execution", p.VMExecution},
		{"vm_handler_count", p.VMHandlerCount},
		{"mutate_vm_handlers", p.MutateVMHandlers},
		{"vm_mutation_frequency", p.VMMutationFrequency},
		{"anti_debug", p.AntiDebug},
		{"junk_code", p.JunkCode},
		{"junk_code_density", p.JunkCodeDensity},
		{"mba", p.MBA},
		{"mba_complexity", p.MBAComplexity},
	})
	t.Render()
	return nil
}
