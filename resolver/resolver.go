package resolver

import (
	"fmt"

	"github.com/neuralforgeone/Vivisection-Engine/core"
)

// Resolver finds loaded modules and their exports. The primary path walks
// the loader list and export directories by hash; the hash-only operations
// never touch the documented API, so a precomputed constant either resolves
// silently or fails silently. The name-based operations additionally fall
// back to the loader API, because a caller holding a plain name has already
// given up the stealth benefit.
type Resolver struct {
	lister   ModuleLister
	fallback Fallback
	open     ImageOpener
	log      *core.Logger
}

// ResolverOption configures a Resolver at construction.
type ResolverOption func(*Resolver)

// WithLister replaces the loader-list walker.
func WithLister(l ModuleLister) ResolverOption {
	return func(r *Resolver) { r.lister = l }
}

// WithFallback replaces the documented-API fallback. A nil fallback disables
// it entirely.
func WithFallback(f Fallback) ResolverOption {
	return func(r *Resolver) { r.fallback = f }
}

// WithImageOpener replaces how module mappings are turned into Image views.
func WithImageOpener(open ImageOpener) ResolverOption {
	return func(r *Resolver) { r.open = open }
}

// WithLogger attaches a logger for resolution tracing.
func WithLogger(log *core.Logger) ResolverOption {
	return func(r *Resolver) { r.log = log }
}

// New constructs a Resolver wired to the running process: the platform
// loader walk, the platform API fallback, and direct-memory image views.
func New(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		lister:   platformLister(),
		fallback: platformFallback(),
		open:     platformImageOpener(),
		log:      core.NewLogger(false),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindModule locates a loaded module by name, walking the loader list first
// and loading through the documented API only if the walk misses.
func (r *Resolver) FindModule(name string) (Module, error) {
	m, err := r.FindModuleByHash(HashLower(name))
	if err == nil {
		return m, nil
	}

	if r.fallback == nil {
		return Module{}, err
	}
	r.log.Debug("module %q not in loader list, falling back to loader API", name)
	m, lerr := r.fallback.LoadModule(name)
	if lerr != nil {
		core.ReportError(core.CodeModuleLoadFailed, fmt.Sprintf("resolver: loading %q failed", name))
		return Module{}, fmt.Errorf("resolver: module %q: %w", name, lerr)
	}
	return m, nil
}

// FindModuleByHash locates a loaded module whose case-folded name hashes to
// h. There is no fallback: the documented API needs a name, and a caller
// using hashes is deliberately not carrying one.
func (r *Resolver) FindModuleByHash(h uint32) (Module, error) {
	mods, err := r.lister.Modules()
	if err != nil {
		core.ReportError(core.CodeLoaderAccessFailed, "resolver: loader list walk failed")
		return Module{}, fmt.Errorf("resolver: enumerating modules: %w", err)
	}
	for _, m := range mods {
		if HashLower(m.BaseName) == h {
			return m, nil
		}
	}
	core.ReportError(core.CodeModuleNotFound, fmt.Sprintf("resolver: no loaded module matches hash %#x", h))
	return Module{}, fmt.Errorf("resolver: no loaded module matches hash %#x", h)
}

// FindExport resolves a named export of a named module to an absolute
// address. Both the module walk and the export scan fall back to the
// documented API when the stealth path misses.
func (r *Resolver) FindExport(module, proc string) (uintptr, error) {
	m, err := r.FindModule(module)
	if err != nil {
		return 0, err
	}

	addr, err := r.exportFromImage(m, Hash(proc))
	if err == nil {
		return addr, nil
	}

	if r.fallback == nil {
		core.ReportError(core.CodeExportNotFound, fmt.Sprintf("resolver: %s!%s not found", module, proc))
		return 0, fmt.Errorf("resolver: %s!%s: %w", module, proc, err)
	}
	r.log.Debug("export %s!%s not in export table, falling back to loader API", module, proc)
	addr, perr := r.fallback.ProcAddress(m, proc)
	if perr != nil {
		core.ReportError(core.CodeAPIResolutionFailed, fmt.Sprintf("resolver: %s!%s unresolvable", module, proc))
		return 0, fmt.Errorf("resolver: %s!%s: %w", module, proc, perr)
	}
	return addr, nil
}

// FindExportByHash resolves an export by module-name hash and export-name
// hash, entirely on the stealth path. Forwarded exports do not resolve.
func (r *Resolver) FindExportByHash(moduleHash, procHash uint32) (uintptr, error) {
	m, err := r.FindModuleByHash(moduleHash)
	if err != nil {
		return 0, err
	}
	addr, err := r.exportFromImage(m, procHash)
	if err != nil {
		core.ReportError(core.CodeExportNotFound,
			fmt.Sprintf("resolver: export hash %#x not in module hash %#x", procHash, moduleHash))
		return 0, err
	}
	return addr, nil
}

// Exports lists the named exports of a loaded module, for diagnostics.
func (r *Resolver) Exports(module string) ([]Export, error) {
	m, err := r.FindModule(module)
	if err != nil {
		return nil, err
	}
	im, err := r.open(m)
	if err != nil {
		return nil, fmt.Errorf("resolver: mapping %q: %w", m.BaseName, err)
	}
	return im.Exports()
}

func (r *Resolver) exportFromImage(m Module, procHash uint32) (uintptr, error) {
	im, err := r.open(m)
	if err != nil {
		return 0, fmt.Errorf("resolver: mapping %q: %w", m.BaseName, err)
	}
	rva, err := im.ExportByHash(procHash)
	if err != nil {
		return 0, err
	}
	return m.Base + uintptr(rva), nil
}
