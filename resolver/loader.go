package resolver

// Module describes one image the loader has mapped into the process.
type Module struct {
	// BaseName is the file name component, e.g. "kernel32.dll".
	BaseName string
	// Base is the load address of the mapped image.
	Base uintptr
	// Size is SizeOfImage, bounding every RVA the image can contain.
	Size uint32
}

// ModuleLister enumerates the modules currently loaded in the process. The
// live implementation walks the loader's in-load-order list; tests substitute
// a fixed slice.
type ModuleLister interface {
	Modules() ([]Module, error)
}

// Fallback resolves modules and exports through the documented loader API
// when the stealth path comes up empty.
type Fallback interface {
	LoadModule(name string) (Module, error)
	ProcAddress(m Module, proc string) (uintptr, error)
}

// ImageOpener maps a Module to a parsed Image view.
type ImageOpener func(Module) (*Image, error)
