//go:build windows

package resolver

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/text/encoding/unicode"
)

// Walking more entries than this means the list is corrupt or being raced;
// real processes load far fewer modules.
const maxLoaderEntries = 1024

type listEntry struct {
	Flink *listEntry
	Blink *listEntry
}

type unicodeString struct {
	Length        uint16
	MaximumLength uint16
	Buffer        *uint16
}

// pebLdrData and ldrDataTableEntry cover only the fields the walk touches,
// at their documented offsets for x64.
type pebLdrData struct {
	Length                uint32
	Initialized           uint32
	SsHandle              uintptr
	InLoadOrderModuleList listEntry
}

type ldrDataTableEntry struct {
	InLoadOrderLinks           listEntry
	InMemoryOrderLinks         listEntry
	InInitializationOrderLinks listEntry
	DllBase                    uintptr
	EntryPoint                 uintptr
	SizeOfImage                uint32
	FullDllName                unicodeString
	BaseDllName                unicodeString
}

type peb struct {
	Reserved [3]uintptr
	Ldr      *pebLdrData
}

// pebLister walks the PEB InLoadOrderModuleList of the current process.
type pebLister struct{}

func platformLister() ModuleLister { return pebLister{} }

func (pebLister) Modules() ([]Module, error) {
	var pbi windows.PROCESS_BASIC_INFORMATION
	var retLen uint32
	err := windows.NtQueryInformationProcess(
		windows.CurrentProcess(),
		windows.ProcessBasicInformation,
		unsafe.Pointer(&pbi),
		uint32(unsafe.Sizeof(pbi)),
		&retLen,
	)
	if err != nil {
		return nil, fmt.Errorf("querying process information: %w", err)
	}

	p := (*peb)(unsafe.Pointer(pbi.PebBaseAddress))
	if p == nil || p.Ldr == nil {
		return nil, fmt.Errorf("loader data unavailable")
	}

	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()

	head := &p.Ldr.InLoadOrderModuleList
	var mods []Module
	for cur, n := head.Flink, 0; cur != head && n < maxLoaderEntries; cur, n = cur.Flink, n+1 {
		entry := (*ldrDataTableEntry)(unsafe.Pointer(cur))
		if entry.DllBase == 0 {
			continue
		}
		name := ""
		if entry.BaseDllName.Buffer != nil && entry.BaseDllName.Length > 0 {
			raw := unsafe.Slice((*byte)(unsafe.Pointer(entry.BaseDllName.Buffer)), entry.BaseDllName.Length)
			if decoded, err := dec.Bytes(raw); err == nil {
				name = string(decoded)
			}
		}
		mods = append(mods, Module{
			BaseName: name,
			Base:     entry.DllBase,
			Size:     entry.SizeOfImage,
		})
	}
	return mods, nil
}

// apiFallback resolves through LoadLibrary and GetProcAddress.
type apiFallback struct{}

func platformFallback() Fallback { return apiFallback{} }

func (apiFallback) LoadModule(name string) (Module, error) {
	h, err := windows.LoadLibrary(name)
	if err != nil {
		return Module{}, err
	}
	return Module{BaseName: name, Base: uintptr(h)}, nil
}

func (apiFallback) ProcAddress(m Module, proc string) (uintptr, error) {
	return windows.GetProcAddress(windows.Handle(m.Base), proc)
}

// platformImageOpener views the module's live mapping. A module reached
// through the fallback may carry no size; use the headers' own SizeOfImage
// in that case by first exposing just the header page.
func platformImageOpener() ImageOpener {
	return func(m Module) (*Image, error) {
		size := m.Size
		if size == 0 {
			size = 0x1000
		}
		return Open(unsafe.Slice((*byte)(unsafe.Pointer(m.Base)), size))
	}
}
