package resolver

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	dosMagic uint16 = 0x5A4D     // "MZ"
	ntMagic  uint32 = 0x00004550 // "PE\0\0"

	magicPE32     uint16 = 0x10b
	magicPE32Plus uint16 = 0x20b

	// Offset of the export entry inside the data directory, relative to the
	// start of the optional header: 96 for PE32, 112 for PE32+.
	exportDirOffset32 = 96
	exportDirOffset64 = 112
)

var (
	// ErrNotPE means the buffer fails the MZ or PE signature checks.
	ErrNotPE = errors.New("resolver: not a PE image")
	// ErrNoExports means the image carries no export directory.
	ErrNoExports = errors.New("resolver: image has no export directory")
	// ErrTruncated means a structure points past the end of the mapping.
	ErrTruncated = errors.New("resolver: image truncated")
	// ErrExportNotFound means no name in the export table matched.
	ErrExportNotFound = errors.New("resolver: export not found")
)

// Image is a bounds-checked view over a loaded PE module. It indexes the
// buffer by RVA, which is valid for memory-mapped images where sections sit
// at their virtual addresses; it never dereferences raw pointers, so tests
// can feed it synthetic byte buffers.
type Image struct {
	data []byte

	exportRVA  uint32
	exportSize uint32
}

// Export is one entry of an image's export name table.
type Export struct {
	Name      string
	Ordinal   uint16
	RVA       uint32
	Forwarded bool
}

// Open validates the PE headers of a mapped image and locates its export
// directory. An image without exports opens successfully; lookups against it
// return ErrNoExports.
func Open(data []byte) (*Image, error) {
	im := &Image{data: data}

	sig, ok := im.u16(0)
	if !ok || sig != dosMagic {
		return nil, ErrNotPE
	}
	peOff, ok := im.u32(0x3C)
	if !ok {
		return nil, ErrTruncated
	}
	nt, ok := im.u32(peOff)
	if !ok {
		return nil, ErrTruncated
	}
	if nt != ntMagic {
		return nil, ErrNotPE
	}

	optStart := peOff + 24
	magic, ok := im.u16(optStart)
	if !ok {
		return nil, ErrTruncated
	}

	var ddOff uint32
	switch magic {
	case magicPE32:
		ddOff = exportDirOffset32
	case magicPE32Plus:
		ddOff = exportDirOffset64
	default:
		return nil, fmt.Errorf("resolver: unknown optional header magic %#x", magic)
	}

	rva, ok1 := im.u32(optStart + ddOff)
	size, ok2 := im.u32(optStart + ddOff + 4)
	if !ok1 || !ok2 {
		return nil, ErrTruncated
	}
	im.exportRVA = rva
	im.exportSize = size
	return im, nil
}

// exportHeader holds the fields of IMAGE_EXPORT_DIRECTORY the resolver uses.
type exportHeader struct {
	base      uint32
	numFuncs  uint32
	numNames  uint32
	addrFuncs uint32
	addrNames uint32
	addrOrds  uint32
}

func (im *Image) exportDir() (exportHeader, error) {
	var h exportHeader
	if im.exportRVA == 0 {
		return h, ErrNoExports
	}
	e := im.exportRVA
	var ok [6]bool
	h.base, ok[0] = im.u32(e + 16)
	h.numFuncs, ok[1] = im.u32(e + 20)
	h.numNames, ok[2] = im.u32(e + 24)
	h.addrFuncs, ok[3] = im.u32(e + 28)
	h.addrNames, ok[4] = im.u32(e + 32)
	h.addrOrds, ok[5] = im.u32(e + 36)
	for _, o := range ok {
		if !o {
			return h, ErrTruncated
		}
	}
	return h, nil
}

// forwarded reports whether a function RVA points back inside the export
// directory, which marks the entry as a forwarder string rather than code.
func (im *Image) forwarded(rva uint32) bool {
	return rva >= im.exportRVA && rva < im.exportRVA+im.exportSize
}

// ExportByHash walks the export name table and returns the RVA of the entry
// whose name hashes to h. Forwarded exports are not resolvable to code in
// this image and are treated as not found.
func (im *Image) ExportByHash(h uint32) (uint32, error) {
	dir, err := im.exportDir()
	if err != nil {
		return 0, err
	}
	for i := uint32(0); i < dir.numNames; i++ {
		nameRVA, ok := im.u32(dir.addrNames + 4*i)
		if !ok {
			return 0, ErrTruncated
		}
		name, ok := im.cstring(nameRVA)
		if !ok {
			return 0, ErrTruncated
		}
		if Hash(name) != h {
			continue
		}
		ord, ok := im.u16(dir.addrOrds + 2*i)
		if !ok {
			return 0, ErrTruncated
		}
		if uint32(ord) >= dir.numFuncs {
			return 0, ErrTruncated
		}
		rva, ok := im.u32(dir.addrFuncs + 4*uint32(ord))
		if !ok {
			return 0, ErrTruncated
		}
		if im.forwarded(rva) {
			return 0, ErrExportNotFound
		}
		return rva, nil
	}
	return 0, ErrExportNotFound
}

// Exports lists every named export, including forwarders, for inspection.
func (im *Image) Exports() ([]Export, error) {
	dir, err := im.exportDir()
	if err != nil {
		return nil, err
	}
	out := make([]Export, 0, dir.numNames)
	for i := uint32(0); i < dir.numNames; i++ {
		nameRVA, ok := im.u32(dir.addrNames + 4*i)
		if !ok {
			return nil, ErrTruncated
		}
		name, ok := im.cstring(nameRVA)
		if !ok {
			return nil, ErrTruncated
		}
		ord, ok := im.u16(dir.addrOrds + 2*i)
		if !ok {
			return nil, ErrTruncated
		}
		var rva uint32
		if uint32(ord) < dir.numFuncs {
			rva, ok = im.u32(dir.addrFuncs + 4*uint32(ord))
			if !ok {
				return nil, ErrTruncated
			}
		}
		out = append(out, Export{
			Name:      name,
			Ordinal:   uint16(uint32(ord) + dir.base),
			RVA:       rva,
			Forwarded: im.forwarded(rva),
		})
	}
	return out, nil
}

func (im *Image) u16(off uint32) (uint16, bool) {
	if uint64(off)+2 > uint64(len(im.data)) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(im.data[off:]), true
}

func (im *Image) u32(off uint32) (uint32, bool) {
	if uint64(off)+4 > uint64(len(im.data)) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(im.data[off:]), true
}

// cstring reads a NUL-terminated ASCII string at off. An unterminated run to
// the end of the buffer is a truncation, not a string.
func (im *Image) cstring(off uint32) (string, bool) {
	if uint64(off) >= uint64(len(im.data)) {
		return "", false
	}
	for end := off; end < uint32(len(im.data)); end++ {
		if im.data[end] == 0 {
			return string(im.data[off:end]), true
		}
	}
	return "", false
}
