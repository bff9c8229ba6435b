package zar

import (
	"encoding/binary"
	"strconv"
)

// Signatures and record layouts are from the PKWARE APPNOTE.
// See https://en.wikipedia.org/wiki/ZIP_(file_format) for a readable summary.
const (
	sigLocalFile    uint32 = 0x04034b50 // PK\x03\x04
	sigCDFH         uint32 = 0x02014b50 // PK\x01\x02
	sigEOCD         uint32 = 0x06054b50 // PK\x05\x06
	sigZip64EOCD    uint32 = 0x06064b50 // PK\x06\x06
	sigZip64Locator uint32 = 0x07064b50 // PK\x06\x07

	// extZip64 is the header id of the ZIP64 extended information extra field.
	extZip64 uint16 = 0x0001
)

const (
	// fixed record sizes including the 4-byte signature.
	eocdLen         = 22
	zip64LocatorLen = 20
	cdfhLen         = 46
	localFileLen    = 30

	// maxCommentLen bounds the backward EOCD scan; the comment length field is 16 bits.
	maxCommentLen = 0xFFFF

	// sentinel values indicating the real value lives in the ZIP64 extended information extra field.
	sentinel16 = 0xFFFF
	sentinel32 = 0xFFFFFFFF
)

// Method is a ZIP compression method.
//
// Only Store and Deflate can be read; all other values are surfaced unchanged but their entries cannot be
// decompressed.
type Method uint16

const (
	Store   Method = 0
	Deflate Method = 8
)

func (m Method) String() string {
	switch m {
	case Store:
		return "store"
	case Deflate:
		return "deflate"
	default:
		return "method(" + strconv.Itoa(int(m)) + ")"
	}
}

// Flags is the general purpose bit flag field of a ZIP entry.
type Flags uint16

// Encrypted reports whether bit 0 (traditional PKWARE encryption) is set.
func (f Flags) Encrypted() bool {
	return f&0x0001 != 0
}

// UTF8 reports whether bit 11 is set, marking the entry name and comment as UTF-8.
//
// When unset the name bytes are code-page dependent; this package treats them as opaque bytes either way.
func (f Flags) UTF8() bool {
	return f&0x0800 != 0
}

// cdfh is a central directory file header with ZIP64 overrides already applied to the three dual fields.
type cdfh struct {
	flags            Flags
	method           Method
	dosTime          uint32
	crc32            uint32
	compressedSize   uint64
	uncompressedSize uint64
	nameLen          uint16
	extraLen         uint16
	commentLen       uint16
	localOffset      uint64

	// name and extra borrow the archive's data.
	name  []byte
	extra []byte
}

func (h cdfh) isDir() bool {
	return len(h.name) > 0 && h.name[len(h.name)-1] == '/'
}

// parseZip64Extra walks the extra field's (id, size, data) records looking for the ZIP64 extended
// information field, overriding the sizes and local header offset with its 64-bit values.
//
// The ZIP64 fields appear in fixed order. Like the dual 32-bit fields they shadow, each is only
// meaningful when the central directory holds the sentinel; all present fields are read regardless,
// which is harmless because writers only emit the field when at least one sentinel is in play.
func (h *cdfh) parseZip64Extra() {
	extra := h.extra
	for len(extra) >= 4 {
		id := binary.LittleEndian.Uint16(extra)
		size := int(binary.LittleEndian.Uint16(extra[2:]))
		if 4+size > len(extra) {
			return
		}

		if id != extZip64 {
			extra = extra[4+size:]
			continue
		}

		data := extra[4 : 4+size]
		if len(data) >= 8 {
			h.uncompressedSize = binary.LittleEndian.Uint64(data)
			data = data[8:]
		}
		if len(data) >= 8 {
			h.compressedSize = binary.LittleEndian.Uint64(data)
			data = data[8:]
		}
		if len(data) >= 8 {
			h.localOffset = binary.LittleEndian.Uint64(data)
		}

		return
	}
}
