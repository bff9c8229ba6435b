package zar

import (
	"fmt"
)

// Info describes an entry from its central directory record alone; no payload is resolved.
type Info struct {
	// Name is the stored entry name. Directories end in "/".
	Name string

	// Dir reports whether the name ends in "/".
	Dir bool

	CompressedSize   uint64
	UncompressedSize uint64

	// ModTime is the raw DOS date/time from the central directory record.
	ModTime DOSTime

	Method Method
	Flags  Flags
}

// Entry is a materialized archive member: an Info plus the compressed payload located in place.
//
// Raw borrows the archive's data and is only valid while that slice is. Data is owned by the entry
// except for Store members, where it aliases Raw. Entries are produced by Archive.Entry and are
// intended to be held by a single owner (typically a cache); they are not safe for concurrent Data
// calls on the same Entry.
type Entry struct {
	Info

	raw  []byte
	data []byte
}

// header decodes the central directory record at entry index i, applying any ZIP64 extended
// information overrides to the sizes and local header offset.
func (a *Archive) header(i int) (cdfh, error) {
	if i < 0 || i >= len(a.entryOffsets) {
		return cdfh{}, fmt.Errorf("%w: index %d out of range [0, %d)", ErrNotFound, i, len(a.entryOffsets))
	}

	rec := a.centralDir + a.entryOffsets[i]

	h := cdfh{
		flags:            Flags(a.data.u16(rec + 8)),
		method:           Method(a.data.u16(rec + 10)),
		dosTime:          a.data.u32(rec + 12),
		crc32:            a.data.u32(rec + 16),
		compressedSize:   uint64(a.data.u32(rec + 20)),
		uncompressedSize: uint64(a.data.u32(rec + 24)),
		nameLen:          a.data.u16(rec + 28),
		extraLen:         a.data.u16(rec + 30),
		commentLen:       a.data.u16(rec + 32),
		localOffset:      uint64(a.data.u32(rec + 42)),
	}

	h.name = a.data.bytes(rec+cdfhLen, int64(h.nameLen))
	h.extra = a.data.bytes(rec+cdfhLen+int64(h.nameLen), int64(h.extraLen))
	h.parseZip64Extra()

	return h, nil
}

// Stat returns the entry's metadata without touching its payload, so it succeeds even for entries whose
// local header or compressed data is damaged.
func (a *Archive) Stat(i int) (Info, error) {
	h, err := a.header(i)
	if err != nil {
		return Info{}, err
	}

	return h.info(), nil
}

func (h cdfh) info() Info {
	return Info{
		Name:             string(h.name),
		Dir:              h.isDir(),
		CompressedSize:   h.compressedSize,
		UncompressedSize: h.uncompressedSize,
		ModTime:          DOSTime(h.dosTime),
		Method:           h.method,
		Flags:            h.flags,
	}
}

// Entry materializes the entry at index i, locating its compressed payload in place.
//
// The local header position comes from the central directory record (with the ZIP64 override applied
// when present). If the position does not hold a local file header signature and the offset overflow
// quirk is enabled, the position is retried with bit 32 set; see Options.OffsetOverflowQuirk.
func (a *Archive) Entry(i int) (*Entry, error) {
	h, err := a.header(i)
	if err != nil {
		return nil, err
	}

	e := &Entry{Info: h.info()}
	if e.Dir {
		// Directory records carry no payload worth resolving.
		return e, nil
	}

	local := a.baseOffset + int64(h.localOffset)
	if !a.data.need(local, localFileLen) || a.data.u32(local) != sigLocalFile {
		if !a.quirk {
			return nil, fmt.Errorf("%w: entry %q: no local file header at %#x", ErrMalformedArchive, e.Name, local)
		}

		local = a.baseOffset + int64(h.localOffset|1<<32)
		if !a.data.need(local, localFileLen) || a.data.u32(local) != sigLocalFile {
			return nil, fmt.Errorf("%w: entry %q: no local file header at %#x", ErrMalformedArchive, e.Name, local)
		}
	}

	// The payload follows the local header's own variable-length fields, whose lengths can differ from
	// the central directory's copy.
	nameLen := int64(a.data.u16(local + 26))
	extraLen := int64(a.data.u16(local + 28))
	payload := local + localFileLen + nameLen + extraLen

	if !a.data.need(payload, int64(h.compressedSize)) {
		return nil, fmt.Errorf("%w: entry %q: %d bytes at %#x", ErrTruncated, e.Name, h.compressedSize, payload)
	}

	e.raw = a.data.bytes(payload, int64(h.compressedSize))
	return e, nil
}

// Raw returns the compressed payload in place. The slice borrows the archive's data.
func (e *Entry) Raw() []byte {
	return e.raw
}

// Data returns the decompressed payload, inflating it on first use.
//
// Store members alias Raw with no copy. Directories return nil. The result is memoized on the entry;
// callers must not modify it.
func (e *Entry) Data() ([]byte, error) {
	if e.data != nil || e.Dir {
		return e.data, nil
	}

	if e.Flags.Encrypted() {
		return nil, fmt.Errorf("%w: entry %q is encrypted", ErrUnsupportedMethod, e.Name)
	}

	switch e.Method {
	case Store:
		e.data = e.raw

	case Deflate:
		buf := make([]byte, e.UncompressedSize)
		if err := inflate(buf, e.raw); err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.Name, err)
		}
		e.data = buf

	default:
		return nil, fmt.Errorf("%w: entry %q uses %v", ErrUnsupportedMethod, e.Name, e.Method)
	}

	return e.data, nil
}
