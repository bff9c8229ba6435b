// Package zar reads ZIP archives in place over an already-loaded byte slice.
//
// Unlike archive/zip, nothing is streamed: the caller hands Open the entire archive (typically a
// memory-mapped file) and every lookup resolves to offsets within that slice. Compressed payloads are
// borrowed from the slice; only decompression allocates. The package tolerates the format's historical
// quirks: prefixed bytes from self-extractor stubs, trailing archive comments, and ZIP64 extensions.
package zar

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
)

// Options customises Open.
type Options struct {
	// OffsetOverflowQuirk enables a retry for archives whose 32-bit local header offset overflowed
	// without ZIP64 extended information: when the resolved offset does not land on a local file header,
	// the lookup is retried with the offset ORed with 1<<32.
	//
	// This mirrors behavior seen in the wild rather than anything in the APPNOTE, so it is off by
	// default.
	OffsetOverflowQuirk bool
}

// Archive is a parsed ZIP archive over a borrowed byte slice.
//
// The slice must remain valid and unmodified for the archive's lifetime; Archive never writes to it.
// Archive is immutable after Open and safe for concurrent use without synchronization.
type Archive struct {
	data view

	// baseOffset is the position of the first local file header within data; non-zero when the archive
	// is prefixed with arbitrary bytes such as a self-extractor stub.
	baseOffset int64

	// centralDir is the absolute position of the first central directory record within data.
	centralDir int64

	// entryOffsets holds each central directory record's offset relative to centralDir, sorted by the
	// lexicographic byte order of the entry names (a strict prefix sorts before its extensions).
	entryOffsets []int64

	zip64 bool
	quirk bool
}

// Open parses the central directory of the ZIP archive in data.
//
// data is borrowed: it must stay valid and unmodified for as long as the returned Archive and any
// entries derived from it are in use. Open either succeeds completely or returns an error wrapping
// ErrMalformedArchive or ErrNoEOCDFound; there is no partially usable archive.
func Open(data []byte, optFns ...func(*Options)) (*Archive, error) {
	opts := &Options{}
	for _, fn := range optFns {
		fn(opts)
	}

	v := view{data}
	if v.len() < eocdLen {
		return nil, fmt.Errorf("%w: %d bytes is too short to be a ZIP file", ErrMalformedArchive, v.len())
	}

	eocdPos := findEOCD(v)
	if eocdPos < 0 {
		return nil, ErrNoEOCDFound
	}

	a := &Archive{data: v, quirk: opts.OffsetOverflowQuirk}

	numEntries := int64(v.u16(eocdPos + 10))
	cdOffset := int64(v.u32(eocdPos + 16))

	// The ZIP64 EOCD is authoritative when present; absent it, the 16/32-bit EOCD fields are taken at
	// face value even when they hold the 0xFFFF/0xFFFFFFFF sentinels.
	if zip64Pos, ok := findZip64EOCD(v, eocdPos); ok {
		a.zip64 = true
		numEntries = int64(v.u64(zip64Pos + 32))
		cdOffset = int64(v.u64(zip64Pos + 48))
	}

	if err := a.findBaseOffset(numEntries); err != nil {
		return nil, err
	}

	if err := a.scanCentralDirectory(numEntries, cdOffset); err != nil {
		return nil, err
	}

	a.sortEntries()
	return a, nil
}

// findEOCD scans backward from the end of data for the EOCD signature. The scan window covers the
// 22-byte fixed record plus the maximum 65535-byte trailing comment. Returns -1 if not found.
func findEOCD(v view) int64 {
	low := int64(0)
	if n := v.len() - (eocdLen + maxCommentLen); n > 0 {
		low = n
	}

	for pos := v.len() - eocdLen; pos >= low; pos-- {
		if v.u32(pos) == sigEOCD {
			return pos
		}
	}

	return -1
}

// findZip64EOCD looks for the ZIP64 EOCD locator in the 20 bytes preceding the EOCD and follows it to
// the ZIP64 EOCD record. Both the locator and the record must validate for the archive to be treated as
// ZIP64; a dangling locator is ignored.
func findZip64EOCD(v view, eocdPos int64) (int64, bool) {
	locPos := eocdPos - zip64LocatorLen
	if locPos < 0 || v.u32(locPos) != sigZip64Locator {
		return 0, false
	}

	pos := int64(v.u64(locPos + 8))
	if !v.need(pos, 56) || v.u32(pos) != sigZip64EOCD {
		return 0, false
	}

	// size_of_record excludes the signature and the size field itself; anything under 44 cannot hold
	// the fixed fields.
	if v.u64(pos+4) < 44 {
		return 0, false
	}

	return pos, true
}

// findBaseOffset locates the first local file header signature, scanning forward from the start of
// data. Archives produced by concatenation or self-extractors carry leading bytes; everything before
// the first local header is treated as prefix and all archive-relative offsets are shifted by it.
//
// An archive with no entries has no local file header at all, so the scan is skipped and the base is 0.
func (a *Archive) findBaseOffset(numEntries int64) error {
	if numEntries == 0 {
		return nil
	}

	var sig [4]byte
	binary.LittleEndian.PutUint32(sig[:], sigLocalFile)

	i := bytes.Index(a.data.b, sig[:])
	if i < 0 {
		return fmt.Errorf("%w: no local file header found", ErrMalformedArchive)
	}

	a.baseOffset = int64(i)
	return nil
}

// scanCentralDirectory walks the central directory from its declared offset, recording the relative
// position of each record. The walk stops at the first record whose signature does not match, trusting
// the EOCD's declared count otherwise.
func (a *Archive) scanCentralDirectory(numEntries, cdOffset int64) error {
	a.centralDir = a.baseOffset + cdOffset
	if numEntries == 0 {
		return nil
	}
	if numEntries < 0 {
		return fmt.Errorf("%w: entry count %#x out of range", ErrMalformedArchive, uint64(numEntries))
	}

	if !a.data.need(a.centralDir, cdfhLen) {
		return fmt.Errorf("%w: central directory offset %#x out of range", ErrMalformedArchive, a.centralDir)
	}

	// A lying entry count must not drive the allocation; the slice cannot hold more records than fit.
	a.entryOffsets = make([]int64, 0, min(numEntries, a.data.len()/cdfhLen))

	pos := int64(0)
	for range numEntries {
		if !a.data.need(a.centralDir+pos, cdfhLen) || a.data.u32(a.centralDir+pos) != sigCDFH {
			break
		}

		rec := a.centralDir + pos
		nameLen := int64(a.data.u16(rec + 28))
		extraLen := int64(a.data.u16(rec + 30))
		commentLen := int64(a.data.u16(rec + 32))
		if !a.data.need(rec, cdfhLen+nameLen+extraLen+commentLen) {
			break
		}

		a.entryOffsets = append(a.entryOffsets, pos)
		pos += cdfhLen + nameLen + extraLen + commentLen
	}

	if len(a.entryOffsets) == 0 {
		return fmt.Errorf("%w: no central directory records at %#x", ErrMalformedArchive, a.centralDir)
	}

	return nil
}

// sortEntries orders the offset table by entry name so lookups can binary search. bytes.Compare already
// implements the required order: lexicographic, with a strict prefix sorting before its extensions.
func (a *Archive) sortEntries() {
	sort.Slice(a.entryOffsets, func(i, j int) bool {
		return bytes.Compare(a.nameAt(a.entryOffsets[i]), a.nameAt(a.entryOffsets[j])) < 0
	})
}

// nameAt returns the entry name of the central directory record at the given relative offset, borrowed
// from the archive's data. Bounds were established during the central directory scan.
func (a *Archive) nameAt(rel int64) []byte {
	rec := a.centralDir + rel
	return a.data.bytes(rec+cdfhLen, int64(a.data.u16(rec+28)))
}

// Len returns the number of entries in the archive.
func (a *Archive) Len() int {
	return len(a.entryOffsets)
}

// BaseOffset returns the position of the first local file header within the data, i.e. the number of
// prefixed bytes preceding the archive proper.
func (a *Archive) BaseOffset() int64 {
	return a.baseOffset
}

// IsZip64 reports whether the archive carries a valid ZIP64 end of central directory record.
func (a *Archive) IsZip64() bool {
	return a.zip64
}

// Name returns the stored name of the entry at index i, in the archive's name order.
//
// The bytes are UTF-8 when the entry's general purpose bit 11 is set and code-page dependent otherwise;
// they are returned verbatim either way.
func (a *Archive) Name(i int) string {
	return string(a.nameAt(a.entryOffsets[i]))
}

// Find returns the index of the entry with exactly the given name.
func (a *Archive) Find(name string) (int, bool) {
	i := a.Search(name)
	if i < len(a.entryOffsets) && compareToString(a.nameAt(a.entryOffsets[i]), name) == 0 {
		return i, true
	}

	return 0, false
}

// Search returns the index of the first entry whose name is >= name in the archive's name order, or
// Len() if there is none. Combined with Name it supports prefix walks over subtrees.
func (a *Archive) Search(name string) int {
	return sort.Search(len(a.entryOffsets), func(i int) bool {
		return compareToString(a.nameAt(a.entryOffsets[i]), name) >= 0
	})
}

// HasPrefix reports whether any entry's name begins with the given prefix.
func (a *Archive) HasPrefix(prefix string) bool {
	i := a.Search(prefix)
	return i < len(a.entryOffsets) && strings.HasPrefix(a.Name(i), prefix)
}

// compareToString is bytes.Compare against a string without converting either side.
func compareToString(b []byte, s string) int {
	n := min(len(b), len(s))
	for i := 0; i < n; i++ {
		if b[i] != s[i] {
			if b[i] < s[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(b) < len(s):
		return -1
	case len(b) > len(s):
		return 1
	default:
		return 0
	}
}
