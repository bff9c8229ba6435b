package zar

import "encoding/binary"

// view is a bounded, read-only window over the archive's data.
//
// The integer accessors assume the caller has already established bounds with need; they exist so
// record parsing reads like the APPNOTE layout instead of a wall of slice expressions.
type view struct {
	b []byte
}

func (v view) len() int64 {
	return int64(len(v.b))
}

// need reports whether n bytes are available starting at off.
func (v view) need(off, n int64) bool {
	return off >= 0 && n >= 0 && off+n <= int64(len(v.b)) && off+n >= off
}

func (v view) bytes(off, n int64) []byte {
	return v.b[off : off+n]
}

func (v view) u16(off int64) uint16 {
	return binary.LittleEndian.Uint16(v.b[off:])
}

func (v view) u32(off int64) uint32 {
	return binary.LittleEndian.Uint32(v.b[off:])
}

func (v view) u64(off int64) uint64 {
	return binary.LittleEndian.Uint64(v.b[off:])
}
