package zar

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deflateRaw produces a raw deflate stream for use as a hand-built member payload.
func deflateRaw(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	return buf.Bytes()
}

func TestEntryStore(t *testing.T) {
	data := buildZip(t, nil, func(zw *zip.Writer) {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: "hello.txt", Method: zip.Store})
		require.NoError(t, err)
		_, err = w.Write([]byte("Hi!"))
		require.NoError(t, err)
	})

	a, err := Open(data)
	require.NoError(t, err)
	require.Equal(t, 1, a.Len())

	e, err := a.Entry(0)
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", e.Name)
	assert.False(t, e.Dir)
	assert.Equal(t, Store, e.Method)
	assert.Equal(t, uint64(3), e.UncompressedSize)

	content, err := e.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte("Hi!"), content)

	// Store aliases the in-place payload rather than copying it.
	assert.Same(t, &e.Raw()[0], &content[0])
	assert.Len(t, content, int(e.UncompressedSize))
}

func TestEntryDeflate(t *testing.T) {
	lorem := []byte(strings.Repeat("Lorem ", 10000/6+1))[:10000]

	data := buildZip(t, map[string]string{"lorem.txt": string(lorem)})

	a, err := Open(data)
	require.NoError(t, err)

	e, err := a.Entry(0)
	require.NoError(t, err)
	assert.Equal(t, Deflate, e.Method)

	content, err := e.Data()
	require.NoError(t, err)
	assert.Equal(t, lorem, content)
	assert.Len(t, content, 10000)

	// Data is memoized; a second call returns the same buffer.
	again, err := e.Data()
	require.NoError(t, err)
	assert.Same(t, &content[0], &again[0])
}

func TestEntryDirectory(t *testing.T) {
	a, err := Open(buildZip(t, map[string]string{"dir/": "", "dir/f": "x"}))
	require.NoError(t, err)

	i, ok := a.Find("dir/")
	require.True(t, ok)

	e, err := a.Entry(i)
	require.NoError(t, err)
	assert.True(t, e.Dir)

	content, err := e.Data()
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestEntryTruncated(t *testing.T) {
	oversize := uint32(1 << 16)
	data := buildRaw([]rawMember{
		{name: "bad", method: uint16(Store), payload: []byte("abc"), uncompressedSize: oversize, compressedSize: &oversize},
		{name: "good", method: uint16(Store), payload: []byte("ok"), uncompressedSize: 2},
	})

	a, err := Open(data)
	require.NoError(t, err)
	require.Equal(t, 2, a.Len())

	i, ok := a.Find("bad")
	require.True(t, ok)
	_, err = a.Entry(i)
	assert.ErrorIs(t, err, ErrTruncated)

	// The failure is per-entry; the other member still reads.
	i, ok = a.Find("good")
	require.True(t, ok)
	e, err := a.Entry(i)
	require.NoError(t, err)
	content, err := e.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), content)
}

func TestEntryUnsupportedMethod(t *testing.T) {
	data := buildRaw([]rawMember{{name: "x.bz2", method: 12, payload: []byte("????"), uncompressedSize: 4}})

	a, err := Open(data)
	require.NoError(t, err)

	e, err := a.Entry(0)
	require.NoError(t, err)
	assert.Equal(t, Method(12), e.Method)

	_, err = e.Data()
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestEntryEncrypted(t *testing.T) {
	data := buildRaw([]rawMember{{name: "secret", method: uint16(Deflate), flags: 0x0001, payload: []byte("????"), uncompressedSize: 4}})

	a, err := Open(data)
	require.NoError(t, err)

	e, err := a.Entry(0)
	require.NoError(t, err)
	assert.True(t, e.Flags.Encrypted())

	_, err = e.Data()
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestEntryDecompressionFailed(t *testing.T) {
	data := buildRaw([]rawMember{{name: "junk", method: uint16(Deflate), payload: []byte{0xFF, 0xFF, 0xFF, 0xFF}, uncompressedSize: 10}})

	a, err := Open(data)
	require.NoError(t, err)

	e, err := a.Entry(0)
	require.NoError(t, err)

	_, err = e.Data()
	assert.ErrorIs(t, err, ErrDecompressionFailed)
}

func TestEntryBadLocalOffset(t *testing.T) {
	// The recorded local header offset points into the payload, not at a local file header. Without
	// the overflow quirk this is immediately fatal for the entry.
	bad := uint32(4)
	data := buildRaw([]rawMember{{name: "x", method: uint16(Store), payload: []byte("abc"), uncompressedSize: 3, localOffset: &bad}})

	a, err := Open(data)
	require.NoError(t, err)
	_, err = a.Entry(0)
	assert.ErrorIs(t, err, ErrMalformedArchive)

	// With the quirk enabled the retry lands out of bounds and still fails, just via the second probe.
	a, err = Open(data, func(opts *Options) { opts.OffsetOverflowQuirk = true })
	require.NoError(t, err)
	_, err = a.Entry(0)
	assert.ErrorIs(t, err, ErrMalformedArchive)
}

func TestEntryZip64ExtraOverridesSizes(t *testing.T) {
	payload := deflateRaw(t, bytes.Repeat([]byte("z"), 100))

	var extra rawWriter
	extra.u16(extZip64)
	extra.u16(16)
	extra.u64(100)                  // uncompressed
	extra.u64(uint64(len(payload))) // compressed

	sentinel := uint32(sentinel32)
	data := buildRaw([]rawMember{{
		name:             "z.bin",
		method:           uint16(Deflate),
		payload:          payload,
		uncompressedSize: sentinel32,
		compressedSize:   &sentinel,
		cdExtra:          extra.Bytes(),
	}})

	a, err := Open(data)
	require.NoError(t, err)

	info, err := a.Stat(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), info.UncompressedSize)
	assert.Equal(t, uint64(len(payload)), info.CompressedSize)

	e, err := a.Entry(0)
	require.NoError(t, err)
	content, err := e.Data()
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte("z"), 100), content)
}

func TestStatOutOfRange(t *testing.T) {
	a, err := Open(buildZip(t, map[string]string{"a": "1"}))
	require.NoError(t, err)

	_, err = a.Stat(-1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = a.Stat(1)
	assert.ErrorIs(t, err, ErrNotFound)
}
