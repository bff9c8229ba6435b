package zar

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// inflate decompresses the raw deflate stream in src (no zlib or gzip framing) into dst, which must be
// sized to exactly the expected output.
//
// The stream must produce exactly len(dst) bytes, signal end of stream, and consume all of src; anything
// else is ErrDecompressionFailed. inflate has no shared state and is safe to call concurrently.
func inflate(dst, src []byte) error {
	br := bytes.NewReader(src)
	fr := flate.NewReader(br)
	defer fr.Close()

	if _, err := io.ReadFull(fr, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
	}

	// The decoder must report end of stream right after the expected output; more data means the sizes
	// in the central directory lied.
	var extra [1]byte
	if n, err := fr.Read(extra[:]); n != 0 || !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: output exceeds declared uncompressed size", ErrDecompressionFailed)
	}

	// bytes.Reader implements io.ByteReader so the decoder reads it directly without buffering ahead;
	// leftover bytes are genuinely surplus input.
	if br.Len() != 0 {
		return fmt.Errorf("%w: %d bytes of surplus compressed data", ErrDecompressionFailed, br.Len())
	}

	return nil
}
