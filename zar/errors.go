package zar

import "errors"

var (
	// ErrNoEOCDFound is returned by Open if no EOCD signature was found; most likely not a ZIP file.
	ErrNoEOCDFound = errors.New("end of central directory not found; most likely not a ZIP file")

	// ErrMalformedArchive is returned by Open if the archive metadata cannot be parsed.
	//
	// Open never returns a usable Archive together with ErrMalformedArchive; parse failures are fatal.
	ErrMalformedArchive = errors.New("malformed ZIP archive")

	// ErrTruncated is returned when an entry's compressed payload extends past the end of the data.
	//
	// The error is per-entry; the archive remains usable for other entries.
	ErrTruncated = errors.New("compressed data extends past end of archive")

	// ErrUnsupportedMethod is returned when an entry uses a compression method other than Store or Deflate,
	// or when the entry is encrypted.
	ErrUnsupportedMethod = errors.New("unsupported compression method")

	// ErrDecompressionFailed is returned when the raw deflate stream cannot be fully inflated, produces the
	// wrong number of bytes, or leaves unconsumed input.
	ErrDecompressionFailed = errors.New("decompression failed")

	// ErrNotFound is returned by lookups with no matching entry.
	ErrNotFound = errors.New("entry not found")
)
