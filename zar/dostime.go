package zar

import "time"

// DOSTime is a packed MS-DOS date/time as stored in ZIP headers: the date in the high 16 bits, the time in
// the low 16. The zero value is what synthesized directory entries carry.
type DOSTime uint32

// Time converts to a time.Time with the format's 2-second resolution.
//
// Adapted from https://go.dev/src/archive/zip/struct.go; see
// https://learn.microsoft.com/en-us/windows/win32/api/winbase/nf-winbase-dosdatetimetofiletime
func (t DOSTime) Time() time.Time {
	dosDate, dosTime := uint16(t>>16), uint16(t)

	return time.Date(
		// date bits 0-4: day of month; 5-8: month; 9-15: years since 1980
		int(dosDate>>9+1980),
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),

		// time bits 0-4: second/2; 5-10: minute; 11-15: hour
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f*2),
		0, // nanoseconds

		time.UTC,
	)
}

// IsZero reports whether the raw value is zero.
func (t DOSTime) IsZero() bool {
	return t == 0
}
