package zar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDOSTime(t *testing.T) {
	tests := []struct {
		name     string
		raw      DOSTime
		expected time.Time
	}{
		{
			// date: (2024-1980)<<9 | 3<<5 | 15; time: 10<<11 | 30<<5 | 20/2
			name:     "regular",
			raw:      DOSTime(uint32(44<<9|3<<5|15)<<16 | uint32(10<<11|30<<5|10)),
			expected: time.Date(2024, time.March, 15, 10, 30, 20, 0, time.UTC),
		},
		{
			// seconds are stored halved, so odd values round down.
			name:     "two second resolution",
			raw:      DOSTime(uint32(1<<9|1<<5|1)<<16 | uint32(23<<11|59<<5|29)),
			expected: time.Date(1981, time.January, 1, 23, 59, 58, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.raw.Time())
		})
	}
}

func TestDOSTimeIsZero(t *testing.T) {
	assert.True(t, DOSTime(0).IsZero())
	assert.False(t, DOSTime(1).IsZero())
}

func TestDOSTimeRoundTripThroughArchive(t *testing.T) {
	// Round-trip through an actual archive: the stored DOS time must decode to what the writer was
	// given, within the format's resolution.
	modified := time.Date(2023, time.July, 4, 12, 0, 0, 0, time.UTC)

	data := buildRaw([]rawMember{{
		name:             "t",
		method:           uint16(Store),
		payload:          []byte("x"),
		uncompressedSize: 1,
		dosTime: uint32(uint16(modified.Year()-1980)<<9|uint16(modified.Month())<<5|uint16(modified.Day()))<<16 |
			uint32(uint16(modified.Hour())<<11|uint16(modified.Minute())<<5|uint16(modified.Second()/2)),
	}})

	a, err := Open(data)
	assert.NoError(t, err)

	info, err := a.Stat(0)
	assert.NoError(t, err)
	assert.Equal(t, modified, info.ModTime.Time())
}
