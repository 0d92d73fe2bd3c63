// Package zipmeta converts between ZIP's on-wire date/time/attribute
// encodings and Go's time.Time and os.FileMode, generalizing
// martin-sucha-zipserve's struct.go from an encode-only helper into a
// bidirectional codec plus NTFS tick conversion.
package zipmeta

import "time"

// ntfsEpochOffset100ns is the number of 100ns ticks between the NTFS epoch
// (1601-01-01) and the Unix epoch (1970-01-01).
const ntfsEpochOffset100ns = 116444736000000000

// normalizeDOSYear reconciles the handful of year conventions ZIP writers
// have historically used (absolute year, years-since-1900 struct tm
// convention, or a bare two-digit year) into the 0-127 offset-from-1980
// the wire format stores, per the minizip mz_zip_tm_to_dosdate quirk this
// is grounded on (see original_source/mz_zip.c).
func normalizeDOSYear(year int) int {
	switch {
	case year >= 1980:
		return year - 1980
	case year >= 80:
		return year - 80
	default:
		return year + 20
	}
}

// EncodeDOSTime converts t to an MS-DOS date and time. Resolution is 2s.
// See https://learn.microsoft.com/en-us/windows/win32/api/winbase/nf-winbase-dosdatetimetofiletime
func EncodeDOSTime(t time.Time) (date, clock uint16) {
	year := normalizeDOSYear(t.Year())
	date = uint16(t.Day() + int(t.Month())<<5 + year<<9)
	clock = uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)
	return
}

// DecodeDOSTime converts an MS-DOS date/time pair back into a time.Time in
// UTC. The stored year field is an offset from 1980 in [0,127], so decoded
// years fall in [1980,2107]; other year conventions are reconciled only on
// the encode side, by normalizeDOSYear.
// Invalid decoded dates (bad month/day/out-of-range time fields, or a
// calendar rollover) yield the zero time and ok=false.
func DecodeDOSTime(date, clock uint16) (t time.Time, ok bool) {
	raw := int(date >> 9)
	year := raw + 1980
	month := time.Month((date >> 5) & 0xf)
	day := int(date & 0x1f)
	hour := int(clock >> 11)
	minute := int((clock >> 5) & 0x3f)
	second := int(clock&0x1f) * 2

	if month < time.January || month > time.December || day < 1 || day > 31 ||
		hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}

	candidate := time.Date(year, month, day, hour, minute, second, 0, time.UTC)
	if candidate.Day() != day || candidate.Month() != month || candidate.Year() != year {
		return time.Time{}, false
	}
	return candidate, true
}

// NTFSTicksToTime converts NTFS 100ns ticks since 1601-01-01 to a Unix
// time.Time.
func NTFSTicksToTime(ticks uint64) time.Time {
	delta := int64(ticks) - ntfsEpochOffset100ns
	return time.Unix(delta/1e7, (delta%1e7)*100).UTC()
}

// TimeToNTFSTicks converts t to NTFS 100ns ticks since 1601-01-01.
func TimeToNTFSTicks(t time.Time) uint64 {
	return uint64(t.UnixNano()/100) + uint64(ntfsEpochOffset100ns)
}

// UnixSecondsToTime converts a 32-bit Unix timestamp (as carried by a
// UNIX1 extra block) to a Unix time.Time.
func UnixSecondsToTime(sec uint32) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}

// TimeToUnixSeconds converts t to a 32-bit Unix timestamp.
func TimeToUnixSeconds(t time.Time) uint32 {
	return uint32(t.Unix())
}
