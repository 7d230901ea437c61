package protocol

// SequenceNumber is a wrapping 16-bit packet identifier. Ordering between
// two sequence numbers is modular: a < b iff (b-a) mod 2^16 is in (0, 2^15).
type SequenceNumber = uint16

const sequenceHalfRange = 1 << 15

// SequenceGreaterThan reports whether s1 is newer than s2 under modular
// sequence ordering.
func SequenceGreaterThan(s1, s2 SequenceNumber) bool {
	return ((s1 > s2) && (s1-s2 < sequenceHalfRange)) ||
		((s1 < s2) && (s2-s1 > sequenceHalfRange))
}

// SequenceLessThan reports whether s1 is older than s2.
func SequenceLessThan(s1, s2 SequenceNumber) bool {
	return SequenceGreaterThan(s2, s1)
}

// SequenceDiff returns the forward distance from s2 to s1 (i.e. how many
// steps s2 would have to advance to reach s1), interpreted modularly.
func SequenceDiff(s1, s2 SequenceNumber) int {
	return int(int16(s1 - s2))
}
