package npu

// Lane is one element travelling through the datapath together with its
// stream markers. A Lane is a value; stages copy it forward whole so the
// markers can never drift from the data they annotate.
type Lane struct {
	Value uint16
	First bool
	Last  bool
}

// Bubble is an idle lane: zero value, no markers.
var Bubble = Lane{}

// IsBubble reports whether the lane carries nothing.
func (l Lane) IsBubble() bool {
	return l == Bubble
}

// Lanes wraps a row of raw elements into lanes. The first marker is attached
// to lane 0 and the last marker to the highest lane, matching how a row
// enters the array boundary.
func Lanes(row []uint16, first, last bool) []Lane {
	lanes := make([]Lane, len(row))
	for i, v := range row {
		lanes[i].Value = v
	}

	if len(lanes) > 0 {
		lanes[0].First = first
		lanes[len(lanes)-1].Last = last
	}

	return lanes
}

// Values extracts the raw elements of a lane vector.
func Values(lanes []Lane) []uint16 {
	row := make([]uint16, len(lanes))
	for i, l := range lanes {
		row[i] = l.Value
	}

	return row
}

// WordLanes is the number of 16-bit elements a 64-bit host word carries. It
// bounds the array edge, since a host word holds one full buffer row.
const WordLanes = 4

// PackRow packs up to WordLanes 16-bit elements into a 64-bit word with lane
// 0 in the least significant bits.
func PackRow(row []uint16) uint64 {
	var w uint64
	for i := 0; i < len(row) && i < WordLanes; i++ {
		w |= uint64(row[i]) << (16 * i)
	}

	return w
}

// UnpackRow splits a 64-bit word into n 16-bit elements, lane 0 first.
// Lanes beyond WordLanes read as zero.
func UnpackRow(w uint64, n int) []uint16 {
	row := make([]uint16, n)
	for i := 0; i < n && i < WordLanes; i++ {
		row[i] = uint16(w >> (16 * i))
	}

	return row
}

// PackInt8 packs two signed 8-bit values into one container, lo in the low
// byte.
func PackInt8(lo, hi int8) uint16 {
	return uint16(uint8(lo)) | uint16(uint8(hi))<<8
}
