// Package npu defines the data structures shared by every stage of the
// accelerator datapath: the lane record that carries an element and its
// stream markers, the precision modes, and the control lines broadcast to
// the systolic array.
package npu

import "fmt"

// Precision selects how a 16-bit element container is interpreted.
type Precision uint8

const (
	// PrecisionInt16 treats the container as one signed 16-bit value.
	PrecisionInt16 Precision = iota
	// PrecisionInt8 treats the container as two signed 8-bit sub-lanes. A
	// multiply of two containers yields the dot product of the sub-lanes.
	PrecisionInt8
)

// String returns the configuration name of the precision.
func (p Precision) String() string {
	switch p {
	case PrecisionInt16:
		return "int16"
	case PrecisionInt8:
		return "int8"
	default:
		return fmt.Sprintf("precision(%d)", uint8(p))
	}
}

// ParsePrecision converts a configuration name into a Precision.
func ParsePrecision(s string) (Precision, error) {
	switch s {
	case "", "int16":
		return PrecisionInt16, nil
	case "int8":
		return PrecisionInt8, nil
	default:
		return PrecisionInt16, fmt.Errorf("unknown precision %q", s)
	}
}

// Product multiplies two raw containers under the precision and returns the
// contribution to a 64-bit accumulator.
func (p Precision) Product(a, b uint16) int64 {
	if p == PrecisionInt8 {
		lo := int64(int8(a)) * int64(int8(b))
		hi := int64(int8(a>>8)) * int64(int8(b>>8))
		return lo + hi
	}

	return int64(int16(a)) * int64(int16(b))
}

// Controls are the global control lines fanned out to every PE. The array
// reads them by reference and never modifies them.
type Controls struct {
	// Compute enables latching and multiply-accumulate.
	Compute bool
	// Drain shifts accumulators down one row per cycle. It excludes Compute;
	// when both are set, Drain wins.
	Drain bool
	// Clear zeroes every accumulator on the next edge.
	Clear bool
	// Precision selects the operand interpretation.
	Precision Precision
}
