// SPDX-License-Identifier: MIT
package spectrum

// Band indices into Bands.
const (
	Low = iota
	MidLow
	MidHigh
	High
)

// Bands holds the summed magnitudes of four contiguous frequency ranges.
type Bands [4]float64

// Partition sums the snapshot into four bands of len/4 bins each. The high
// band also takes the remainder, so for fewer than four bins the first
// three bands are empty.
func Partition(snapshot []uint8) Bands {
	var b Bands
	chunk := len(snapshot) / 4
	for i, v := range snapshot {
		band := High
		if chunk > 0 && i/chunk < High {
			band = i / chunk
		}
		b[band] += float64(v)
	}
	return b
}

// Sum is the total magnitude across all bands.
func (b Bands) Sum() float64 {
	return b[Low] + b[MidLow] + b[MidHigh] + b[High]
}
