// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-2 helpers used when sizing analyser
windows and frequency snapshots. All functions are allocation free and O(1).

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two map to themselves:

	size 8: bits.Len(7) = 3, 1<<3 = 8
	size 9: bits.Len(8) = 4, 1<<4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size, and 1 for
// non-positive sizes.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. A power of 2 has
// exactly one bit set, so clearing its lowest set bit leaves zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
