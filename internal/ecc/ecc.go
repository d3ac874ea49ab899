// Package ecc implements the SmartMedia Hamming code: three bytes of
// check data over a region of at most 256 bytes (half a page).
package ecc

import (
	"fmt"
	"sync"
)

// Size is the number of bytes in one code.
const Size = 3

// MaxRegion is the largest region one code can cover.
const MaxRegion = 256

// Code holds the three check bytes of one region.
type Code [Size]byte

var (
	tablesOnce sync.Once
	parity     [256]byte
	ecc2       [256]byte
)

func initTables() {
	for i := 1; i < 256; i++ {
		parity[i] = parity[i&(i-1)] ^ 1
	}
	for i := 0; i < 256; i++ {
		a := 0
		for j := 0; j < 8; j++ {
			if i&(1<<j) == 0 {
				continue
			}
			if j&1 == 0 {
				a ^= 0x04
			}
			if j&2 == 0 {
				a ^= 0x10
			}
			if j&4 == 0 {
				a ^= 0x40
			}
		}
		if parity[i] != 0 {
			a = a ^ (a << 1) ^ 0xa8
		} else {
			a = a ^ (a << 1)
		}
		ecc2[i] = ^byte(a)
	}
}

// Parity returns the XOR of the bits of v.
func Parity(v byte) byte {
	tablesOnce.Do(initTables)
	return parity[v]
}

// Compute returns the code of a region. It panics if the region is larger
// than MaxRegion bytes, since the row parities only cover eight index bits.
func Compute(data []byte) Code {
	if len(data) > MaxRegion {
		panic(fmt.Sprintf("ecc: region of %d bytes exceeds %d", len(data), MaxRegion))
	}
	tablesOnce.Do(initTables)

	var par byte
	var bits [8]byte
	for i, v := range data {
		par ^= v
		bit := parity[v]
		for j := 0; j < 8; j++ {
			if i&(1<<j) == 0 {
				bits[j] ^= bit
			}
		}
	}

	var mix byte
	if parity[par] != 0 {
		mix = 0xaa
	}
	var code Code
	a := bits[3]<<6 | bits[2]<<4 | bits[1]<<2 | bits[0]
	code[0] = ^(a ^ a<<1 ^ mix)
	a = bits[7]<<6 | bits[6]<<4 | bits[5]<<2 | bits[4]
	code[1] = ^(a ^ a<<1 ^ mix)
	code[2] = ecc2[par]
	return code
}

// Compare reports whether a stored code matches a computed one.
func Compare(candidate, computed Code) bool {
	return candidate == computed
}

// Verify recomputes the code of data and compares it with stored.
func Verify(data []byte, stored Code) bool {
	return Compare(stored, Compute(data))
}

// Store writes a code into the first three bytes of dest.
func Store(dest []byte, code Code) {
	copy(dest[:Size], code[:])
}

// Load reads a code from the first three bytes of src.
func Load(src []byte) Code {
	var code Code
	copy(code[:], src[:Size])
	return code
}
