// Package morton interleaves the bits of tile column and row into a Z-order (Morton) code,
// which written in base 4 is the quadkey of a tile.
package morton

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Z = uint

var (
	masks = [...]uint{
		0b0101010101010101010101010101010101010101010101010101010101010101,
		0b0011001100110011001100110011001100110011001100110011001100110011,
		0b0000111100001111000011110000111100001111000011110000111100001111,
		0b0000000011111111000000001111111100000000111111110000000011111111,
		0b0000000000000000111111111111111100000000000000001111111111111111,
		0b0000000000000000000000000000000011111111111111111111111111111111,
	}
	powersOfTwo = [...]uint{0, 1, 2, 4, 8, 16}
)

// ToZ interleaves x (even bits) and y (odd bits). Not ok when either does not fit in 32 bits.
func ToZ(x, y uint) (z Z, ok bool) {
	ok = x <= math.MaxUint32 && y <= math.MaxUint32
	for i := 4; i >= 0; i-- {
		x = (x | (x << powersOfTwo[i+1])) & masks[i]
		y = (y | (y << powersOfTwo[i+1])) & masks[i]
	}
	z = x | (y << 1)
	return z, ok
}

func FromZ(z Z) (x, y uint) {
	x = z
	y = z >> 1
	for i := 0; i <= 5; i++ {
		x = (x | (x >> powersOfTwo[i])) & masks[i]
		y = (y | (y >> powersOfTwo[i])) & masks[i]
	}
	return x, y
}

// Quadkey is the Z-order code of (x, y) as zoom base 4 digits, most significant first.
// The empty string is the quadkey of the single tile at zoom 0.
func Quadkey(x, y, zoom uint) (string, error) {
	if zoom > 31 || x>>zoom != 0 || y>>zoom != 0 {
		return "", fmt.Errorf("tile %d/%d/%d has no quadkey", zoom, x, y)
	}
	if zoom == 0 {
		return "", nil
	}
	z, _ := ToZ(x, y)
	digits := strconv.FormatUint(uint64(z), 4)
	return strings.Repeat("0", int(zoom)-len(digits)) + digits, nil
}

// FromQuadkey returns the column, row and zoom level of a quadkey.
func FromQuadkey(quadkey string) (x, y, zoom uint, err error) {
	if len(quadkey) > 31 {
		return 0, 0, 0, fmt.Errorf("quadkey %q is too long", quadkey)
	}
	if quadkey == "" {
		return 0, 0, 0, nil
	}
	z, err := strconv.ParseUint(quadkey, 4, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid quadkey %q: %w", quadkey, err)
	}
	x, y = FromZ(Z(z))
	return x, y, uint(len(quadkey)), nil
}
