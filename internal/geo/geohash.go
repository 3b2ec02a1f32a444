package geo

import "strings"

// DefaultPrecision is the geohash length published for event locations.
// Six characters is roughly a 1.2 km x 0.6 km cell.
const DefaultPrecision = 6

// base32 is the geohash alphabet (no a, i, l, o).
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Encode returns the geohash of lat/lng with the given length.
// A precision below 1 uses DefaultPrecision.
func Encode(lat, lng float64, precision int) string {
	if precision < 1 {
		precision = DefaultPrecision
	}

	latLo, latHi := -90.0, 90.0
	lngLo, lngHi := -180.0, 180.0

	var sb strings.Builder
	sb.Grow(precision)

	var ch byte
	bit := 0
	even := true
	for sb.Len() < precision {
		if even {
			mid := (lngLo + lngHi) / 2
			if lng > mid {
				ch |= 1 << (4 - bit)
				lngLo = mid
			} else {
				lngHi = mid
			}
		} else {
			mid := (latLo + latHi) / 2
			if lat > mid {
				ch |= 1 << (4 - bit)
				latLo = mid
			} else {
				latHi = mid
			}
		}
		even = !even

		if bit++; bit == 5 {
			sb.WriteByte(base32[ch])
			bit, ch = 0, 0
		}
	}
	return sb.String()
}

// Cell returns the coarse geohash cell containing c.
func Cell(c Coordinate) string {
	return Encode(c.Lat, c.Lng, DefaultPrecision)
}
