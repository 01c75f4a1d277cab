package codec

// Sum returns the sum of data modulo 256.
func Sum(data ...[]byte) byte {
	var sum byte
	for _, d := range data {
		for _, b := range d {
			sum += b
		}
	}
	return sum
}

// Checksum computes the rosserial checksum of the given byte slices:
// 255 - (sum mod 256).
func Checksum(data ...[]byte) byte {
	return 255 - Sum(data...)
}

// ValidateChecksum reports whether the received checksum matches the data.
// Equivalently, the data plus the checksum byte sum to 255.
func ValidateChecksum(received byte, data ...[]byte) bool {
	return Sum(data...)+received == 255
}
