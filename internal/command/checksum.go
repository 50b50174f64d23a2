package command

// Checksum returns the protocol checksum of data: the sum of all bytes
// modulo 256. Every checksummed command and response in the protocol uses
// this single trailing byte.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// VerifyChecksum reports whether the final byte of data equals the checksum
// of everything before it. Data shorter than two bytes never verifies.
func VerifyChecksum(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	return data[len(data)-1] == Checksum(data[:len(data)-1])
}
