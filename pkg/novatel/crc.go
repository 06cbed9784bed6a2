package novatel

import "hash/crc32"

// CRC32 computes the OEM4 block CRC: reflected 0xEDB88320, zero initial
// value, no final inversion. Running it over a frame including its trailing
// CRC yields zero.
func CRC32(p []byte) uint32 {
	return ^crc32.Update(^uint32(0), crc32.IEEETable, p)
}

// NMEAChecksum XORs every byte of p.
func NMEAChecksum(p []byte) byte {
	var sum byte
	for _, b := range p {
		sum ^= b
	}
	return sum
}
