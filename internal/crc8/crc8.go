// Package crc8 implements the Dallas/Maxim CRC-8 used by the pose deck
// protocol to protect frame payloads.
package crc8

// Polynomial is the bit-reversed Dallas/Maxim polynomial, applied LSB-first.
const Polynomial = 0x8C

// Checksum computes the Dallas/Maxim CRC-8 over data, one bit at a time.
// The result is a pure function of the input bytes.
func Checksum(data []byte) uint8 {
	var crc uint8
	for _, b := range data {
		for bit := 0; bit < 8; bit++ {
			mix := (crc ^ b) & 1
			crc >>= 1
			if mix != 0 {
				crc ^= Polynomial
			}
			b >>= 1
		}
	}
	return crc
}
