package protocol

// CRC16 calculates the CCITT CRC16 (reflected, init 0xFFFF) of a frame's
// header and payload
func CRC16(data []byte) uint16 {
	return CRC16Update(0xFFFF, data)
}

// CRC16Update folds data into a running checksum
func CRC16Update(crc uint16, data []byte) uint16 {
	for _, b := range data {
		b ^= uint8(crc & 0xFF)
		b ^= b << 4
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}
