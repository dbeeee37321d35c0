package protocol

import "github.com/snksoft/crc"

// frameCRC is CRC-16/MCRF4XX: the reflected CCITT polynomial with an all
// ones start and no final xor.
var frameCRC = crc.NewTable(&crc.Parameters{
	Width:      16,
	Polynomial: 0x1021,
	ReflectIn:  true,
	ReflectOut: true,
	Init:       0xFFFF,
	FinalXor:   0,
})

// CRC16 calculates the checksum carried in every frame trailer
func CRC16(data []byte) uint16 {
	return uint16(frameCRC.CalculateCRC(data))
}
