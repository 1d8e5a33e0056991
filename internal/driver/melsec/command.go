// internal/driver/melsec/command.go
package melsec

import "encoding/binary"

// 3E binary frame constants for the single command this client issues:
// batch read (0x0401) in word units (0x0000) of one point.
var MC_FRAME = struct {
	REQUEST_SUBHEADER  []byte
	RESPONSE_SUBHEADER []byte
	ACCESS_ROUTE       []byte
	MONITORING_TIMER   []byte
	CMD_BATCH_READ     []byte
	SUB_WORD_UNITS     []byte
	POINT_COUNT_ONE    []byte
}{
	REQUEST_SUBHEADER:  []byte{0x50, 0x00},
	RESPONSE_SUBHEADER: []byte{0xD0, 0x00},
	ACCESS_ROUTE:       []byte{0x00, 0xFF, 0xFF, 0x03, 0x00}, // network 0, PC 0xFF, I/O 0x03FF, station 0
	MONITORING_TIMER:   []byte{0x10, 0x00},                   // 16 x 250ms
	CMD_BATCH_READ:     []byte{0x01, 0x04},
	SUB_WORD_UNITS:     []byte{0x00, 0x00},
	POINT_COUNT_ONE:    []byte{0x01, 0x00},
}

const (
	// requestDataLen counts everything after the length field:
	// timer(2) + command(2) + subcommand(2) + head device(3) + type(1) + points(2)
	requestDataLen = 12

	// ReadWordRequestLen is the constant size of every request this client sends
	ReadWordRequestLen = 2 + 5 + 2 + requestDataLen

	// ResponseHeaderLen covers subheader, access route and the data length field
	ResponseHeaderLen = 9

	// responseMagicLen is the fixed part of the response header that must match
	responseMagicLen = 7

	// wordPayloadLen is end code (2) + one word (2)
	wordPayloadLen = 4
)

// responseMagic is D0 00 00 FF FF 03 00
var responseMagic = append(append([]byte{}, MC_FRAME.RESPONSE_SUBHEADER...), MC_FRAME.ACCESS_ROUTE...)

// BuildReadWordRequest encodes a request for exactly one word at addr
func BuildReadWordRequest(addr ElementAddress) []byte {
	frame := make([]byte, 0, ReadWordRequestLen)
	frame = append(frame, MC_FRAME.REQUEST_SUBHEADER...)
	frame = append(frame, MC_FRAME.ACCESS_ROUTE...)
	frame = binary.LittleEndian.AppendUint16(frame, requestDataLen)
	frame = append(frame, MC_FRAME.MONITORING_TIMER...)
	frame = append(frame, MC_FRAME.CMD_BATCH_READ...)
	frame = append(frame, MC_FRAME.SUB_WORD_UNITS...)

	offset := addr.OffsetBytes()
	frame = append(frame, offset[:]...)
	frame = append(frame, addr.TypeCode)
	frame = append(frame, MC_FRAME.POINT_COUNT_ONE...)
	return frame
}

// EncodeWordResponse builds a successful single-word response.
// Controllers never need it; simulators and tests do.
func EncodeWordResponse(value uint16) []byte {
	return EncodeResponse(0, binary.LittleEndian.AppendUint16(nil, value))
}

// EncodeResponse builds a response frame with an arbitrary end code and data
func EncodeResponse(endCode uint16, data []byte) []byte {
	frame := make([]byte, 0, ResponseHeaderLen+2+len(data))
	frame = append(frame, responseMagic...)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(2+len(data)))
	frame = binary.LittleEndian.AppendUint16(frame, endCode)
	frame = append(frame, data...)
	return frame
}
