// internal/driver/melsec/assembler.go
package melsec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrUnexpectedHeader      = errors.New("melsec: unexpected response header")
	ErrPayloadLengthMismatch = errors.New("melsec: response data length shorter than end code")
	ErrUnexpectedPayloadSize = errors.New("melsec: unexpected response data length")
)

// EndCodeError is returned when the controller answers with a non-zero end code
type EndCodeError struct {
	Code uint16
}

func (e *EndCodeError) Error() string {
	return fmt.Sprintf("melsec: controller returned end code 0x%04X", e.Code)
}

// FrameAssembler reassembles responses from a byte stream that has no
// message boundaries of its own. It is not safe for concurrent use.
//
// There are no resync markers in the protocol, so anything that does not
// start with the response header is dropped as a whole and the assembler
// starts over with the next chunk.
type FrameAssembler struct {
	buf []byte
}

// Feed appends chunk and tries to extract one complete response.
// ok is false with a nil error while the frame is still incomplete.
func (a *FrameAssembler) Feed(chunk []byte) (value uint16, ok bool, err error) {
	a.buf = append(a.buf, chunk...)

	if len(a.buf) < ResponseHeaderLen {
		return 0, false, nil
	}
	if !bytes.Equal(a.buf[:responseMagicLen], responseMagic) {
		a.Reset()
		return 0, false, ErrUnexpectedHeader
	}

	dataLen := int(binary.LittleEndian.Uint16(a.buf[responseMagicLen:ResponseHeaderLen]))
	if len(a.buf) < ResponseHeaderLen+dataLen {
		return 0, false, nil
	}
	defer a.Reset()

	if dataLen < 2 {
		return 0, false, ErrPayloadLengthMismatch
	}
	endCode := binary.LittleEndian.Uint16(a.buf[ResponseHeaderLen : ResponseHeaderLen+2])
	if endCode != 0 {
		return 0, false, &EndCodeError{Code: endCode}
	}
	if dataLen != wordPayloadLen {
		return 0, false, fmt.Errorf("%w: %d", ErrUnexpectedPayloadSize, dataLen)
	}

	return binary.LittleEndian.Uint16(a.buf[ResponseHeaderLen+2 : ResponseHeaderLen+4]), true, nil
}

// Reset discards any buffered bytes
func (a *FrameAssembler) Reset() {
	a.buf = a.buf[:0]
}

// Buffered returns the number of bytes waiting for a complete frame
func (a *FrameAssembler) Buffered() int {
	return len(a.buf)
}
