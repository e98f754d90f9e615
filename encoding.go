package mqttflow

import (
	"encoding/binary"
	"errors"
	"io"
	"unicode/utf8"
)

// Encoding errors.
var (
	ErrStringTooLong      = errors.New("string exceeds maximum length of 65535 bytes")
	ErrBinaryTooLong      = errors.New("binary data exceeds maximum length of 65535 bytes")
	ErrInvalidUTF8        = errors.New("invalid UTF-8 string")
	ErrStringContainsNull = errors.New("string contains null character")
	ErrVarintTooLarge     = errors.New("remaining length exceeds maximum value")
	ErrVarintMalformed    = errors.New("malformed remaining length")
)

const (
	maxUint16         = 65535
	maxVarint         = 268435455
	maxVarintBytes    = 4
	varintContinueBit = 0x80
	varintValueMask   = 0x7F
)

// encodeString writes a length-prefixed UTF-8 string.
// MQTT 3.1.1: Section 1.5.3
func encodeString(w io.Writer, s string) (int, error) {
	if len(s) > maxUint16 {
		return 0, ErrStringTooLong
	}
	if !utf8.ValidString(s) {
		return 0, ErrInvalidUTF8
	}
	for i := range len(s) {
		if s[i] == 0 {
			return 0, ErrStringContainsNull
		}
	}

	n, err := encodeUint16(w, uint16(len(s)))
	if err != nil {
		return n, err
	}

	n2, err := io.WriteString(w, s)
	return n + n2, err
}

// decodeString reads a length-prefixed UTF-8 string.
func decodeString(r io.Reader) (string, int, error) {
	buf, n, err := decodeBinary(r)
	if err != nil {
		return "", n, err
	}

	if !utf8.Valid(buf) {
		return "", n, ErrInvalidUTF8
	}
	for _, b := range buf {
		if b == 0 {
			return "", n, ErrStringContainsNull
		}
	}

	return string(buf), n, nil
}

// encodeBinary writes length-prefixed binary data.
func encodeBinary(w io.Writer, data []byte) (int, error) {
	if len(data) > maxUint16 {
		return 0, ErrBinaryTooLong
	}

	n, err := encodeUint16(w, uint16(len(data)))
	if err != nil {
		return n, err
	}

	n2, err := w.Write(data)
	return n + n2, err
}

// decodeBinary reads length-prefixed binary data.
func decodeBinary(r io.Reader) ([]byte, int, error) {
	length, n, err := decodeUint16(r)
	if err != nil {
		return nil, n, err
	}
	if length == 0 {
		return nil, n, nil
	}

	buf := make([]byte, length)
	n2, err := io.ReadFull(r, buf)
	return buf, n + n2, err
}

func encodeUint16(w io.Writer, v uint16) (int, error) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return w.Write(buf[:])
}

func decodeUint16(r io.Reader) (uint16, int, error) {
	var buf [2]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		return 0, n, err
	}
	return binary.BigEndian.Uint16(buf[:]), n, nil
}

// encodeVarint writes the remaining length field.
// MQTT 3.1.1: Section 2.2.3
func encodeVarint(w io.Writer, value uint32) (int, error) {
	if value > maxVarint {
		return 0, ErrVarintTooLarge
	}

	var buf [maxVarintBytes]byte
	n := 0
	for {
		encodedByte := byte(value & varintValueMask)
		value >>= 7
		if value > 0 {
			encodedByte |= varintContinueBit
		}
		buf[n] = encodedByte
		n++
		if value == 0 {
			break
		}
	}

	return w.Write(buf[:n])
}

// decodeVarint reads the remaining length field.
func decodeVarint(r io.Reader) (uint32, int, error) {
	var value uint32
	var buf [1]byte

	for i := 0; i < maxVarintBytes; i++ {
		n, err := io.ReadFull(r, buf[:])
		if err != nil {
			return 0, i + n, err
		}

		value |= uint32(buf[0]&varintValueMask) << (7 * i)
		if buf[0]&varintContinueBit == 0 {
			return value, i + 1, nil
		}
	}

	return 0, maxVarintBytes, ErrVarintMalformed
}

// peekHeader inspects the start of buf for a complete fixed header.
// It returns the remaining length and header size, or ok=false when buf
// does not yet hold the whole header.
func peekHeader(buf []byte) (remaining uint32, headerLen int, ok bool, err error) {
	if len(buf) < 2 {
		return 0, 0, false, nil
	}

	for i := 0; i < maxVarintBytes; i++ {
		if 1+i >= len(buf) {
			return 0, 0, false, nil
		}

		b := buf[1+i]
		remaining |= uint32(b&varintValueMask) << (7 * i)
		if b&varintContinueBit == 0 {
			return remaining, 2 + i, true, nil
		}
	}

	return 0, 0, false, ErrVarintMalformed
}

// varintSize returns the number of bytes needed to encode a remaining length.
func varintSize(value uint32) int {
	switch {
	case value < 128:
		return 1
	case value < 16384:
		return 2
	case value < 2097152:
		return 3
	default:
		return 4
	}
}
