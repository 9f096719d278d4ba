// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cbor implements a tiny CBOR encoder and decoder.
//
// https://datatracker.ietf.org/doc/html/rfc8949
//
// This is an implementation of the CBOR spec with an extremely reduced type
// system, focusing on security rather than flexibility or completeness. Only
// the shapes COSE messages are built from are supported:
//   - 64bit positive integers
//   - 64bit signed integers
//   - UTF-8 text strings
//   - Byte strings
//   - Definite-length arrays and maps
//   - Tags
//   - Null (for detached payloads)
//
// Both directions are deterministic per RFC 8949 Section 4.2.1: shortest-form
// integers, definite lengths only, and map keys sorted by the bytewise
// lexicographic order of their encoded form. The decoder rejects any input
// that the encoder could not have produced.
package cbor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Supported CBOR major types
const (
	majorUint   = 0
	majorNint   = 1
	majorBytes  = 2
	majorText   = 3
	majorArray  = 4
	majorMap    = 5
	majorTag    = 6
	majorSimple = 7
)

// Additional info values
const (
	infoUint8  = 24
	infoUint16 = 25
	infoUint32 = 26
	infoUint64 = 27
)

// Null is the encoding of the CBOR null value.
const Null = 0xf6

// maxInt is the maximum value of int, used for overflow checks.
const maxInt = int(^uint(0) >> 1)

// maxInt64 is the maximum value of int64 as a uint64.
const maxInt64 = uint64(1)<<63 - 1

// maxNesting bounds recursion when walking over raw items.
const maxNesting = 16

// Error types for CBOR encoding/decoding failures
var (
	ErrInvalidMajorType      = errors.New("invalid major type")
	ErrInvalidAdditionalInfo = errors.New("invalid additional info")
	ErrUnexpectedEOF         = errors.New("unexpected end of data")
	ErrNonCanonical          = errors.New("non-canonical encoding")
	ErrInvalidUTF8           = errors.New("invalid UTF-8 in text string")
	ErrTrailingBytes         = errors.New("unexpected trailing bytes")
	ErrUnexpectedItemCount   = errors.New("unexpected item count")
	ErrUnsupportedType       = errors.New("unsupported type")
	ErrIntegerOverflow       = errors.New("integer overflow")
	ErrDuplicateMapKey       = errors.New("duplicate map key")
	ErrInvalidMapKeyOrder    = errors.New("invalid map key order")
	ErrNestingTooDeep        = errors.New("nesting too deep")
)

// Raw is a verbatim, already-encoded CBOR item. Encoding splices the bytes
// into the output unchanged; decoding captures them after validating that
// they form a single well-formed, canonical item.
type Raw []byte

// Encoder is the low-level implementation of the CBOR encoder with only the
// handful of desired types supported.
type Encoder struct {
	buf []byte
}

// NewEncoder creates a CBOR encoder with an underlying buffer, pre-allocated
// to 1KB (small enough not to be relevant, large enough to avoid tiny appends).
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 1024)}
}

// Bytes returns the accumulated CBOR data.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// EncodeUint encodes a positive integer into its canonical shortest-form.
func (e *Encoder) EncodeUint(value uint64) {
	e.encodeLength(majorUint, value)
}

// EncodeInt encodes a signed integer into its canonical shortest-form.
func (e *Encoder) EncodeInt(value int64) {
	if value >= 0 {
		e.encodeLength(majorUint, uint64(value))
	} else {
		e.encodeLength(majorNint, uint64(-1-value))
	}
}

// EncodeBytes encodes an opaque byte string.
func (e *Encoder) EncodeBytes(value []byte) {
	e.encodeLength(majorBytes, uint64(len(value)))
	e.buf = append(e.buf, value...)
}

// EncodeText encodes a UTF-8 text string.
func (e *Encoder) EncodeText(value string) {
	e.encodeLength(majorText, uint64(len(value)))
	e.buf = append(e.buf, value...)
}

// EncodeArrayHeader encodes an array size.
func (e *Encoder) EncodeArrayHeader(length int) {
	e.encodeLength(majorArray, uint64(length))
}

// EncodeMapHeader encodes a map size.
func (e *Encoder) EncodeMapHeader(length int) {
	e.encodeLength(majorMap, uint64(length))
}

// EncodeTag encodes a tag head. The tag content must be encoded next.
func (e *Encoder) EncodeTag(num uint64) {
	e.encodeLength(majorTag, num)
}

// EncodeNull encodes the null value.
func (e *Encoder) EncodeNull() {
	e.buf = append(e.buf, Null)
}

// EncodeRaw splices an already-encoded item into the output.
func (e *Encoder) EncodeRaw(value Raw) {
	e.buf = append(e.buf, value...)
}

// encodeLength encodes a major type with an unsigned integer, which defines
// the length for most types, or the value itself for integers.
func (e *Encoder) encodeLength(majorType uint8, length uint64) {
	switch {
	case length < 24:
		e.buf = append(e.buf, majorType<<5|uint8(length))
	case length <= 0xFF:
		e.buf = append(e.buf, majorType<<5|infoUint8, uint8(length))
	case length <= 0xFFFF:
		e.buf = append(e.buf, majorType<<5|infoUint16)
		e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(length))
	case length <= 0xFFFFFFFF:
		e.buf = append(e.buf, majorType<<5|infoUint32)
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(length))
	default:
		e.buf = append(e.buf, majorType<<5|infoUint64)
		e.buf = binary.BigEndian.AppendUint64(e.buf, length)
	}
}

// Decoder is the low-level implementation of the CBOR decoder with only the
// handful of desired types supported.
type Decoder struct {
	data []byte
	pos  int
}

// NewDecoder creates a decoder around a data blob.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data, pos: 0}
}

// Finish terminates decoding and returns an error if trailing bytes remain.
func (d *Decoder) Finish() error {
	if d.pos != len(d.data) {
		return ErrTrailingBytes
	}
	return nil
}

// PeekMajor returns the major type of the next item without consuming it.
func (d *Decoder) PeekMajor() (uint8, error) {
	if d.pos >= len(d.data) {
		return 0, ErrUnexpectedEOF
	}
	return d.data[d.pos] >> 5, nil
}

// PeekNull reports whether the next item is the null value.
func (d *Decoder) PeekNull() bool {
	return d.pos < len(d.data) && d.data[d.pos] == Null
}

// DecodeUint decodes a positive integer, enforcing minimal canonicalness.
func (d *Decoder) DecodeUint() (uint64, error) {
	major, value, err := d.decodeHeader()
	if err != nil {
		return 0, err
	}
	if major != majorUint {
		return 0, fmt.Errorf("%w: %d, want %d", ErrInvalidMajorType, major, majorUint)
	}
	return value, nil
}

// DecodeInt decodes a signed integer (major type 0 or 1).
func (d *Decoder) DecodeInt() (int64, error) {
	major, value, err := d.decodeHeader()
	if err != nil {
		return 0, err
	}
	switch major {
	case majorUint:
		if value > maxInt64 {
			return 0, fmt.Errorf("%w: positive %d exceeds max %d", ErrIntegerOverflow, value, maxInt64)
		}
		return int64(value), nil
	case majorNint:
		if value > maxInt64 {
			return 0, fmt.Errorf("%w: negative %d exceeds max %d", ErrIntegerOverflow, value, maxInt64)
		}
		return -1 - int64(value), nil
	default:
		return 0, fmt.Errorf("%w: %d, want %d or %d", ErrInvalidMajorType, major, majorUint, majorNint)
	}
}

// DecodeBytes decodes a byte string. The result is never nil, so that an
// empty byte string stays distinguishable from null.
func (d *Decoder) DecodeBytes() ([]byte, error) {
	// Extract the field type and attached length
	major, length, err := d.decodeHeader()
	if err != nil {
		return nil, err
	}
	if major != majorBytes {
		return nil, fmt.Errorf("%w: %d, want %d", ErrInvalidMajorType, major, majorBytes)
	}
	// Retrieve the blob and return a copy
	bytes, err := d.readBytes(length)
	if err != nil {
		return nil, err
	}
	result := make([]byte, len(bytes))
	copy(result, bytes)
	return result, nil
}

// DecodeBytesOrNull decodes a byte string, or null as a nil slice.
func (d *Decoder) DecodeBytesOrNull() ([]byte, error) {
	if d.PeekNull() {
		d.pos++
		return nil, nil
	}
	return d.DecodeBytes()
}

// DecodeText decodes a UTF-8 text string.
func (d *Decoder) DecodeText() (string, error) {
	// Extract the field type and attached length
	major, length, err := d.decodeHeader()
	if err != nil {
		return "", err
	}
	if major != majorText {
		return "", fmt.Errorf("%w: %d, want %d", ErrInvalidMajorType, major, majorText)
	}
	// Retrieve the blob and reinterpret as UTF-8
	bytes, err := d.readBytes(length)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(bytes) {
		return "", ErrInvalidUTF8
	}
	return string(bytes), nil
}

// DecodeArrayHeader decodes an array header, returning its length.
func (d *Decoder) DecodeArrayHeader() (uint64, error) {
	// Extract the field type and attached length
	major, length, err := d.decodeHeader()
	if err != nil {
		return 0, err
	}
	if major != majorArray {
		return 0, fmt.Errorf("%w: %d, want %d", ErrInvalidMajorType, major, majorArray)
	}
	return length, nil
}

// DecodeMapHeader decodes a map header, returning the number of key-value pairs.
func (d *Decoder) DecodeMapHeader() (uint64, error) {
	// Extract the field type and attached length
	major, length, err := d.decodeHeader()
	if err != nil {
		return 0, err
	}
	if major != majorMap {
		return 0, fmt.Errorf("%w: %d, want %d", ErrInvalidMajorType, major, majorMap)
	}
	return length, nil
}

// DecodeTag decodes a tag head, returning the tag number. The tag content
// remains in the stream for the caller to decode.
func (d *Decoder) DecodeTag() (uint64, error) {
	major, num, err := d.decodeHeader()
	if err != nil {
		return 0, err
	}
	if major != majorTag {
		return 0, fmt.Errorf("%w: %d, want %d", ErrInvalidMajorType, major, majorTag)
	}
	return num, nil
}

// DecodeRaw captures the next item verbatim, validating that it is a single
// well-formed, canonical item of the supported subset.
func (d *Decoder) DecodeRaw() (Raw, error) {
	start := d.pos
	if err := d.skipItem(0); err != nil {
		return nil, err
	}
	raw := make(Raw, d.pos-start)
	copy(raw, d.data[start:d.pos])
	return raw, nil
}

// skipItem walks over a single item, enforcing the same strictness as the
// typed decode methods.
func (d *Decoder) skipItem(depth int) error {
	if depth > maxNesting {
		return ErrNestingTooDeep
	}
	if d.PeekNull() {
		d.pos++
		return nil
	}
	major, value, err := d.decodeHeader()
	if err != nil {
		return err
	}
	switch major {
	case majorUint, majorNint:
		// Integers are valid (canonicalness was already verified in header decoding)
		return nil
	case majorBytes:
		// Opaque bytes are always valid, skip over
		_, err := d.readBytes(value)
		return err
	case majorText:
		// Verify that the text is indeed UTF-8
		bytes, err := d.readBytes(value)
		if err != nil {
			return err
		}
		if !utf8.Valid(bytes) {
			return ErrInvalidUTF8
		}
		return nil
	case majorArray:
		// Recursively verify each array element
		for range value {
			if err := d.skipItem(depth + 1); err != nil {
				return err
			}
		}
		return nil
	case majorMap:
		// Verify the map has int/tstr keys in deterministic order
		var prev *Label
		for range value {
			key, err := d.DecodeLabel()
			if err != nil {
				return err
			}
			if prev != nil {
				switch cmp := CompareLabels(*prev, key); {
				case cmp == 0:
					return fmt.Errorf("%w: %v", ErrDuplicateMapKey, key)
				case cmp > 0:
					return fmt.Errorf("%w: %v must come before %v", ErrInvalidMapKeyOrder, key, *prev)
				}
			}
			prev = &key
			if err := d.skipItem(depth + 1); err != nil {
				return err
			}
		}
		return nil
	case majorTag:
		return d.skipItem(depth + 1)
	default:
		return fmt.Errorf("%w: major type %d", ErrUnsupportedType, major)
	}
}

// Verify does a dry-run decoding to verify that only the tiny, strict subset
// of types permitted by this package was used.
func Verify(data []byte) error {
	dec := NewDecoder(data)
	if err := dec.skipItem(0); err != nil {
		return err
	}
	return dec.Finish()
}

// decodeHeader extracts the major type and the integer value embedded as additional info.
func (d *Decoder) decodeHeader() (uint8, uint64, error) {
	// Ensure there's still data left in the buffer
	if d.pos >= len(d.data) {
		return 0, 0, ErrUnexpectedEOF
	}
	// Extract the type byte and split it apart
	b := d.data[d.pos]
	d.pos++

	major := b >> 5
	info := b & 0x1f

	// The only simple value permitted is null, handled by the callers that
	// expect it; floats and the rest of major type 7 never occur in COSE
	if major == majorSimple {
		return 0, 0, fmt.Errorf("%w: major type 7", ErrUnsupportedType)
	}

	// Extract the integer embedded in the info
	var value uint64

	switch {
	case info <= 23:
		value = uint64(info)
	case info == infoUint8:
		bytes, err := d.readBytes(1)
		if err != nil {
			return 0, 0, err
		}
		value = uint64(bytes[0])
	case info == infoUint16:
		bytes, err := d.readBytes(2)
		if err != nil {
			return 0, 0, err
		}
		value = uint64(binary.BigEndian.Uint16(bytes))
	case info == infoUint32:
		bytes, err := d.readBytes(4)
		if err != nil {
			return 0, 0, err
		}
		value = uint64(binary.BigEndian.Uint32(bytes))
	case info == infoUint64:
		bytes, err := d.readBytes(8)
		if err != nil {
			return 0, 0, err
		}
		value = binary.BigEndian.Uint64(bytes)
	default:
		// Indefinite lengths (info 31) land here as well
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidAdditionalInfo, info)
	}

	// Ensure it was canonical in the first place
	var canonical bool
	switch {
	case info <= 23:
		canonical = value < 24
	case info == infoUint8:
		canonical = value >= 24 && value <= 0xFF
	case info == infoUint16:
		canonical = value > 0xFF && value <= 0xFFFF
	case info == infoUint32:
		canonical = value > 0xFFFF && value <= 0xFFFFFFFF
	case info == infoUint64:
		canonical = value > 0xFFFFFFFF
	}
	if !canonical {
		return 0, 0, ErrNonCanonical
	}
	return major, value, nil
}

// readBytes retrieves the next n bytes from the buffer.
func (d *Decoder) readBytes(n uint64) ([]byte, error) {
	// Ensure n fits in an int to avoid overflow during position arithmetic
	if n > uint64(maxInt) {
		return nil, ErrUnexpectedEOF
	}
	// Ensure there's still enough data left in the buffer
	if int(n) > len(d.data)-d.pos {
		return nil, ErrUnexpectedEOF
	}
	// Retrieve the bytes and move the cursor forward
	bytes := d.data[d.pos : d.pos+int(n)]
	d.pos += int(n)
	return bytes, nil
}

// EncodeBytes encodes a byte slice to CBOR.
func EncodeBytes(value []byte) []byte {
	enc := NewEncoder()
	enc.EncodeBytes(value)
	return enc.Bytes()
}

// DecodeBytes decodes a byte slice from CBOR.
func DecodeBytes(data []byte) ([]byte, error) {
	dec := NewDecoder(data)
	value, err := dec.DecodeBytes()
	if err != nil {
		return nil, err
	}
	if err := dec.Finish(); err != nil {
		return nil, err
	}
	return value, nil
}

// EncodeInt64 encodes an int64 value to CBOR.
func EncodeInt64(value int64) []byte {
	enc := NewEncoder()
	enc.EncodeInt(value)
	return enc.Bytes()
}

// DecodeInt64 decodes an int64 value from CBOR.
func DecodeInt64(data []byte) (int64, error) {
	dec := NewDecoder(data)
	value, err := dec.DecodeInt()
	if err != nil {
		return 0, err
	}
	if err := dec.Finish(); err != nil {
		return 0, err
	}
	return value, nil
}

// EncodeString encodes a string to CBOR.
func EncodeString(value string) []byte {
	enc := NewEncoder()
	enc.EncodeText(value)
	return enc.Bytes()
}

// DecodeString decodes a string from CBOR.
func DecodeString(data []byte) (string, error) {
	dec := NewDecoder(data)
	value, err := dec.DecodeText()
	if err != nil {
		return "", err
	}
	if err := dec.Finish(); err != nil {
		return "", err
	}
	return value, nil
}
