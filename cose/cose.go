// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cose implements the COSE message, key and algorithm engine.
//
// https://datatracker.ietf.org/doc/html/rfc8152
//
// The six message variants (Sign1, Sign, Mac0, Mac, Encrypt0, Encrypt) are
// value types built from two header buckets, a payload and the
// variant-specific fields. Algorithms are a closed registry of IANA
// identifiers; keys are typed COSE_Key values. All CBOR emission is
// deterministic, and the protected bucket of a decoded message is retained
// byte-for-byte for verification and re-encoding.
package cose

import (
	"fmt"

	"github.com/dark-bio/cose-go/cbor"
)

// CBOR tag numbers for the COSE message variants.
const (
	TagEncrypt0 uint64 = 16
	TagMac0     uint64 = 17
	TagSign1    uint64 = 18
	TagEncrypt  uint64 = 96
	TagMac      uint64 = 97
	TagSign     uint64 = 98
)

// Message is any of the six COSE message variants.
type Message interface {
	// Encode serializes the message, optionally wrapped in its CBOR tag.
	Encode(attachTag bool) ([]byte, error)
}

// Decode parses a tagged COSE message, dispatching on its CBOR tag.
// Untagged messages carry no type information; use the variant-specific
// decoder instead.
func Decode(data []byte) (Message, error) {
	dec := cbor.NewDecoder(data)
	major, err := dec.PeekMajor()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if major != 6 {
		return nil, fmt.Errorf("%w: missing message tag", ErrMalformedMessage)
	}
	num, err := dec.DecodeTag()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	var m Message
	switch num {
	case TagEncrypt0:
		m, err = decodeEncrypt0Body(dec)
	case TagMac0:
		m, err = decodeMac0Body(dec)
	case TagSign1:
		m, err = decodeSign1Body(dec)
	case TagEncrypt:
		m, err = decodeEncryptBody(dec)
	case TagMac:
		m, err = decodeMacBody(dec)
	case TagSign:
		m, err = decodeSignBody(dec)
	default:
		return nil, fmt.Errorf("%w: unknown message tag %d", ErrMalformedMessage, num)
	}
	if err != nil {
		return nil, err
	}
	if err := dec.Finish(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return m, nil
}

// openMessage starts decoding a message of a known variant, consuming the
// tag when present and checking it.
func openMessage(data []byte, tag uint64) (*cbor.Decoder, error) {
	dec := cbor.NewDecoder(data)
	major, err := dec.PeekMajor()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if major == 6 {
		num, err := dec.DecodeTag()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if num != tag {
			return nil, fmt.Errorf("%w: tag %d, want %d", ErrMalformedMessage, num, tag)
		}
	}
	return dec, nil
}

// expectArray consumes an array header and checks the variant's element
// count.
func expectArray(dec *cbor.Decoder, want int) error {
	count, err := dec.DecodeArrayHeader()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if int(count) != want {
		return fmt.Errorf("%w: array has %d elements, want %d", ErrMalformedMessage, count, want)
	}
	return nil
}

// encodePayload emits a payload or ciphertext field: null when detached.
func encodePayload(enc *cbor.Encoder, payload []byte) {
	if payload == nil {
		enc.EncodeNull()
		return
	}
	enc.EncodeBytes(payload)
}

// decodePayload parses a payload or ciphertext field: nil when detached.
func decodePayload(dec *cbor.Decoder) ([]byte, error) {
	payload, err := dec.DecodeBytesOrNull()
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformedMessage, err)
	}
	return payload, nil
}
