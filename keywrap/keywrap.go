// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package keywrap provides AES Key Wrap.
//
// https://datatracker.ietf.org/doc/html/rfc3394
package keywrap

import (
	"crypto/aes"
	"crypto/subtle"
	"encoding/binary"
	"errors"
)

// Error types for key wrapping failures
var (
	ErrInvalidKeyLength     = errors.New("keywrap: key length must be a multiple of 8 and at least 16 bytes")
	ErrInvalidWrappedLength = errors.New("keywrap: wrapped key length must be a multiple of 8 and at least 24 bytes")
	ErrIntegrityCheckFailed = errors.New("keywrap: integrity check failed")
)

// iv is the default initial value from RFC 3394 Section 2.2.3.1.
var iv = [8]byte{0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6}

// Wrap wraps the key with the key-encryption key. The KEK must be a valid
// AES key (16, 24 or 32 bytes) and the key a multiple of 8 bytes, at least
// 16 bytes long.
func Wrap(kek, key []byte) ([]byte, error) {
	if len(key)%8 != 0 || len(key) < 16 {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, errors.New("keywrap: " + err.Error())
	}
	// Split the key into 64-bit registers prefixed by the integrity value
	n := len(key) / 8
	out := make([]byte, 8+len(key))
	copy(out[:8], iv[:])
	copy(out[8:], key)

	var b [16]byte
	for j := 0; j < 6; j++ {
		for i := 1; i <= n; i++ {
			copy(b[:8], out[:8])
			copy(b[8:], out[i*8:i*8+8])
			block.Encrypt(b[:], b[:])

			t := uint64(n*j + i)
			binary.BigEndian.PutUint64(out[:8], binary.BigEndian.Uint64(b[:8])^t)
			copy(out[i*8:i*8+8], b[8:])
		}
	}
	return out, nil
}

// Unwrap reverses Wrap, returning the original key. The integrity value is
// compared in constant time.
func Unwrap(kek, wrapped []byte) ([]byte, error) {
	if len(wrapped)%8 != 0 || len(wrapped) < 24 {
		return nil, ErrInvalidWrappedLength
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, errors.New("keywrap: " + err.Error())
	}
	n := len(wrapped)/8 - 1
	a := make([]byte, 8)
	key := make([]byte, n*8)
	copy(a, wrapped[:8])
	copy(key, wrapped[8:])

	var b [16]byte
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			binary.BigEndian.PutUint64(b[:8], binary.BigEndian.Uint64(a)^t)
			copy(b[8:], key[(i-1)*8:i*8])
			block.Decrypt(b[:], b[:])

			copy(a, b[:8])
			copy(key[(i-1)*8:i*8], b[8:])
		}
	}
	if subtle.ConstantTimeCompare(a, iv[:]) != 1 {
		return nil, ErrIntegrityCheckFailed
	}
	return key, nil
}
