// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mac provides the message authentication codes used by COSE:
// HMAC over the SHA-2 family and AES-CBC-MAC.
//
// https://datatracker.ietf.org/doc/html/rfc8152#section-9
package mac

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/subtle"
	"errors"
	"hash"
)

// Error types for MAC failures
var (
	ErrInvalidKeyLength = errors.New("mac: invalid key length")
	ErrInvalidTagLength = errors.New("mac: invalid tag length")
)

// HMAC computes an HMAC over the message with the given hash, truncated to
// tagLen bytes. Truncation keeps the leftmost bytes per RFC 2104.
func HMAC(h func() hash.Hash, key, msg []byte, tagLen int) ([]byte, error) {
	m := hmac.New(h, key)
	if tagLen <= 0 || tagLen > m.Size() {
		return nil, ErrInvalidTagLength
	}
	m.Write(msg)
	return m.Sum(nil)[:tagLen], nil
}

// AESCBC computes an AES-CBC-MAC over the message, truncated to tagLen
// bytes. The message is zero-padded to a block multiple, the IV is all
// zeros, and the tag is the prefix of the final cipher block, as specified
// by RFC 8152 Section 9.2.
func AESCBC(key, msg []byte, tagLen int) ([]byte, error) {
	if tagLen <= 0 || tagLen > aes.BlockSize {
		return nil, ErrInvalidTagLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrInvalidKeyLength
	}
	// Zero-pad the message to a whole number of blocks; an empty message
	// still authenticates a single zero block
	blocks := (len(msg) + aes.BlockSize - 1) / aes.BlockSize
	if blocks == 0 {
		blocks = 1
	}
	padded := make([]byte, blocks*aes.BlockSize)
	copy(padded, msg)

	var zeroIV [aes.BlockSize]byte
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, zeroIV[:]).CryptBlocks(out, padded)

	return out[len(out)-aes.BlockSize:][:tagLen], nil
}

// Equal compares two tags in constant time.
func Equal(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
