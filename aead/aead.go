// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package aead provides the authenticated encryption modes used by COSE:
// AES-GCM, AES-CCM and ChaCha20-Poly1305.
//
// https://datatracker.ietf.org/doc/html/rfc8152#section-10
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"github.com/pion/dtls/v2/pkg/crypto/ccm"
	"golang.org/x/crypto/chacha20poly1305"
)

// Error types for cipher construction failures
var (
	ErrInvalidKeyLength   = errors.New("aead: invalid key length")
	ErrInvalidNonceLength = errors.New("aead: invalid nonce length")
	ErrInvalidTagLength   = errors.New("aead: invalid tag length")
)

// NewGCM creates an AES-GCM cipher. The key must be 16, 24 or 32 bytes.
func NewGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrInvalidKeyLength
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.New("aead: " + err.Error())
	}
	return aead, nil
}

// NewCCM creates an AES-CCM cipher with the given tag and nonce lengths.
// The nonce length fixes the size of CCM's message length field,
// L = 15 - nonceLen, which must be 2 to 8 bytes (a 7 to 13 byte nonce).
func NewCCM(key []byte, tagLen, nonceLen int) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrInvalidKeyLength
	}
	lenFieldSize := 15 - nonceLen
	if lenFieldSize < 2 || lenFieldSize > 8 {
		return nil, ErrInvalidNonceLength
	}
	aead, err := ccm.NewCCM(block, tagLen, nonceLen)
	if err != nil {
		return nil, errors.New("aead: " + err.Error())
	}
	return aead, nil
}

// NewChaCha20Poly1305 creates a ChaCha20-Poly1305 cipher. The key must be
// 32 bytes.
func NewChaCha20Poly1305(key []byte) (cipher.AEAD, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, ErrInvalidKeyLength
	}
	return aead, nil
}
