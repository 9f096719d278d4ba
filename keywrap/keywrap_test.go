// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package keywrap

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

// Tests the RFC 3394 Section 4.1 vector: 128-bit key data under a 128-bit
// KEK.
func TestWrapVector(t *testing.T) {
	kek, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	key, _ := hex.DecodeString("00112233445566778899aabbccddeeff")
	want, _ := hex.DecodeString("1fa68b0a8112b447aef34bd8fb5a7b829d3e862371d2cfe5")

	wrapped, err := Wrap(kek, key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(wrapped, want) {
		t.Errorf("wrapped %x, want %x", wrapped, want)
	}

	unwrapped, err := Unwrap(kek, wrapped)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(unwrapped, key) {
		t.Errorf("unwrapped %x, want %x", unwrapped, key)
	}
}

// Tests wrap/unwrap roundtrips across KEK and key sizes.
func TestRoundtrip(t *testing.T) {
	tests := []struct {
		kekLen, keyLen int
	}{
		{16, 16},
		{16, 24},
		{16, 32},
		{24, 16},
		{24, 32},
		{32, 16},
		{32, 32},
		{32, 64},
	}
	for _, tt := range tests {
		kek := make([]byte, tt.kekLen)
		key := make([]byte, tt.keyLen)
		for i := range kek {
			kek[i] = byte(i)
		}
		for i := range key {
			key[i] = byte(0xf0 - i)
		}
		wrapped, err := Wrap(kek, key)
		if err != nil {
			t.Fatalf("kek %d key %d: %v", tt.kekLen, tt.keyLen, err)
		}
		if len(wrapped) != tt.keyLen+8 {
			t.Fatalf("kek %d key %d: wrapped length %d", tt.kekLen, tt.keyLen, len(wrapped))
		}
		unwrapped, err := Unwrap(kek, wrapped)
		if err != nil {
			t.Fatalf("kek %d key %d: %v", tt.kekLen, tt.keyLen, err)
		}
		if !bytes.Equal(unwrapped, key) {
			t.Errorf("kek %d key %d: unwrapped %x", tt.kekLen, tt.keyLen, unwrapped)
		}
	}
}

// Tests that corrupted wrapped data fails the integrity check.
func TestUnwrapTamper(t *testing.T) {
	kek := make([]byte, 16)
	key := make([]byte, 16)
	wrapped, err := Wrap(kek, key)
	if err != nil {
		t.Fatal(err)
	}
	for i := range wrapped {
		bad := bytes.Clone(wrapped)
		bad[i] ^= 0x01
		if _, err := Unwrap(kek, bad); !errors.Is(err, ErrIntegrityCheckFailed) {
			t.Errorf("byte %d: Unwrap = %v, want %v", i, err, ErrIntegrityCheckFailed)
		}
	}
}

// Tests length validation of both directions.
func TestInvalidLengths(t *testing.T) {
	kek := make([]byte, 16)
	if _, err := Wrap(kek, make([]byte, 15)); !errors.Is(err, ErrInvalidKeyLength) {
		t.Errorf("Wrap 15 bytes = %v", err)
	}
	if _, err := Wrap(kek, make([]byte, 8)); !errors.Is(err, ErrInvalidKeyLength) {
		t.Errorf("Wrap 8 bytes = %v", err)
	}
	if _, err := Unwrap(kek, make([]byte, 16)); !errors.Is(err, ErrInvalidWrappedLength) {
		t.Errorf("Unwrap 16 bytes = %v", err)
	}
	if _, err := Unwrap(kek, make([]byte, 25)); !errors.Is(err, ErrInvalidWrappedLength) {
		t.Errorf("Unwrap 25 bytes = %v", err)
	}
}
