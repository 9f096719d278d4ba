// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mac

import (
	"bytes"
	"crypto/aes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"testing"
)

// Tests the RFC 4231 test case 1 HMAC vectors.
func TestHMACVector(t *testing.T) {
	key := bytes.Repeat([]byte{0x0b}, 20)
	msg := []byte("Hi There")

	want256, _ := hex.DecodeString("b0344c61d8db38535ca8afceaf0bf12b881dc200c9833da726e9376c2e32cff7")
	got, err := HMAC(sha256.New, key, msg, sha256.Size)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want256) {
		t.Errorf("HMAC-SHA256 = %x, want %x", got, want256)
	}

	// Truncated form keeps the leftmost bytes
	got, err = HMAC(sha256.New, key, msg, 8)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want256[:8]) {
		t.Errorf("HMAC-SHA256/64 = %x, want %x", got, want256[:8])
	}
}

// Tests tag length validation.
func TestHMACTagLength(t *testing.T) {
	if _, err := HMAC(sha256.New, []byte("k"), []byte("m"), 0); !errors.Is(err, ErrInvalidTagLength) {
		t.Errorf("tag length 0 = %v", err)
	}
	if _, err := HMAC(sha512.New, []byte("k"), []byte("m"), 65); !errors.Is(err, ErrInvalidTagLength) {
		t.Errorf("tag length 65 = %v", err)
	}
}

// Tests AES-CBC-MAC against a directly computed final CBC block.
func TestAESCBC(t *testing.T) {
	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(i)
	}
	msg := []byte("This is the content.")

	tag, err := AESCBC(key, msg, 16)
	if err != nil {
		t.Fatal(err)
	}

	// Recompute by chaining AES over the zero-padded blocks by hand
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	padded := make([]byte, 32)
	copy(padded, msg)
	state := make([]byte, 16)
	for i := 0; i < len(padded); i += 16 {
		for j := range 16 {
			state[j] ^= padded[i+j]
		}
		block.Encrypt(state, state)
	}
	if !bytes.Equal(tag, state) {
		t.Errorf("AESCBC = %x, want %x", tag, state)
	}

	// Truncation keeps the leftmost bytes
	short, err := AESCBC(key, msg, 8)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(short, state[:8]) {
		t.Errorf("AESCBC/64 = %x, want %x", short, state[:8])
	}
}

// Tests an empty message authenticates one zero block.
func TestAESCBCEmpty(t *testing.T) {
	key := make([]byte, 16)
	tag, err := AESCBC(key, nil, 16)
	if err != nil {
		t.Fatal(err)
	}
	block, _ := aes.NewCipher(key)
	want := make([]byte, 16)
	block.Encrypt(want, want)
	if !bytes.Equal(tag, want) {
		t.Errorf("AESCBC(empty) = %x, want %x", tag, want)
	}
}

// Tests key and tag validation for AES-CBC-MAC.
func TestAESCBCValidation(t *testing.T) {
	if _, err := AESCBC(make([]byte, 15), nil, 8); !errors.Is(err, ErrInvalidKeyLength) {
		t.Errorf("15-byte key = %v", err)
	}
	if _, err := AESCBC(make([]byte, 16), nil, 17); !errors.Is(err, ErrInvalidTagLength) {
		t.Errorf("17-byte tag = %v", err)
	}
}

// Tests the constant-time comparison helper.
func TestEqual(t *testing.T) {
	if !Equal([]byte{1, 2, 3}, []byte{1, 2, 3}) {
		t.Error("equal slices compared unequal")
	}
	if Equal([]byte{1, 2, 3}, []byte{1, 2, 4}) {
		t.Error("unequal slices compared equal")
	}
	if Equal([]byte{1, 2, 3}, []byte{1, 2}) {
		t.Error("different lengths compared equal")
	}
}
