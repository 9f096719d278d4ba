// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hkdf provides HKDF key derivation over a caller-selected hash.
//
// https://datatracker.ietf.org/doc/html/rfc5869
package hkdf

import (
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Key derives a key of length n from the secret, salt, and info using HKDF
// over the given hash. The salt and info may be nil or empty.
//
// Panics if n exceeds the maximum output length for the hash, which is
// 255 * Size() bytes.
func Key(h func() hash.Hash, secret, salt, info []byte, n int) []byte {
	r := hkdf.New(h, secret, salt, info)
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		panic("hkdf: " + err.Error())
	}
	return out
}

// Expand runs only the HKDF-Expand step over an already-extracted
// pseudorandom key.
func Expand(h func() hash.Hash, prk, info []byte, n int) []byte {
	r := hkdf.Expand(h, prk, info)
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		panic("hkdf: " + err.Error())
	}
	return out
}
