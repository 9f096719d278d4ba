// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"reflect"
	"testing"

	"github.com/dark-bio/cose-go/cbor"
)

// Tests encode/decode roundtrips for every key variant.
func TestKeyRoundtrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	okp, err := NewOKPKey(CurveEd25519, pub, priv.Seed())
	if err != nil {
		t.Fatal(err)
	}
	okp.ID = []byte("okp-1")
	okp.Algorithm = AlgorithmEdDSA
	okp.Ops = []KeyOp{KeyOpSign, KeyOpVerify}

	ec2 := newP256Key(t)
	ec2.ID = []byte("11")

	symmetric := NewSymmetricKey(bytes.Repeat([]byte{0x42}, 32))
	symmetric.BaseIV = []byte{0x01, 0x02, 0x03}

	rsaKey := NewRSAPrivateKey(testRSAKey())

	tests := []struct {
		name string
		key  *Key
	}{
		{"OKP", okp},
		{"EC2", ec2},
		{"Symmetric", symmetric},
		{"RSA", rsaKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.key.Encode()
			if err != nil {
				t.Fatal(err)
			}
			decoded, err := DecodeKey(data)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(decoded, tt.key) {
				t.Errorf("decoded key differs:\n  in:  %+v\n  out: %+v", tt.key, decoded)
			}
			// A second encode must be byte-identical
			again, err := decoded.Encode()
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(again, data) {
				t.Errorf("re-encoded key differs:\n  in:  %x\n  out: %x", data, again)
			}
		})
	}
}

// Tests the per-curve coordinate widths, including the Ed448/X448 split.
func TestCoordinateSizes(t *testing.T) {
	tests := []struct {
		curve Curve
		size  int
	}{
		{CurveP256, 32},
		{CurveP384, 48},
		{CurveP521, 66},
		{CurveX25519, 32},
		{CurveX448, 56},
		{CurveEd25519, 32},
		{CurveEd448, 57},
		{CurveSecp256k1, 32},
	}
	for _, tt := range tests {
		if got := tt.curve.coordinateSize(); got != tt.size {
			t.Errorf("%v: size %d, want %d", tt.curve, got, tt.size)
		}
	}
}

// Tests structural key validation failures.
func TestKeyValidation(t *testing.T) {
	if _, err := NewEC2Key(CurveP256, make([]byte, 31), make([]byte, 32), nil); !errors.Is(err, ErrInvalidKeyFormat) {
		t.Errorf("short x = %v", err)
	}
	if _, err := NewEC2Key(CurveEd25519, make([]byte, 32), make([]byte, 32), nil); !errors.Is(err, ErrInvalidKeyFormat) {
		t.Errorf("EC2 with OKP curve = %v", err)
	}
	if _, err := NewOKPKey(CurveX448, make([]byte, 57), nil); !errors.Is(err, ErrInvalidKeyFormat) {
		t.Errorf("57-byte X448 key = %v", err)
	}
	if _, err := NewOKPKey(CurveEd448, nil, nil); !errors.Is(err, ErrInvalidKeyFormat) {
		t.Errorf("OKP without x or d = %v", err)
	}
	bad := &Key{Type: KeyTypeSymmetric}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidKeyFormat) {
		t.Errorf("symmetric without k = %v", err)
	}
	bad = &Key{Type: KeyType(7), K: []byte{1}}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidKeyFormat) {
		t.Errorf("unknown kty = %v", err)
	}
}

// Tests decode-side failures: unknown kty, wrong coordinate length,
// duplicate labels.
func TestKeyDecodeRejects(t *testing.T) {
	enc := cbor.NewEncoder()
	enc.EncodeMapHeader(1)
	enc.EncodeInt(1)
	enc.EncodeInt(9)
	if _, err := DecodeKey(enc.Bytes()); !errors.Is(err, ErrInvalidKeyFormat) {
		t.Errorf("unknown kty = %v", err)
	}

	enc = cbor.NewEncoder()
	enc.EncodeMapHeader(4)
	enc.EncodeInt(1)
	enc.EncodeInt(int64(KeyTypeEC2))
	enc.EncodeInt(-1)
	enc.EncodeInt(int64(CurveP256))
	enc.EncodeInt(-2)
	enc.EncodeBytes(make([]byte, 31))
	enc.EncodeInt(-3)
	enc.EncodeBytes(make([]byte, 32))
	if _, err := DecodeKey(enc.Bytes()); !errors.Is(err, ErrInvalidKeyFormat) {
		t.Errorf("31-byte coordinate = %v", err)
	}

	// Duplicate labels violate the deterministic-map rules
	enc = cbor.NewEncoder()
	enc.EncodeMapHeader(2)
	enc.EncodeInt(1)
	enc.EncodeInt(int64(KeyTypeSymmetric))
	enc.EncodeInt(1)
	enc.EncodeInt(int64(KeyTypeSymmetric))
	if _, err := DecodeKey(enc.Bytes()); !errors.Is(err, ErrInvalidKeyFormat) {
		t.Errorf("duplicate label = %v", err)
	}
}

// Tests the op/alg/type compatibility checks.
func TestCheckOp(t *testing.T) {
	ec2 := newP256Key(t)
	if err := ec2.CheckOp(KeyOpSign, AlgorithmES256); err != nil {
		t.Errorf("P-256 sign with ES256 = %v", err)
	}
	if err := ec2.CheckOp(KeyOpSign, AlgorithmES384); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("P-256 sign with ES384 = %v", err)
	}
	if err := ec2.CheckOp(KeyOpSign, AlgorithmEdDSA); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("P-256 sign with EdDSA = %v", err)
	}

	restricted := NewSymmetricKey(make([]byte, 32))
	restricted.Ops = []KeyOp{KeyOpMACVerify}
	if err := restricted.CheckOp(KeyOpMACVerify, AlgorithmHMAC256_256); err != nil {
		t.Errorf("permitted op = %v", err)
	}
	if err := restricted.CheckOp(KeyOpMACCreate, AlgorithmHMAC256_256); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("forbidden op = %v", err)
	}

	pinned := NewSymmetricKey(make([]byte, 16))
	pinned.Algorithm = AlgorithmA128GCM
	if err := pinned.CheckOp(KeyOpEncrypt, AlgorithmA128GCM); err != nil {
		t.Errorf("matching alg = %v", err)
	}
	if err := pinned.CheckOp(KeyOpEncrypt, AlgorithmA256GCM); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("mismatched alg = %v", err)
	}

	if err := ec2.CheckOp(KeyOpEncrypt, AlgorithmA128GCM); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("EC2 key for AEAD = %v", err)
	}
}

// Tests PEM import/export through the standard encodings.
func TestKeyPEM(t *testing.T) {
	ec2 := newP256Key(t)
	pemBytes, err := MarshalKeyPEM(ec2)
	if err != nil {
		t.Fatal(err)
	}
	imported, err := ParseKeyPEM(pemBytes)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(imported, ec2) {
		t.Errorf("imported key differs:\n  in:  %+v\n  out: %+v", ec2, imported)
	}

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	okp, err := NewOKPKey(CurveEd25519, pub, nil)
	if err != nil {
		t.Fatal(err)
	}
	pemBytes, err = MarshalKeyPEM(okp)
	if err != nil {
		t.Fatal(err)
	}
	imported, err = ParseKeyPEM(pemBytes)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(imported.X, pub) || imported.Curve != CurveEd25519 {
		t.Errorf("imported OKP key %+v", imported)
	}

	if _, err := ParseKeyPEM([]byte("-----BEGIN NONSENSE-----\nAA==\n-----END NONSENSE-----\n")); !errors.Is(err, ErrInvalidKeyFormat) {
		t.Errorf("nonsense PEM = %v", err)
	}
}
