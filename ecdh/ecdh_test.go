// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ecdh

import (
	"bytes"
	"crypto/ecdh"
	"crypto/rand"
	"testing"
)

// Tests that both sides of an agreement derive the same secret on every
// supported curve.
func TestAgreement(t *testing.T) {
	curves := []struct {
		name  string
		curve ecdh.Curve
	}{
		{"P-256", ecdh.P256()},
		{"P-384", ecdh.P384()},
		{"P-521", ecdh.P521()},
		{"X25519", ecdh.X25519()},
	}
	for _, tt := range curves {
		t.Run(tt.name, func(t *testing.T) {
			privA, pubA, err := GenerateKey(rand.Reader, tt.curve)
			if err != nil {
				t.Fatal(err)
			}
			privB, pubB, err := GenerateKey(rand.Reader, tt.curve)
			if err != nil {
				t.Fatal(err)
			}
			secretA, err := Agree(tt.curve, privA, pubB)
			if err != nil {
				t.Fatal(err)
			}
			secretB, err := Agree(tt.curve, privB, pubA)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(secretA, secretB) {
				t.Errorf("secrets differ: %x vs %x", secretA, secretB)
			}
			if len(secretA) == 0 {
				t.Error("empty shared secret")
			}
		})
	}
}

// Tests X448 agreement through circl.
func TestAgreementX448(t *testing.T) {
	privA, pubA, err := GenerateKeyX448(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	privB, pubB, err := GenerateKeyX448(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	if len(privA) != X448KeySize || len(pubA) != X448KeySize {
		t.Fatalf("key sizes %d/%d", len(privA), len(pubA))
	}
	secretA, err := AgreeX448(privA, pubB)
	if err != nil {
		t.Fatal(err)
	}
	secretB, err := AgreeX448(privB, pubA)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(secretA, secretB) {
		t.Errorf("secrets differ: %x vs %x", secretA, secretB)
	}
}

// Tests malformed inputs are rejected.
func TestInvalidInputs(t *testing.T) {
	priv, _, err := GenerateKey(rand.Reader, ecdh.P256())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Agree(ecdh.P256(), priv, []byte{0x04, 0x01}); err == nil {
		t.Error("truncated public key accepted")
	}
	if _, err := Agree(ecdh.P256(), []byte{0x01}, []byte{0x04}); err == nil {
		t.Error("truncated private key accepted")
	}
	if _, err := AgreeX448(make([]byte, 10), make([]byte, X448KeySize)); err == nil {
		t.Error("short X448 private key accepted")
	}
	if _, err := AgreeX448(make([]byte, X448KeySize), make([]byte, 10)); err == nil {
		t.Error("short X448 public key accepted")
	}
}
