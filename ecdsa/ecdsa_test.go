// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ecdsa

import (
	"bytes"
	"crypto"
	stdecdsa "crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"

	// Register the hashes crypto.Hash values refer to
	_ "crypto/sha256"
	_ "crypto/sha512"

	"github.com/btcsuite/btcd/btcec/v2"
)

// Tests fixed-width sign/verify roundtrips on every supported curve.
func TestSignVerify(t *testing.T) {
	tests := []struct {
		name    string
		curve   elliptic.Curve
		hash    crypto.Hash
		sigSize int
	}{
		{"P-256", elliptic.P256(), crypto.SHA256, 64},
		{"P-384", elliptic.P384(), crypto.SHA384, 96},
		{"P-521", elliptic.P521(), crypto.SHA512, 132},
		{"secp256k1", S256(), crypto.SHA256, 64},
	}
	msg := []byte("This is the content.")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			priv, err := generateKey(tt.curve)
			if err != nil {
				t.Fatal(err)
			}
			sig, err := Sign(rand.Reader, priv, tt.hash, msg)
			if err != nil {
				t.Fatal(err)
			}
			if len(sig) != tt.sigSize {
				t.Fatalf("signature length %d, want %d", len(sig), tt.sigSize)
			}
			if err := Verify(&priv.PublicKey, tt.hash, msg, sig); err != nil {
				t.Fatal(err)
			}

			bad := bytes.Clone(sig)
			bad[len(bad)/2] ^= 0x01
			if err := Verify(&priv.PublicKey, tt.hash, msg, bad); !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("tampered signature = %v", err)
			}
			if err := Verify(&priv.PublicKey, tt.hash, []byte("other"), sig); !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("wrong message = %v", err)
			}

			other, err := generateKey(tt.curve)
			if err != nil {
				t.Fatal(err)
			}
			if err := Verify(&other.PublicKey, tt.hash, msg, sig); !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("wrong key = %v", err)
			}
		})
	}
}

// generateKey creates a key on the curve, going through btcec for
// secp256k1 since crypto/ecdsa only generates on the NIST curves.
func generateKey(curve elliptic.Curve) (*stdecdsa.PrivateKey, error) {
	if curve != S256() {
		return stdecdsa.GenerateKey(curve, rand.Reader)
	}
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return priv.ToECDSA(), nil
}

// Tests signature length validation.
func TestVerifyLength(t *testing.T) {
	priv, err := stdecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(&priv.PublicKey, crypto.SHA256, []byte("m"), make([]byte, 63)); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("short signature = %v", err)
	}
}
