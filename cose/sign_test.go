// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"bytes"
	stdecdsa "crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/dark-bio/cose-go/eddsa"
)

// Tests Sign1 roundtrips across the signature algorithm families.
func TestSign1Algorithms(t *testing.T) {
	newEd25519 := func(t *testing.T) *Key {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			t.Fatal(err)
		}
		key, err := NewOKPKey(CurveEd25519, pub, priv.Seed())
		if err != nil {
			t.Fatal(err)
		}
		return key
	}
	newEd448 := func(t *testing.T) *Key {
		seed := make([]byte, eddsa.SeedSize448)
		if _, err := rand.Read(seed); err != nil {
			t.Fatal(err)
		}
		pub, err := eddsa.Public448(seed)
		if err != nil {
			t.Fatal(err)
		}
		key, err := NewOKPKey(CurveEd448, pub, seed)
		if err != nil {
			t.Fatal(err)
		}
		return key
	}
	newNIST := func(curve elliptic.Curve) func(*testing.T) *Key {
		return func(t *testing.T) *Key {
			priv, err := stdecdsa.GenerateKey(curve, rand.Reader)
			if err != nil {
				t.Fatal(err)
			}
			key, err := NewECDSAKey(priv)
			if err != nil {
				t.Fatal(err)
			}
			return key
		}
	}
	newRSA := func(t *testing.T) *Key {
		return NewRSAPrivateKey(testRSAKey())
	}

	tests := []struct {
		name   string
		alg    Algorithm
		newKey func(*testing.T) *Key
	}{
		{"ES256", AlgorithmES256, newNIST(elliptic.P256())},
		{"ES384", AlgorithmES384, newNIST(elliptic.P384())},
		{"ES512", AlgorithmES512, newNIST(elliptic.P521())},
		{"EdDSA-Ed25519", AlgorithmEdDSA, newEd25519},
		{"EdDSA-Ed448", AlgorithmEdDSA, newEd448},
		{"PS256", AlgorithmPS256, newRSA},
		{"RS256", AlgorithmRS256, newRSA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := tt.newKey(t)
			msg := &Sign1Message{
				Payload:     []byte("This is the content."),
				ExternalAAD: []byte{0x11, 0x22, 0x33, 0x44, 0xaa, 0xbb, 0xcc, 0xdd},
			}
			msg.Headers.SetProtected(LabelAlgorithm, tt.alg)
			msg.Headers.SetUnprotected(LabelKeyID, []byte("11"))

			if err := msg.Sign(rand.Reader, key); err != nil {
				t.Fatal(err)
			}
			data, err := msg.Encode(true)
			if err != nil {
				t.Fatal(err)
			}
			decoded, err := DecodeSign1(data)
			if err != nil {
				t.Fatal(err)
			}
			decoded.ExternalAAD = msg.ExternalAAD
			if err := decoded.Verify(key); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(decoded.Payload, msg.Payload) {
				t.Errorf("payload %q", decoded.Payload)
			}
			if !bytes.Equal(decoded.Headers.KeyID(), []byte("11")) {
				t.Errorf("kid %x", decoded.Headers.KeyID())
			}

			// The wrong external AAD must fail verification
			decoded.ExternalAAD = []byte("other")
			if err := decoded.Verify(key); !errors.Is(err, ErrVerificationFailed) {
				t.Errorf("wrong external AAD = %v", err)
			}
		})
	}
}

// Tests that flipping any byte of an encoded Sign1 message breaks decoding
// or verification.
func TestSign1Tamper(t *testing.T) {
	key := newP256Key(t)
	msg := &Sign1Message{Payload: []byte("This is the content.")}
	msg.Headers.SetProtected(LabelAlgorithm, AlgorithmES256)
	if err := msg.Sign(rand.Reader, key); err != nil {
		t.Fatal(err)
	}
	data, err := msg.Encode(true)
	if err != nil {
		t.Fatal(err)
	}
	for i := range data {
		bad := bytes.Clone(data)
		bad[i] ^= 0x01
		decoded, err := DecodeSign1(bad)
		if err != nil {
			continue
		}
		if err := decoded.Verify(key); err == nil {
			t.Errorf("byte %d: tampered message still verifies", i)
		}
	}
}

// Tests key and algorithm consistency checks for Sign1.
func TestSign1KeyChecks(t *testing.T) {
	msg := &Sign1Message{Payload: []byte("x")}
	msg.Headers.SetProtected(LabelAlgorithm, AlgorithmES256)

	// MAC algorithm in the alg header
	bad := &Sign1Message{Payload: []byte("x")}
	bad.Headers.SetProtected(LabelAlgorithm, AlgorithmHMAC256_256)
	if err := bad.Sign(rand.Reader, newP256Key(t)); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("MAC alg with EC2 key = %v", err)
	}

	// Missing alg header entirely
	missing := &Sign1Message{Payload: []byte("x")}
	if err := missing.Sign(rand.Reader, newP256Key(t)); !errors.Is(err, ErrInvalidAlgorithm) {
		t.Errorf("missing alg = %v", err)
	}

	// Signing without a payload
	detached := &Sign1Message{}
	detached.Headers.SetProtected(LabelAlgorithm, AlgorithmES256)
	if err := detached.Sign(rand.Reader, newP256Key(t)); !errors.Is(err, ErrMissingPayload) {
		t.Errorf("nil payload = %v", err)
	}

	// Wrong verification key
	if err := msg.Sign(rand.Reader, newP256Key(t)); err != nil {
		t.Fatal(err)
	}
	if err := msg.Verify(newP256Key(t)); !errors.Is(err, ErrVerificationFailed) {
		t.Errorf("wrong key = %v", err)
	}
}

// Tests detached content: a null payload on the wire, supplied out of band
// for verification.
func TestSign1Detached(t *testing.T) {
	key := newP256Key(t)
	payload := []byte("This is the content.")

	msg := &Sign1Message{Payload: payload}
	msg.Headers.SetProtected(LabelAlgorithm, AlgorithmES256)
	if err := msg.Sign(rand.Reader, key); err != nil {
		t.Fatal(err)
	}
	msg.Payload = nil // detach before encoding
	data, err := msg.Encode(true)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodeSign1(data)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Payload != nil {
		t.Fatalf("detached payload decoded to %x", decoded.Payload)
	}
	if err := decoded.Verify(key); !errors.Is(err, ErrMissingPayload) {
		t.Errorf("verify without payload = %v", err)
	}
	decoded.Payload = payload
	if err := decoded.Verify(key); err != nil {
		t.Errorf("verify with supplied payload = %v", err)
	}

	// An embedded empty payload is not detached
	empty := &Sign1Message{Payload: []byte{}}
	empty.Headers.SetProtected(LabelAlgorithm, AlgorithmES256)
	if err := empty.Sign(rand.Reader, key); err != nil {
		t.Fatal(err)
	}
	data, err = empty.Encode(true)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err = DecodeSign1(data)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Payload == nil || len(decoded.Payload) != 0 {
		t.Fatalf("empty payload decoded to %v", decoded.Payload)
	}
	if err := decoded.Verify(key); err != nil {
		t.Errorf("verify empty payload = %v", err)
	}
}

// Tests a two-signer COSE_Sign message where each signature verifies
// independently.
func TestSignTwoSigners(t *testing.T) {
	keyES256 := newP256Key(t)
	privES512, err := stdecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	keyES512, err := NewECDSAKey(privES512)
	if err != nil {
		t.Fatal(err)
	}

	msg := &SignMessage{Payload: []byte("This is the content.")}
	msg.Headers.SetProtected(LabelContentType, uint64(42))

	first := &Signature{Signer: keyES256}
	first.Headers.SetProtected(LabelAlgorithm, AlgorithmES256)
	first.Headers.SetUnprotected(LabelKeyID, []byte("11"))
	second := &Signature{Signer: keyES512}
	second.Headers.SetProtected(LabelAlgorithm, AlgorithmES512)
	second.Headers.SetUnprotected(LabelKeyID, []byte("bilbo.baggins@hobbiton.example"))
	msg.Signatures = []*Signature{first, second}

	if err := msg.Sign(rand.Reader); err != nil {
		t.Fatal(err)
	}
	data, err := msg.Encode(true)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeSign(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded.Signatures) != 2 {
		t.Fatalf("%d signer entries", len(decoded.Signatures))
	}
	if err := decoded.Verify(0, keyES256); err != nil {
		t.Errorf("signer 0 = %v", err)
	}
	if err := decoded.Verify(1, keyES512); err != nil {
		t.Errorf("signer 1 = %v", err)
	}

	// Keys are not interchangeable between entries
	if err := decoded.Verify(0, keyES512); err == nil {
		t.Error("signer 0 verified with the ES512 key")
	}
	if err := decoded.Verify(2, keyES256); !errors.Is(err, ErrMalformedMessage) {
		t.Errorf("out of range index = %v", err)
	}
}

// Tests that a Sign message needs at least one signer entry.
func TestSignNoSigners(t *testing.T) {
	msg := &SignMessage{Payload: []byte("x")}
	if err := msg.Sign(rand.Reader); !errors.Is(err, ErrMalformedMessage) {
		t.Errorf("Sign with no entries = %v", err)
	}
	if _, err := msg.Encode(true); !errors.Is(err, ErrMalformedMessage) {
		t.Errorf("Encode with no entries = %v", err)
	}
}
