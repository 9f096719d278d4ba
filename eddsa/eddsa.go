// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package eddsa provides Ed25519 and Ed448 digital signatures over the raw
// key encodings COSE keys carry.
//
// https://datatracker.ietf.org/doc/html/rfc8032
package eddsa

import (
	"bytes"
	"crypto/ed25519"
	"errors"

	"filippo.io/edwards25519"
	"github.com/cloudflare/circl/sign/ed448"
)

const (
	// SeedSize25519 is the size of an Ed25519 private key seed in bytes.
	SeedSize25519 = ed25519.SeedSize

	// PublicKeySize25519 is the size of an Ed25519 public key in bytes.
	PublicKeySize25519 = ed25519.PublicKeySize

	// SignatureSize25519 is the size of an Ed25519 signature in bytes.
	SignatureSize25519 = ed25519.SignatureSize

	// SeedSize448 is the size of an Ed448 private key seed in bytes.
	SeedSize448 = ed448.SeedSize

	// PublicKeySize448 is the size of an Ed448 public key in bytes.
	PublicKeySize448 = ed448.PublicKeySize

	// SignatureSize448 is the size of an Ed448 signature in bytes.
	SignatureSize448 = ed448.SignatureSize
)

// Error types for signature failures
var (
	ErrInvalidSeed      = errors.New("eddsa: invalid private key seed")
	ErrInvalidPublicKey = errors.New("eddsa: invalid public key")
	ErrInvalidSignature = errors.New("eddsa: signature verification failed")
)

// Sign25519 creates an Ed25519 signature of the message with a 32-byte
// private key seed.
func Sign25519(seed, message []byte) ([]byte, error) {
	if len(seed) != SeedSize25519 {
		return nil, ErrInvalidSeed
	}
	return ed25519.Sign(ed25519.NewKeyFromSeed(seed), message), nil
}

// Verify25519 verifies an Ed25519 signature. The public key is checked to
// be the canonical encoding of a valid curve point before use.
func Verify25519(pub, message, sig []byte) error {
	if len(pub) != PublicKeySize25519 {
		return ErrInvalidPublicKey
	}
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil || !bytes.Equal(p.Bytes(), pub) {
		return ErrInvalidPublicKey
	}
	if len(sig) != SignatureSize25519 {
		return ErrInvalidSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), message, sig) {
		return ErrInvalidSignature
	}
	return nil
}

// Public25519 derives the Ed25519 public key from a private key seed.
func Public25519(seed []byte) ([]byte, error) {
	if len(seed) != SeedSize25519 {
		return nil, ErrInvalidSeed
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv.Public().(ed25519.PublicKey), nil
}

// Sign448 creates an Ed448 signature of the message with a 57-byte private
// key seed. The context string is empty per RFC 8152.
func Sign448(seed, message []byte) ([]byte, error) {
	if len(seed) != SeedSize448 {
		return nil, ErrInvalidSeed
	}
	priv := ed448.NewKeyFromSeed(seed)
	return ed448.Sign(priv, message, ""), nil
}

// Verify448 verifies an Ed448 signature.
func Verify448(pub, message, sig []byte) error {
	if len(pub) != PublicKeySize448 {
		return ErrInvalidPublicKey
	}
	if len(sig) != SignatureSize448 {
		return ErrInvalidSignature
	}
	if !ed448.Verify(ed448.PublicKey(pub), message, sig, "") {
		return ErrInvalidSignature
	}
	return nil
}

// Public448 derives the Ed448 public key from a private key seed.
func Public448(seed []byte) ([]byte, error) {
	if len(seed) != SeedSize448 {
		return nil, ErrInvalidSeed
	}
	priv := ed448.NewKeyFromSeed(seed)
	return priv.Public().(ed448.PublicKey), nil
}
