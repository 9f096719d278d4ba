// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ecdsa provides ECDSA signatures over the NIST curves and
// secp256k1, using the fixed-width r || s encoding COSE requires.
//
// https://datatracker.ietf.org/doc/html/rfc8152#section-8.1
package ecdsa

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"
	"io"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Error types for signature failures
var (
	ErrInvalidKey       = errors.New("ecdsa: key does not match curve")
	ErrInvalidSignature = errors.New("ecdsa: signature verification failed")
	ErrInvalidHash      = errors.New("ecdsa: hash not available")
)

// Sign creates a fixed-width r || s signature over the digest of the
// message. The width of each half is the byte size of the curve order.
func Sign(rand io.Reader, key *ecdsa.PrivateKey, h crypto.Hash, message []byte) ([]byte, error) {
	digest, err := hashMessage(h, message)
	if err != nil {
		return nil, err
	}
	if key.Curve == btcec.S256() {
		return signK1(key, digest)
	}
	r, s, err := ecdsa.Sign(rand, key, digest)
	if err != nil {
		return nil, errors.New("ecdsa: " + err.Error())
	}
	size := orderSize(key.Curve)
	sig := make([]byte, 2*size)
	r.FillBytes(sig[:size])
	s.FillBytes(sig[size:])
	return sig, nil
}

// Verify verifies a fixed-width r || s signature over the digest of the
// message.
func Verify(key *ecdsa.PublicKey, h crypto.Hash, message, sig []byte) error {
	digest, err := hashMessage(h, message)
	if err != nil {
		return err
	}
	size := orderSize(key.Curve)
	if len(sig) != 2*size {
		return ErrInvalidSignature
	}
	if key.Curve == btcec.S256() {
		return verifyK1(key, digest, sig)
	}
	r := new(big.Int).SetBytes(sig[:size])
	s := new(big.Int).SetBytes(sig[size:])
	if !ecdsa.Verify(key, digest, r, s) {
		return ErrInvalidSignature
	}
	return nil
}

// S256 returns the secp256k1 curve for building keys outside the standard
// library's curve set.
func S256() elliptic.Curve {
	return btcec.S256()
}

// signK1 signs with a secp256k1 key through btcec, which owns the scalar
// arithmetic for the Koblitz curve.
func signK1(key *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	priv, _ := btcec.PrivKeyFromBytes(key.D.Bytes())
	sig := btcecdsa.Sign(priv, digest)
	r, s := sig.R(), sig.S()
	rb, sb := r.Bytes(), s.Bytes()
	out := make([]byte, 64)
	copy(out[:32], rb[:])
	copy(out[32:], sb[:])
	return out, nil
}

// verifyK1 verifies with a secp256k1 key through btcec.
func verifyK1(key *ecdsa.PublicKey, digest, sig []byte) error {
	point := make([]byte, 65)
	point[0] = 0x04
	key.X.FillBytes(point[1:33])
	key.Y.FillBytes(point[33:])
	pub, err := btcec.ParsePubKey(point)
	if err != nil {
		return ErrInvalidKey
	}
	var r, s btcec.ModNScalar
	if r.SetByteSlice(sig[:32]) || s.SetByteSlice(sig[32:]) {
		return ErrInvalidSignature
	}
	if !btcecdsa.NewSignature(&r, &s).Verify(digest, pub) {
		return ErrInvalidSignature
	}
	return nil
}

// hashMessage digests the message with the requested hash.
func hashMessage(h crypto.Hash, message []byte) ([]byte, error) {
	if !h.Available() {
		return nil, ErrInvalidHash
	}
	hasher := h.New()
	hasher.Write(message)
	return hasher.Sum(nil), nil
}

// orderSize returns the byte size of the curve order.
func orderSize(curve elliptic.Curve) int {
	return (curve.Params().N.BitLen() + 7) / 8
}
