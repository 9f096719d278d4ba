// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ecdh provides elliptic-curve Diffie-Hellman over the NIST curves,
// X25519 and X448.
//
// https://datatracker.ietf.org/doc/html/rfc7748
package ecdh

import (
	"crypto/ecdh"
	"errors"
	"io"

	"github.com/cloudflare/circl/dh/x448"
)

// Error types for key agreement failures
var (
	ErrInvalidPrivateKey = errors.New("ecdh: invalid private key")
	ErrInvalidPublicKey  = errors.New("ecdh: invalid public key")
	ErrAgreementFailed   = errors.New("ecdh: agreement failed")
)

// X448KeySize is the size of X448 private and public keys in bytes.
const X448KeySize = x448.Size

// Agree computes the shared secret between a private scalar and a public
// key on a crypto/ecdh curve. For the NIST curves the public key is an
// uncompressed point (0x04 || X || Y) and the secret is the X coordinate;
// for X25519 both are raw 32-byte strings.
func Agree(curve ecdh.Curve, priv, pub []byte) ([]byte, error) {
	sk, err := curve.NewPrivateKey(priv)
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}
	pk, err := curve.NewPublicKey(pub)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}
	secret, err := sk.ECDH(pk)
	if err != nil {
		return nil, ErrAgreementFailed
	}
	return secret, nil
}

// GenerateKey creates an ephemeral key pair on a crypto/ecdh curve,
// returning the private scalar and the public key in the same formats
// Agree consumes.
func GenerateKey(rand io.Reader, curve ecdh.Curve) (priv, pub []byte, err error) {
	sk, err := curve.GenerateKey(rand)
	if err != nil {
		return nil, nil, errors.New("ecdh: " + err.Error())
	}
	return sk.Bytes(), sk.PublicKey().Bytes(), nil
}

// AgreeX448 computes the X448 shared secret between a 56-byte private
// scalar and a 56-byte public key.
func AgreeX448(priv, pub []byte) ([]byte, error) {
	if len(priv) != x448.Size {
		return nil, ErrInvalidPrivateKey
	}
	if len(pub) != x448.Size {
		return nil, ErrInvalidPublicKey
	}
	var sk, pk, secret x448.Key
	copy(sk[:], priv)
	copy(pk[:], pub)
	if !x448.Shared(&secret, &sk, &pk) {
		return nil, ErrAgreementFailed
	}
	return secret[:], nil
}

// GenerateKeyX448 creates an ephemeral X448 key pair.
func GenerateKeyX448(rand io.Reader) (priv, pub []byte, err error) {
	var sk, pk x448.Key
	if _, err := io.ReadFull(rand, sk[:]); err != nil {
		return nil, nil, errors.New("ecdh: " + err.Error())
	}
	x448.KeyGen(&pk, &sk)
	return sk[:], pk[:], nil
}
