// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rsa provides the RSA operations used by COSE: RSASSA-PSS and
// RSASSA-PKCS#1 v1.5 signatures, and RSAES-OAEP key transport.
//
// https://datatracker.ietf.org/doc/html/rfc8017
// https://datatracker.ietf.org/doc/html/rfc8230
package rsa

import (
	"crypto"
	"crypto/rsa"
	"errors"
	"io"
)

// Error types for RSA failures
var (
	ErrInvalidHash      = errors.New("rsa: hash not available")
	ErrInvalidSignature = errors.New("rsa: signature verification failed")
	ErrDecryptionFailed = errors.New("rsa: decryption failed")
)

// SignPSS creates an RSASSA-PSS signature over the digest of the message.
// The salt length equals the hash output length, per RFC 8230.
func SignPSS(rand io.Reader, key *rsa.PrivateKey, h crypto.Hash, message []byte) ([]byte, error) {
	digest, err := hashMessage(h, message)
	if err != nil {
		return nil, err
	}
	sig, err := rsa.SignPSS(rand, key, h, digest, &rsa.PSSOptions{SaltLength: h.Size(), Hash: h})
	if err != nil {
		return nil, errors.New("rsa: " + err.Error())
	}
	return sig, nil
}

// VerifyPSS verifies an RSASSA-PSS signature.
func VerifyPSS(key *rsa.PublicKey, h crypto.Hash, message, sig []byte) error {
	digest, err := hashMessage(h, message)
	if err != nil {
		return err
	}
	if err := rsa.VerifyPSS(key, h, digest, sig, &rsa.PSSOptions{SaltLength: h.Size(), Hash: h}); err != nil {
		return ErrInvalidSignature
	}
	return nil
}

// SignPKCS1v15 creates an RSASSA-PKCS#1 v1.5 signature over the digest of
// the message.
func SignPKCS1v15(rand io.Reader, key *rsa.PrivateKey, h crypto.Hash, message []byte) ([]byte, error) {
	digest, err := hashMessage(h, message)
	if err != nil {
		return nil, err
	}
	sig, err := rsa.SignPKCS1v15(rand, key, h, digest)
	if err != nil {
		return nil, errors.New("rsa: " + err.Error())
	}
	return sig, nil
}

// VerifyPKCS1v15 verifies an RSASSA-PKCS#1 v1.5 signature.
func VerifyPKCS1v15(key *rsa.PublicKey, h crypto.Hash, message, sig []byte) error {
	digest, err := hashMessage(h, message)
	if err != nil {
		return err
	}
	if err := rsa.VerifyPKCS1v15(key, h, digest, sig); err != nil {
		return ErrInvalidSignature
	}
	return nil
}

// WrapOAEP encrypts a content-encryption key with RSAES-OAEP. The same hash
// drives both the OAEP digest and the MGF1 mask.
func WrapOAEP(rand io.Reader, key *rsa.PublicKey, h crypto.Hash, cek []byte) ([]byte, error) {
	if !h.Available() {
		return nil, ErrInvalidHash
	}
	out, err := rsa.EncryptOAEP(h.New(), rand, key, cek, nil)
	if err != nil {
		return nil, errors.New("rsa: " + err.Error())
	}
	return out, nil
}

// UnwrapOAEP decrypts a content-encryption key with RSAES-OAEP.
func UnwrapOAEP(key *rsa.PrivateKey, h crypto.Hash, wrapped []byte) ([]byte, error) {
	if !h.Available() {
		return nil, ErrInvalidHash
	}
	cek, err := rsa.DecryptOAEP(h.New(), nil, key, wrapped, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return cek, nil
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
