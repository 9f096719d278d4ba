// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asn1ext provides ASN.1 structures for PKCS#8 and SPKI encoding,
// covering the modern-curve key formats the standard library cannot parse.
package asn1ext

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
)

// PKCS8PrivateKey is the ASN.1 structure for PKCS#8 private keys.
type PKCS8PrivateKey struct {
	Version    int
	Algorithm  pkix.AlgorithmIdentifier
	PrivateKey []byte
}

// SubjectPublicKeyInfo is the ASN.1 structure for SPKI public keys.
type SubjectPublicKeyInfo struct {
	Algorithm        pkix.AlgorithmIdentifier
	SubjectPublicKey asn1.BitString
}

// Object identifiers for the RFC 8410 curve algorithms.
var (
	OIDX448    = asn1.ObjectIdentifier{1, 3, 101, 111}
	OIDEd25519 = asn1.ObjectIdentifier{1, 3, 101, 112}
	OIDEd448   = asn1.ObjectIdentifier{1, 3, 101, 113}
)

// ParsePKCS8PrivateKey parses a DER buffer into a PKCS#8 structure.
func ParsePKCS8PrivateKey(der []byte) (*PKCS8PrivateKey, error) {
	var pkcs8 PKCS8PrivateKey
	rest, err := asn1.Unmarshal(der, &pkcs8)
	if err != nil {
		return nil, errors.New("asn1ext: invalid PKCS#8 encoding")
	}
	if len(rest) > 0 {
		return nil, errors.New("asn1ext: trailing data after PKCS#8 structure")
	}
	return &pkcs8, nil
}

// ParseSubjectPublicKeyInfo parses a DER buffer into an SPKI structure.
func ParseSubjectPublicKeyInfo(der []byte) (*SubjectPublicKeyInfo, error) {
	var spki SubjectPublicKeyInfo
	rest, err := asn1.Unmarshal(der, &spki)
	if err != nil {
		return nil, errors.New("asn1ext: invalid SPKI encoding")
	}
	if len(rest) > 0 {
		return nil, errors.New("asn1ext: trailing data after SPKI structure")
	}
	return &spki, nil
}

// RawPrivateKey extracts the inner OCTET STRING of an RFC 8410 private key.
func RawPrivateKey(pkcs8 *PKCS8PrivateKey) ([]byte, error) {
	var seed []byte
	rest, err := asn1.Unmarshal(pkcs8.PrivateKey, &seed)
	if err != nil {
		return nil, errors.New("asn1ext: invalid curve private key encoding")
	}
	if len(rest) > 0 {
		return nil, errors.New("asn1ext: trailing data after curve private key")
	}
	return seed, nil
}
