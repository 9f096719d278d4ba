// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	stdecdh "crypto/ecdh"
	stdecdsa "crypto/ecdsa"
	"crypto/ed25519"
	stdrsa "crypto/rsa"
	"crypto/x509"
	"fmt"

	"github.com/dark-bio/cose-go/internal/asn1ext"
	"github.com/dark-bio/cose-go/pem"
)

// ParseKeyPEM imports a PEM-armored key as a COSE Key. PKCS#8 private keys
// and SPKI public keys are supported for the NIST curves, RSA, Ed25519 and
// Ed448 (the latter through the RFC 8410 encoding the standard library
// does not parse).
func ParseKeyPEM(data []byte) (*Key, error) {
	kind, der, err := pem.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	switch kind {
	case "PRIVATE KEY":
		return parsePKCS8Key(der)
	case "PUBLIC KEY":
		return parseSPKIKey(der)
	case "EC PRIVATE KEY":
		priv, err := x509.ParseECPrivateKey(der)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
		}
		return NewECDSAKey(priv)
	default:
		return nil, fmt.Errorf("%w: unsupported PEM block %q", ErrInvalidKeyFormat, kind)
	}
}

// parsePKCS8Key imports a DER PKCS#8 private key.
func parsePKCS8Key(der []byte) (*Key, error) {
	if parsed, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		switch priv := parsed.(type) {
		case *stdecdsa.PrivateKey:
			return NewECDSAKey(priv)
		case *stdrsa.PrivateKey:
			return NewRSAPrivateKey(priv), nil
		case ed25519.PrivateKey:
			return NewOKPKey(CurveEd25519, priv.Public().(ed25519.PublicKey), priv.Seed())
		case *stdecdh.PrivateKey:
			if priv.Curve() == stdecdh.X25519() {
				return NewOKPKey(CurveX25519, priv.PublicKey().Bytes(), priv.Bytes())
			}
		}
		return nil, fmt.Errorf("%w: unsupported PKCS#8 key type", ErrInvalidKeyFormat)
	}
	// The standard library cannot parse the Ed448 / X448 encodings
	pkcs8, err := asn1ext.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	seed, err := asn1ext.RawPrivateKey(pkcs8)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	switch {
	case pkcs8.Algorithm.Algorithm.Equal(asn1ext.OIDEd448):
		return NewOKPKey(CurveEd448, nil, seed)
	case pkcs8.Algorithm.Algorithm.Equal(asn1ext.OIDX448):
		return NewOKPKey(CurveX448, nil, seed)
	default:
		return nil, fmt.Errorf("%w: unsupported PKCS#8 algorithm", ErrInvalidKeyFormat)
	}
}

// parseSPKIKey imports a DER SPKI public key.
func parseSPKIKey(der []byte) (*Key, error) {
	if parsed, err := x509.ParsePKIXPublicKey(der); err == nil {
		switch pub := parsed.(type) {
		case *stdecdsa.PublicKey:
			return NewECDSAPublicKey(pub)
		case *stdrsa.PublicKey:
			return NewRSAKey(pub), nil
		case ed25519.PublicKey:
			return NewOKPKey(CurveEd25519, pub, nil)
		}
		return nil, fmt.Errorf("%w: unsupported SPKI key type", ErrInvalidKeyFormat)
	}
	spki, err := asn1ext.ParseSubjectPublicKeyInfo(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	raw := spki.SubjectPublicKey.Bytes
	if spki.SubjectPublicKey.BitLength != len(raw)*8 {
		return nil, fmt.Errorf("%w: unaligned public key bits", ErrInvalidKeyFormat)
	}
	switch {
	case spki.Algorithm.Algorithm.Equal(asn1ext.OIDEd448):
		return NewOKPKey(CurveEd448, raw, nil)
	case spki.Algorithm.Algorithm.Equal(asn1ext.OIDX448):
		return NewOKPKey(CurveX448, raw, nil)
	default:
		return nil, fmt.Errorf("%w: unsupported SPKI algorithm", ErrInvalidKeyFormat)
	}
}

// MarshalKeyPEM exports a COSE Key's standard-library form as PEM, for keys
// the standard library can encode (NIST curves, RSA, Ed25519).
func MarshalKeyPEM(key *Key) ([]byte, error) {
	switch key.Type {
	case KeyTypeEC2:
		if key.Curve == CurveSecp256k1 {
			return nil, fmt.Errorf("%w: secp256k1 has no PKIX encoding", ErrInvalidKey)
		}
		if key.D != nil {
			priv, err := key.ecdsaPrivateKey()
			if err != nil {
				return nil, err
			}
			der, err := x509.MarshalPKCS8PrivateKey(priv)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
			}
			return pem.Encode("PRIVATE KEY", der), nil
		}
		pub, err := key.ecdsaPublicKey()
		if err != nil {
			return nil, err
		}
		der, err := x509.MarshalPKIXPublicKey(pub)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
		}
		return pem.Encode("PUBLIC KEY", der), nil
	case KeyTypeRSA:
		if key.D != nil {
			priv, err := key.rsaPrivateKey()
			if err != nil {
				return nil, err
			}
			der, err := x509.MarshalPKCS8PrivateKey(priv)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
			}
			return pem.Encode("PRIVATE KEY", der), nil
		}
		pub, err := key.rsaPublicKey()
		if err != nil {
			return nil, err
		}
		der, err := x509.MarshalPKIXPublicKey(pub)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
		}
		return pem.Encode("PUBLIC KEY", der), nil
	case KeyTypeOKP:
		if key.Curve != CurveEd25519 {
			return nil, fmt.Errorf("%w: %v has no standard library encoding", ErrInvalidKey, key.Curve)
		}
		if key.D != nil {
			der, err := x509.MarshalPKCS8PrivateKey(ed25519.NewKeyFromSeed(key.D))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
			}
			return pem.Encode("PRIVATE KEY", der), nil
		}
		der, err := x509.MarshalPKIXPublicKey(ed25519.PublicKey(key.X))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
		}
		return pem.Encode("PUBLIC KEY", der), nil
	default:
		return nil, fmt.Errorf("%w: %v keys have no PEM form", ErrInvalidKey, key.Type)
	}
}
