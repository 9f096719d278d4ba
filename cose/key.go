// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"bytes"
	stdecdh "crypto/ecdh"
	stdecdsa "crypto/ecdsa"
	"crypto/elliptic"
	stdrsa "crypto/rsa"
	"fmt"
	"math/big"
	"slices"

	"github.com/dark-bio/cose-go/cbor"
	dbecdsa "github.com/dark-bio/cose-go/ecdsa"
	"github.com/dark-bio/cose-go/eddsa"
)

// KeyType identifies the family of a COSE_Key and which parameters it
// carries.
type KeyType int64

// Key types from the IANA COSE Key Types registry
const (
	KeyTypeOKP       KeyType = 1
	KeyTypeEC2       KeyType = 2
	KeyTypeRSA       KeyType = 3
	KeyTypeSymmetric KeyType = 4
)

// String returns a diagnostic name for the key type.
func (t KeyType) String() string {
	switch t {
	case KeyTypeOKP:
		return "OKP"
	case KeyTypeEC2:
		return "EC2"
	case KeyTypeRSA:
		return "RSA"
	case KeyTypeSymmetric:
		return "Symmetric"
	default:
		return fmt.Sprintf("unknown key type %d", int64(t))
	}
}

// Curve identifies an elliptic curve from the IANA COSE Elliptic Curves
// registry.
type Curve int64

// Curves
const (
	CurveP256      Curve = 1
	CurveP384      Curve = 2
	CurveP521      Curve = 3
	CurveX25519    Curve = 4
	CurveX448      Curve = 5
	CurveEd25519   Curve = 6
	CurveEd448     Curve = 7
	CurveSecp256k1 Curve = 8
)

// String returns the registered curve name.
func (c Curve) String() string {
	switch c {
	case CurveP256:
		return "P-256"
	case CurveP384:
		return "P-384"
	case CurveP521:
		return "P-521"
	case CurveX25519:
		return "X25519"
	case CurveX448:
		return "X448"
	case CurveEd25519:
		return "Ed25519"
	case CurveEd448:
		return "Ed448"
	case CurveSecp256k1:
		return "secp256k1"
	default:
		return fmt.Sprintf("unknown curve %d", int64(c))
	}
}

// coordinateSize returns the fixed width of field elements and scalars on
// the curve. X448 group elements are 56 bytes; Ed448 keys carry the extra
// sign byte.
func (c Curve) coordinateSize() int {
	switch c {
	case CurveP256, CurveSecp256k1:
		return 32
	case CurveP384:
		return 48
	case CurveP521:
		return 66
	case CurveX25519, CurveEd25519:
		return 32
	case CurveX448:
		return 56
	case CurveEd448:
		return 57
	default:
		return 0
	}
}

// keyType returns the key family the curve belongs to.
func (c Curve) keyType() KeyType {
	switch c {
	case CurveP256, CurveP384, CurveP521, CurveSecp256k1:
		return KeyTypeEC2
	case CurveX25519, CurveX448, CurveEd25519, CurveEd448:
		return KeyTypeOKP
	default:
		return 0
	}
}

// KeyOp restricts the purposes a key may be used for.
type KeyOp int64

// Key operations from RFC 8152 Table 4
const (
	KeyOpSign       KeyOp = 1
	KeyOpVerify     KeyOp = 2
	KeyOpEncrypt    KeyOp = 3
	KeyOpDecrypt    KeyOp = 4
	KeyOpWrapKey    KeyOp = 5
	KeyOpUnwrapKey  KeyOp = 6
	KeyOpDeriveKey  KeyOp = 7
	KeyOpDeriveBits KeyOp = 8
	KeyOpMACCreate  KeyOp = 9
	KeyOpMACVerify  KeyOp = 10
)

// COSE_Key common parameter labels (RFC 8152 Table 3)
const (
	keyLabelType      = 1
	keyLabelID        = 2
	keyLabelAlgorithm = 3
	keyLabelOps       = 4
	keyLabelBaseIV    = 5
)

// Type-specific parameter labels (RFC 8152 Tables 5-6, RFC 8230 Table 4)
const (
	keyLabelCurve = -1 // EC2 / OKP
	keyLabelX     = -2
	keyLabelY     = -3
	keyLabelD     = -4

	keyLabelK = -1 // Symmetric

	keyLabelRSAN    = -1 // RSA
	keyLabelRSAE    = -2
	keyLabelRSAD    = -3
	keyLabelRSAP    = -4
	keyLabelRSAQ    = -5
	keyLabelRSADP   = -6
	keyLabelRSADQ   = -7
	keyLabelRSAQInv = -8
	keyLabelRSAOth  = -9
)

// Key is a COSE_Key. The populated parameter fields depend on Type; the
// common fields apply to every variant. Keys are read-only after
// construction and safe for concurrent use.
type Key struct {
	// Common parameters
	Type      KeyType
	ID        []byte
	Algorithm Algorithm // 0 when unset
	Ops       []KeyOp
	BaseIV    []byte

	// EC2 / OKP parameters; D is also the RSA private exponent
	Curve   Curve
	X, Y, D []byte

	// Symmetric parameter
	K []byte

	// RSA parameters (RFC 8230); Other carries additional CRT primes opaquely
	N, E, P, Q, DP, DQ, QInv []byte
	Other                    cbor.Raw

	// Unrecognized parameters, preserved verbatim for round-tripping
	extra map[cbor.Label]cbor.Raw
}

// NewSymmetricKey creates a symmetric key around the secret bytes.
func NewSymmetricKey(k []byte) *Key {
	return &Key{Type: KeyTypeSymmetric, K: k}
}

// NewEC2Key creates an EC2 key. The coordinates must have the fixed width
// of the curve; d may be nil for a public key.
func NewEC2Key(curve Curve, x, y, d []byte) (*Key, error) {
	key := &Key{Type: KeyTypeEC2, Curve: curve, X: x, Y: y, D: d}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return key, nil
}

// NewOKPKey creates an OKP key. Either of x and d may be nil, but not both.
func NewOKPKey(curve Curve, x, d []byte) (*Key, error) {
	key := &Key{Type: KeyTypeOKP, Curve: curve, X: x, D: d}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return key, nil
}

// NewRSAKey creates an RSA public key from a standard library key.
func NewRSAKey(pub *stdrsa.PublicKey) *Key {
	return &Key{
		Type: KeyTypeRSA,
		N:    pub.N.Bytes(),
		E:    big.NewInt(int64(pub.E)).Bytes(),
	}
}

// NewRSAPrivateKey creates an RSA private key from a standard library key.
func NewRSAPrivateKey(priv *stdrsa.PrivateKey) *Key {
	priv.Precompute()
	return &Key{
		Type: KeyTypeRSA,
		N:    priv.N.Bytes(),
		E:    big.NewInt(int64(priv.E)).Bytes(),
		D:    priv.D.Bytes(),
		P:    priv.Primes[0].Bytes(),
		Q:    priv.Primes[1].Bytes(),
		DP:   priv.Precomputed.Dp.Bytes(),
		DQ:   priv.Precomputed.Dq.Bytes(),
		QInv: priv.Precomputed.Qinv.Bytes(),
	}
}

// NewECDSAKey creates an EC2 key from a standard library ECDSA key,
// padding the coordinates to the curve's fixed width.
func NewECDSAKey(priv *stdecdsa.PrivateKey) (*Key, error) {
	key, err := NewECDSAPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	d := make([]byte, key.Curve.coordinateSize())
	priv.D.FillBytes(d)
	key.D = d
	return key, nil
}

// NewECDSAPublicKey creates an EC2 public key from a standard library
// ECDSA public key.
func NewECDSAPublicKey(pub *stdecdsa.PublicKey) (*Key, error) {
	var curve Curve
	switch pub.Curve {
	case elliptic.P256():
		curve = CurveP256
	case elliptic.P384():
		curve = CurveP384
	case elliptic.P521():
		curve = CurveP521
	case dbecdsa.S256():
		curve = CurveSecp256k1
	default:
		return nil, fmt.Errorf("%w: unsupported curve", ErrInvalidKey)
	}
	size := curve.coordinateSize()
	x := make([]byte, size)
	y := make([]byte, size)
	pub.X.FillBytes(x)
	pub.Y.FillBytes(y)
	return NewEC2Key(curve, x, y, nil)
}

// Validate checks that the parameters required by the key type are present
// and internally consistent.
func (k *Key) Validate() error {
	switch k.Type {
	case KeyTypeEC2:
		if k.Curve.keyType() != KeyTypeEC2 {
			return fmt.Errorf("%w: EC2 key with curve %v", ErrInvalidKeyFormat, k.Curve)
		}
		size := k.Curve.coordinateSize()
		if len(k.X) != size || len(k.Y) != size {
			return fmt.Errorf("%w: EC2 coordinates must be %d bytes", ErrInvalidKeyFormat, size)
		}
		if k.D != nil && len(k.D) != size {
			return fmt.Errorf("%w: EC2 private scalar must be %d bytes", ErrInvalidKeyFormat, size)
		}
	case KeyTypeOKP:
		if k.Curve.keyType() != KeyTypeOKP {
			return fmt.Errorf("%w: OKP key with curve %v", ErrInvalidKeyFormat, k.Curve)
		}
		size := k.Curve.coordinateSize()
		if k.X == nil && k.D == nil {
			return fmt.Errorf("%w: OKP key needs x or d", ErrInvalidKeyFormat)
		}
		if k.X != nil && len(k.X) != size {
			return fmt.Errorf("%w: OKP public key must be %d bytes", ErrInvalidKeyFormat, size)
		}
		if k.D != nil && len(k.D) != size {
			return fmt.Errorf("%w: OKP private key must be %d bytes", ErrInvalidKeyFormat, size)
		}
	case KeyTypeSymmetric:
		if len(k.K) == 0 {
			return fmt.Errorf("%w: symmetric key needs k", ErrInvalidKeyFormat)
		}
	case KeyTypeRSA:
		if len(k.N) == 0 || len(k.E) == 0 {
			return fmt.Errorf("%w: RSA key needs n and e", ErrInvalidKeyFormat)
		}
		if k.D != nil && (len(k.P) == 0 || len(k.Q) == 0) {
			return fmt.Errorf("%w: RSA private key needs p and q", ErrInvalidKeyFormat)
		}
	default:
		return fmt.Errorf("%w: %v", ErrInvalidKeyFormat, k.Type)
	}
	if k.Algorithm != 0 {
		if _, err := k.Algorithm.info(); err != nil {
			return err
		}
		if err := k.checkAlgorithm(k.Algorithm); err != nil {
			return err
		}
	}
	return nil
}

// CheckOp verifies that the key may perform the operation with the
// algorithm: key_ops must be empty or contain op, the key type must match
// the algorithm's required type, and the key's alg restriction, when set,
// must equal alg.
func (k *Key) CheckOp(op KeyOp, alg Algorithm) error {
	if len(k.Ops) > 0 && !slices.Contains(k.Ops, op) {
		return fmt.Errorf("%w: key_ops does not permit %d", ErrInvalidKey, int64(op))
	}
	if k.Algorithm != 0 && k.Algorithm != alg {
		return fmt.Errorf("%w: key restricted to %v", ErrInvalidKey, k.Algorithm)
	}
	return k.checkAlgorithm(alg)
}

// checkAlgorithm verifies type and curve compatibility with the algorithm.
func (k *Key) checkAlgorithm(alg Algorithm) error {
	info, err := alg.info()
	if err != nil {
		return err
	}
	switch info.prim {
	case primECDSA:
		if k.Type != KeyTypeEC2 {
			return fmt.Errorf("%w: %v needs an EC2 key", ErrInvalidKey, alg)
		}
		if k.Curve != info.curve {
			return fmt.Errorf("%w: %v needs curve %v", ErrInvalidKey, alg, info.curve)
		}
	case primEdDSA:
		if k.Type != KeyTypeOKP || (k.Curve != CurveEd25519 && k.Curve != CurveEd448) {
			return fmt.Errorf("%w: %v needs an Ed25519 or Ed448 key", ErrInvalidKey, alg)
		}
	case primRSAPSS, primRSAPKCS1, primRSAOAEP:
		if k.Type != KeyTypeRSA {
			return fmt.Errorf("%w: %v needs an RSA key", ErrInvalidKey, alg)
		}
	case primECDH:
		if k.Type != KeyTypeEC2 && k.Type != KeyTypeOKP {
			return fmt.Errorf("%w: %v needs an EC2 or OKP key", ErrInvalidKey, alg)
		}
		if k.Curve == CurveEd25519 || k.Curve == CurveEd448 {
			return fmt.Errorf("%w: %v cannot use a signing curve", ErrInvalidKey, alg)
		}
	default:
		if k.Type != KeyTypeSymmetric {
			return fmt.Errorf("%w: %v needs a symmetric key", ErrInvalidKey, alg)
		}
	}
	return nil
}

// Encode serializes the key as a canonical COSE_Key map.
func (k *Key) Encode() ([]byte, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	enc := cbor.NewEncoder()
	if err := k.encode(enc); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

// keyPair is one label/value entry of the COSE_Key map.
type keyPair struct {
	label cbor.Label
	write func(*cbor.Encoder)
}

// encode emits the COSE_Key map with deterministically ordered keys.
func (k *Key) encode(enc *cbor.Encoder) error {
	pairs := []keyPair{
		{cbor.IntLabel(keyLabelType), func(e *cbor.Encoder) { e.EncodeInt(int64(k.Type)) }},
	}
	addBytes := func(label int64, value []byte) {
		pairs = append(pairs, keyPair{cbor.IntLabel(label), func(e *cbor.Encoder) { e.EncodeBytes(value) }})
	}
	if k.ID != nil {
		addBytes(keyLabelID, k.ID)
	}
	if k.Algorithm != 0 {
		pairs = append(pairs, keyPair{cbor.IntLabel(keyLabelAlgorithm), func(e *cbor.Encoder) { e.EncodeInt(int64(k.Algorithm)) }})
	}
	if len(k.Ops) > 0 {
		pairs = append(pairs, keyPair{cbor.IntLabel(keyLabelOps), func(e *cbor.Encoder) {
			e.EncodeArrayHeader(len(k.Ops))
			for _, op := range k.Ops {
				e.EncodeInt(int64(op))
			}
		}})
	}
	if k.BaseIV != nil {
		addBytes(keyLabelBaseIV, k.BaseIV)
	}

	switch k.Type {
	case KeyTypeEC2, KeyTypeOKP:
		pairs = append(pairs, keyPair{cbor.IntLabel(keyLabelCurve), func(e *cbor.Encoder) { e.EncodeInt(int64(k.Curve)) }})
		if k.X != nil {
			addBytes(keyLabelX, k.X)
		}
		if k.Type == KeyTypeEC2 {
			addBytes(keyLabelY, k.Y)
		}
		if k.D != nil {
			addBytes(keyLabelD, k.D)
		}
	case KeyTypeSymmetric:
		addBytes(keyLabelK, k.K)
	case KeyTypeRSA:
		addBytes(keyLabelRSAN, minimalInt(k.N))
		addBytes(keyLabelRSAE, minimalInt(k.E))
		if k.D != nil {
			addBytes(keyLabelRSAD, minimalInt(k.D))
		}
		if k.P != nil {
			addBytes(keyLabelRSAP, minimalInt(k.P))
		}
		if k.Q != nil {
			addBytes(keyLabelRSAQ, minimalInt(k.Q))
		}
		if k.DP != nil {
			addBytes(keyLabelRSADP, minimalInt(k.DP))
		}
		if k.DQ != nil {
			addBytes(keyLabelRSADQ, minimalInt(k.DQ))
		}
		if k.QInv != nil {
			addBytes(keyLabelRSAQInv, minimalInt(k.QInv))
		}
		if k.Other != nil {
			pairs = append(pairs, keyPair{cbor.IntLabel(keyLabelRSAOth), func(e *cbor.Encoder) { e.EncodeRaw(k.Other) }})
		}
	}
	for label, raw := range k.extra {
		pairs = append(pairs, keyPair{label, func(e *cbor.Encoder) { e.EncodeRaw(raw) }})
	}

	slices.SortFunc(pairs, func(a, b keyPair) int { return cbor.CompareLabels(a.label, b.label) })
	enc.EncodeMapHeader(len(pairs))
	for _, pair := range pairs {
		enc.EncodeLabel(pair.label)
		pair.write(enc)
	}
	return nil
}

// DecodeKey parses a canonical COSE_Key map.
func DecodeKey(data []byte) (*Key, error) {
	dec := cbor.NewDecoder(data)
	key, err := decodeKey(dec)
	if err != nil {
		return nil, err
	}
	if err := dec.Finish(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	return key, nil
}

// decodeKey parses a COSE_Key map from the stream. The canonical key order
// guarantees the kty label (1) is seen before any type-specific negative
// label, so the raw entries are collected first and interpreted after.
func decodeKey(dec *cbor.Decoder) (*Key, error) {
	entries, err := decodeRawMap(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	key := &Key{}

	take := func(label int64) (cbor.Raw, bool) {
		raw, ok := entries[cbor.IntLabel(label)]
		if ok {
			delete(entries, cbor.IntLabel(label))
		}
		return raw, ok
	}
	takeBytes := func(label int64) ([]byte, error) {
		raw, ok := take(label)
		if !ok {
			return nil, nil
		}
		value, err := cbor.DecodeBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: label %d: %v", ErrInvalidKeyFormat, label, err)
		}
		return value, nil
	}
	takeInt := func(label int64) (int64, bool, error) {
		raw, ok := take(label)
		if !ok {
			return 0, false, nil
		}
		value, err := cbor.DecodeInt64(raw)
		if err != nil {
			return 0, false, fmt.Errorf("%w: label %d: %v", ErrInvalidKeyFormat, label, err)
		}
		return value, true, nil
	}

	// Common parameters
	kty, ok, err := takeInt(keyLabelType)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing kty", ErrInvalidKeyFormat)
	}
	key.Type = KeyType(kty)
	switch key.Type {
	case KeyTypeOKP, KeyTypeEC2, KeyTypeRSA, KeyTypeSymmetric:
	default:
		return nil, fmt.Errorf("%w: unknown kty %d", ErrInvalidKeyFormat, kty)
	}
	if key.ID, err = takeBytes(keyLabelID); err != nil {
		return nil, err
	}
	if alg, ok, err := takeInt(keyLabelAlgorithm); err != nil {
		return nil, err
	} else if ok {
		if _, err := Lookup(Algorithm(alg)); err != nil {
			return nil, err
		}
		key.Algorithm = Algorithm(alg)
	}
	if raw, ok := take(keyLabelOps); ok {
		opsDec := cbor.NewDecoder(raw)
		count, err := opsDec.DecodeArrayHeader()
		if err != nil {
			return nil, fmt.Errorf("%w: key_ops: %v", ErrInvalidKeyFormat, err)
		}
		for range count {
			op, err := opsDec.DecodeInt()
			if err != nil {
				return nil, fmt.Errorf("%w: key_ops: %v", ErrInvalidKeyFormat, err)
			}
			if op < 1 || op > 10 {
				return nil, fmt.Errorf("%w: key_ops value %d", ErrInvalidKeyFormat, op)
			}
			key.Ops = append(key.Ops, KeyOp(op))
		}
	}
	if key.BaseIV, err = takeBytes(keyLabelBaseIV); err != nil {
		return nil, err
	}

	// Type-specific parameters
	switch key.Type {
	case KeyTypeEC2, KeyTypeOKP:
		crv, ok, err := takeInt(keyLabelCurve)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: missing crv", ErrInvalidKeyFormat)
		}
		key.Curve = Curve(crv)
		if key.X, err = takeBytes(keyLabelX); err != nil {
			return nil, err
		}
		if key.Type == KeyTypeEC2 {
			if key.Y, err = takeBytes(keyLabelY); err != nil {
				return nil, err
			}
		}
		if key.D, err = takeBytes(keyLabelD); err != nil {
			return nil, err
		}
	case KeyTypeSymmetric:
		if key.K, err = takeBytes(keyLabelK); err != nil {
			return nil, err
		}
	case KeyTypeRSA:
		fields := []struct {
			label int64
			dst   *[]byte
		}{
			{keyLabelRSAN, &key.N}, {keyLabelRSAE, &key.E}, {keyLabelRSAD, &key.D},
			{keyLabelRSAP, &key.P}, {keyLabelRSAQ, &key.Q}, {keyLabelRSADP, &key.DP},
			{keyLabelRSADQ, &key.DQ}, {keyLabelRSAQInv, &key.QInv},
		}
		for _, field := range fields {
			if *field.dst, err = takeBytes(field.label); err != nil {
				return nil, err
			}
		}
		if raw, ok := take(keyLabelRSAOth); ok {
			key.Other = raw
		}
	}

	// Anything left over is preserved verbatim
	if len(entries) > 0 {
		key.extra = entries
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return key, nil
}

// decodeRawMap reads a CBOR map into raw label/value entries, enforcing
// deterministic key order and rejecting duplicates.
func decodeRawMap(dec *cbor.Decoder) (map[cbor.Label]cbor.Raw, error) {
	count, err := dec.DecodeMapHeader()
	if err != nil {
		return nil, err
	}
	entries := make(map[cbor.Label]cbor.Raw, min(int(count), 64))
	var prev *cbor.Label
	for range count {
		label, err := dec.DecodeLabel()
		if err != nil {
			return nil, err
		}
		if prev != nil {
			switch cmp := cbor.CompareLabels(*prev, label); {
			case cmp == 0:
				return nil, fmt.Errorf("%w: %v", cbor.ErrDuplicateMapKey, label)
			case cmp > 0:
				return nil, fmt.Errorf("%w: %v must come before %v", cbor.ErrInvalidMapKeyOrder, label, *prev)
			}
		}
		prev = &label
		value, err := dec.DecodeRaw()
		if err != nil {
			return nil, err
		}
		entries[label] = value
	}
	return entries, nil
}

// minimalInt strips leading zero bytes from a big-endian unsigned integer.
func minimalInt(value []byte) []byte {
	return bytes.TrimLeft(value, "\x00")
}

// ecdsaCurve maps the key's curve to the elliptic.Curve implementation.
func (k *Key) ecdsaCurve() (elliptic.Curve, error) {
	switch k.Curve {
	case CurveP256:
		return elliptic.P256(), nil
	case CurveP384:
		return elliptic.P384(), nil
	case CurveP521:
		return elliptic.P521(), nil
	case CurveSecp256k1:
		return dbecdsa.S256(), nil
	default:
		return nil, fmt.Errorf("%w: curve %v is not an ECDSA curve", ErrInvalidKey, k.Curve)
	}
}

// ecdsaPublicKey builds a standard library public key from the EC2
// parameters.
func (k *Key) ecdsaPublicKey() (*stdecdsa.PublicKey, error) {
	curve, err := k.ecdsaCurve()
	if err != nil {
		return nil, err
	}
	return &stdecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(k.X),
		Y:     new(big.Int).SetBytes(k.Y),
	}, nil
}

// ecdsaPrivateKey builds a standard library private key from the EC2
// parameters.
func (k *Key) ecdsaPrivateKey() (*stdecdsa.PrivateKey, error) {
	if k.D == nil {
		return nil, fmt.Errorf("%w: missing private scalar", ErrInvalidKey)
	}
	pub, err := k.ecdsaPublicKey()
	if err != nil {
		return nil, err
	}
	return &stdecdsa.PrivateKey{
		PublicKey: *pub,
		D:         new(big.Int).SetBytes(k.D),
	}, nil
}

// rsaPublicKey builds a standard library public key from the RSA
// parameters.
func (k *Key) rsaPublicKey() (*stdrsa.PublicKey, error) {
	e := new(big.Int).SetBytes(k.E)
	if !e.IsInt64() || e.Int64() > int64(maxRSAExponent) || e.Int64() < 3 {
		return nil, fmt.Errorf("%w: RSA exponent out of range", ErrInvalidKey)
	}
	return &stdrsa.PublicKey{
		N: new(big.Int).SetBytes(k.N),
		E: int(e.Int64()),
	}, nil
}

const maxRSAExponent = 1<<31 - 1

// rsaPrivateKey builds a standard library private key from the RSA
// parameters.
func (k *Key) rsaPrivateKey() (*stdrsa.PrivateKey, error) {
	if k.D == nil {
		return nil, fmt.Errorf("%w: missing private exponent", ErrInvalidKey)
	}
	pub, err := k.rsaPublicKey()
	if err != nil {
		return nil, err
	}
	priv := &stdrsa.PrivateKey{
		PublicKey: *pub,
		D:         new(big.Int).SetBytes(k.D),
		Primes: []*big.Int{
			new(big.Int).SetBytes(k.P),
			new(big.Int).SetBytes(k.Q),
		},
	}
	priv.Precompute()
	if err := priv.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return priv, nil
}

// eddsaPublic returns the EdDSA public key, deriving it from the private
// seed when only d is present.
func (k *Key) eddsaPublic() ([]byte, error) {
	if k.X != nil {
		return k.X, nil
	}
	if k.D == nil {
		return nil, fmt.Errorf("%w: missing public key", ErrInvalidKey)
	}
	var pub []byte
	var err error
	if k.Curve == CurveEd25519 {
		pub, err = eddsa.Public25519(k.D)
	} else {
		pub, err = eddsa.Public448(k.D)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return pub, nil
}

// ecdhCurve maps the key's curve to the crypto/ecdh implementation; X448
// is handled separately since the standard library does not provide it.
func (k *Key) ecdhCurve() (stdecdh.Curve, error) {
	switch k.Curve {
	case CurveP256:
		return stdecdh.P256(), nil
	case CurveP384:
		return stdecdh.P384(), nil
	case CurveP521:
		return stdecdh.P521(), nil
	case CurveX25519:
		return stdecdh.X25519(), nil
	default:
		return nil, fmt.Errorf("%w: curve %v is not a key agreement curve", ErrInvalidKey, k.Curve)
	}
}

// ecdhPublicBytes returns the public key in the format crypto/ecdh
// consumes: an uncompressed point for the NIST curves, the raw u-coordinate
// for X25519/X448.
func (k *Key) ecdhPublicBytes() []byte {
	if k.Type == KeyTypeOKP {
		return k.X
	}
	point := make([]byte, 1+len(k.X)+len(k.Y))
	point[0] = 0x04
	copy(point[1:], k.X)
	copy(point[1+len(k.X):], k.Y)
	return point
}
