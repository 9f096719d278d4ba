// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"fmt"
	"io"

	"github.com/dark-bio/cose-go/cbor"
	dbecdsa "github.com/dark-bio/cose-go/ecdsa"
	"github.com/dark-bio/cose-go/eddsa"
	dbrsa "github.com/dark-bio/cose-go/rsa"
)

// Sign1Message is a COSE_Sign1 message: a payload covered by a single
// signature.
//
//	COSE_Sign1 = [
//	    protected:   bstr,
//	    unprotected: header_map,
//	    payload:     bstr / nil,
//	    signature:   bstr
//	]
type Sign1Message struct {
	Headers     Headers
	Payload     []byte // nil means detached content
	ExternalAAD []byte
	Signature   []byte
}

// Sign computes the signature over the Sig_structure with the private key.
// The alg header selects the algorithm and the protected bucket is frozen
// by this call.
func (m *Sign1Message) Sign(rand io.Reader, key *Key) error {
	alg, err := m.Headers.Algorithm()
	if err != nil {
		return err
	}
	if err := key.CheckOp(KeyOpSign, alg); err != nil {
		return err
	}
	if m.Payload == nil {
		return ErrMissingPayload
	}
	if err := m.Headers.validate(); err != nil {
		return err
	}
	protected, err := m.Headers.encodeProtected()
	if err != nil {
		return err
	}
	toBeSigned := sigStructure(contextSignature1, protected, nil, m.ExternalAAD, m.Payload)
	sig, err := signPayload(rand, alg, key, toBeSigned)
	if err != nil {
		return err
	}
	m.Signature = sig
	return nil
}

// Verify rebuilds the Sig_structure from the retained protected bytes and
// checks the signature. Detached payloads must be assigned before calling.
func (m *Sign1Message) Verify(key *Key) error {
	alg, err := m.Headers.Algorithm()
	if err != nil {
		return err
	}
	if err := key.CheckOp(KeyOpVerify, alg); err != nil {
		return err
	}
	if m.Payload == nil {
		return ErrMissingPayload
	}
	if len(m.Signature) == 0 {
		return ErrVerificationFailed
	}
	protected, err := m.Headers.encodeProtected()
	if err != nil {
		return err
	}
	toBeSigned := sigStructure(contextSignature1, protected, nil, m.ExternalAAD, m.Payload)
	return verifyPayload(alg, key, toBeSigned, m.Signature)
}

// Encode serializes the message, optionally wrapped in tag 18.
func (m *Sign1Message) Encode(attachTag bool) ([]byte, error) {
	if len(m.Signature) == 0 {
		return nil, fmt.Errorf("%w: message not signed", ErrMalformedMessage)
	}
	enc := cbor.NewEncoder()
	if attachTag {
		enc.EncodeTag(TagSign1)
	}
	enc.EncodeArrayHeader(4)
	if err := m.Headers.encodeTo(enc); err != nil {
		return nil, err
	}
	encodePayload(enc, m.Payload)
	enc.EncodeBytes(m.Signature)
	return enc.Bytes(), nil
}

// DecodeSign1 parses a COSE_Sign1 message, tagged or untagged.
func DecodeSign1(data []byte) (*Sign1Message, error) {
	dec, err := openMessage(data, TagSign1)
	if err != nil {
		return nil, err
	}
	m, err := decodeSign1Body(dec)
	if err != nil {
		return nil, err
	}
	if err := dec.Finish(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return m, nil
}

// decodeSign1Body parses the four-element COSE_Sign1 array.
func decodeSign1Body(dec *cbor.Decoder) (*Sign1Message, error) {
	if err := expectArray(dec, 4); err != nil {
		return nil, err
	}
	headers, err := decodeHeadersFrom(dec)
	if err != nil {
		return nil, err
	}
	payload, err := decodePayload(dec)
	if err != nil {
		return nil, err
	}
	sig, err := dec.DecodeBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrMalformedMessage, err)
	}
	return &Sign1Message{Headers: headers, Payload: payload, Signature: sig}, nil
}

// Signature is one signer entry of a COSE_Sign message, with its own
// header buckets.
type Signature struct {
	Headers   Headers
	Signer    *Key // private key used by SignMessage.Sign; never serialized
	Signature []byte
}

// SignMessage is a COSE_Sign message: a payload covered by any number of
// independent signatures.
//
//	COSE_Sign = [
//	    protected:   bstr,
//	    unprotected: header_map,
//	    payload:     bstr / nil,
//	    signatures:  [+ COSE_Signature]
//	]
type SignMessage struct {
	Headers     Headers
	Payload     []byte // nil means detached content
	ExternalAAD []byte
	Signatures  []*Signature
}

// Sign computes every signer entry's signature. Each entry carries its own
// algorithm in its headers and its private key in Signer.
func (m *SignMessage) Sign(rand io.Reader) error {
	if len(m.Signatures) == 0 {
		return fmt.Errorf("%w: no signer entries", ErrMalformedMessage)
	}
	if m.Payload == nil {
		return ErrMissingPayload
	}
	if err := m.Headers.validate(); err != nil {
		return err
	}
	bodyProtected, err := m.Headers.encodeProtected()
	if err != nil {
		return err
	}
	for i, entry := range m.Signatures {
		alg, err := entry.Headers.Algorithm()
		if err != nil {
			return fmt.Errorf("signer %d: %w", i, err)
		}
		if entry.Signer == nil {
			return fmt.Errorf("signer %d: %w: no key", i, ErrInvalidKey)
		}
		if err := entry.Signer.CheckOp(KeyOpSign, alg); err != nil {
			return fmt.Errorf("signer %d: %w", i, err)
		}
		if err := entry.Headers.validate(); err != nil {
			return fmt.Errorf("signer %d: %w", i, err)
		}
		signProtected, err := entry.Headers.encodeProtected()
		if err != nil {
			return fmt.Errorf("signer %d: %w", i, err)
		}
		toBeSigned := sigStructure(contextSignature, bodyProtected, signProtected, m.ExternalAAD, m.Payload)
		sig, err := signPayload(rand, alg, entry.Signer, toBeSigned)
		if err != nil {
			return fmt.Errorf("signer %d: %w", i, err)
		}
		entry.Signature = sig
	}
	return nil
}

// Verify checks the signature of the signer entry at the given index with
// the public key.
func (m *SignMessage) Verify(index int, key *Key) error {
	if index < 0 || index >= len(m.Signatures) {
		return fmt.Errorf("%w: no signer entry %d", ErrMalformedMessage, index)
	}
	if m.Payload == nil {
		return ErrMissingPayload
	}
	entry := m.Signatures[index]
	alg, err := entry.Headers.Algorithm()
	if err != nil {
		return err
	}
	if err := key.CheckOp(KeyOpVerify, alg); err != nil {
		return err
	}
	if len(entry.Signature) == 0 {
		return ErrVerificationFailed
	}
	bodyProtected, err := m.Headers.encodeProtected()
	if err != nil {
		return err
	}
	signProtected, err := entry.Headers.encodeProtected()
	if err != nil {
		return err
	}
	toBeSigned := sigStructure(contextSignature, bodyProtected, signProtected, m.ExternalAAD, m.Payload)
	return verifyPayload(alg, key, toBeSigned, entry.Signature)
}

// Encode serializes the message, optionally wrapped in tag 98.
func (m *SignMessage) Encode(attachTag bool) ([]byte, error) {
	if len(m.Signatures) == 0 {
		return nil, fmt.Errorf("%w: no signer entries", ErrMalformedMessage)
	}
	enc := cbor.NewEncoder()
	if attachTag {
		enc.EncodeTag(TagSign)
	}
	enc.EncodeArrayHeader(4)
	if err := m.Headers.encodeTo(enc); err != nil {
		return nil, err
	}
	encodePayload(enc, m.Payload)
	enc.EncodeArrayHeader(len(m.Signatures))
	for i, entry := range m.Signatures {
		if len(entry.Signature) == 0 {
			return nil, fmt.Errorf("%w: signer %d not signed", ErrMalformedMessage, i)
		}
		enc.EncodeArrayHeader(3)
		if err := entry.Headers.encodeTo(enc); err != nil {
			return nil, err
		}
		enc.EncodeBytes(entry.Signature)
	}
	return enc.Bytes(), nil
}

// DecodeSign parses a COSE_Sign message, tagged or untagged.
func DecodeSign(data []byte) (*SignMessage, error) {
	dec, err := openMessage(data, TagSign)
	if err != nil {
		return nil, err
	}
	m, err := decodeSignBody(dec)
	if err != nil {
		return nil, err
	}
	if err := dec.Finish(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return m, nil
}

// decodeSignBody parses the four-element COSE_Sign array.
func decodeSignBody(dec *cbor.Decoder) (*SignMessage, error) {
	if err := expectArray(dec, 4); err != nil {
		return nil, err
	}
	headers, err := decodeHeadersFrom(dec)
	if err != nil {
		return nil, err
	}
	payload, err := decodePayload(dec)
	if err != nil {
		return nil, err
	}
	count, err := dec.DecodeArrayHeader()
	if err != nil {
		return nil, fmt.Errorf("%w: signatures: %v", ErrMalformedMessage, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: empty signature list", ErrMalformedMessage)
	}
	m := &SignMessage{Headers: headers, Payload: payload}
	for i := range count {
		if err := expectArray(dec, 3); err != nil {
			return nil, fmt.Errorf("signer %d: %w", i, err)
		}
		sigHeaders, err := decodeHeadersFrom(dec)
		if err != nil {
			return nil, fmt.Errorf("signer %d: %w", i, err)
		}
		sig, err := dec.DecodeBytes()
		if err != nil {
			return nil, fmt.Errorf("%w: signer %d signature: %v", ErrMalformedMessage, i, err)
		}
		m.Signatures = append(m.Signatures, &Signature{Headers: sigHeaders, Signature: sig})
	}
	return m, nil
}

// signPayload dispatches to the signature primitive behind the algorithm.
func signPayload(rand io.Reader, alg Algorithm, key *Key, toBeSigned []byte) ([]byte, error) {
	info, err := alg.info()
	if err != nil {
		return nil, err
	}
	if info.kind != KindSignature {
		return nil, fmt.Errorf("%w: %v cannot sign", ErrInvalidAlgorithm, alg)
	}
	switch info.prim {
	case primECDSA:
		priv, err := key.ecdsaPrivateKey()
		if err != nil {
			return nil, err
		}
		sig, err := dbecdsa.Sign(rand, priv, info.hash, toBeSigned)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCryptoBackend, err)
		}
		return sig, nil
	case primEdDSA:
		if key.D == nil {
			return nil, fmt.Errorf("%w: missing private key", ErrInvalidKey)
		}
		var sig []byte
		if key.Curve == CurveEd25519 {
			sig, err = eddsa.Sign25519(key.D, toBeSigned)
		} else {
			sig, err = eddsa.Sign448(key.D, toBeSigned)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCryptoBackend, err)
		}
		return sig, nil
	case primRSAPSS, primRSAPKCS1:
		priv, err := key.rsaPrivateKey()
		if err != nil {
			return nil, err
		}
		var sig []byte
		if info.prim == primRSAPSS {
			sig, err = dbrsa.SignPSS(rand, priv, info.hash, toBeSigned)
		} else {
			sig, err = dbrsa.SignPKCS1v15(rand, priv, info.hash, toBeSigned)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCryptoBackend, err)
		}
		return sig, nil
	default:
		return nil, fmt.Errorf("%w: %v cannot sign", ErrInvalidAlgorithm, alg)
	}
}

// verifyPayload dispatches to the verification primitive behind the
// algorithm.
func verifyPayload(alg Algorithm, key *Key, toBeSigned, sig []byte) error {
	info, err := alg.info()
	if err != nil {
		return err
	}
	if info.kind != KindSignature {
		return fmt.Errorf("%w: %v cannot verify", ErrInvalidAlgorithm, alg)
	}
	switch info.prim {
	case primECDSA:
		pub, err := key.ecdsaPublicKey()
		if err != nil {
			return err
		}
		if err := dbecdsa.Verify(pub, info.hash, toBeSigned, sig); err != nil {
			return ErrVerificationFailed
		}
		return nil
	case primEdDSA:
		pub, err := key.eddsaPublic()
		if err != nil {
			return err
		}
		if key.Curve == CurveEd25519 {
			err = eddsa.Verify25519(pub, toBeSigned, sig)
		} else {
			err = eddsa.Verify448(pub, toBeSigned, sig)
		}
		if err != nil {
			return ErrVerificationFailed
		}
		return nil
	case primRSAPSS, primRSAPKCS1:
		pub, err := key.rsaPublicKey()
		if err != nil {
			return err
		}
		if info.prim == primRSAPSS {
			err = dbrsa.VerifyPSS(pub, info.hash, toBeSigned, sig)
		} else {
			err = dbrsa.VerifyPKCS1v15(pub, info.hash, toBeSigned, sig)
		}
		if err != nil {
			return ErrVerificationFailed
		}
		return nil
	default:
		return fmt.Errorf("%w: %v cannot verify", ErrInvalidAlgorithm, alg)
	}
}
