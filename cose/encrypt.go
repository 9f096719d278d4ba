// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"crypto/cipher"
	"fmt"
	"io"

	"github.com/dark-bio/cose-go/aead"
	"github.com/dark-bio/cose-go/cbor"
)

// Encrypt0Message is a COSE_Encrypt0 message: a payload encrypted with an
// implicitly shared key.
//
//	COSE_Encrypt0 = [
//	    protected:   bstr,
//	    unprotected: header_map,
//	    ciphertext:  bstr / nil
//	]
type Encrypt0Message struct {
	Headers     Headers
	Payload     []byte // plaintext; nil after decoding until decrypted
	ExternalAAD []byte
	Ciphertext  []byte
}

// Encrypt seals the payload with the symmetric key. The nonce comes from
// the IV or Partial IV headers; when neither is present a fresh IV is drawn
// from rand and placed in the unprotected bucket. The Enc_structure is the
// AEAD's additional authenticated data.
func (m *Encrypt0Message) Encrypt(rand io.Reader, key *Key) error {
	alg, err := m.Headers.Algorithm()
	if err != nil {
		return err
	}
	if err := key.CheckOp(KeyOpEncrypt, alg); err != nil {
		return err
	}
	if m.Payload == nil {
		return ErrMissingPayload
	}
	if err := m.Headers.validate(); err != nil {
		return err
	}
	nonce, err := messageNonce(rand, &m.Headers, alg, key)
	if err != nil {
		return err
	}
	c, err := newAEADCipher(alg, key.K)
	if err != nil {
		return err
	}
	protected, err := m.Headers.encodeProtected()
	if err != nil {
		return err
	}
	aad := encStructure(contextEncrypt0, protected, m.ExternalAAD)
	m.Ciphertext = c.Seal(nil, nonce, m.Payload, aad)
	return nil
}

// Decrypt opens the ciphertext with the symmetric key, returning the
// payload and storing it on the message.
func (m *Encrypt0Message) Decrypt(key *Key) ([]byte, error) {
	alg, err := m.Headers.Algorithm()
	if err != nil {
		return nil, err
	}
	if err := key.CheckOp(KeyOpDecrypt, alg); err != nil {
		return nil, err
	}
	if m.Ciphertext == nil {
		return nil, fmt.Errorf("%w: no ciphertext", ErrMalformedMessage)
	}
	nonce, err := messageNonce(nil, &m.Headers, alg, key)
	if err != nil {
		return nil, err
	}
	c, err := newAEADCipher(alg, key.K)
	if err != nil {
		return nil, err
	}
	protected, err := m.Headers.encodeProtected()
	if err != nil {
		return nil, err
	}
	aad := encStructure(contextEncrypt0, protected, m.ExternalAAD)
	payload, err := c.Open(nil, nonce, m.Ciphertext, aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	m.Payload = payload
	return payload, nil
}

// Encode serializes the message, optionally wrapped in tag 16.
func (m *Encrypt0Message) Encode(attachTag bool) ([]byte, error) {
	enc := cbor.NewEncoder()
	if attachTag {
		enc.EncodeTag(TagEncrypt0)
	}
	enc.EncodeArrayHeader(3)
	if err := m.Headers.encodeTo(enc); err != nil {
		return nil, err
	}
	encodePayload(enc, m.Ciphertext)
	return enc.Bytes(), nil
}

// DecodeEncrypt0 parses a COSE_Encrypt0 message, tagged or untagged.
func DecodeEncrypt0(data []byte) (*Encrypt0Message, error) {
	dec, err := openMessage(data, TagEncrypt0)
	if err != nil {
		return nil, err
	}
	m, err := decodeEncrypt0Body(dec)
	if err != nil {
		return nil, err
	}
	if err := dec.Finish(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return m, nil
}

// decodeEncrypt0Body parses the three-element COSE_Encrypt0 array.
func decodeEncrypt0Body(dec *cbor.Decoder) (*Encrypt0Message, error) {
	if err := expectArray(dec, 3); err != nil {
		return nil, err
	}
	headers, err := decodeHeadersFrom(dec)
	if err != nil {
		return nil, err
	}
	ciphertext, err := decodePayload(dec)
	if err != nil {
		return nil, err
	}
	return &Encrypt0Message{Headers: headers, Ciphertext: ciphertext}, nil
}

// EncryptMessage is a COSE_Encrypt message: a payload encrypted with a CEK
// transported to one or more recipients.
//
//	COSE_Encrypt = [
//	    protected:   bstr,
//	    unprotected: header_map,
//	    ciphertext:  bstr / nil,
//	    recipients:  [+ COSE_recipient]
//	]
type EncryptMessage struct {
	Headers     Headers
	Payload     []byte // plaintext; nil after decoding until decrypted
	ExternalAAD []byte
	Ciphertext  []byte
	Recipients  []*Recipient
}

// Encrypt establishes the CEK through the recipient entries, fills their
// transport fields, and seals the payload.
func (m *EncryptMessage) Encrypt(rand io.Reader) error {
	alg, err := m.Headers.Algorithm()
	if err != nil {
		return err
	}
	if alg.Kind() != KindAEAD {
		return fmt.Errorf("%w: %v is not a content encryption algorithm", ErrInvalidAlgorithm, alg)
	}
	if m.Payload == nil {
		return ErrMissingPayload
	}
	if err := m.Headers.validate(); err != nil {
		return err
	}
	cek, err := establishCEK(rand, m.Recipients, alg)
	if err != nil {
		return err
	}
	nonce, err := messageNonce(rand, &m.Headers, alg, nil)
	if err != nil {
		return err
	}
	c, err := newAEADCipher(alg, cek)
	if err != nil {
		return err
	}
	protected, err := m.Headers.encodeProtected()
	if err != nil {
		return err
	}
	aad := encStructure(contextEncrypt, protected, m.ExternalAAD)
	m.Ciphertext = c.Seal(nil, nonce, m.Payload, aad)
	return nil
}

// Decrypt recovers the CEK through the given recipient entry and opens the
// ciphertext. The recipient must be one of the message's entries, with its
// key material assigned by the caller.
func (m *EncryptMessage) Decrypt(recipient *Recipient) ([]byte, error) {
	alg, err := m.Headers.Algorithm()
	if err != nil {
		return nil, err
	}
	if m.Ciphertext == nil {
		return nil, fmt.Errorf("%w: no ciphertext", ErrMalformedMessage)
	}
	cek, err := recipient.recoverCEK(alg)
	if err != nil {
		return nil, err
	}
	nonce, err := messageNonce(nil, &m.Headers, alg, recipient.Key)
	if err != nil {
		return nil, err
	}
	c, err := newAEADCipher(alg, cek)
	if err != nil {
		return nil, err
	}
	protected, err := m.Headers.encodeProtected()
	if err != nil {
		return nil, err
	}
	aad := encStructure(contextEncrypt, protected, m.ExternalAAD)
	payload, err := c.Open(nil, nonce, m.Ciphertext, aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	m.Payload = payload
	return payload, nil
}

// Encode serializes the message, optionally wrapped in tag 96.
func (m *EncryptMessage) Encode(attachTag bool) ([]byte, error) {
	if len(m.Recipients) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrMalformedMessage)
	}
	enc := cbor.NewEncoder()
	if attachTag {
		enc.EncodeTag(TagEncrypt)
	}
	enc.EncodeArrayHeader(4)
	if err := m.Headers.encodeTo(enc); err != nil {
		return nil, err
	}
	encodePayload(enc, m.Ciphertext)
	if err := encodeRecipients(enc, m.Recipients); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

// DecodeEncrypt parses a COSE_Encrypt message, tagged or untagged.
func DecodeEncrypt(data []byte) (*EncryptMessage, error) {
	dec, err := openMessage(data, TagEncrypt)
	if err != nil {
		return nil, err
	}
	m, err := decodeEncryptBody(dec)
	if err != nil {
		return nil, err
	}
	if err := dec.Finish(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return m, nil
}

// decodeEncryptBody parses the four-element COSE_Encrypt array.
func decodeEncryptBody(dec *cbor.Decoder) (*EncryptMessage, error) {
	if err := expectArray(dec, 4); err != nil {
		return nil, err
	}
	headers, err := decodeHeadersFrom(dec)
	if err != nil {
		return nil, err
	}
	ciphertext, err := decodePayload(dec)
	if err != nil {
		return nil, err
	}
	recipients, err := decodeRecipients(dec, 0)
	if err != nil {
		return nil, err
	}
	return &EncryptMessage{Headers: headers, Ciphertext: ciphertext, Recipients: recipients}, nil
}

// messageNonce resolves the effective AEAD nonce. An explicit IV header
// wins; a Partial IV is left-padded and XORed with the key's base IV; when
// neither is present and rand is available, a fresh IV is generated and
// recorded in the unprotected bucket.
func messageNonce(rand io.Reader, h *Headers, alg Algorithm, key *Key) ([]byte, error) {
	size := alg.NonceLength()
	if value, ok := h.Get(LabelIV); ok {
		iv, ok := value.([]byte)
		if !ok || len(iv) != size {
			return nil, fmt.Errorf("%w: IV must be %d bytes", ErrInvalidHeader, size)
		}
		return iv, nil
	}
	if value, ok := h.Get(LabelPartialIV); ok {
		partial, ok := value.([]byte)
		if !ok || len(partial) == 0 || len(partial) > size {
			return nil, fmt.Errorf("%w: Partial IV must be 1..%d bytes", ErrInvalidHeader, size)
		}
		if key == nil || key.BaseIV == nil {
			return nil, fmt.Errorf("%w: Partial IV without base IV on key", ErrInvalidHeader)
		}
		if len(key.BaseIV) > size {
			return nil, fmt.Errorf("%w: base IV longer than nonce", ErrInvalidKeyFormat)
		}
		// Base IV is the leftmost bytes, Partial IV the rightmost
		nonce := make([]byte, size)
		copy(nonce, key.BaseIV)
		for i, b := range partial {
			nonce[size-len(partial)+i] ^= b
		}
		return nonce, nil
	}
	if rand == nil {
		return nil, fmt.Errorf("%w: no IV or Partial IV", ErrInvalidHeader)
	}
	nonce, err := randomBytes(rand, size)
	if err != nil {
		return nil, err
	}
	h.SetUnprotected(LabelIV, nonce)
	return nonce, nil
}

// newAEADCipher dispatches to the AEAD primitive behind the algorithm,
// checking the key length.
func newAEADCipher(alg Algorithm, key []byte) (cipher.AEAD, error) {
	info, err := alg.info()
	if err != nil {
		return nil, err
	}
	if info.kind != KindAEAD {
		return nil, fmt.Errorf("%w: %v is not a content encryption algorithm", ErrInvalidAlgorithm, alg)
	}
	if len(key) != info.keyLen {
		return nil, fmt.Errorf("%w: %v needs a %d-byte key", ErrInvalidKey, alg, info.keyLen)
	}
	var c cipher.AEAD
	switch info.prim {
	case primAESGCM:
		c, err = aead.NewGCM(key)
	case primAESCCM:
		c, err = aead.NewCCM(key, info.tagLen, info.nonceLen)
	case primChaCha20:
		c, err = aead.NewChaCha20Poly1305(key)
	default:
		return nil, fmt.Errorf("%w: %v is not a content encryption algorithm", ErrInvalidAlgorithm, alg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoBackend, err)
	}
	return c, nil
}

// randomBytes draws n bytes from the caller-supplied source.
func randomBytes(rand io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoBackend, err)
	}
	return buf, nil
}
