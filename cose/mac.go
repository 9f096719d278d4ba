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
	"github.com/dark-bio/cose-go/mac"
)

// Mac0Message is a COSE_Mac0 message: a payload authenticated with an
// implicitly shared key.
//
//	COSE_Mac0 = [
//	    protected:   bstr,
//	    unprotected: header_map,
//	    payload:     bstr / nil,
//	    tag:         bstr
//	]
type Mac0Message struct {
	Headers     Headers
	Payload     []byte // nil means detached content
	ExternalAAD []byte
	Tag         []byte
}

// ComputeTag authenticates the MAC_structure with the symmetric key,
// freezing the protected bucket.
func (m *Mac0Message) ComputeTag(key *Key) error {
	alg, err := m.Headers.Algorithm()
	if err != nil {
		return err
	}
	if err := key.CheckOp(KeyOpMACCreate, alg); err != nil {
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
	tag, err := computeMACTag(alg, key.K, macStructure(contextMAC0, protected, m.ExternalAAD, m.Payload))
	if err != nil {
		return err
	}
	m.Tag = tag
	return nil
}

// VerifyTag recomputes the tag and compares it in constant time. Detached
// payloads must be assigned before calling.
func (m *Mac0Message) VerifyTag(key *Key) error {
	alg, err := m.Headers.Algorithm()
	if err != nil {
		return err
	}
	if err := key.CheckOp(KeyOpMACVerify, alg); err != nil {
		return err
	}
	if m.Payload == nil {
		return ErrMissingPayload
	}
	protected, err := m.Headers.encodeProtected()
	if err != nil {
		return err
	}
	tag, err := computeMACTag(alg, key.K, macStructure(contextMAC0, protected, m.ExternalAAD, m.Payload))
	if err != nil {
		return err
	}
	if !mac.Equal(tag, m.Tag) {
		return ErrVerificationFailed
	}
	return nil
}

// Encode serializes the message, optionally wrapped in tag 17.
func (m *Mac0Message) Encode(attachTag bool) ([]byte, error) {
	if len(m.Tag) == 0 {
		return nil, fmt.Errorf("%w: tag not computed", ErrMalformedMessage)
	}
	enc := cbor.NewEncoder()
	if attachTag {
		enc.EncodeTag(TagMac0)
	}
	enc.EncodeArrayHeader(4)
	if err := m.Headers.encodeTo(enc); err != nil {
		return nil, err
	}
	encodePayload(enc, m.Payload)
	enc.EncodeBytes(m.Tag)
	return enc.Bytes(), nil
}

// DecodeMac0 parses a COSE_Mac0 message, tagged or untagged.
func DecodeMac0(data []byte) (*Mac0Message, error) {
	dec, err := openMessage(data, TagMac0)
	if err != nil {
		return nil, err
	}
	m, err := decodeMac0Body(dec)
	if err != nil {
		return nil, err
	}
	if err := dec.Finish(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return m, nil
}

// decodeMac0Body parses the four-element COSE_Mac0 array.
func decodeMac0Body(dec *cbor.Decoder) (*Mac0Message, error) {
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
	tag, err := dec.DecodeBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: tag: %v", ErrMalformedMessage, err)
	}
	return &Mac0Message{Headers: headers, Payload: payload, Tag: tag}, nil
}

// MacMessage is a COSE_Mac message: a payload authenticated with a CEK
// transported to one or more recipients.
//
//	COSE_Mac = [
//	    protected:   bstr,
//	    unprotected: header_map,
//	    payload:     bstr / nil,
//	    tag:         bstr,
//	    recipients:  [+ COSE_recipient]
//	]
type MacMessage struct {
	Headers     Headers
	Payload     []byte // nil means detached content
	ExternalAAD []byte
	Tag         []byte
	Recipients  []*Recipient
}

// ComputeTag establishes the CEK through the recipient entries, fills
// their transport fields, and authenticates the MAC_structure.
func (m *MacMessage) ComputeTag(rand io.Reader) error {
	alg, err := m.Headers.Algorithm()
	if err != nil {
		return err
	}
	if alg.Kind() != KindMAC {
		return fmt.Errorf("%w: %v is not a MAC algorithm", ErrInvalidAlgorithm, alg)
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
	protected, err := m.Headers.encodeProtected()
	if err != nil {
		return err
	}
	tag, err := computeMACTag(alg, cek, macStructure(contextMAC, protected, m.ExternalAAD, m.Payload))
	if err != nil {
		return err
	}
	m.Tag = tag
	return nil
}

// VerifyTag recovers the CEK through the given recipient entry, recomputes
// the tag and compares it in constant time. The recipient must be one of
// the message's entries, with its key material assigned by the caller.
func (m *MacMessage) VerifyTag(recipient *Recipient) error {
	alg, err := m.Headers.Algorithm()
	if err != nil {
		return err
	}
	if m.Payload == nil {
		return ErrMissingPayload
	}
	cek, err := recipient.recoverCEK(alg)
	if err != nil {
		return err
	}
	protected, err := m.Headers.encodeProtected()
	if err != nil {
		return err
	}
	tag, err := computeMACTag(alg, cek, macStructure(contextMAC, protected, m.ExternalAAD, m.Payload))
	if err != nil {
		return err
	}
	if !mac.Equal(tag, m.Tag) {
		return ErrVerificationFailed
	}
	return nil
}

// Encode serializes the message, optionally wrapped in tag 97.
func (m *MacMessage) Encode(attachTag bool) ([]byte, error) {
	if len(m.Tag) == 0 {
		return nil, fmt.Errorf("%w: tag not computed", ErrMalformedMessage)
	}
	if len(m.Recipients) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrMalformedMessage)
	}
	enc := cbor.NewEncoder()
	if attachTag {
		enc.EncodeTag(TagMac)
	}
	enc.EncodeArrayHeader(5)
	if err := m.Headers.encodeTo(enc); err != nil {
		return nil, err
	}
	encodePayload(enc, m.Payload)
	enc.EncodeBytes(m.Tag)
	if err := encodeRecipients(enc, m.Recipients); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

// DecodeMac parses a COSE_Mac message, tagged or untagged.
func DecodeMac(data []byte) (*MacMessage, error) {
	dec, err := openMessage(data, TagMac)
	if err != nil {
		return nil, err
	}
	m, err := decodeMacBody(dec)
	if err != nil {
		return nil, err
	}
	if err := dec.Finish(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return m, nil
}

// decodeMacBody parses the five-element COSE_Mac array.
func decodeMacBody(dec *cbor.Decoder) (*MacMessage, error) {
	if err := expectArray(dec, 5); err != nil {
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
	tag, err := dec.DecodeBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: tag: %v", ErrMalformedMessage, err)
	}
	recipients, err := decodeRecipients(dec, 0)
	if err != nil {
		return nil, err
	}
	return &MacMessage{Headers: headers, Payload: payload, Tag: tag, Recipients: recipients}, nil
}

// computeMACTag dispatches to the MAC primitive behind the algorithm.
func computeMACTag(alg Algorithm, key, data []byte) ([]byte, error) {
	info, err := alg.info()
	if err != nil {
		return nil, err
	}
	if info.kind != KindMAC {
		return nil, fmt.Errorf("%w: %v is not a MAC algorithm", ErrInvalidAlgorithm, alg)
	}
	switch info.prim {
	case primHMAC:
		tag, err := mac.HMAC(info.hash.New, key, data, info.tagLen)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCryptoBackend, err)
		}
		return tag, nil
	case primAESCBCMAC:
		if len(key) != info.keyLen {
			return nil, fmt.Errorf("%w: %v needs a %d-byte key", ErrInvalidKey, alg, info.keyLen)
		}
		tag, err := mac.AESCBC(key, data, info.tagLen)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCryptoBackend, err)
		}
		return tag, nil
	default:
		return nil, fmt.Errorf("%w: %v is not a MAC algorithm", ErrInvalidAlgorithm, alg)
	}
}
