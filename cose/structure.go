// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"github.com/dark-bio/cose-go/cbor"
)

// Context strings for the to-be-signed / to-be-MACed / to-be-encrypted
// structures (RFC 8152 Sections 4.4, 5.3 and 6.3).
const (
	contextSignature    = "Signature"
	contextSignature1   = "Signature1"
	contextMAC          = "MAC"
	contextMAC0         = "MAC0"
	contextEncrypt      = "Encrypt"
	contextEncrypt0     = "Encrypt0"
	contextEncRecipient = "Enc_Recipient"
	contextMacRecipient = "Mac_Recipient"
	contextRecRecipient = "Rec_Recipient"
)

// sigStructure builds the Sig_structure byte string:
//
//	Sig_structure = [
//	    context:        "Signature" / "Signature1",
//	    body_protected: bstr,
//	    ? sign_protected: bstr,
//	    external_aad:   bstr,
//	    payload:        bstr
//	]
//
// signProtected is only present for per-signer structures ("Signature");
// pass nil for Sign1.
func sigStructure(context string, bodyProtected, signProtected, externalAAD, payload []byte) []byte {
	enc := cbor.NewEncoder()
	fields := 4
	if signProtected != nil {
		fields = 5
	}
	enc.EncodeArrayHeader(fields)
	enc.EncodeText(context)
	enc.EncodeBytes(bodyProtected)
	if signProtected != nil {
		enc.EncodeBytes(signProtected)
	}
	enc.EncodeBytes(emptyIfNil(externalAAD))
	enc.EncodeBytes(payload)
	return enc.Bytes()
}

// macStructure builds the MAC_structure byte string:
//
//	MAC_structure = [
//	    context:        "MAC" / "MAC0",
//	    body_protected: bstr,
//	    external_aad:   bstr,
//	    payload:        bstr
//	]
func macStructure(context string, bodyProtected, externalAAD, payload []byte) []byte {
	enc := cbor.NewEncoder()
	enc.EncodeArrayHeader(4)
	enc.EncodeText(context)
	enc.EncodeBytes(bodyProtected)
	enc.EncodeBytes(emptyIfNil(externalAAD))
	enc.EncodeBytes(payload)
	return enc.Bytes()
}

// encStructure builds the Enc_structure byte string handed to the AEAD as
// additional authenticated data:
//
//	Enc_structure = [
//	    context:      "Encrypt" / "Encrypt0" / "Enc_Recipient" /
//	                  "Mac_Recipient" / "Rec_Recipient",
//	    protected:    bstr,
//	    external_aad: bstr
//	]
func encStructure(context string, bodyProtected, externalAAD []byte) []byte {
	enc := cbor.NewEncoder()
	enc.EncodeArrayHeader(3)
	enc.EncodeText(context)
	enc.EncodeBytes(bodyProtected)
	enc.EncodeBytes(emptyIfNil(externalAAD))
	return enc.Bytes()
}

// partyInfo carries one side's identity for the KDF context. Absent fields
// encode as zero-length byte strings.
type partyInfo struct {
	identity []byte
	nonce    []byte
	other    []byte
}

// kdfContext builds the COSE_KDF_Context info structure (RFC 8152
// Section 11.2):
//
//	COSE_KDF_Context = [
//	    AlgorithmID:  int,
//	    PartyUInfo:   [ identity, nonce, other ],
//	    PartyVInfo:   [ identity, nonce, other ],
//	    SuppPubInfo:  [ keyDataLength: uint, protected: bstr ],
//	]
//
// alg is the algorithm the derived key will be used with and keyBits its
// key length; protected is the recipient's protected-bucket encoding.
func kdfContext(alg Algorithm, keyBits int, partyU, partyV partyInfo, protected []byte) []byte {
	enc := cbor.NewEncoder()
	enc.EncodeArrayHeader(4)
	enc.EncodeInt(int64(alg))
	encodePartyInfo(enc, partyU)
	encodePartyInfo(enc, partyV)
	enc.EncodeArrayHeader(2)
	enc.EncodeUint(uint64(keyBits))
	enc.EncodeBytes(emptyIfNil(protected))
	return enc.Bytes()
}

// encodePartyInfo emits one PartyInfo triple.
func encodePartyInfo(enc *cbor.Encoder, party partyInfo) {
	enc.EncodeArrayHeader(3)
	enc.EncodeBytes(emptyIfNil(party.identity))
	enc.EncodeBytes(emptyIfNil(party.nonce))
	enc.EncodeBytes(emptyIfNil(party.other))
}

// emptyIfNil normalizes absent byte fields to zero-length strings.
func emptyIfNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
