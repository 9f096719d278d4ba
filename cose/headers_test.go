// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dark-bio/cose-go/cbor"
)

// Tests the canonical protected-bucket encodings.
func TestProtectedEncoding(t *testing.T) {
	var empty Headers
	encoded, err := empty.encodeProtected()
	if err != nil {
		t.Fatal(err)
	}
	if len(encoded) != 0 {
		t.Errorf("empty protected bucket encoded to %x", encoded)
	}

	var h Headers
	h.SetProtected(LabelAlgorithm, AlgorithmES256)
	encoded, err = h.encodeProtected()
	if err != nil {
		t.Fatal(err)
	}
	if want := mustHex(t, "a10126"); !bytes.Equal(encoded, want) {
		t.Errorf("protected {alg: ES256} encoded to %x, want %x", encoded, want)
	}

	// The encoding is frozen until the bucket is mutated
	again, err := h.encodeProtected()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again, encoded) {
		t.Error("frozen encoding changed")
	}
	h.SetProtected(LabelKeyID, []byte{0x31, 0x31})
	encoded, err = h.encodeProtected()
	if err != nil {
		t.Fatal(err)
	}
	if want := mustHex(t, "a201260442"+"3131"); !bytes.Equal(encoded, want) {
		t.Errorf("protected {alg, kid} encoded to %x, want %x", encoded, want)
	}
}

// Tests protected-first attribute lookup.
func TestGetOrder(t *testing.T) {
	var h Headers
	h.SetProtected(LabelKeyID, []byte("prot"))
	h.SetUnprotected(LabelContentType, uint64(42))

	value, ok := h.Get(LabelKeyID)
	if !ok || !bytes.Equal(value.([]byte), []byte("prot")) {
		t.Errorf("Get(kid) = %v, %v", value, ok)
	}
	value, ok = h.Get(LabelContentType)
	if !ok || value.(uint64) != 42 {
		t.Errorf("Get(content type) = %v, %v", value, ok)
	}
	if _, ok := h.Get(LabelIV); ok {
		t.Error("Get(IV) found a value")
	}
}

// encodeHeaderPair writes a raw two-bucket prefix for hand-built messages.
func encodeHeaderPair(enc *cbor.Encoder, protected []byte, unprotected func(*cbor.Encoder)) {
	enc.EncodeBytes(protected)
	unprotected(enc)
}

// buildMac0 wraps hand-built buckets into a minimal Mac0 body for decoding.
func buildMac0(protected []byte, unprotected func(*cbor.Encoder)) []byte {
	enc := cbor.NewEncoder()
	enc.EncodeTag(TagMac0)
	enc.EncodeArrayHeader(4)
	encodeHeaderPair(enc, protected, unprotected)
	enc.EncodeBytes([]byte("payload"))
	enc.EncodeBytes([]byte{0x00})
	return enc.Bytes()
}

// Tests that an attribute present in both buckets is rejected at decode
// time.
func TestDuplicateAcrossBuckets(t *testing.T) {
	protected := cbor.NewEncoder()
	protected.EncodeMapHeader(1)
	protected.EncodeInt(4)
	protected.EncodeBytes([]byte("kid"))

	data := buildMac0(protected.Bytes(), func(enc *cbor.Encoder) {
		enc.EncodeMapHeader(2)
		enc.EncodeInt(1)
		enc.EncodeInt(int64(AlgorithmHMAC256_256))
		enc.EncodeInt(4)
		enc.EncodeBytes([]byte("kid"))
	})
	if _, err := Decode(data); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("duplicate across buckets = %v", err)
	}
}

// Tests the crit rules: only in protected, listed labels present and
// understood.
func TestCritical(t *testing.T) {
	// crit in the unprotected bucket
	data := buildMac0(nil, func(enc *cbor.Encoder) {
		enc.EncodeMapHeader(1)
		enc.EncodeInt(2)
		enc.EncodeArrayHeader(1)
		enc.EncodeInt(1)
	})
	if _, err := Decode(data); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("crit in unprotected = %v", err)
	}

	// crit listing an absent label
	protected := cbor.NewEncoder()
	protected.EncodeMapHeader(2)
	protected.EncodeInt(1)
	protected.EncodeInt(int64(AlgorithmHMAC256_256))
	protected.EncodeInt(2)
	protected.EncodeArrayHeader(1)
	protected.EncodeInt(3)
	data = buildMac0(protected.Bytes(), func(enc *cbor.Encoder) { enc.EncodeMapHeader(0) })
	if _, err := Decode(data); !errors.Is(err, ErrInvalidCriticalValue) {
		t.Errorf("crit with absent label = %v", err)
	}

	// crit listing a label the implementation does not understand
	protected = cbor.NewEncoder()
	protected.EncodeMapHeader(3)
	protected.EncodeInt(1)
	protected.EncodeInt(int64(AlgorithmHMAC256_256))
	protected.EncodeInt(2)
	protected.EncodeArrayHeader(1)
	protected.EncodeInt(12345)
	protected.EncodeInt(12345)
	protected.EncodeText("custom")
	data = buildMac0(protected.Bytes(), func(enc *cbor.Encoder) { enc.EncodeMapHeader(0) })
	if _, err := Decode(data); !errors.Is(err, ErrInvalidCriticalValue) {
		t.Errorf("crit with unknown label = %v", err)
	}

	// a valid crit referencing a registered, present label
	protected = cbor.NewEncoder()
	protected.EncodeMapHeader(3)
	protected.EncodeInt(1)
	protected.EncodeInt(int64(AlgorithmHMAC256_256))
	protected.EncodeInt(2)
	protected.EncodeArrayHeader(1)
	protected.EncodeInt(3)
	protected.EncodeInt(3)
	protected.EncodeText("text/plain")
	data = buildMac0(protected.Bytes(), func(enc *cbor.Encoder) { enc.EncodeMapHeader(0) })
	if _, err := Decode(data); err != nil {
		t.Errorf("valid crit = %v", err)
	}
}

// Tests that unknown attributes survive a decode/encode roundtrip
// unchanged and are reported by strict validation.
func TestUnknownAttributeRoundtrip(t *testing.T) {
	data := buildMac0(nil, func(enc *cbor.Encoder) {
		enc.EncodeMapHeader(2)
		enc.EncodeInt(1)
		enc.EncodeInt(int64(AlgorithmHMAC256_256))
		enc.EncodeInt(-70123)
		enc.EncodeArrayHeader(2)
		enc.EncodeText("a")
		enc.EncodeInt(1)
	})
	decoded, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	m := decoded.(*Mac0Message)
	if err := m.Headers.ValidateKnown(); !errors.Is(err, ErrUnknownAttribute) {
		t.Errorf("ValidateKnown = %v", err)
	}
	reencoded, err := m.Encode(true)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(reencoded, data) {
		t.Errorf("unknown attribute did not round-trip:\n  in:  %x\n  out: %x", data, reencoded)
	}
}

// Tests the IV / Partial IV conflict detection across buckets.
func TestIVConflict(t *testing.T) {
	var h Headers
	h.SetProtected(LabelIV, make([]byte, 12))
	h.SetUnprotected(LabelPartialIV, []byte{0x01})
	if err := h.validate(); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("IV + Partial IV = %v", err)
	}
}

// Tests the exact bytes of the structure builders.
func TestStructures(t *testing.T) {
	bodyProtected := mustHex(t, "a10126")
	payload := []byte("This is the content.")

	sig := sigStructure(contextSignature1, bodyProtected, nil, nil, payload)
	want := append(mustHex(t, "846a5369676e6174757265314"+"3a1012640"+"54"), payload...)
	if !bytes.Equal(sig, want) {
		t.Errorf("Sig_structure:\n  got  %x\n  want %x", sig, want)
	}

	// With a signer bucket the array grows to five elements
	sig = sigStructure(contextSignature, bodyProtected, []byte{}, nil, payload)
	if sig[0] != 0x85 {
		t.Errorf("Sign structure header %#x, want 0x85", sig[0])
	}

	macSt := macStructure(contextMAC0, bodyProtected, nil, payload)
	want = append(mustHex(t, "84644d41433043a101264054"), payload...)
	if !bytes.Equal(macSt, want) {
		t.Errorf("MAC_structure:\n  got  %x\n  want %x", macSt, want)
	}

	encSt := encStructure(contextEncrypt0, bodyProtected, nil)
	want = mustHex(t, "8368456e63727970743043a1012640")
	if !bytes.Equal(encSt, want) {
		t.Errorf("Enc_structure:\n  got  %x\n  want %x", encSt, want)
	}
}

// Tests the KDF context layout: algorithm, two party triples and the
// supplementary public block.
func TestKDFContext(t *testing.T) {
	context := kdfContext(AlgorithmA128GCM, 128,
		partyInfo{identity: []byte("Alice")},
		partyInfo{identity: []byte("Bob")},
		mustHex(t, "a1013818"))

	enc := cbor.NewEncoder()
	enc.EncodeArrayHeader(4)
	enc.EncodeInt(1)
	enc.EncodeArrayHeader(3)
	enc.EncodeBytes([]byte("Alice"))
	enc.EncodeBytes(nil)
	enc.EncodeBytes(nil)
	enc.EncodeArrayHeader(3)
	enc.EncodeBytes([]byte("Bob"))
	enc.EncodeBytes(nil)
	enc.EncodeBytes(nil)
	enc.EncodeArrayHeader(2)
	enc.EncodeUint(128)
	enc.EncodeBytes(mustHex(t, "a1013818"))

	if !bytes.Equal(context, enc.Bytes()) {
		t.Errorf("KDF context:\n  got  %x\n  want %x", context, enc.Bytes())
	}
}
