// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"fmt"

	"github.com/dark-bio/cose-go/cbor"
)

// Header parameter labels from the IANA COSE Header Parameters registry.
//
// https://www.iana.org/assignments/cose/cose.xhtml#header-parameters
var (
	LabelAlgorithm        = cbor.IntLabel(1)
	LabelCritical         = cbor.IntLabel(2)
	LabelContentType      = cbor.IntLabel(3)
	LabelKeyID            = cbor.IntLabel(4)
	LabelIV               = cbor.IntLabel(5)
	LabelPartialIV        = cbor.IntLabel(6)
	LabelCounterSignature = cbor.IntLabel(7)
	LabelX5Bag            = cbor.IntLabel(32)
	LabelX5Chain          = cbor.IntLabel(33)
	LabelX5T              = cbor.IntLabel(34)
	LabelX5U              = cbor.IntLabel(35)

	// Key agreement parameters (recipient buckets)
	LabelEphemeralKey = cbor.IntLabel(-1)
	LabelStaticKey    = cbor.IntLabel(-2)
	LabelStaticKeyID  = cbor.IntLabel(-3)

	// HKDF context parameters (recipient buckets)
	LabelSalt           = cbor.IntLabel(-20)
	LabelPartyUIdentity = cbor.IntLabel(-21)
	LabelPartyUNonce    = cbor.IntLabel(-22)
	LabelPartyUOther    = cbor.IntLabel(-23)
	LabelPartyVIdentity = cbor.IntLabel(-24)
	LabelPartyVNonce    = cbor.IntLabel(-25)
	LabelPartyVOther    = cbor.IntLabel(-26)
)

// attribute binds a header label to its name and value parser. Parsers turn
// the raw CBOR value into the typed form held in the bucket maps; labels
// without a registered parser keep the raw value.
type attribute struct {
	name  string
	parse func(raw cbor.Raw) (any, error)
}

// attributeRegistry is the closed table of understood header parameters.
var attributeRegistry = map[cbor.Label]attribute{
	LabelAlgorithm:        {name: "alg", parse: parseAlgorithmValue},
	LabelCritical:         {name: "crit", parse: parseCriticalValue},
	LabelContentType:      {name: "content type", parse: parseContentTypeValue},
	LabelKeyID:            {name: "kid", parse: parseBytesValue},
	LabelIV:               {name: "IV", parse: parseBytesValue},
	LabelPartialIV:        {name: "Partial IV", parse: parseBytesValue},
	LabelCounterSignature: {name: "counter signature", parse: parseRawValue},
	LabelX5Bag:            {name: "x5bag", parse: parseRawValue},
	LabelX5Chain:          {name: "x5chain", parse: parseRawValue},
	LabelX5T:              {name: "x5t", parse: parseRawValue},
	LabelX5U:              {name: "x5u", parse: parseRawValue},
	LabelEphemeralKey:     {name: "ephemeral key", parse: parseKeyValue},
	LabelStaticKey:        {name: "static key", parse: parseKeyValue},
	LabelStaticKeyID:      {name: "static kid", parse: parseBytesValue},
	LabelSalt:             {name: "salt", parse: parseBytesValue},
	LabelPartyUIdentity:   {name: "PartyU identity", parse: parseBytesValue},
	LabelPartyUNonce:      {name: "PartyU nonce", parse: parseBytesValue},
	LabelPartyUOther:      {name: "PartyU other", parse: parseBytesValue},
	LabelPartyVIdentity:   {name: "PartyV identity", parse: parseBytesValue},
	LabelPartyVNonce:      {name: "PartyV nonce", parse: parseBytesValue},
	LabelPartyVOther:      {name: "PartyV other", parse: parseBytesValue},
}

// parseAlgorithmValue resolves an int or tstr algorithm value through the
// registry.
func parseAlgorithmValue(raw cbor.Raw) (any, error) {
	dec := cbor.NewDecoder(raw)
	major, err := dec.PeekMajor()
	if err != nil {
		return nil, err
	}
	if major == 3 {
		name, err := cbor.DecodeString(raw)
		if err != nil {
			return nil, err
		}
		return LookupName(name)
	}
	value, err := cbor.DecodeInt64(raw)
	if err != nil {
		return nil, err
	}
	return Lookup(Algorithm(value))
}

// parseCriticalValue parses the crit list: a non-empty array of labels.
func parseCriticalValue(raw cbor.Raw) (any, error) {
	dec := cbor.NewDecoder(raw)
	count, err := dec.DecodeArrayHeader()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: empty crit list", ErrInvalidHeader)
	}
	labels := make([]cbor.Label, 0, count)
	for range count {
		label, err := dec.DecodeLabel()
		if err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	if err := dec.Finish(); err != nil {
		return nil, err
	}
	return labels, nil
}

// parseContentTypeValue parses a tstr or uint content type.
func parseContentTypeValue(raw cbor.Raw) (any, error) {
	dec := cbor.NewDecoder(raw)
	major, err := dec.PeekMajor()
	if err != nil {
		return nil, err
	}
	if major == 3 {
		return cbor.DecodeString(raw)
	}
	value, err := dec.DecodeUint()
	if err != nil {
		return nil, err
	}
	if err := dec.Finish(); err != nil {
		return nil, err
	}
	return value, nil
}

// parseBytesValue parses a bstr value.
func parseBytesValue(raw cbor.Raw) (any, error) {
	return cbor.DecodeBytes(raw)
}

// parseRawValue keeps the value opaque.
func parseRawValue(raw cbor.Raw) (any, error) {
	return raw, nil
}

// parseKeyValue parses an embedded COSE_Key.
func parseKeyValue(raw cbor.Raw) (any, error) {
	return DecodeKey(raw)
}

// encodeHeaderValue emits a typed header value in canonical form.
func encodeHeaderValue(enc *cbor.Encoder, value any) error {
	switch v := value.(type) {
	case Algorithm:
		enc.EncodeInt(int64(v))
	case int:
		enc.EncodeInt(int64(v))
	case int64:
		enc.EncodeInt(v)
	case uint64:
		enc.EncodeUint(v)
	case string:
		enc.EncodeText(v)
	case []byte:
		enc.EncodeBytes(v)
	case []cbor.Label:
		enc.EncodeArrayHeader(len(v))
		for _, label := range v {
			enc.EncodeLabel(label)
		}
	case *Key:
		return v.encode(enc)
	case cbor.Raw:
		enc.EncodeRaw(v)
	default:
		return fmt.Errorf("%w: unsupported value type %T", ErrInvalidHeader, value)
	}
	return nil
}
