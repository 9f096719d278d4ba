// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"fmt"
	"slices"

	"github.com/dark-bio/cose-go/cbor"
)

// Headers holds the two attribute buckets every COSE layer carries: the
// protected bucket, serialized as a byte string and covered by the
// cryptographic operation, and the unprotected bucket, serialized as a
// plain map.
//
// When a message is decoded, the exact bytes of the protected bucket are
// retained and reused verbatim for any later Sig/MAC/Enc-structure
// computation and for re-encoding; mutating the protected bucket discards
// them.
type Headers struct {
	protected    map[cbor.Label]any
	unprotected  map[cbor.Label]any
	rawProtected []byte // frozen encoding; nil until encoded or decoded
}

// SetProtected stores an attribute in the protected bucket, invalidating
// any frozen encoding.
func (h *Headers) SetProtected(label cbor.Label, value any) {
	if h.protected == nil {
		h.protected = make(map[cbor.Label]any)
	}
	h.protected[label] = value
	h.rawProtected = nil
}

// SetUnprotected stores an attribute in the unprotected bucket.
func (h *Headers) SetUnprotected(label cbor.Label, value any) {
	if h.unprotected == nil {
		h.unprotected = make(map[cbor.Label]any)
	}
	h.unprotected[label] = value
}

// Get looks an attribute up, searching the protected bucket first.
func (h *Headers) Get(label cbor.Label) (any, bool) {
	if value, ok := h.protected[label]; ok {
		return value, true
	}
	value, ok := h.unprotected[label]
	return value, ok
}

// Algorithm returns the alg attribute.
func (h *Headers) Algorithm() (Algorithm, error) {
	value, ok := h.Get(LabelAlgorithm)
	if !ok {
		return 0, fmt.Errorf("%w: alg header missing", ErrInvalidAlgorithm)
	}
	alg, ok := value.(Algorithm)
	if !ok {
		return 0, fmt.Errorf("%w: alg header has type %T", ErrInvalidAlgorithm, value)
	}
	return alg, nil
}

// KeyID returns the kid attribute, or nil when absent.
func (h *Headers) KeyID() []byte {
	if value, ok := h.Get(LabelKeyID); ok {
		if kid, ok := value.([]byte); ok {
			return kid
		}
	}
	return nil
}

// Critical returns the crit list from the protected bucket, or nil when
// absent.
func (h *Headers) Critical() []cbor.Label {
	if value, ok := h.protected[LabelCritical]; ok {
		if labels, ok := value.([]cbor.Label); ok {
			return labels
		}
	}
	return nil
}

// ValidateKnown reports the first preserved-but-unrecognized attribute, for
// callers that want strict rejection of unknown headers.
func (h *Headers) ValidateKnown() error {
	for _, bucket := range []map[cbor.Label]any{h.protected, h.unprotected} {
		for label := range bucket {
			if _, ok := attributeRegistry[label]; !ok {
				return fmt.Errorf("%w: %v", ErrUnknownAttribute, label)
			}
		}
	}
	return nil
}

// validate enforces the cross-bucket invariants: no attribute in both
// buckets, crit only in the protected bucket with every listed label
// present there and understood, and no IV / Partial IV conflict.
func (h *Headers) validate() error {
	for label := range h.protected {
		if _, ok := h.unprotected[label]; ok {
			return fmt.Errorf("%w: %v present in both buckets", ErrInvalidHeader, label)
		}
	}
	if _, ok := h.unprotected[LabelCritical]; ok {
		return fmt.Errorf("%w: crit must be in the protected bucket", ErrInvalidHeader)
	}
	for _, label := range h.Critical() {
		if _, ok := h.protected[label]; !ok {
			return fmt.Errorf("%w: %v not in protected bucket", ErrInvalidCriticalValue, label)
		}
		if _, ok := attributeRegistry[label]; !ok {
			return fmt.Errorf("%w: %v not understood", ErrInvalidCriticalValue, label)
		}
	}
	_, hasIV := h.Get(LabelIV)
	_, hasPartial := h.Get(LabelPartialIV)
	if hasIV && hasPartial {
		return fmt.Errorf("%w: IV and Partial IV both present", ErrInvalidHeader)
	}
	return nil
}

// encodeProtected returns the canonical encoding of the protected bucket
// content: zero bytes for an empty bucket, else the deterministic map. The
// encoding is computed once and frozen; decoded messages keep their
// original bytes.
func (h *Headers) encodeProtected() ([]byte, error) {
	if h.rawProtected != nil {
		return h.rawProtected, nil
	}
	if len(h.protected) == 0 {
		h.rawProtected = []byte{}
		return h.rawProtected, nil
	}
	enc := cbor.NewEncoder()
	if err := encodeHeaderMap(enc, h.protected); err != nil {
		return nil, err
	}
	h.rawProtected = enc.Bytes()
	return h.rawProtected, nil
}

// encodeTo emits both buckets in wire order: the protected bucket wrapped
// in a byte string, then the unprotected map.
func (h *Headers) encodeTo(enc *cbor.Encoder) error {
	if err := h.validate(); err != nil {
		return err
	}
	protected, err := h.encodeProtected()
	if err != nil {
		return err
	}
	enc.EncodeBytes(protected)
	return encodeHeaderMap(enc, h.unprotected)
}

// encodeHeaderMap emits a bucket as a deterministically ordered map.
func encodeHeaderMap(enc *cbor.Encoder, bucket map[cbor.Label]any) error {
	labels := make([]cbor.Label, 0, len(bucket))
	for label := range bucket {
		labels = append(labels, label)
	}
	slices.SortFunc(labels, cbor.CompareLabels)

	enc.EncodeMapHeader(len(labels))
	for _, label := range labels {
		enc.EncodeLabel(label)
		if err := encodeHeaderValue(enc, bucket[label]); err != nil {
			return fmt.Errorf("%v: %w", label, err)
		}
	}
	return nil
}

// decodeHeadersFrom parses the protected byte string and the unprotected
// map from the stream, retaining the protected bytes verbatim.
func decodeHeadersFrom(dec *cbor.Decoder) (Headers, error) {
	var h Headers

	raw, err := dec.DecodeBytes()
	if err != nil {
		return h, fmt.Errorf("%w: protected header: %v", ErrMalformedMessage, err)
	}
	h.rawProtected = raw
	if len(raw) > 0 {
		inner := cbor.NewDecoder(raw)
		entries, err := decodeRawMap(inner)
		if err != nil {
			return h, fmt.Errorf("%w: protected header: %v", ErrInvalidHeader, err)
		}
		if err := inner.Finish(); err != nil {
			return h, fmt.Errorf("%w: protected header: %v", ErrInvalidHeader, err)
		}
		if h.protected, err = parseHeaderMap(entries); err != nil {
			return h, err
		}
	}

	entries, err := decodeRawMap(dec)
	if err != nil {
		return h, fmt.Errorf("%w: unprotected header: %v", ErrInvalidHeader, err)
	}
	if h.unprotected, err = parseHeaderMap(entries); err != nil {
		return h, err
	}
	if err := h.validate(); err != nil {
		return h, err
	}
	return h, nil
}

// parseHeaderMap runs the registered value parsers over raw entries,
// keeping unknown attributes verbatim.
func parseHeaderMap(entries map[cbor.Label]cbor.Raw) (map[cbor.Label]any, error) {
	bucket := make(map[cbor.Label]any, len(entries))
	for label, raw := range entries {
		attr, ok := attributeRegistry[label]
		if !ok {
			bucket[label] = raw
			continue
		}
		value, err := attr.parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidHeader, attr.name, err)
		}
		bucket[label] = value
	}
	return bucket, nil
}
