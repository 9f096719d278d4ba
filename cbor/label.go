// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cbor

import (
	"bytes"
	"fmt"
	"strconv"
)

// Label is a COSE map key: either an integer or a text string.
//
//	label = int / tstr
//
// The zero Label is the integer 0, which is reserved in every COSE registry
// and never a valid key, so the two variants need no extra discriminator
// beyond the text being non-empty.
type Label struct {
	i int64
	t string
}

// IntLabel creates an integer label.
func IntLabel(value int64) Label {
	return Label{i: value}
}

// TextLabel creates a text label.
func TextLabel(value string) Label {
	return Label{t: value}
}

// IsText reports whether the label is a text string.
func (l Label) IsText() bool {
	return l.t != ""
}

// Int returns the integer value of the label; 0 for text labels.
func (l Label) Int() int64 {
	return l.i
}

// Text returns the text value of the label; empty for integer labels.
func (l Label) Text() string {
	return l.t
}

// String implements fmt.Stringer for diagnostics.
func (l Label) String() string {
	if l.IsText() {
		return strconv.Quote(l.t)
	}
	return strconv.FormatInt(l.i, 10)
}

// Encoded returns the canonical encoding of the label.
func (l Label) Encoded() []byte {
	enc := NewEncoder()
	enc.EncodeLabel(l)
	return enc.Bytes()
}

// CompareLabels orders two labels by the bytewise lexicographic order of
// their canonical encodings (RFC 8949 Section 4.2.1). All integer labels
// sort before all text labels since major type 3 follows major types 0/1.
func CompareLabels(a, b Label) int {
	return bytes.Compare(a.Encoded(), b.Encoded())
}

// EncodeLabel encodes a map key.
func (e *Encoder) EncodeLabel(l Label) {
	if l.IsText() {
		e.EncodeText(l.t)
	} else {
		e.EncodeInt(l.i)
	}
}

// DecodeLabel decodes a map key, which must be an integer or a text string.
func (d *Decoder) DecodeLabel() (Label, error) {
	major, err := d.PeekMajor()
	if err != nil {
		return Label{}, err
	}
	switch major {
	case majorUint, majorNint:
		value, err := d.DecodeInt()
		if err != nil {
			return Label{}, err
		}
		return IntLabel(value), nil
	case majorText:
		value, err := d.DecodeText()
		if err != nil {
			return Label{}, err
		}
		if value == "" {
			return Label{}, fmt.Errorf("%w: empty text label", ErrUnsupportedType)
		}
		return TextLabel(value), nil
	default:
		return Label{}, fmt.Errorf("%w: %d, want int or tstr label", ErrInvalidMajorType, major)
	}
}
