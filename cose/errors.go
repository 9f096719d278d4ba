// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import "errors"

// Error types for COSE operations
var (
	// ErrUnknownAlgorithm is returned when an algorithm identifier is not in
	// the registry.
	ErrUnknownAlgorithm = errors.New("cose: unknown algorithm")

	// ErrInvalidAlgorithm is returned when the algorithm is missing or not
	// usable for the requested operation.
	ErrInvalidAlgorithm = errors.New("cose: invalid algorithm for operation")

	// ErrInvalidKey is returned when a key's type, curve or permitted
	// operations are incompatible with the algorithm or operation.
	ErrInvalidKey = errors.New("cose: key incompatible with operation")

	// ErrInvalidKeyFormat is returned on structural failures parsing or
	// validating a key.
	ErrInvalidKeyFormat = errors.New("cose: invalid key format")

	// ErrInvalidHeader is returned for duplicate attributes across buckets,
	// IV and Partial IV conflicts, and other header-bucket violations.
	ErrInvalidHeader = errors.New("cose: invalid header")

	// ErrInvalidCriticalValue is returned when crit lists an attribute that
	// is absent from the protected bucket or not understood.
	ErrInvalidCriticalValue = errors.New("cose: invalid critical attribute")

	// ErrMalformedMessage is returned when the CBOR shape, array length or
	// tag of a message is wrong.
	ErrMalformedMessage = errors.New("cose: malformed message")

	// ErrUnsupportedRecipient is returned when a recipient's algorithm does
	// not resolve to a known key-transport protocol.
	ErrUnsupportedRecipient = errors.New("cose: unsupported recipient algorithm")

	// ErrVerificationFailed is returned when a signature or MAC does not
	// verify.
	ErrVerificationFailed = errors.New("cose: verification failed")

	// ErrDecryptionFailed is returned when authenticated decryption fails.
	ErrDecryptionFailed = errors.New("cose: decryption failed")

	// ErrCryptoBackend wraps failures of the underlying primitives and the
	// random source.
	ErrCryptoBackend = errors.New("cose: crypto backend failure")

	// ErrUnknownAttribute is reported by strict validation for preserved but
	// unrecognized header attributes.
	ErrUnknownAttribute = errors.New("cose: unknown attribute")

	// ErrMissingPayload is returned when an operation needs a payload that
	// is detached and was not supplied.
	ErrMissingPayload = errors.New("cose: payload missing")
)
