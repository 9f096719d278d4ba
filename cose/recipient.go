// cose-go: CBOR Object Signing and Encryption
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	stdecdh "crypto/ecdh"
	"fmt"
	"io"

	"github.com/dark-bio/cose-go/cbor"
	"github.com/dark-bio/cose-go/ecdh"
	"github.com/dark-bio/cose-go/hkdf"
	"github.com/dark-bio/cose-go/keywrap"
	dbrsa "github.com/dark-bio/cose-go/rsa"
)

// maxRecipientDepth bounds recipient nesting on decode.
const maxRecipientDepth = 4

// Recipient is one node of the recipient tree carried by COSE_Mac and
// COSE_Encrypt messages. Its algorithm header selects the key transport
// protocol; nested recipients transport this node's key-encryption key.
//
//	COSE_recipient = [
//	    protected:   bstr,
//	    unprotected: header_map,
//	    ciphertext:  bstr / nil,
//	    ? recipients: [+ COSE_recipient]
//	]
//
// Key and SenderKey are caller-supplied key material and are never
// serialized. Key holds the recipient's secret (Direct, KeyWrap), the
// peer's public key (key agreement on the sending side), or the receiver's
// private key (key agreement on the receiving side). SenderKey holds the
// sender's static private key for ECDH-SS, and receives the generated
// ephemeral key for ECDH-ES.
type Recipient struct {
	Headers    Headers
	Ciphertext []byte
	Recipients []*Recipient

	Key       *Key
	SenderKey *Key
}

// establishCEK determines the content encryption key for a message being
// protected and fills every recipient's transport fields. Direct and
// direct-key-agreement recipients dictate the CEK and must be alone; any
// other mix shares one randomly generated CEK.
func establishCEK(rand io.Reader, recipients []*Recipient, contentAlg Algorithm) ([]byte, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrMalformedMessage)
	}
	if err := validateRecipientSet(recipients); err != nil {
		return nil, err
	}
	first := recipients[0]
	alg, err := first.algorithm()
	if err != nil {
		return nil, err
	}
	switch alg.Kind() {
	case KindDirect:
		first.Ciphertext = []byte{}
		return first.directCEK(contentAlg)
	case KindECDHDirect:
		first.Ciphertext = []byte{}
		return first.agreeCEK(rand, contentAlg, true)
	}

	// Key transport: one fresh CEK, wrapped for every recipient
	cek, err := randomBytes(rand, contentAlg.KeyLength())
	if err != nil {
		return nil, err
	}
	for i, r := range recipients {
		if err := r.encryptCEK(rand, cek); err != nil {
			return nil, fmt.Errorf("recipient %d: %w", i, err)
		}
	}
	return cek, nil
}

// validateRecipientSet enforces the mixing rules: a direct or
// direct-key-agreement recipient must be the only recipient.
func validateRecipientSet(recipients []*Recipient) error {
	for _, r := range recipients {
		alg, err := r.algorithm()
		if err != nil {
			return err
		}
		switch alg.Kind() {
		case KindDirect, KindECDHDirect:
			if len(recipients) > 1 {
				return fmt.Errorf("%w: %v recipient must be the only recipient", ErrUnsupportedRecipient, alg)
			}
		case KindKeyWrap, KindECDHKeyWrap:
		default:
			return fmt.Errorf("%w: %v", ErrUnsupportedRecipient, alg)
		}
	}
	return nil
}

// recoverCEK walks the node on the receiving side and returns the content
// encryption key it transports for the given content algorithm.
func (r *Recipient) recoverCEK(contentAlg Algorithm) ([]byte, error) {
	alg, err := r.algorithm()
	if err != nil {
		return nil, err
	}
	switch alg.Kind() {
	case KindDirect:
		return r.directCEK(contentAlg)
	case KindECDHDirect:
		return r.agreeCEK(nil, contentAlg, false)
	case KindKeyWrap, KindECDHKeyWrap:
		kek, err := r.kek(nil, alg, false)
		if err != nil {
			return nil, err
		}
		return r.unwrapWith(alg, kek)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedRecipient, alg)
	}
}

// encryptCEK fills the node's transport fields for the CEK on the sending
// side.
func (r *Recipient) encryptCEK(rand io.Reader, cek []byte) error {
	alg, err := r.algorithm()
	if err != nil {
		return err
	}
	kek, err := r.kek(rand, alg, true)
	if err != nil {
		return err
	}
	return r.wrapWith(rand, alg, kek, cek)
}

// kek resolves the node's key-encryption key. Plain key wrap takes it from
// the node's key; ECDH variants derive it; a node without key material but
// with nested recipients receives it through the sub-tree.
func (r *Recipient) kek(rand io.Reader, alg Algorithm, encrypting bool) ([]byte, error) {
	info, err := alg.info()
	if err != nil {
		return nil, err
	}
	switch info.kind {
	case KindECDHKeyWrap:
		return r.agreeKEK(rand, alg, encrypting)
	case KindKeyWrap:
		if info.prim == primRSAOAEP {
			// RSA transport has no symmetric KEK; wrap/unwrap handle the key
			return nil, nil
		}
		if r.Key == nil {
			if len(r.Recipients) == 0 {
				return nil, fmt.Errorf("%w: no key", ErrInvalidKey)
			}
			if encrypting {
				return establishCEK(rand, r.Recipients, alg)
			}
			return recoverFromSubtree(r.Recipients, alg)
		}
		if r.Key.Type != KeyTypeSymmetric {
			return nil, fmt.Errorf("%w: %v needs a symmetric KEK", ErrInvalidKey, alg)
		}
		op := KeyOpUnwrapKey
		if encrypting {
			op = KeyOpWrapKey
		}
		if err := r.Key.CheckOp(op, alg); err != nil {
			return nil, err
		}
		return r.Key.K, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedRecipient, alg)
	}
}

// recoverFromSubtree finds the first nested recipient whose key material
// recovers this layer's KEK.
func recoverFromSubtree(recipients []*Recipient, alg Algorithm) ([]byte, error) {
	var firstErr error
	for _, child := range recipients {
		if !child.hasKeyMaterial() {
			continue
		}
		kek, err := child.recoverCEK(alg)
		if err == nil {
			return kek, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, fmt.Errorf("%w: no usable nested recipient", ErrInvalidKey)
}

// hasKeyMaterial reports whether the node or its sub-tree carries any
// caller-supplied key.
func (r *Recipient) hasKeyMaterial() bool {
	if r.Key != nil || r.SenderKey != nil {
		return true
	}
	for _, child := range r.Recipients {
		if child.hasKeyMaterial() {
			return true
		}
	}
	return false
}

// wrapWith wraps the CEK under the resolved KEK.
func (r *Recipient) wrapWith(rand io.Reader, alg Algorithm, kek, cek []byte) error {
	info, err := alg.info()
	if err != nil {
		return err
	}
	if info.prim == primRSAOAEP {
		if r.Key == nil || r.Key.Type != KeyTypeRSA {
			return fmt.Errorf("%w: %v needs an RSA key", ErrInvalidKey, alg)
		}
		if err := r.Key.CheckOp(KeyOpWrapKey, alg); err != nil {
			return err
		}
		pub, err := r.Key.rsaPublicKey()
		if err != nil {
			return err
		}
		wrapped, err := dbrsa.WrapOAEP(rand, pub, info.hash, cek)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCryptoBackend, err)
		}
		r.Ciphertext = wrapped
		return nil
	}
	wrapped, err := keywrap.Wrap(kek, cek)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCryptoBackend, err)
	}
	r.Ciphertext = wrapped
	return nil
}

// unwrapWith recovers the CEK from the node's ciphertext under the
// resolved KEK.
func (r *Recipient) unwrapWith(alg Algorithm, kek []byte) ([]byte, error) {
	info, err := alg.info()
	if err != nil {
		return nil, err
	}
	if len(r.Ciphertext) == 0 {
		return nil, fmt.Errorf("%w: recipient has no ciphertext", ErrMalformedMessage)
	}
	if info.prim == primRSAOAEP {
		if r.Key == nil || r.Key.Type != KeyTypeRSA {
			return nil, fmt.Errorf("%w: %v needs an RSA key", ErrInvalidKey, alg)
		}
		if err := r.Key.CheckOp(KeyOpUnwrapKey, alg); err != nil {
			return nil, err
		}
		priv, err := r.Key.rsaPrivateKey()
		if err != nil {
			return nil, err
		}
		cek, err := dbrsa.UnwrapOAEP(priv, info.hash, r.Ciphertext)
		if err != nil {
			return nil, ErrDecryptionFailed
		}
		return cek, nil
	}
	cek, err := keywrap.Unwrap(kek, r.Ciphertext)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return cek, nil
}

// directCEK returns the CEK for direct and direct+HKDF recipients.
func (r *Recipient) directCEK(contentAlg Algorithm) ([]byte, error) {
	alg, err := r.algorithm()
	if err != nil {
		return nil, err
	}
	info, err := alg.info()
	if err != nil {
		return nil, err
	}
	if r.Key == nil || r.Key.Type != KeyTypeSymmetric {
		return nil, fmt.Errorf("%w: %v needs a symmetric key", ErrInvalidKey, alg)
	}
	if info.prim != primHKDF {
		return r.Key.K, nil
	}
	if err := r.Key.CheckOp(KeyOpDeriveKey, alg); err != nil {
		return nil, err
	}
	return r.deriveKey(info, r.Key.K, contentAlg, contentAlg.KeyLength())
}

// agreeCEK derives the CEK for direct key agreement recipients.
func (r *Recipient) agreeCEK(rand io.Reader, contentAlg Algorithm, encrypting bool) ([]byte, error) {
	alg, err := r.algorithm()
	if err != nil {
		return nil, err
	}
	info, err := alg.info()
	if err != nil {
		return nil, err
	}
	secret, err := r.sharedSecret(rand, alg, encrypting)
	if err != nil {
		return nil, err
	}
	return r.deriveKey(info, secret, contentAlg, contentAlg.KeyLength())
}

// agreeKEK derives the intermediate KEK for key agreement with key wrap.
// The KDF context names the key wrap algorithm and its key length.
func (r *Recipient) agreeKEK(rand io.Reader, alg Algorithm, encrypting bool) ([]byte, error) {
	info, err := alg.info()
	if err != nil {
		return nil, err
	}
	secret, err := r.sharedSecret(rand, alg, encrypting)
	if err != nil {
		return nil, err
	}
	var wrapAlg Algorithm
	switch info.wrapLen {
	case 16:
		wrapAlg = AlgorithmA128KW
	case 24:
		wrapAlg = AlgorithmA192KW
	case 32:
		wrapAlg = AlgorithmA256KW
	}
	return r.deriveKey(info, secret, wrapAlg, info.wrapLen)
}

// sharedSecret performs the ECDH agreement for the node. On the sending
// side of ECDH-ES an ephemeral key is generated, stored in SenderKey and
// published in the unprotected bucket.
func (r *Recipient) sharedSecret(rand io.Reader, alg Algorithm, encrypting bool) ([]byte, error) {
	info, err := alg.info()
	if err != nil {
		return nil, err
	}
	if r.Key == nil {
		return nil, fmt.Errorf("%w: no key", ErrInvalidKey)
	}
	if err := r.Key.CheckOp(KeyOpDeriveKey, alg); err != nil {
		return nil, err
	}

	if encrypting {
		// r.Key is the peer's static public key
		priv := r.SenderKey
		if priv == nil {
			if info.static {
				return nil, fmt.Errorf("%w: ECDH-SS needs a sender key", ErrInvalidKey)
			}
			priv, err = generateEphemeralKey(rand, r.Key.Curve)
			if err != nil {
				return nil, err
			}
			r.SenderKey = priv
			r.Headers.SetUnprotected(LabelEphemeralKey, priv.publicPart())
		}
		return agreeKeys(priv, r.Key)
	}

	// r.Key is the receiver's private key; the peer's public key comes from
	// the ephemeral or static key headers, or a caller-assigned SenderKey
	var peer *Key
	label := LabelEphemeralKey
	if info.static {
		label = LabelStaticKey
	}
	if value, ok := r.Headers.Get(label); ok {
		key, ok := value.(*Key)
		if !ok {
			return nil, fmt.Errorf("%w: malformed peer key header", ErrInvalidHeader)
		}
		peer = key
	} else if r.SenderKey != nil {
		peer = r.SenderKey
	} else {
		return nil, fmt.Errorf("%w: no peer public key", ErrInvalidKey)
	}
	return agreeKeys(r.Key, peer)
}

// deriveKey runs the HKDF expansion with the COSE KDF context as info.
func (r *Recipient) deriveKey(info algorithmInfo, secret []byte, targetAlg Algorithm, length int) ([]byte, error) {
	if length == 0 {
		return nil, fmt.Errorf("%w: %v has no fixed key length", ErrInvalidAlgorithm, targetAlg)
	}
	protected, err := r.Headers.encodeProtected()
	if err != nil {
		return nil, err
	}
	context := kdfContext(targetAlg, length*8, r.partyInfo(LabelPartyUIdentity, LabelPartyUNonce, LabelPartyUOther),
		r.partyInfo(LabelPartyVIdentity, LabelPartyVNonce, LabelPartyVOther), protected)
	var salt []byte
	if value, ok := r.Headers.Get(LabelSalt); ok {
		if b, ok := value.([]byte); ok {
			salt = b
		}
	}
	return hkdf.Key(info.hash.New, secret, salt, context, length), nil
}

// partyInfo collects one party's KDF identity attributes.
func (r *Recipient) partyInfo(identity, nonce, other cbor.Label) partyInfo {
	bytesAttr := func(label cbor.Label) []byte {
		if value, ok := r.Headers.Get(label); ok {
			if b, ok := value.([]byte); ok {
				return b
			}
		}
		return nil
	}
	return partyInfo{
		identity: bytesAttr(identity),
		nonce:    bytesAttr(nonce),
		other:    bytesAttr(other),
	}
}

// algorithm returns the node's algorithm header.
func (r *Recipient) algorithm() (Algorithm, error) {
	alg, err := r.Headers.Algorithm()
	if err != nil {
		return 0, fmt.Errorf("%w: recipient: %w", ErrUnsupportedRecipient, err)
	}
	return alg, nil
}

// agreeKeys computes the ECDH shared secret between a private and a public
// key on the same curve.
func agreeKeys(priv, pub *Key) ([]byte, error) {
	if priv.D == nil {
		return nil, fmt.Errorf("%w: missing private scalar", ErrInvalidKey)
	}
	if priv.Curve != pub.Curve {
		return nil, fmt.Errorf("%w: curve mismatch", ErrInvalidKey)
	}
	var secret []byte
	var err error
	switch priv.Curve {
	case CurveX448:
		secret, err = ecdh.AgreeX448(priv.D, pub.X)
	case CurveP256, CurveP384, CurveP521, CurveX25519:
		curve, curveErr := priv.ecdhCurve()
		if curveErr != nil {
			return nil, curveErr
		}
		secret, err = ecdh.Agree(curve, priv.D, pub.ecdhPublicBytes())
	default:
		return nil, fmt.Errorf("%w: curve %v cannot do key agreement", ErrInvalidKey, priv.Curve)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoBackend, err)
	}
	return secret, nil
}

// generateEphemeralKey creates a fresh key pair on the curve for ECDH-ES.
func generateEphemeralKey(rand io.Reader, curve Curve) (*Key, error) {
	switch curve {
	case CurveX448:
		priv, pub, err := ecdh.GenerateKeyX448(rand)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCryptoBackend, err)
		}
		return &Key{Type: KeyTypeOKP, Curve: CurveX448, X: pub, D: priv}, nil
	case CurveX25519:
		priv, pub, err := ecdh.GenerateKey(rand, stdecdh.X25519())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCryptoBackend, err)
		}
		return &Key{Type: KeyTypeOKP, Curve: CurveX25519, X: pub, D: priv}, nil
	case CurveP256, CurveP384, CurveP521:
		probe := &Key{Curve: curve}
		ecdhCurve, err := probe.ecdhCurve()
		if err != nil {
			return nil, err
		}
		priv, pub, err := ecdh.GenerateKey(rand, ecdhCurve)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCryptoBackend, err)
		}
		size := curve.coordinateSize()
		if len(pub) != 1+2*size || pub[0] != 0x04 {
			return nil, fmt.Errorf("%w: unexpected public key encoding", ErrCryptoBackend)
		}
		return &Key{
			Type:  KeyTypeEC2,
			Curve: curve,
			X:     pub[1 : 1+size],
			Y:     pub[1+size:],
			D:     priv,
		}, nil
	default:
		return nil, fmt.Errorf("%w: curve %v cannot do key agreement", ErrInvalidKey, curve)
	}
}

// publicPart strips the private scalar for publication in a header.
func (k *Key) publicPart() *Key {
	return &Key{Type: k.Type, Curve: k.Curve, X: k.X, Y: k.Y}
}

// encodeRecipients emits a recipient list.
func encodeRecipients(enc *cbor.Encoder, recipients []*Recipient) error {
	enc.EncodeArrayHeader(len(recipients))
	for i, r := range recipients {
		if err := r.encodeTo(enc); err != nil {
			return fmt.Errorf("recipient %d: %w", i, err)
		}
	}
	return nil
}

// encodeTo emits one recipient node, recursing into nested recipients.
func (r *Recipient) encodeTo(enc *cbor.Encoder) error {
	fields := 3
	if len(r.Recipients) > 0 {
		fields = 4
	}
	enc.EncodeArrayHeader(fields)
	if err := r.Headers.encodeTo(enc); err != nil {
		return err
	}
	enc.EncodeBytes(emptyIfNil(r.Ciphertext))
	if len(r.Recipients) > 0 {
		return encodeRecipients(enc, r.Recipients)
	}
	return nil
}

// decodeRecipients parses a recipient list, bounding nesting depth.
func decodeRecipients(dec *cbor.Decoder, depth int) ([]*Recipient, error) {
	if depth > maxRecipientDepth {
		return nil, fmt.Errorf("%w: recipient nesting too deep", ErrMalformedMessage)
	}
	count, err := dec.DecodeArrayHeader()
	if err != nil {
		return nil, fmt.Errorf("%w: recipients: %v", ErrMalformedMessage, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: empty recipient list", ErrMalformedMessage)
	}
	recipients := make([]*Recipient, 0, min(int(count), 16))
	for i := range count {
		r, err := decodeRecipient(dec, depth)
		if err != nil {
			return nil, fmt.Errorf("recipient %d: %w", i, err)
		}
		recipients = append(recipients, r)
	}
	return recipients, nil
}

// decodeRecipient parses one recipient node.
func decodeRecipient(dec *cbor.Decoder, depth int) (*Recipient, error) {
	count, err := dec.DecodeArrayHeader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if count != 3 && count != 4 {
		return nil, fmt.Errorf("%w: recipient array must have 3 or 4 elements", ErrMalformedMessage)
	}
	headers, err := decodeHeadersFrom(dec)
	if err != nil {
		return nil, err
	}
	ciphertext, err := decodePayload(dec)
	if err != nil {
		return nil, err
	}
	r := &Recipient{Headers: headers, Ciphertext: ciphertext}
	if count == 4 {
		if r.Recipients, err = decodeRecipients(dec, depth+1); err != nil {
			return nil, err
		}
	}
	return r, nil
}
