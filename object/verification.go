package object

import (
	"fmt"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/bluestreak/bgit/plumbing"
)

// TrustLevel mirrors Git's own trust model for a signing key, from lowest to
// highest.
type TrustLevel int8

const (
	TrustUndefined TrustLevel = iota
	TrustNever
	TrustMarginal
	TrustFull
	TrustUltimate
)

func (t TrustLevel) String() string {
	switch t {
	case TrustNever:
		return "never"
	case TrustMarginal:
		return "marginal"
	case TrustFull:
		return "full"
	case TrustUltimate:
		return "ultimate"
	default:
		return "undefined"
	}
}

// AtLeast reports whether t meets or exceeds required.
func (t TrustLevel) AtLeast(required TrustLevel) bool {
	return t >= required
}

// VerifiableObject is a commit or tag that carries a detached signature over
// its own canonical form minus the signature header itself.
type VerifiableObject interface {
	Signature() string
	EncodeWithoutSignature(plumbing.EncodedObject) error
}

// Signature returns the commit's PGP signature block, satisfying
// VerifiableObject.
func (c *Commit) Signature() string { return c.PGPSignature }

// EncodeWithoutSignature serializes c as Encode does, but omitting the
// gpgsig header — the exact bytes the signature was computed over.
func (c *Commit) EncodeWithoutSignature(o plumbing.EncodedObject) error {
	sig := c.PGPSignature
	c.PGPSignature = ""
	err := c.Encode(o)
	c.PGPSignature = sig
	return err
}

// Signature returns the tag's PGP signature block, satisfying
// VerifiableObject.
func (t *Tag) Signature() string { return t.PGPSignature }

// EncodeWithoutSignature serializes t as Encode does, but omitting the
// gpgsig header.
func (t *Tag) EncodeWithoutSignature(o plumbing.EncodedObject) error {
	sig := t.PGPSignature
	t.PGPSignature = ""
	err := t.Encode(o)
	t.PGPSignature = sig
	return err
}

// VerifyPGP checks o's detached OpenPGP signature against keyRing, returning
// the entity that produced it. The signature block's armor header is
// inspected first (DetectSignatureType): only SignatureTypeOpenPGP is
// handled here, since this module carries no X.509 or SSH verifier; callers
// signing with those formats get a clear error rather than a confusing
// failure deep inside the OpenPGP parser.
func VerifyPGP(o VerifiableObject, keyRing openpgp.EntityList) (*openpgp.Entity, error) {
	switch t := DetectSignatureType([]byte(o.Signature())); t {
	case SignatureTypeOpenPGP:
		// handled below
	case SignatureTypeUnknown:
		return nil, fmt.Errorf("object: signature has no recognized armor header")
	default:
		return nil, fmt.Errorf("object: signature format %s is not supported by VerifyPGP", t)
	}

	encoded := &plumbing.MemoryObject{}
	if err := o.EncodeWithoutSignature(encoded); err != nil {
		return nil, err
	}

	r, err := encoded.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return openpgp.CheckArmoredDetachedSignature(keyRing, r, strings.NewReader(o.Signature()), nil)
}
