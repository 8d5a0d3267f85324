// Package cid validates and encodes content identifiers for off-chain
// artifacts (problem and solution bundles) referenced from transaction
// data. A CID is base58btc over a SHA-256 multihash: a 32-byte digest
// prefixed by the multihash header 0x12 0x20, base58-encoded to a
// 46-character ASCII string beginning with "Qm".
package cid

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multihash"
)

// Length is the fixed encoded length of a valid CID.
const Length = 46

// Prefix is the fixed leading characters of a valid CID under the
// base58btc/SHA-256 encoding used here.
const Prefix = "Qm"

var (
	ErrLength   = errors.New("cid: wrong length")
	ErrPrefix   = errors.New("cid: wrong prefix")
	ErrAlphabet = errors.New("cid: invalid base58 encoding")
	ErrCodec    = errors.New("cid: not a SHA-256 multihash")
)

// Validate checks a CID string against the length, prefix, and alphabet
// rules, then confirms it decodes to a well-formed SHA-256 multihash.
// Reference-validating code paths (anything that would dereference a CID
// to fetch the artifact it names) must reject before that fetch if this
// returns an error.
func Validate(s string) error {
	if len(s) != Length {
		return fmt.Errorf("%w: got %d chars, want %d", ErrLength, len(s), Length)
	}
	if s[:len(Prefix)] != Prefix {
		return fmt.Errorf("%w: %q", ErrPrefix, s[:len(Prefix)])
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAlphabet, err)
	}
	decoded, err := multihash.Decode(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCodec, err)
	}
	if decoded.Code != multihash.SHA2_256 || decoded.Length != 32 {
		return fmt.Errorf("%w: code %d length %d", ErrCodec, decoded.Code, decoded.Length)
	}
	return nil
}

// Encode produces the base58btc-multihash CID for a SHA-256 digest.
func Encode(digest [32]byte) (string, error) {
	mh, err := multihash.Encode(digest[:], multihash.SHA2_256)
	if err != nil {
		return "", fmt.Errorf("cid: encode multihash: %w", err)
	}
	return base58.Encode(mh), nil
}

// Digest recovers the 32-byte SHA-256 digest from a valid CID. Callers
// should call Validate first; Digest re-validates the multihash codec
// and length but not the string's own length/prefix/alphabet shape.
func Digest(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := base58.Decode(s)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrAlphabet, err)
	}
	decoded, err := multihash.Decode(raw)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	if decoded.Code != multihash.SHA2_256 || decoded.Length != 32 {
		return out, fmt.Errorf("%w: code %d length %d", ErrCodec, decoded.Code, decoded.Length)
	}
	copy(out[:], decoded.Digest)
	return out, nil
}
