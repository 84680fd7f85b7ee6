// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validators

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	compressedPublicKeyLen   = 33
	uncompressedPublicKeyLen = 65
)

// Validator is a single notary slot of a Set.
type Validator struct {
	// PublicKey is the uncompressed secp256k1 public key (0x04 ‖ X ‖ Y).
	PublicKey []byte
	// Address is derived from PublicKey and is what recovered signers are
	// compared against.
	Address common.Address
	Weight  uint64
}

// NewValidator parses a compressed or uncompressed secp256k1 public key.
func NewValidator(publicKey []byte, weight uint64) (*Validator, error) {
	pk, err := parsePublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	return &Validator{
		PublicKey: crypto.FromECDSAPub(pk),
		Address:   crypto.PubkeyToAddress(*pk),
		Weight:    weight,
	}, nil
}

func (v *Validator) String() string {
	return fmt.Sprintf("Validator(Address = %s, Weight = %d)", v.Address, v.Weight)
}

func parsePublicKey(b []byte) (*ecdsa.PublicKey, error) {
	var (
		pk  *ecdsa.PublicKey
		err error
	)
	switch len(b) {
	case compressedPublicKeyLen:
		pk, err = crypto.DecompressPubkey(b)
	case uncompressedPublicKeyLen:
		pk, err = crypto.UnmarshalPubkey(b)
	default:
		return nil, fmt.Errorf("%w: unexpected length %d", ErrInvalidPublicKey, len(b))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	return pk, nil
}

// AddressOf returns the address of [publicKey], or false if it can't be
// parsed.
func AddressOf(publicKey []byte) (common.Address, bool) {
	pk, err := parsePublicKey(publicKey)
	if err != nil {
		return common.Address{}, false
	}
	return crypto.PubkeyToAddress(*pk), true
}
