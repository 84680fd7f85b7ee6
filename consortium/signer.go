// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consortium

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/luxfi/ids"

	"github.com/luxfi/consortium/validators"
)

var _ Signer = (*LocalSigner)(nil)

// Signer produces the signature of a single notary.
type Signer interface {
	Address() common.Address
	Sign(id ids.ID) (*Signature, error)
}

// LocalSigner signs with a secp256k1 key held in memory.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// LoadLocalSigner parses a hex encoded private key.
func LoadLocalSigner(hexKey string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse signing key: %w", err)
	}
	return NewLocalSigner(key), nil
}

func (s *LocalSigner) Address() common.Address {
	return s.address
}

// Sign signs [id] directly, without any message prefix.
func (s *LocalSigner) Sign(id ids.ID) (*Signature, error) {
	raw, err := crypto.Sign(id[:], s.key)
	if err != nil {
		return nil, err
	}
	raw[vIdx] += recoveryIDOffset
	return ParseSignature(raw)
}

// Aggregate places every signature over [id] at the slot of its signer in
// [set]. Signatures of non validators and repeated signers are dropped.
func Aggregate(set *validators.Set, id ids.ID, sigs []*Signature) Proof {
	proof := NewProof(set.Len())
	for _, sig := range sigs {
		signer, err := sig.Recover(id)
		if err != nil {
			continue
		}
		i, ok := set.IndexOf(signer)
		if !ok || proof[i] != nil {
			continue
		}
		proof[i] = sig
	}
	return proof
}
