// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validators

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/luxfi/math"
)

var (
	ErrInvalidValidatorSet = errors.New("invalid validator set")
	ErrInvalidPublicKey    = errors.New("invalid validator public key")

	ErrLengthMismatch     = fmt.Errorf("%w: validators and weights length mismatch", ErrInvalidValidatorSet)
	ErrNoValidators       = fmt.Errorf("%w: no validators", ErrInvalidValidatorSet)
	ErrZeroWeight         = fmt.Errorf("%w: zero weight", ErrInvalidValidatorSet)
	ErrDuplicateValidator = fmt.Errorf("%w: duplicate validator", ErrInvalidValidatorSet)
	ErrInvalidThreshold   = fmt.Errorf("%w: threshold must be in (0, total weight]", ErrInvalidValidatorSet)
	ErrZeroEpoch          = fmt.Errorf("%w: epoch must be positive", ErrInvalidValidatorSet)
	ErrWeightOverflow     = fmt.Errorf("%w: weight overflowed", ErrInvalidValidatorSet)
)

// Set is the notary committee of a single epoch. A Set is never mutated
// after NewSet returns; rotations install a new Set.
type Set struct {
	Epoch uint64
	// Validators is ordered. Signature slots of a proof are aligned to this
	// order.
	Validators  []*Validator
	Threshold   uint64
	TotalWeight uint64

	indices map[common.Address]int
}

// NewSet validates the parameters of a bootstrap or rotation and returns
// the resulting Set.
func NewSet(
	epoch uint64,
	publicKeys [][]byte,
	weights []uint64,
	threshold uint64,
) (*Set, error) {
	switch {
	case epoch == 0:
		return nil, ErrZeroEpoch
	case len(publicKeys) != len(weights):
		return nil, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(publicKeys), len(weights))
	case len(publicKeys) == 0:
		return nil, ErrNoValidators
	}

	var (
		vdrs        = make([]*Validator, len(publicKeys))
		indices     = make(map[common.Address]int, len(publicKeys))
		totalWeight uint64
	)
	for i, pk := range publicKeys {
		if weights[i] == 0 {
			return nil, fmt.Errorf("%w: validator %d", ErrZeroWeight, i)
		}

		vdr, err := NewValidator(pk, weights[i])
		if err != nil {
			return nil, fmt.Errorf("%w: validator %d: %w", ErrInvalidValidatorSet, i, err)
		}
		if _, ok := indices[vdr.Address]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateValidator, vdr.Address)
		}

		totalWeight, err = math.Add(totalWeight, vdr.Weight)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrWeightOverflow, err)
		}
		vdrs[i] = vdr
		indices[vdr.Address] = i
	}
	if threshold == 0 || threshold > totalWeight {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidThreshold, threshold, totalWeight)
	}

	return &Set{
		Epoch:       epoch,
		Validators:  vdrs,
		Threshold:   threshold,
		TotalWeight: totalWeight,
		indices:     indices,
	}, nil
}

// Len is the number of signature slots of this set.
func (s *Set) Len() int {
	return len(s.Validators)
}

// WeightOf returns the weight of [publicKey], or 0 if it is not a member.
func (s *Set) WeightOf(publicKey []byte) uint64 {
	addr, ok := AddressOf(publicKey)
	if !ok {
		return 0
	}
	return s.WeightOfAddress(addr)
}

// WeightOfAddress returns the weight of the validator with [addr], or 0 if
// it is not a member.
func (s *Set) WeightOfAddress(addr common.Address) uint64 {
	i, ok := s.indices[addr]
	if !ok {
		return 0
	}
	return s.Validators[i].Weight
}

// IndexOf returns the slot of the validator with [addr].
func (s *Set) IndexOf(addr common.Address) (int, bool) {
	i, ok := s.indices[addr]
	return i, ok
}

// PublicKeys returns the ordered public keys of the set.
func (s *Set) PublicKeys() [][]byte {
	pks := make([][]byte, len(s.Validators))
	for i, vdr := range s.Validators {
		pks[i] = vdr.PublicKey
	}
	return pks
}

// Weights returns the ordered weights of the set.
func (s *Set) Weights() []uint64 {
	weights := make([]uint64, len(s.Validators))
	for i, vdr := range s.Validators {
		weights[i] = vdr.Weight
	}
	return weights
}

func (s *Set) String() string {
	return fmt.Sprintf("Set(Epoch = %d, Validators = %d, Threshold = %d, TotalWeight = %d)",
		s.Epoch, len(s.Validators), s.Threshold, s.TotalWeight)
}
