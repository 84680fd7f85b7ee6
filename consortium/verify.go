// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consortium

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/luxfi/ids"

	"github.com/luxfi/consortium/validators"
)

var ErrNotEnoughSignatures = errors.New("not enough signatures")

// Result is the outcome of verifying a proof against a validator set.
// Falling short of the threshold is a regular Result, not an error.
type Result struct {
	Epoch    uint64 `json:"epoch"`
	Accepted bool   `json:"accepted"`
	// TotalWeight is the weight of the counted signatures.
	TotalWeight uint64 `json:"totalWeight"`
	Threshold   uint64 `json:"threshold"`
	// Signers is index aligned to the validator slots. A slot is nil unless
	// its signature was counted.
	Signers []*common.Address `json:"signers"`
}

// Shortfall is the weight missing to reach the threshold.
func (r *Result) Shortfall() uint64 {
	if r.TotalWeight >= r.Threshold {
		return 0
	}
	return r.Threshold - r.TotalWeight
}

// Err returns nil if the proof was accepted and an error wrapping
// ErrNotEnoughSignatures otherwise.
func (r *Result) Err() error {
	if r.Accepted {
		return nil
	}
	return fmt.Errorf("%w: collected weight %d of threshold %d in epoch %d",
		ErrNotEnoughSignatures, r.TotalWeight, r.Threshold, r.Epoch)
}

// Verify checks [proof] over [id] against [set]. The signature at slot i is
// only counted if it recovers to the validator at slot i of the set.
func Verify(set *validators.Set, id ids.ID, proof Proof) (*Result, error) {
	result, _, err := verify(set, id, proof)
	return result, err
}

// verify also reports the number of signatures that were recovered.
func verify(set *validators.Set, id ids.ID, proof Proof) (*Result, int, error) {
	if len(proof) != set.Len() {
		return nil, 0, fmt.Errorf("%w: %d signature slots for %d validators",
			ErrMalformedProof, len(proof), set.Len())
	}

	result := &Result{
		Epoch:     set.Epoch,
		Threshold: set.Threshold,
		Signers:   make([]*common.Address, len(proof)),
	}
	if proof.Present() == 0 {
		return result, 0, nil
	}

	var recovered int
	for i, sig := range proof {
		if sig == nil {
			continue
		}
		recovered++

		signer, err := sig.Recover(id)
		if err != nil {
			continue
		}
		vdr := set.Validators[i]
		if signer != vdr.Address {
			continue
		}
		result.TotalWeight += vdr.Weight
		result.Signers[i] = &signer
	}
	result.Accepted = result.TotalWeight >= result.Threshold
	return result, recovered, nil
}
