// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consortium

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var proofArguments = abi.Arguments{
	{Type: mustNewType("bytes[]")},
}

func mustNewType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// Proof holds one optional signature per validator slot of a set. A nil
// entry is an absent signature.
type Proof []*Signature

// NewProof returns a proof of [slots] absent signatures.
func NewProof(slots int) Proof {
	return make(Proof, slots)
}

// ParseProof parses an ABI encoded bytes[] where an empty element is an
// absent signature.
func ParseProof(b []byte) (Proof, error) {
	values, err := proofArguments.Unpack(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedProof, err)
	}
	slots, ok := values[0].([][]byte)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected proof type %T", ErrMalformedProof, values[0])
	}
	return ParseProofSlots(slots)
}

// ParseProofSlots parses already split signature slots. Empty slots are
// absent signatures.
func ParseProofSlots(slots [][]byte) (Proof, error) {
	proof := make(Proof, len(slots))
	for i, slot := range slots {
		if len(slot) == 0 {
			continue
		}
		sig, err := ParseSignature(slot)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}
		proof[i] = sig
	}
	return proof, nil
}

// Slots returns the raw signature of every slot, empty when absent.
func (p Proof) Slots() [][]byte {
	slots := make([][]byte, len(p))
	for i, sig := range p {
		if sig == nil {
			slots[i] = []byte{}
			continue
		}
		slots[i] = sig.Bytes()
	}
	return slots
}

// Bytes returns the ABI encoding of the proof.
func (p Proof) Bytes() ([]byte, error) {
	return proofArguments.Pack(p.Slots())
}

// Present returns the number of present signatures.
func (p Proof) Present() int {
	var n int
	for _, sig := range p {
		if sig != nil {
			n++
		}
	}
	return n
}
