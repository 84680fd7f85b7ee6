// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consortium

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"

	"github.com/luxfi/consortium/validators"
	"github.com/luxfi/consortium/validators/validatorstest"
)

type testCommittee struct {
	set     *validators.Set
	signers []*LocalSigner
}

func newTestCommittee(t *testing.T, epoch uint64, weights []uint64, threshold uint64) *testCommittee {
	keys := validatorstest.NewKeys(t, len(weights))
	set, err := validators.NewSet(epoch, validatorstest.PublicKeys(keys), weights, threshold)
	require.NoError(t, err)

	signers := make([]*LocalSigner, len(keys))
	for i, key := range keys {
		signers[i] = NewLocalSigner(key)
	}
	return &testCommittee{
		set:     set,
		signers: signers,
	}
}

// proof signs [id] with the signers at [slots].
func (c *testCommittee) proof(t *testing.T, id ids.ID, slots ...int) Proof {
	proof := NewProof(c.set.Len())
	for _, i := range slots {
		sig, err := c.signers[i].Sign(id)
		require.NoError(t, err)
		proof[i] = sig
	}
	return proof
}

func TestVerifyAccepted(t *testing.T) {
	require := require.New(t)

	c := newTestCommittee(t, 1, []uint64{1, 1}, 2)
	id := ids.GenerateTestID()

	result, err := Verify(c.set, id, c.proof(t, id, 0, 1))
	require.NoError(err)
	require.True(result.Accepted)
	require.NoError(result.Err())
	require.Equal(uint64(2), result.TotalWeight)
	require.Zero(result.Shortfall())
	require.Equal(uint64(1), result.Epoch)
	require.Equal(c.signers[0].Address(), *result.Signers[0])
	require.Equal(c.signers[1].Address(), *result.Signers[1])
}

func TestVerifyNotEnoughSignatures(t *testing.T) {
	require := require.New(t)

	c := newTestCommittee(t, 1, []uint64{1, 1}, 2)
	id := ids.GenerateTestID()

	result, err := Verify(c.set, id, c.proof(t, id, 0))
	require.NoError(err)
	require.False(result.Accepted)
	require.Equal(uint64(1), result.TotalWeight)
	require.Equal(uint64(1), result.Shortfall())
	require.ErrorIs(result.Err(), ErrNotEnoughSignatures)
	require.NotNil(result.Signers[0])
	require.Nil(result.Signers[1])
}

func TestVerifyDuplicateSignatureAcrossSlots(t *testing.T) {
	require := require.New(t)

	c := newTestCommittee(t, 1, []uint64{1, 1}, 2)
	id := ids.GenerateTestID()

	proof := c.proof(t, id, 0)
	proof[1] = proof[0]

	result, err := Verify(c.set, id, proof)
	require.NoError(err)
	require.False(result.Accepted)
	require.Equal(uint64(1), result.TotalWeight)
	require.Equal(uint64(1), result.Shortfall())
	require.Nil(result.Signers[1])
}

func TestVerifySlotBinding(t *testing.T) {
	require := require.New(t)

	c := newTestCommittee(t, 1, []uint64{1, 1}, 1)
	id := ids.GenerateTestID()

	// Swap the signatures so that neither sits at its own slot.
	signed := c.proof(t, id, 0, 1)
	proof := Proof{signed[1], signed[0]}

	result, err := Verify(c.set, id, proof)
	require.NoError(err)
	require.False(result.Accepted)
	require.Zero(result.TotalWeight)
	require.ErrorIs(result.Err(), ErrNotEnoughSignatures)
}

func TestVerifyAllAbsent(t *testing.T) {
	require := require.New(t)

	c := newTestCommittee(t, 1, []uint64{1, 1, 1}, 2)

	result, recovered, err := verify(c.set, ids.GenerateTestID(), NewProof(3))
	require.NoError(err)
	require.Zero(recovered)
	require.False(result.Accepted)
	require.Equal(uint64(2), result.Shortfall())
	require.ErrorIs(result.Err(), ErrNotEnoughSignatures)
}

func TestVerifyMalformedProof(t *testing.T) {
	c := newTestCommittee(t, 1, []uint64{1, 1}, 1)
	id := ids.GenerateTestID()

	tests := []struct {
		name  string
		proof Proof
	}{
		{
			name:  "empty",
			proof: nil,
		},
		{
			name:  "too few slots",
			proof: c.proof(t, id, 0)[:1],
		},
		{
			name:  "too many slots",
			proof: append(c.proof(t, id, 0, 1), nil),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Verify(c.set, id, test.proof)
			require.ErrorIs(t, err, ErrMalformedProof)
		})
	}
}

func TestVerifyIgnoresInvalidSlots(t *testing.T) {
	require := require.New(t)

	c := newTestCommittee(t, 1, []uint64{1, 2, 4, 8}, 9)
	id := ids.GenerateTestID()

	proof := c.proof(t, id, 0, 1, 2, 3)
	// Wrong payload.
	wrong, err := c.signers[0].Sign(ids.GenerateTestID())
	require.NoError(err)
	proof[0] = wrong
	// Malleated signature.
	proof[1] = highS(proof[1])
	// Garbage that can't be recovered.
	garbage := Signature{}
	garbage[vIdx] = 27
	proof[2] = &garbage

	result, err := Verify(c.set, id, proof)
	require.NoError(err)
	require.False(result.Accepted)
	require.Equal(uint64(8), result.TotalWeight)
	require.Equal(uint64(1), result.Shortfall())
}

func TestVerifyThresholdMonotonicity(t *testing.T) {
	require := require.New(t)

	weights := []uint64{3, 1, 4, 1, 5}
	c := newTestCommittee(t, 1, weights, 8)
	id := ids.GenerateTestID()

	var (
		slots        []int
		lastWeight   uint64
		wasAccepted  bool
		expectWeight uint64
	)
	for i := range weights {
		slots = append(slots, i)
		expectWeight += weights[i]

		result, err := Verify(c.set, id, c.proof(t, id, slots...))
		require.NoError(err)
		require.Equal(expectWeight, result.TotalWeight)
		require.GreaterOrEqual(result.TotalWeight, lastWeight)
		if wasAccepted {
			require.True(result.Accepted)
		}
		lastWeight = result.TotalWeight
		wasAccepted = result.Accepted
	}
	require.True(wasAccepted)
}

func TestVerifyIsRepeatable(t *testing.T) {
	require := require.New(t)

	c := newTestCommittee(t, 1, []uint64{1, 1, 1}, 2)
	id := ids.GenerateTestID()
	proof := c.proof(t, id, 0, 2)

	first, err := Verify(c.set, id, proof)
	require.NoError(err)
	second, err := Verify(c.set, id, proof)
	require.NoError(err)
	require.Equal(first, second)
}

func TestVerifyCompressedKeys(t *testing.T) {
	require := require.New(t)

	keys := validatorstest.NewKeys(t, 2)
	set, err := validators.NewSet(
		1,
		[][]byte{
			crypto.CompressPubkey(&keys[0].PublicKey),
			crypto.CompressPubkey(&keys[1].PublicKey),
		},
		[]uint64{1, 1},
		2,
	)
	require.NoError(err)

	id := ids.GenerateTestID()
	proof := NewProof(2)
	for i, key := range keys {
		proof[i], err = NewLocalSigner(key).Sign(id)
		require.NoError(err)
	}

	result, err := Verify(set, id, proof)
	require.NoError(err)
	require.True(result.Accepted)
}

func TestAggregate(t *testing.T) {
	require := require.New(t)

	c := newTestCommittee(t, 1, []uint64{1, 1, 1}, 2)
	outsider := NewLocalSigner(validatorstest.NewKeys(t, 1)[0])
	id := ids.GenerateTestID()

	var sigs []*Signature
	for _, signer := range []Signer{c.signers[2], outsider, c.signers[0], c.signers[2]} {
		sig, err := signer.Sign(id)
		require.NoError(err)
		sigs = append(sigs, sig)
	}

	proof := Aggregate(c.set, id, sigs)
	require.Len(proof, 3)
	require.Equal(2, proof.Present())
	require.Nil(proof[1])

	result, err := Verify(c.set, id, proof)
	require.NoError(err)
	require.True(result.Accepted)
}
