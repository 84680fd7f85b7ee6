// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package validatorstest provides notary keys for tests.
package validatorstest

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// NewKeys generates [n] secp256k1 keys.
func NewKeys(t testing.TB, n int) []*ecdsa.PrivateKey {
	keys := make([]*ecdsa.PrivateKey, n)
	for i := range keys {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		keys[i] = key
	}
	return keys
}

// PublicKeys returns the uncompressed public keys of [keys].
func PublicKeys(keys []*ecdsa.PrivateKey) [][]byte {
	pks := make([][]byte, len(keys))
	for i, key := range keys {
		pks[i] = crypto.FromECDSAPub(&key.PublicKey)
	}
	return pks
}

// Weights returns [n] copies of [weight].
func Weights(n int, weight uint64) []uint64 {
	weights := make([]uint64, n)
	for i := range weights {
		weights[i] = weight
	}
	return weights
}
