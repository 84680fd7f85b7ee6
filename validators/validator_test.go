// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validators

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/consortium/validators/validatorstest"
)

func TestNewValidator(t *testing.T) {
	require := require.New(t)

	key := validatorstest.NewKeys(t, 1)[0]
	expectedAddr := crypto.PubkeyToAddress(key.PublicKey)

	uncompressed, err := NewValidator(crypto.FromECDSAPub(&key.PublicKey), 10)
	require.NoError(err)
	require.Equal(expectedAddr, uncompressed.Address)
	require.Equal(uint64(10), uncompressed.Weight)

	compressed, err := NewValidator(crypto.CompressPubkey(&key.PublicKey), 10)
	require.NoError(err)
	require.Equal(uncompressed, compressed)
}

func TestNewValidatorInvalidPublicKey(t *testing.T) {
	tests := []struct {
		name      string
		publicKey []byte
	}{
		{
			name:      "empty",
			publicKey: nil,
		},
		{
			name:      "wrong length",
			publicKey: make([]byte, 64),
		},
		{
			name:      "not on curve",
			publicKey: append([]byte{0x04}, make([]byte, 64)...),
		},
		{
			name:      "bad compressed prefix",
			publicKey: append([]byte{0x05}, make([]byte, 32)...),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewValidator(test.publicKey, 1)
			require.ErrorIs(t, err, ErrInvalidPublicKey)
		})
	}
}

func TestAddressOf(t *testing.T) {
	require := require.New(t)

	key := validatorstest.NewKeys(t, 1)[0]
	addr, ok := AddressOf(crypto.FromECDSAPub(&key.PublicKey))
	require.True(ok)
	require.Equal(crypto.PubkeyToAddress(key.PublicKey), addr)

	_, ok = AddressOf([]byte{1, 2, 3})
	require.False(ok)
}
