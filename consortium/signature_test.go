// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consortium

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"

	"github.com/luxfi/consortium/validators/validatorstest"
)

func TestParseSignature(t *testing.T) {
	valid := make([]byte, SignatureLen)
	valid[vIdx] = 28

	tests := []struct {
		name        string
		sig         []byte
		expectedErr error
	}{
		{
			name: "valid",
			sig:  valid,
		},
		{
			name:        "empty",
			sig:         nil,
			expectedErr: ErrMalformedProof,
		},
		{
			name:        "too short",
			sig:         valid[:SignatureLen-1],
			expectedErr: ErrMalformedProof,
		},
		{
			name:        "too long",
			sig:         append(append([]byte{}, valid...), 0),
			expectedErr: ErrMalformedProof,
		},
		{
			name:        "raw recovery id",
			sig:         append(append([]byte{}, valid[:vIdx]...), 1),
			expectedErr: ErrMalformedProof,
		},
		{
			name:        "recovery id out of range",
			sig:         append(append([]byte{}, valid[:vIdx]...), 29),
			expectedErr: ErrMalformedProof,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sig, err := ParseSignature(test.sig)
			require.ErrorIs(t, err, test.expectedErr)
			if test.expectedErr == nil {
				require.Equal(t, test.sig, sig.Bytes())
			}
		})
	}
}

func TestSignatureRecover(t *testing.T) {
	require := require.New(t)

	key := validatorstest.NewKeys(t, 1)[0]
	signer := NewLocalSigner(key)
	id := ids.GenerateTestID()

	sig, err := signer.Sign(id)
	require.NoError(err)
	require.Contains([]byte{27, 28}, sig[vIdx])

	addr, err := sig.Recover(id)
	require.NoError(err)
	require.Equal(crypto.PubkeyToAddress(key.PublicKey), addr)

	// A different id recovers to a different address.
	addr, err = sig.Recover(ids.GenerateTestID())
	if err == nil {
		require.NotEqual(crypto.PubkeyToAddress(key.PublicKey), addr)
	}
}

func TestSignatureRecoverHighS(t *testing.T) {
	require := require.New(t)

	key := validatorstest.NewKeys(t, 1)[0]
	id := ids.GenerateTestID()
	sig, err := NewLocalSigner(key).Sign(id)
	require.NoError(err)

	malleated := highS(sig)
	_, err = malleated.Recover(id)
	require.ErrorIs(err, errNonCanonicalSignature)
}

// highS returns the malleated twin of [sig], which recovers to the same key
// on curves that accept high s values.
func highS(sig *Signature) *Signature {
	var (
		n = crypto.S256().Params().N
		s = new(big.Int).SetBytes(sig[rLen:vIdx])
	)
	s.Sub(n, s)

	malleated := *sig
	s.FillBytes(malleated[rLen:vIdx])
	malleated[vIdx] ^= 1 // 27 <-> 28
	return &malleated
}

func TestSignatureText(t *testing.T) {
	require := require.New(t)

	sig, err := NewLocalSigner(validatorstest.NewKeys(t, 1)[0]).Sign(ids.GenerateTestID())
	require.NoError(err)

	text, err := sig.MarshalText()
	require.NoError(err)

	var parsed Signature
	require.NoError(parsed.UnmarshalText(text))
	require.Equal(*sig, parsed)

	err = parsed.UnmarshalText([]byte("0x1234"))
	require.ErrorIs(err, ErrMalformedProof)
}
