// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wrappers

import (
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestPackerWordRoundTrip(t *testing.T) {
	require := require.New(t)

	var word [WordLen]byte
	word[0] = 0xff
	word[WordLen-1] = 0x01

	p := Packer{MaxSize: math.MaxInt}
	p.PackWord(word)
	p.PackUint64(1337)
	p.PackBytes([]byte{1, 2, 3})
	require.NoError(p.Err)
	require.Len(p.Bytes, 3*WordLen+3)

	// uint64 values are left padded
	require.Equal(byte(0x05), p.Bytes[2*WordLen-2])
	require.Equal(byte(0x39), p.Bytes[2*WordLen-1])

	u := Packer{Bytes: p.Bytes}
	require.Equal(word, u.UnpackWord())
	require.Equal(uint64(1337), u.UnpackUint64())
	require.Equal([]byte{1, 2, 3}, u.UnpackLimitedBytes(3))
	require.NoError(u.Err)
	require.Zero(u.Remaining())
}

func TestPackerUint256(t *testing.T) {
	require := require.New(t)

	val := new(uint256.Int).Lsh(uint256.NewInt(3), 200)

	p := Packer{MaxSize: WordLen}
	p.PackUint256(val)
	require.NoError(p.Err)

	u := Packer{Bytes: p.Bytes}
	require.Equal(*val, u.UnpackUint256())
	require.NoError(u.Err)

	// Wider than 64 bits.
	u = Packer{Bytes: p.Bytes}
	u.UnpackUint64()
	require.ErrorIs(u.Err, ErrWordOverflow)
}

func TestPackerMaxSize(t *testing.T) {
	p := Packer{MaxSize: WordLen}
	p.PackUint64(1)
	require.NoError(t, p.Err)
	p.PackUint64(2)
	require.ErrorIs(t, p.Err, ErrInsufficientLength)
}

func TestPackerUnpackErrors(t *testing.T) {
	tests := []struct {
		name        string
		bytes       []byte
		unpack      func(*Packer)
		expectedErr error
	}{
		{
			name:        "short word",
			bytes:       make([]byte, WordLen-1),
			unpack:      func(p *Packer) { p.UnpackWord() },
			expectedErr: ErrInsufficientLength,
		},
		{
			name: "word overflows uint64",
			bytes: func() []byte {
				b := make([]byte, WordLen)
				b[0] = 1
				return b
			}(),
			unpack:      func(p *Packer) { p.UnpackUint64() },
			expectedErr: ErrWordOverflow,
		},
		{
			name: "bytes over limit",
			bytes: func() []byte {
				b := make([]byte, WordLen+4)
				b[WordLen-1] = 4
				return b
			}(),
			unpack:      func(p *Packer) { p.UnpackLimitedBytes(3) },
			expectedErr: errOversized,
		},
		{
			name: "bytes truncated",
			bytes: func() []byte {
				b := make([]byte, WordLen+2)
				b[WordLen-1] = 4
				return b
			}(),
			unpack:      func(p *Packer) { p.UnpackLimitedBytes(16) },
			expectedErr: ErrInsufficientLength,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Packer{Bytes: tt.bytes}
			tt.unpack(&p)
			require.ErrorIs(t, p.Err, tt.expectedErr)
		})
	}
}
