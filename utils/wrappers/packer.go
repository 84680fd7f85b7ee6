// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wrappers provides the word-oriented packer used for canonical
// encodings.
package wrappers

import (
	"errors"
	"math"

	"github.com/holiman/uint256"

	utilswrappers "github.com/luxfi/utils/wrappers"
)

// WordLen is the width of every fixed-size field in a canonical encoding.
const WordLen = 32

var (
	ErrInsufficientLength = errors.New("packer has insufficient length for input")
	ErrWordOverflow       = errors.New("word does not fit the requested integer width")
	errNegativeOffset     = errors.New("negative offset")
	errInvalidInput       = errors.New("input does not match expected format")
	errOversized          = errors.New("size is larger than limit")
)

// Packer packs and unpacks a byte array as a sequence of 32-byte big-endian
// words followed by raw byte runs.
type Packer struct {
	utilswrappers.Errs

	// The largest allowed size of expanding the byte array
	MaxSize int
	// The current byte array
	Bytes []byte
	// The offset that is being written to in the byte array
	Offset int
}

// PackWord appends a 32-byte word to the byte array
func (p *Packer) PackWord(word [WordLen]byte) {
	p.PackFixedBytes(word[:])
}

// UnpackWord unpacks a 32-byte word from the byte array
func (p *Packer) UnpackWord() [WordLen]byte {
	var word [WordLen]byte
	copy(word[:], p.UnpackFixedBytes(WordLen))
	return word
}

// PackUint64 appends [val] as a left-zero-padded 32-byte big-endian word
func (p *Packer) PackUint64(val uint64) {
	p.PackWord(uint256.NewInt(val).Bytes32())
}

// PackUint256 appends [val] as a 32-byte big-endian word
func (p *Packer) PackUint256(val *uint256.Int) {
	p.PackWord(val.Bytes32())
}

// UnpackUint256 unpacks a 32-byte big-endian word
func (p *Packer) UnpackUint256() uint256.Int {
	word := p.UnpackWord()
	var val uint256.Int
	val.SetBytes32(word[:])
	return val
}

// UnpackUint64 unpacks a 32-byte word that must fit in 64 bits
func (p *Packer) UnpackUint64() uint64 {
	word := p.UnpackWord()
	if p.Errored() {
		return 0
	}

	val := new(uint256.Int).SetBytes32(word[:])
	if !val.IsUint64() {
		p.Add(ErrWordOverflow)
		return 0
	}
	return val.Uint64()
}

// PackFixedBytes appends a byte slice with no length descriptor to the byte array
func (p *Packer) PackFixedBytes(bytes []byte) {
	p.expand(len(bytes))
	if p.Errored() {
		return
	}

	copy(p.Bytes[p.Offset:], bytes)
	p.Offset += len(bytes)
}

// UnpackFixedBytes unpacks a byte slice with no length descriptor from the byte array
func (p *Packer) UnpackFixedBytes(size int) []byte {
	p.checkSpace(size)
	if p.Errored() {
		return nil
	}

	bytes := p.Bytes[p.Offset : p.Offset+size]
	p.Offset += size
	return bytes
}

// PackBytes appends a byte slice prefixed by its length as a 32-byte word
func (p *Packer) PackBytes(bytes []byte) {
	p.PackUint64(uint64(len(bytes)))
	p.PackFixedBytes(bytes)
}

// UnpackLimitedBytes unpacks a word-length-prefixed byte slice. If the size
// of the slice is greater than limit, adds errOversized to the packer and
// returns nil.
func (p *Packer) UnpackLimitedBytes(limit uint32) []byte {
	size := p.UnpackUint64()
	if p.Errored() {
		return nil
	}
	if size > uint64(limit) || size > math.MaxInt32 {
		p.Add(errOversized)
		return nil
	}
	return p.UnpackFixedBytes(int(size))
}

// Remaining returns the number of unread bytes.
func (p *Packer) Remaining() int {
	return len(p.Bytes) - p.Offset
}

// checkSpace requires that there is at least bytes of write space left in the
// byte array. If this is not true, an error is added to the packer.
func (p *Packer) checkSpace(bytes int) {
	switch {
	case p.Offset < 0:
		p.Add(errNegativeOffset)
	case bytes < 0:
		p.Add(errInvalidInput)
	case len(p.Bytes)-p.Offset < bytes:
		p.Add(ErrInsufficientLength)
	}
}

// expand ensures that there is bytes bytes left of space in the byte slice.
// If this is not allowed due to the maximum size, an error is added to the packer.
func (p *Packer) expand(bytes int) {
	neededSize := bytes + p.Offset
	switch {
	case neededSize <= len(p.Bytes):
		return
	case neededSize > p.MaxSize:
		p.Err = ErrInsufficientLength
		return
	case neededSize <= cap(p.Bytes):
		p.Bytes = p.Bytes[:neededSize]
		return
	default:
		p.Bytes = append(p.Bytes[:cap(p.Bytes)], make([]byte, neededSize-cap(p.Bytes))...)
	}
}
