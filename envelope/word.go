// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package envelope

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/luxfi/consortium/utils/wrappers"
)

var (
	ZeroWord Word

	errWordTooLong = errors.New("value is longer than a word")
)

// Word is an opaque 32-byte field. Chain identifiers, mailboxes and
// addresses are carried as Words and are never interpreted as native
// integers, so chains with different address widths hash identically.
type Word [wrappers.WordLen]byte

// WordFromBytes left-pads [b] with zeros.
func WordFromBytes(b []byte) (Word, error) {
	var w Word
	if len(b) > len(w) {
		return w, fmt.Errorf("%w: %d bytes", errWordTooLong, len(b))
	}
	copy(w[len(w)-len(b):], b)
	return w, nil
}

// WordFromAddress left-pads a 20-byte EVM address.
func WordFromAddress(addr common.Address) Word {
	var w Word
	copy(w[len(w)-common.AddressLength:], addr[:])
	return w
}

// WordFromUint64 encodes [v] as a big-endian word.
func WordFromUint64(v uint64) Word {
	return Word(uint256.NewInt(v).Bytes32())
}

// WordFromHex parses a 0x-prefixed hex string of at most 32 bytes.
func WordFromHex(s string) (Word, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return ZeroWord, err
	}
	return WordFromBytes(b)
}

// Address returns the low 20 bytes of the word.
func (w Word) Address() common.Address {
	return common.BytesToAddress(w[len(w)-common.AddressLength:])
}

func (w Word) IsZero() bool {
	return w == ZeroWord
}

func (w Word) String() string {
	return hexutil.Encode(w[:])
}

func (w Word) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

func (w *Word) UnmarshalText(text []byte) error {
	parsed, err := WordFromHex(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
