// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consortium

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/luxfi/ids"
)

const (
	SignatureLen = crypto.SignatureLength

	// recoveryIDOffset is added to the raw recovery id. Signatures carry
	// v = 27 or v = 28.
	recoveryIDOffset = 27

	rLen = 32
	vIdx = SignatureLen - 1
)

var (
	ErrMalformedProof = errors.New("malformed proof")

	errNonCanonicalSignature = errors.New("signature is not canonical")
)

// Signature is a recoverable secp256k1 signature laid out as r ‖ s ‖ v.
type Signature [SignatureLen]byte

// ParseSignature rejects anything other than a 65 byte signature with
// v = 27 or v = 28.
func ParseSignature(b []byte) (*Signature, error) {
	if len(b) != SignatureLen {
		return nil, fmt.Errorf("%w: signature length %d != %d", ErrMalformedProof, len(b), SignatureLen)
	}
	if v := b[vIdx]; v != recoveryIDOffset && v != recoveryIDOffset+1 {
		return nil, fmt.Errorf("%w: recovery id %d", ErrMalformedProof, v)
	}
	var sig Signature
	copy(sig[:], b)
	return &sig, nil
}

// Recover returns the address that produced this signature over [id]. High
// s values are rejected so that every signer has exactly one valid
// signature per id.
func (s *Signature) Recover(id ids.ID) (common.Address, error) {
	var (
		r      = new(big.Int).SetBytes(s[:rLen])
		sValue = new(big.Int).SetBytes(s[rLen:vIdx])
		v      = s[vIdx] - recoveryIDOffset
	)
	if !crypto.ValidateSignatureValues(v, r, sValue, true) {
		return common.Address{}, errNonCanonicalSignature
	}

	sig := make([]byte, SignatureLen)
	copy(sig, s[:])
	sig[vIdx] = v

	pk, err := crypto.SigToPub(id[:], sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pk), nil
}

func (s *Signature) Bytes() []byte {
	return s[:]
}

func (s *Signature) String() string {
	return hexutil.Encode(s[:])
}

func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Signature) UnmarshalText(text []byte) error {
	b, err := hexutil.Decode(string(text))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedProof, err)
	}
	sig, err := ParseSignature(b)
	if err != nil {
		return err
	}
	*s = *sig
	return nil
}
