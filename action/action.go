// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package action defines the payloads carried in envelope bodies. A body is
// a 4 byte selector followed by the ABI encoding of the payload fields.
package action

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/consortium/envelope"
)

var (
	ErrUnknownSelector = errors.New("unknown selector")
	ErrMalformedBody   = errors.New("malformed body")

	_ Action = (*Mint)(nil)
	_ Action = (*RatioUpdate)(nil)
	_ Action = (*ValsetRotation)(nil)
)

type Kind uint8

const (
	KindMint Kind = iota + 1
	KindRatioUpdate
	KindValsetRotation
)

func (k Kind) String() string {
	switch k {
	case KindMint:
		return "mint"
	case KindRatioUpdate:
		return "ratioUpdate"
	case KindValsetRotation:
		return "valsetRotation"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

type Action interface {
	Kind() Kind
}

// Mint requests [Amount] to be minted to [Recipient] on [ToChain] for the
// deposit output [TxID]:[Vout].
type Mint struct {
	ToChain   envelope.Word `json:"toChain"`
	Recipient envelope.Word `json:"recipient"`
	Amount    *big.Int      `json:"amount"`
	TxID      envelope.Word `json:"txID"`
	Vout      uint32        `json:"vout"`
}

func (*Mint) Kind() Kind {
	return KindMint
}

// RatioUpdate announces the exchange ratio of [Token] that applies from
// [SwitchTime] on.
type RatioUpdate struct {
	Token      envelope.Word `json:"token"`
	Ratio      *big.Int      `json:"ratio"`
	SwitchTime *big.Int      `json:"switchTime"`
}

func (*RatioUpdate) Kind() Kind {
	return KindRatioUpdate
}

// ValsetRotation installs the notary set of [Epoch].
type ValsetRotation struct {
	Epoch      uint64   `json:"epoch"`
	Validators [][]byte `json:"validators"`
	Weights    []uint64 `json:"weights"`
	Threshold  uint64   `json:"threshold"`
	// Height is the height of the chain that decided the rotation.
	Height uint64 `json:"height"`
}

func (*ValsetRotation) Kind() Kind {
	return KindValsetRotation
}
