// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package action

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/luxfi/consortium/envelope"
)

const SelectorLen = 4

var (
	mintSignature           = "mint(bytes32,bytes32,uint256,bytes32,uint32)"
	ratioUpdateSignature    = "ratioUpdate(bytes32,uint256,uint256)"
	valsetRotationSignature = "valsetRotation(uint256,bytes[],uint256[],uint256,uint256)"

	mintSelector           = selector(mintSignature)
	ratioUpdateSelector    = selector(ratioUpdateSignature)
	valsetRotationSelector = selector(valsetRotationSignature)

	mintArguments = abi.Arguments{
		{Name: "toChain", Type: mustNewType("bytes32")},
		{Name: "recipient", Type: mustNewType("bytes32")},
		{Name: "amount", Type: mustNewType("uint256")},
		{Name: "txid", Type: mustNewType("bytes32")},
		{Name: "vout", Type: mustNewType("uint32")},
	}
	ratioUpdateArguments = abi.Arguments{
		{Name: "token", Type: mustNewType("bytes32")},
		{Name: "ratio", Type: mustNewType("uint256")},
		{Name: "switchTime", Type: mustNewType("uint256")},
	}
	valsetRotationArguments = abi.Arguments{
		{Name: "epoch", Type: mustNewType("uint256")},
		{Name: "validators", Type: mustNewType("bytes[]")},
		{Name: "weights", Type: mustNewType("uint256[]")},
		{Name: "threshold", Type: mustNewType("uint256")},
		{Name: "height", Type: mustNewType("uint256")},
	}
)

func selector(signature string) [SelectorLen]byte {
	var s [SelectorLen]byte
	copy(s[:], crypto.Keccak256([]byte(signature)))
	return s
}

func mustNewType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// Selector returns the selector that prefixes bodies of [kind].
func Selector(kind Kind) ([SelectorLen]byte, bool) {
	switch kind {
	case KindMint:
		return mintSelector, true
	case KindRatioUpdate:
		return ratioUpdateSelector, true
	case KindValsetRotation:
		return valsetRotationSelector, true
	default:
		return [SelectorLen]byte{}, false
	}
}

// KindOf returns the kind of [body] from its selector without parsing the
// fields.
func KindOf(body []byte) (Kind, error) {
	if len(body) < SelectorLen {
		return 0, fmt.Errorf("%w: %d byte body", ErrMalformedBody, len(body))
	}
	switch sel := body[:SelectorLen]; {
	case bytes.Equal(sel, mintSelector[:]):
		return KindMint, nil
	case bytes.Equal(sel, ratioUpdateSelector[:]):
		return KindRatioUpdate, nil
	case bytes.Equal(sel, valsetRotationSelector[:]):
		return KindValsetRotation, nil
	default:
		return 0, fmt.Errorf("%w: 0x%x", ErrUnknownSelector, sel)
	}
}

// Parse decodes [body] into the action named by its selector.
func Parse(body []byte) (Action, error) {
	kind, err := KindOf(body)
	if err != nil {
		return nil, err
	}

	fields := body[SelectorLen:]
	switch kind {
	case KindMint:
		return parseMint(fields)
	case KindRatioUpdate:
		return parseRatioUpdate(fields)
	default:
		return parseValsetRotation(fields)
	}
}

// Encode returns the body of [action].
func Encode(action Action) ([]byte, error) {
	var (
		sel    [SelectorLen]byte
		fields []byte
		err    error
	)
	switch a := action.(type) {
	case *Mint:
		sel = mintSelector
		fields, err = mintArguments.Pack(
			[32]byte(a.ToChain),
			[32]byte(a.Recipient),
			bigOrZero(a.Amount),
			[32]byte(a.TxID),
			a.Vout,
		)
	case *RatioUpdate:
		sel = ratioUpdateSelector
		fields, err = ratioUpdateArguments.Pack(
			[32]byte(a.Token),
			bigOrZero(a.Ratio),
			bigOrZero(a.SwitchTime),
		)
	case *ValsetRotation:
		if len(a.Validators) != len(a.Weights) {
			return nil, fmt.Errorf("%w: %d validators with %d weights",
				ErrMalformedBody, len(a.Validators), len(a.Weights))
		}
		weights := make([]*big.Int, len(a.Weights))
		for i, weight := range a.Weights {
			weights[i] = new(big.Int).SetUint64(weight)
		}
		sel = valsetRotationSelector
		fields, err = valsetRotationArguments.Pack(
			new(big.Int).SetUint64(a.Epoch),
			a.Validators,
			weights,
			new(big.Int).SetUint64(a.Threshold),
			new(big.Int).SetUint64(a.Height),
		)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownSelector, action)
	}
	if err != nil {
		return nil, err
	}
	return append(sel[:], fields...), nil
}

func parseMint(fields []byte) (*Mint, error) {
	values, err := unpack(mintArguments, fields)
	if err != nil {
		return nil, err
	}
	toChain, ok1 := values[0].([32]byte)
	recipient, ok2 := values[1].([32]byte)
	amount, ok3 := values[2].(*big.Int)
	txID, ok4 := values[3].([32]byte)
	vout, ok5 := values[4].(uint32)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return nil, fmt.Errorf("%w: unexpected mint field types", ErrMalformedBody)
	}
	return &Mint{
		ToChain:   envelope.Word(toChain),
		Recipient: envelope.Word(recipient),
		Amount:    amount,
		TxID:      envelope.Word(txID),
		Vout:      vout,
	}, nil
}

func parseRatioUpdate(fields []byte) (*RatioUpdate, error) {
	values, err := unpack(ratioUpdateArguments, fields)
	if err != nil {
		return nil, err
	}
	token, ok1 := values[0].([32]byte)
	ratio, ok2 := values[1].(*big.Int)
	switchTime, ok3 := values[2].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("%w: unexpected ratio update field types", ErrMalformedBody)
	}
	return &RatioUpdate{
		Token:      envelope.Word(token),
		Ratio:      ratio,
		SwitchTime: switchTime,
	}, nil
}

func parseValsetRotation(fields []byte) (*ValsetRotation, error) {
	values, err := unpack(valsetRotationArguments, fields)
	if err != nil {
		return nil, err
	}
	epoch, ok1 := values[0].(*big.Int)
	validators, ok2 := values[1].([][]byte)
	weights, ok3 := values[2].([]*big.Int)
	threshold, ok4 := values[3].(*big.Int)
	height, ok5 := values[4].(*big.Int)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return nil, fmt.Errorf("%w: unexpected rotation field types", ErrMalformedBody)
	}
	if len(validators) != len(weights) {
		return nil, fmt.Errorf("%w: %d validators with %d weights",
			ErrMalformedBody, len(validators), len(weights))
	}

	rotation := &ValsetRotation{
		Validators: validators,
		Weights:    make([]uint64, len(weights)),
	}
	if rotation.Epoch, err = toUint64("epoch", epoch); err != nil {
		return nil, err
	}
	if rotation.Threshold, err = toUint64("threshold", threshold); err != nil {
		return nil, err
	}
	if rotation.Height, err = toUint64("height", height); err != nil {
		return nil, err
	}
	for i, weight := range weights {
		if rotation.Weights[i], err = toUint64("weight", weight); err != nil {
			return nil, err
		}
	}
	return rotation, nil
}

func unpack(args abi.Arguments, fields []byte) ([]interface{}, error) {
	values, err := args.Unpack(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedBody, err)
	}
	if len(values) != len(args) {
		return nil, fmt.Errorf("%w: %d fields", ErrMalformedBody, len(values))
	}
	return values, nil
}

func toUint64(name string, v *big.Int) (uint64, error) {
	u, overflow := uint256.FromBig(v)
	if overflow || !u.IsUint64() {
		return 0, fmt.Errorf("%w: %s %s overflows uint64", ErrMalformedBody, name, v)
	}
	return u.Uint64(), nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
