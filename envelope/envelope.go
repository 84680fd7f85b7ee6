// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package envelope implements the canonical encoding of cross-chain
// messages. Every chain that emits or consumes a message must produce the
// exact same bytes for it, since notaries sign the hash of those bytes.
package envelope

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/luxfi/ids"

	"github.com/luxfi/consortium/utils/wrappers"
)

const (
	// HeaderLen is the size of the fixed-width part of an encoded envelope,
	// including the body length word.
	HeaderLen = 8 * wrappers.WordLen

	// maxEncodableBody bounds Parse. Policy limits are enforced by Verify.
	maxEncodableBody = math.MaxUint32
)

var (
	ErrMalformedEnvelope = errors.New("malformed envelope")

	errZeroSourceMailbox = errors.New("source mailbox is zero")
	errZeroSourceChain   = errors.New("source chain id is zero")
	errZeroDestChain     = errors.New("destination chain id is zero")
	errZeroRecipient     = errors.New("recipient is zero")
	errBodyTooLarge      = errors.New("body exceeds maximum size")
	errTrailingBytes     = errors.New("trailing bytes after body")
	errTruncatedEnvelope = errors.New("envelope is truncated")
)

// Envelope is a single cross-chain instruction. It must not be mutated
// once its ID has been handed to notaries.
type Envelope struct {
	SourceMailbox      Word          `json:"sourceMailbox"`
	SourceChainID      Word          `json:"sourceChainID"`
	DestinationChainID Word          `json:"destinationChainID"`
	Nonce              uint256.Int   `json:"nonce"`
	Sender             Word          `json:"sender"`
	Recipient          Word          `json:"recipient"`
	DestinationCaller  Word          `json:"destinationCaller"`
	Body               hexutil.Bytes `json:"body"`
}

// Encode returns the canonical encoding:
//
//	sourceMailbox ‖ sourceChainID ‖ destinationChainID ‖ nonce ‖ sender ‖
//	recipient ‖ destinationCaller ‖ len(body) ‖ body
//
// All fixed-width fields are 32-byte big-endian words.
func (e *Envelope) Encode() []byte {
	p := wrappers.Packer{
		MaxSize: HeaderLen + len(e.Body),
		Bytes:   make([]byte, 0, HeaderLen+len(e.Body)),
	}
	p.PackWord(e.SourceMailbox)
	p.PackWord(e.SourceChainID)
	p.PackWord(e.DestinationChainID)
	p.PackUint256(&e.Nonce)
	p.PackWord(e.Sender)
	p.PackWord(e.Recipient)
	p.PackWord(e.DestinationCaller)
	p.PackBytes(e.Body)
	// MaxSize is exactly the encoded length so packing cannot fail.
	return p.Bytes
}

// ID is the content hash of the canonical encoding. The receiving side
// keys its exactly-once bookkeeping on it.
func (e *Envelope) ID() ids.ID {
	return ids.ID(sha256.Sum256(e.Encode()))
}

// Path is the PathHash of this envelope's route.
func (e *Envelope) Path() ids.ID {
	return PathHash(e.SourceMailbox, e.SourceChainID, e.DestinationChainID)
}

// Verify enforces caller policy on the envelope before it is encoded or
// dispatched. A zero [maxBodySize] disables the size check.
func (e *Envelope) Verify(maxBodySize uint32) error {
	switch {
	case e.SourceMailbox.IsZero():
		return fmt.Errorf("%w: %w", ErrMalformedEnvelope, errZeroSourceMailbox)
	case e.SourceChainID.IsZero():
		return fmt.Errorf("%w: %w", ErrMalformedEnvelope, errZeroSourceChain)
	case e.DestinationChainID.IsZero():
		return fmt.Errorf("%w: %w", ErrMalformedEnvelope, errZeroDestChain)
	case e.Recipient.IsZero():
		return fmt.Errorf("%w: %w", ErrMalformedEnvelope, errZeroRecipient)
	case maxBodySize != 0 && len(e.Body) > int(maxBodySize):
		return fmt.Errorf("%w: %w: %d > %d",
			ErrMalformedEnvelope,
			errBodyTooLarge,
			len(e.Body),
			maxBodySize,
		)
	default:
		return nil
	}
}

func (e *Envelope) String() string {
	return fmt.Sprintf("Envelope(ID = %s, Path = %s, Nonce = %s, Sender = %s, Recipient = %s, Body = %d bytes)",
		e.ID(), e.Path(), e.Nonce.Dec(), e.Sender, e.Recipient, len(e.Body))
}

// Parse decodes a canonical encoding produced by Encode.
func Parse(b []byte) (*Envelope, error) {
	if len(b) < HeaderLen {
		return nil, fmt.Errorf("%w: %w: %d bytes", ErrMalformedEnvelope, errTruncatedEnvelope, len(b))
	}

	p := wrappers.Packer{Bytes: b}
	e := &Envelope{
		SourceMailbox:      p.UnpackWord(),
		SourceChainID:      p.UnpackWord(),
		DestinationChainID: p.UnpackWord(),
		Nonce:              p.UnpackUint256(),
		Sender:             p.UnpackWord(),
		Recipient:          p.UnpackWord(),
		DestinationCaller:  p.UnpackWord(),
	}
	body := p.UnpackLimitedBytes(maxEncodableBody)
	switch {
	case errors.Is(p.Err, wrappers.ErrInsufficientLength):
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, errTruncatedEnvelope)
	case p.Errored():
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, p.Err)
	case p.Remaining() != 0:
		return nil, fmt.Errorf("%w: %w: %d bytes", ErrMalformedEnvelope, errTrailingBytes, p.Remaining())
	}
	e.Body = append([]byte{}, body...)
	return e, nil
}

// PathHash identifies a route independently of nonce and body so that path
// configuration can be looked up before the message content is inspected.
func PathHash(sourceMailbox, sourceChainID, destinationChainID Word) ids.ID {
	b := make([]byte, 0, 3*wrappers.WordLen)
	b = append(b, sourceMailbox[:]...)
	b = append(b, sourceChainID[:]...)
	b = append(b, destinationChainID[:]...)
	return ids.ID(sha256.Sum256(b))
}
