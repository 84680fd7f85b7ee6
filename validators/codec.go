// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validators

import (
	"math"

	"github.com/luxfi/codec"
	"github.com/luxfi/codec/linearcodec"
)

const CodecVersion = 0

// Codec serializes persisted validator sets.
var Codec codec.Manager

func init() {
	Codec = codec.NewManager(math.MaxInt)
	lc := linearcodec.NewDefault()

	if err := Codec.RegisterCodec(CodecVersion, lc); err != nil {
		panic(err)
	}
}

// setRecord is the persisted form of a Set. The derived fields of a Set are
// recomputed by NewSet when the record is loaded.
type setRecord struct {
	Epoch      uint64   `serialize:"true"`
	PublicKeys [][]byte `serialize:"true"`
	Weights    []uint64 `serialize:"true"`
	Threshold  uint64   `serialize:"true"`
}

func marshalSet(s *Set) ([]byte, error) {
	return Codec.Marshal(CodecVersion, &setRecord{
		Epoch:      s.Epoch,
		PublicKeys: s.PublicKeys(),
		Weights:    s.Weights(),
		Threshold:  s.Threshold,
	})
}

func unmarshalSet(b []byte) (*Set, error) {
	var record setRecord
	if _, err := Codec.Unmarshal(b, &record); err != nil {
		return nil, err
	}
	return NewSet(record.Epoch, record.PublicKeys, record.Weights, record.Threshold)
}
