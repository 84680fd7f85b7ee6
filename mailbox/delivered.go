// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mailbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"
)

var (
	ErrAlreadyDelivered = errors.New("message already delivered")
	ErrUnknownMessage   = errors.New("unknown message")

	deliveredPrefix = []byte("delivered")

	_ DeliveredStore = (*dbDeliveredStore)(nil)
)

// Record is the delivery state of a single message id.
type Record struct {
	// Envelope is the encoded envelope that was delivered.
	Envelope []byte `serialize:"true" json:"envelope"`
	Handled  bool   `serialize:"true" json:"handled"`
}

// DeliveredStore marks message ids as delivered exactly once.
type DeliveredStore interface {
	// Put records the delivery of [id]. It returns ErrAlreadyDelivered if
	// [id] was recorded before.
	Put(ctx context.Context, id ids.ID, encodedEnvelope []byte) error
	// Get returns ErrUnknownMessage if [id] was never delivered.
	Get(ctx context.Context, id ids.ID) (*Record, error)
	// Claim reserves the right to run the handler of [id]. It returns
	// ErrAlreadyHandled if the handler already succeeded and
	// ErrHandlerInFlight if another claim is held. A successful claim must
	// be released with Release.
	Claim(ctx context.Context, id ids.ID) error
	Release(ctx context.Context, id ids.ID) error
	// MarkHandled records that the handler of [id] succeeded.
	MarkHandled(ctx context.Context, id ids.ID) error
}

type dbDeliveredStore struct {
	lock sync.Mutex
	db   database.Database
	// claimed holds the ids whose handler is running.
	claimed set.Set[ids.ID]
}

// NewDBDeliveredStore returns a DeliveredStore persisted in [db].
func NewDBDeliveredStore(db database.Database) DeliveredStore {
	return &dbDeliveredStore{
		db:      prefixdb.New(deliveredPrefix, db),
		claimed: set.NewSet[ids.ID](0),
	}
}

func (s *dbDeliveredStore) Put(_ context.Context, id ids.ID, encodedEnvelope []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	has, err := s.db.Has(id[:])
	if err != nil {
		return err
	}
	if has {
		return fmt.Errorf("%w: %s", ErrAlreadyDelivered, id)
	}
	return s.put(id, &Record{
		Envelope: encodedEnvelope,
	})
}

func (s *dbDeliveredStore) Get(_ context.Context, id ids.ID) (*Record, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.get(id)
}

func (s *dbDeliveredStore) Claim(_ context.Context, id ids.ID) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	record, err := s.get(id)
	if err != nil {
		return err
	}
	switch {
	case record.Handled:
		return fmt.Errorf("%w: %s", ErrAlreadyHandled, id)
	case s.claimed.Contains(id):
		return fmt.Errorf("%w: %s", ErrHandlerInFlight, id)
	}
	s.claimed.Add(id)
	return nil
}

func (s *dbDeliveredStore) Release(_ context.Context, id ids.ID) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.claimed.Remove(id)
	return nil
}

func (s *dbDeliveredStore) MarkHandled(_ context.Context, id ids.ID) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	record, err := s.get(id)
	if err != nil {
		return err
	}
	record.Handled = true
	return s.put(id, record)
}

func (s *dbDeliveredStore) get(id ids.ID) (*Record, error) {
	b, err := s.db.Get(id[:])
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, id)
	}
	if err != nil {
		return nil, err
	}
	return parseRecord(b)
}

func (s *dbDeliveredStore) put(id ids.ID, record *Record) error {
	b, err := Codec.Marshal(CodecVersion, record)
	if err != nil {
		return err
	}
	return s.db.Put(id[:], b)
}

func parseRecord(b []byte) (*Record, error) {
	record := &Record{}
	if _, err := Codec.Unmarshal(b, record); err != nil {
		return nil, fmt.Errorf("couldn't parse delivery record: %w", err)
	}
	return record, nil
}
