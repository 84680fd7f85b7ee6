// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validators

import (
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
)

var (
	ErrEpochConflict = errors.New("stored epoch does not match expected epoch")

	singletonPrefix = []byte("singleton")
	epochPrefix     = []byte("epoch")

	currentEpochKey = []byte("currentEpoch")

	_ Store = (*dbStore)(nil)
)

// Store persists the active validator set and the retained history.
type Store interface {
	// Current returns database.ErrNotFound if no set was ever stored.
	Current() (*Set, error)
	// Get returns database.ErrNotFound if [epoch] is not stored.
	Get(epoch uint64) (*Set, error)
	// Epochs returns the stored epochs in ascending order.
	Epochs() ([]uint64, error)
	// PutCurrent installs [s] as the active set if the stored active epoch
	// is [expectedEpoch]. An [expectedEpoch] of 0 means no set is stored.
	PutCurrent(s *Set, expectedEpoch uint64) error
	Close() error
}

type dbStore struct {
	// retain is the number of superseded sets kept next to the active one.
	retain uint64

	lock        sync.Mutex
	db          *versiondb.Database
	singletonDB database.Database
	epochDB     database.Database
}

// NewStore returns a Store on top of [db] that keeps the active set and
// the [retain] most recently superseded sets.
func NewStore(db database.Database, retain uint64) Store {
	vdb := versiondb.New(db)
	return &dbStore{
		retain:      retain,
		db:          vdb,
		singletonDB: prefixdb.New(singletonPrefix, vdb),
		epochDB:     prefixdb.New(epochPrefix, vdb),
	}
}

func (s *dbStore) Current() (*Set, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	epoch, err := database.GetUInt64(s.singletonDB, currentEpochKey)
	if err != nil {
		return nil, err
	}
	return s.get(epoch)
}

func (s *dbStore) Get(epoch uint64) (*Set, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.get(epoch)
}

func (s *dbStore) get(epoch uint64) (*Set, error) {
	b, err := s.epochDB.Get(database.PackUInt64(epoch))
	if err != nil {
		return nil, err
	}
	set, err := unmarshalSet(b)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse validator set of epoch %d: %w", epoch, err)
	}
	return set, nil
}

func (s *dbStore) Epochs() ([]uint64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.epochs()
}

// epochs relies on big endian keys iterating in ascending epoch order.
func (s *dbStore) epochs() ([]uint64, error) {
	iter := s.epochDB.NewIterator()
	defer iter.Release()

	var epochs []uint64
	for iter.Next() {
		set, err := unmarshalSet(iter.Value())
		if err != nil {
			return nil, err
		}
		epochs = append(epochs, set.Epoch)
	}
	return epochs, iter.Error()
}

func (s *dbStore) PutCurrent(set *Set, expectedEpoch uint64) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	defer s.db.Abort()

	current, err := database.GetUInt64(s.singletonDB, currentEpochKey)
	switch {
	case errors.Is(err, database.ErrNotFound):
		current = 0
	case err != nil:
		return err
	}
	if current != expectedEpoch {
		return fmt.Errorf("%w: expected %d but found %d", ErrEpochConflict, expectedEpoch, current)
	}
	if set.Epoch <= current {
		return fmt.Errorf("%w: epoch %d is not after %d", ErrEpochConflict, set.Epoch, current)
	}

	b, err := marshalSet(set)
	if err != nil {
		return err
	}
	if err := s.epochDB.Put(database.PackUInt64(set.Epoch), b); err != nil {
		return err
	}
	if err := database.PutUInt64(s.singletonDB, currentEpochKey, set.Epoch); err != nil {
		return err
	}
	if err := s.prune(); err != nil {
		return err
	}
	return s.db.Commit()
}

// prune removes every stored set older than the retention window.
func (s *dbStore) prune() error {
	epochs, err := s.epochs()
	if err != nil {
		return err
	}
	keep := s.retain + 1
	if uint64(len(epochs)) <= keep {
		return nil
	}
	for _, epoch := range epochs[:uint64(len(epochs))-keep] {
		if err := s.epochDB.Delete(database.PackUInt64(epoch)); err != nil {
			return err
		}
	}
	return nil
}

func (s *dbStore) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.db.Close()
}
