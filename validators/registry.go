// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validators

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/luxfi/cache"
	"github.com/luxfi/cache/lru"
	"github.com/luxfi/database"
	"github.com/luxfi/log"
	"github.com/luxfi/utils"

	"github.com/luxfi/consortium/metrics"
)

const defaultHistoryCacheSize = 16

var (
	ErrAlreadyInitialized = errors.New("validator set already initialized")
	ErrUninitialized      = errors.New("validator set not initialized")
	ErrStaleEpoch         = errors.New("epoch is not after the current epoch")
	ErrEpochNotRetained   = errors.New("validator set of epoch is not retained")

	_ Reader = (*Registry)(nil)
)

// Reader is the read side of the registry used by verifiers.
type Reader interface {
	// Current returns the active set or ErrUninitialized.
	Current() (*Set, error)
	// SetAt returns the set of [epoch] if it is the active set or within the
	// retention window.
	SetAt(epoch uint64) (*Set, error)
}

type RegistryConfig struct {
	// HistoricalEpochs is the number of superseded sets that remain valid
	// for verification. 0 invalidates a set as soon as it is rotated out.
	HistoricalEpochs uint64 `json:"historical-epochs"`
	// HistoryCacheSize bounds the number of sets kept in memory.
	HistoryCacheSize int `json:"history-cache-size"`
}

// snapshot is replaced as a whole on every mutation.
type snapshot struct {
	current *Set
	// retained lists the epochs that SetAt serves, oldest first. The last
	// entry is the epoch of current.
	retained []uint64
}

// Registry holds the active validator set. Mutations are serialized; reads
// load an immutable snapshot and never block on writers.
type Registry struct {
	log              log.Logger
	metrics          metrics.Metrics
	store            Store
	historicalEpochs uint64

	writeLock sync.Mutex
	state     utils.Atomic[*snapshot]
	history   cache.Cacher[uint64, *Set]
}

// NewRegistry returns a registry restored from [store]. If the store is
// empty, the registry is uninitialized until SetInitialValidatorSet.
func NewRegistry(
	config RegistryConfig,
	store Store,
	logger log.Logger,
	registryMetrics metrics.Metrics,
) (*Registry, error) {
	cacheSize := config.HistoryCacheSize
	if cacheSize <= 0 {
		cacheSize = defaultHistoryCacheSize
	}
	r := &Registry{
		log:              logger,
		metrics:          registryMetrics,
		store:            store,
		historicalEpochs: config.HistoricalEpochs,
		history:          lru.NewCache[uint64, *Set](cacheSize),
	}

	current, err := store.Current()
	if errors.Is(err, database.ErrNotFound) {
		r.state.Set(&snapshot{})
		logger.Info("validator set registry is uninitialized")
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't load validator set: %w", err)
	}

	epochs, err := store.Epochs()
	if err != nil {
		return nil, fmt.Errorf("couldn't load retained epochs: %w", err)
	}
	r.install(current, epochs)

	logger.Info("restored validator set",
		log.Uint64("epoch", current.Epoch),
		log.Int("validators", current.Len()),
		log.Uint64("threshold", current.Threshold),
	)
	return r, nil
}

// SetInitialValidatorSet installs the bootstrap set. It may only be called
// once over the lifetime of the store.
func (r *Registry) SetInitialValidatorSet(
	publicKeys [][]byte,
	weights []uint64,
	threshold uint64,
	epoch uint64,
) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if r.state.Get().current != nil {
		return ErrAlreadyInitialized
	}

	set, err := NewSet(epoch, publicKeys, weights, threshold)
	if err != nil {
		return err
	}
	if err := r.store.PutCurrent(set, 0); err != nil {
		return fmt.Errorf("couldn't persist validator set: %w", err)
	}
	r.install(set, []uint64{set.Epoch})

	r.log.Info("initialized validator set",
		log.Uint64("epoch", set.Epoch),
		log.Int("validators", set.Len()),
		log.Uint64("totalWeight", set.TotalWeight),
		log.Uint64("threshold", set.Threshold),
	)
	return nil
}

// Rotate atomically replaces the active set. Either every field of the new
// set is installed or the registry is left unchanged.
func (r *Registry) Rotate(
	publicKeys [][]byte,
	weights []uint64,
	threshold uint64,
	epoch uint64,
) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	state := r.state.Get()
	if state.current == nil {
		return ErrUninitialized
	}
	if epoch <= state.current.Epoch {
		return fmt.Errorf("%w: %d <= %d", ErrStaleEpoch, epoch, state.current.Epoch)
	}

	set, err := NewSet(epoch, publicKeys, weights, threshold)
	if err != nil {
		return err
	}
	if err := r.store.PutCurrent(set, state.current.Epoch); err != nil {
		return fmt.Errorf("couldn't persist validator set: %w", err)
	}

	retained := append(slices.Clone(state.retained), set.Epoch)
	r.install(set, retained)
	r.metrics.IncRotations()

	r.log.Info("rotated validator set",
		log.Uint64("previousEpoch", state.current.Epoch),
		log.Uint64("epoch", set.Epoch),
		log.Int("validators", set.Len()),
		log.Uint64("totalWeight", set.TotalWeight),
		log.Uint64("threshold", set.Threshold),
	)
	return nil
}

// install publishes [set] with the retention window trimmed to the
// configured number of historical epochs. Must hold writeLock or be
// called before the registry is shared.
func (r *Registry) install(set *Set, retained []uint64) {
	if keep := r.historicalEpochs + 1; uint64(len(retained)) > keep {
		retained = retained[uint64(len(retained))-keep:]
	}
	r.history.Put(set.Epoch, set)
	r.state.Set(&snapshot{
		current:  set,
		retained: retained,
	})
	r.metrics.SetValidatorSet(set.Epoch, set.Len(), set.TotalWeight, set.Threshold)
}

func (r *Registry) Current() (*Set, error) {
	current := r.state.Get().current
	if current == nil {
		return nil, ErrUninitialized
	}
	return current, nil
}

// WeightOf returns the weight of [publicKey] in the active set, or 0 if it
// is not a member or the registry is uninitialized.
func (r *Registry) WeightOf(publicKey []byte) uint64 {
	current := r.state.Get().current
	if current == nil {
		return 0
	}
	return current.WeightOf(publicKey)
}

func (r *Registry) SetAt(epoch uint64) (*Set, error) {
	state := r.state.Get()
	switch {
	case state.current == nil:
		return nil, ErrUninitialized
	case epoch == state.current.Epoch:
		return state.current, nil
	case !slices.Contains(state.retained, epoch):
		return nil, fmt.Errorf("%w: %d", ErrEpochNotRetained, epoch)
	}

	if set, ok := r.history.Get(epoch); ok {
		return set, nil
	}
	set, err := r.store.Get(epoch)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrEpochNotRetained, epoch)
	}
	if err != nil {
		return nil, err
	}
	r.history.Put(epoch, set)
	return set, nil
}
