// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validators

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/log"

	"github.com/luxfi/consortium/metrics"
	"github.com/luxfi/consortium/validators/validatorstest"
)

func newTestRegistry(t *testing.T, historicalEpochs uint64) *Registry {
	r, err := NewRegistry(
		RegistryConfig{HistoricalEpochs: historicalEpochs},
		NewStore(memdb.New(), historicalEpochs),
		log.NewNoOpLogger(),
		metrics.Noop,
	)
	require.NoError(t, err)
	return r
}

func TestRegistryUninitialized(t *testing.T) {
	require := require.New(t)

	r := newTestRegistry(t, 0)

	_, err := r.Current()
	require.ErrorIs(err, ErrUninitialized)

	_, err = r.SetAt(1)
	require.ErrorIs(err, ErrUninitialized)

	pks := validatorstest.PublicKeys(validatorstest.NewKeys(t, 1))
	require.Zero(r.WeightOf(pks[0]))

	err = r.Rotate(pks, []uint64{1}, 1, 2)
	require.ErrorIs(err, ErrUninitialized)
}

func TestRegistrySetInitialValidatorSet(t *testing.T) {
	require := require.New(t)

	r := newTestRegistry(t, 0)
	keys := validatorstest.NewKeys(t, 3)
	pks := validatorstest.PublicKeys(keys)

	// Invalid parameters leave the registry uninitialized.
	err := r.SetInitialValidatorSet(pks, []uint64{1, 1}, 2, 1)
	require.ErrorIs(err, ErrLengthMismatch)
	_, err = r.Current()
	require.ErrorIs(err, ErrUninitialized)

	require.NoError(r.SetInitialValidatorSet(pks, []uint64{1, 2, 3}, 4, 1))

	current, err := r.Current()
	require.NoError(err)
	require.Equal(uint64(1), current.Epoch)
	require.Equal(uint64(6), current.TotalWeight)
	require.Equal(uint64(2), r.WeightOf(pks[1]))

	err = r.SetInitialValidatorSet(pks, []uint64{1, 2, 3}, 4, 2)
	require.ErrorIs(err, ErrAlreadyInitialized)
}

func TestRegistryRotate(t *testing.T) {
	r := newTestRegistry(t, 0)
	oldKeys := validatorstest.PublicKeys(validatorstest.NewKeys(t, 3))
	newKeys := validatorstest.PublicKeys(validatorstest.NewKeys(t, 2))

	require.NoError(t, r.SetInitialValidatorSet(oldKeys, []uint64{1, 1, 1}, 2, 5))

	tests := []struct {
		name        string
		epoch       uint64
		weights     []uint64
		threshold   uint64
		expectedErr error
	}{
		{
			name:        "equal epoch",
			epoch:       5,
			weights:     []uint64{1, 1},
			threshold:   1,
			expectedErr: ErrStaleEpoch,
		},
		{
			name:        "older epoch",
			epoch:       4,
			weights:     []uint64{1, 1},
			threshold:   1,
			expectedErr: ErrStaleEpoch,
		},
		{
			name:        "invalid threshold",
			epoch:       6,
			weights:     []uint64{1, 1},
			threshold:   3,
			expectedErr: ErrInvalidThreshold,
		},
		{
			name:        "zero weight",
			epoch:       6,
			weights:     []uint64{1, 0},
			threshold:   1,
			expectedErr: ErrZeroWeight,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			err := r.Rotate(newKeys, test.weights, test.threshold, test.epoch)
			require.ErrorIs(err, test.expectedErr)

			current, err := r.Current()
			require.NoError(err)
			require.Equal(uint64(5), current.Epoch)
			require.Equal(oldKeys, current.PublicKeys())
		})
	}

	require := require.New(t)
	require.NoError(r.Rotate(newKeys, []uint64{3, 4}, 5, 6))

	current, err := r.Current()
	require.NoError(err)
	require.Equal(uint64(6), current.Epoch)
	require.Equal(uint64(7), current.TotalWeight)
	require.Equal(uint64(5), current.Threshold)
	require.Zero(r.WeightOf(oldKeys[0]))
	require.Equal(uint64(4), r.WeightOf(newKeys[1]))

	// Without a history window the old set is gone.
	_, err = r.SetAt(5)
	require.ErrorIs(err, ErrEpochNotRetained)
}

func TestRegistrySetAt(t *testing.T) {
	require := require.New(t)

	r := newTestRegistry(t, 1)
	pks := validatorstest.PublicKeys(validatorstest.NewKeys(t, 1))

	require.NoError(r.SetInitialValidatorSet(pks, []uint64{1}, 1, 1))
	require.NoError(r.Rotate(pks, []uint64{2}, 2, 2))
	require.NoError(r.Rotate(pks, []uint64{3}, 3, 3))

	set, err := r.SetAt(3)
	require.NoError(err)
	require.Equal(uint64(3), set.TotalWeight)

	set, err = r.SetAt(2)
	require.NoError(err)
	require.Equal(uint64(2), set.TotalWeight)

	_, err = r.SetAt(1)
	require.ErrorIs(err, ErrEpochNotRetained)

	_, err = r.SetAt(4)
	require.ErrorIs(err, ErrEpochNotRetained)
}

func TestRegistryRestore(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	config := RegistryConfig{HistoricalEpochs: 1}
	r, err := NewRegistry(config, NewStore(db, 1), log.NewNoOpLogger(), metrics.Noop)
	require.NoError(err)

	pks := validatorstest.PublicKeys(validatorstest.NewKeys(t, 2))
	require.NoError(r.SetInitialValidatorSet(pks, []uint64{1, 1}, 2, 1))
	require.NoError(r.Rotate(pks, []uint64{1, 2}, 3, 2))

	restored, err := NewRegistry(config, NewStore(db, 1), log.NewNoOpLogger(), metrics.Noop)
	require.NoError(err)

	current, err := restored.Current()
	require.NoError(err)
	require.Equal(uint64(2), current.Epoch)
	require.Equal(uint64(3), current.TotalWeight)

	old, err := restored.SetAt(1)
	require.NoError(err)
	require.Equal(uint64(2), old.TotalWeight)

	err = restored.SetInitialValidatorSet(pks, []uint64{1, 1}, 2, 3)
	require.ErrorIs(err, ErrAlreadyInitialized)
}

func TestRegistryReadersObserveWholeSets(t *testing.T) {
	require := require.New(t)

	r := newTestRegistry(t, 0)
	pks := validatorstest.PublicKeys(validatorstest.NewKeys(t, 1))
	require.NoError(r.SetInitialValidatorSet(pks, []uint64{1}, 1, 1))

	var (
		wg   sync.WaitGroup
		done = make(chan struct{})
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				current, err := r.Current()
				if err != nil {
					t.Error(err)
					return
				}
				// Every rotation installs epoch == weight == threshold.
				if current.Epoch != current.TotalWeight || current.Epoch != current.Threshold {
					t.Errorf("observed mixed set %s", current)
					return
				}
			}
		}()
	}

	for epoch := uint64(2); epoch <= 50; epoch++ {
		require.NoError(r.Rotate(pks, []uint64{epoch}, epoch, epoch))
	}
	close(done)
	wg.Wait()
}
