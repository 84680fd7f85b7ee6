// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/metric"
)

func TestNew(t *testing.T) {
	require := require.New(t)

	registry := metric.NewRegistry()
	m, err := New(registry)
	require.NoError(err)

	m.SetValidatorSet(3, 4, 100, 67)
	m.IncRotations()
	m.MarkVerification(AcceptedResult)
	m.MarkVerification(RejectedResult)
	m.AddRecoveries(4)
	m.ObserveBatch(2, time.Millisecond)
	m.IncSent()
	m.IncDelivered()
	m.IncReplays()
	m.IncHandlerFailures()

	families, err := registry.Gather()
	require.NoError(err)
	require.NotEmpty(families)
}

func TestNewDuplicateRegistration(t *testing.T) {
	require := require.New(t)

	registry := metric.NewRegistry()
	_, err := New(registry)
	require.NoError(err)

	_, err = New(registry)
	require.Error(err) //nolint:forbidigo // registry errors are not exported
}
