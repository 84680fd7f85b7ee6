// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package utilmetric

import (
	"testing"

	"github.com/stretchr/testify/require"

	metric "github.com/luxfi/metric"
)

func TestAppendNamespace(t *testing.T) {
	tests := []struct {
		prefix   string
		suffix   string
		expected string
	}{
		{prefix: "batch", suffix: "count", expected: "batch_count"},
		{prefix: "", suffix: "count", expected: "count"},
		{prefix: "batch", suffix: "", expected: "batch"},
	}
	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			require.Equal(t, test.expected, AppendNamespace(test.prefix, test.suffix))
		})
	}
}

func TestAveragerDuplicateRegistration(t *testing.T) {
	require := require.New(t)

	registry := metric.NewRegistry()
	_, err := NewAverager("batch_verify_duration", "batch durations", registry)
	require.NoError(err)

	_, err = NewAverager("batch_verify_duration", "batch durations", registry)
	require.Error(err) //nolint:forbidigo // registry errors are not exported
}
