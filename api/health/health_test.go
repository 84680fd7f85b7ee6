// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/log"
	"github.com/luxfi/metric"
)

var errUnhealthy = errors.New("unhealthy")

func TestHealth(t *testing.T) {
	require := require.New(t)

	h, err := New(log.NewNoOpLogger(), metric.NewRegistry())
	require.NoError(err)

	var healthy bool
	require.NoError(h.RegisterCheck("registry", CheckerFunc(func(context.Context) (interface{}, error) {
		if !healthy {
			return nil, errUnhealthy
		}
		return map[string]uint64{"epoch": 1}, nil
	})))
	require.NoError(h.RegisterCheck("store", CheckerFunc(func(context.Context) (interface{}, error) {
		return nil, nil
	})))

	err = h.RegisterCheck("store", CheckerFunc(func(context.Context) (interface{}, error) {
		return nil, nil
	}))
	require.ErrorIs(err, errDuplicateCheck)

	report := h.Check(context.Background())
	require.False(report.Healthy)
	require.Equal(errUnhealthy.Error(), report.Checks["registry"].Error)
	require.Empty(report.Checks["store"].Error)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(http.StatusServiceUnavailable, rec.Code)

	healthy = true
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(http.StatusOK, rec.Code)

	var served Report
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &served))
	require.True(served.Healthy)
	require.Len(served.Checks, 2)
}
