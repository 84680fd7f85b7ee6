// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"time"

	utilmetric "github.com/luxfi/consortium/utils/metric"
)

var Noop Metrics = noopMetrics{
	APIInterceptor: utilmetric.NewNoOpAPIInterceptor(),
}

type noopMetrics struct {
	utilmetric.APIInterceptor
}

func (noopMetrics) SetValidatorSet(uint64, int, uint64, uint64) {}

func (noopMetrics) IncRotations() {}

func (noopMetrics) MarkVerification(string) {}

func (noopMetrics) AddRecoveries(int) {}

func (noopMetrics) ObserveBatch(int, time.Duration) {}

func (noopMetrics) IncSent() {}

func (noopMetrics) IncDelivered() {}

func (noopMetrics) IncReplays() {}

func (noopMetrics) IncHandlerFailures() {}
