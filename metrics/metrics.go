// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"time"

	"github.com/luxfi/metric"
	"github.com/luxfi/utils/wrappers"

	utilmetric "github.com/luxfi/consortium/utils/metric"
)

const (
	resultLabel = "result"

	AcceptedResult  = "accepted"
	RejectedResult  = "rejected"
	MalformedResult = "malformed"
)

var (
	_ Metrics = (*metricsImpl)(nil)

	resultLabels = []string{resultLabel}
)

type Metrics interface {
	utilmetric.APIInterceptor

	// Mark that the validator set of [epoch] became active.
	SetValidatorSet(epoch uint64, size int, totalWeight, threshold uint64)
	// Mark that the registry rotated to a new epoch.
	IncRotations()

	// Mark the outcome of a single proof verification.
	MarkVerification(result string)
	// Mark the number of signatures recovered while verifying a proof.
	AddRecoveries(n int)
	// Mark that a batch of [size] proofs was verified in [d].
	ObserveBatch(size int, d time.Duration)

	// Mark that an outbound envelope was dispatched.
	IncSent()
	// Mark that an inbound envelope was accepted for delivery.
	IncDelivered()
	// Mark that a delivered envelope was rejected as a replay.
	IncReplays()
	// Mark that a handler failed on a delivered envelope.
	IncHandlerFailures()
}

func New(registerer metric.Registerer) (Metrics, error) {
	m := &metricsImpl{
		epoch: metric.NewGauge(metric.GaugeOpts{
			Name: "validator_set_epoch",
			Help: "Epoch of the active validator set",
		}),
		validators: metric.NewGauge(metric.GaugeOpts{
			Name: "validator_set_size",
			Help: "Number of validators in the active validator set",
		}),
		totalWeight: metric.NewGauge(metric.GaugeOpts{
			Name: "validator_set_total_weight",
			Help: "Total weight of the active validator set",
		}),
		threshold: metric.NewGauge(metric.GaugeOpts{
			Name: "validator_set_threshold",
			Help: "Weight required to accept a proof",
		}),
		rotations: metric.NewCounter(metric.CounterOpts{
			Name: "validator_set_rotations",
			Help: "Number of validator set rotations",
		}),
		verifications: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "proof_verifications",
				Help: "Number of proofs verified, by result",
			},
			resultLabels,
		),
		recoveries: metric.NewCounter(metric.CounterOpts{
			Name: "signature_recoveries",
			Help: "Number of signatures recovered",
		}),
		sent: metric.NewCounter(metric.CounterOpts{
			Name: "envelopes_sent",
			Help: "Number of outbound envelopes",
		}),
		delivered: metric.NewCounter(metric.CounterOpts{
			Name: "envelopes_delivered",
			Help: "Number of inbound envelopes delivered",
		}),
		replays: metric.NewCounter(metric.CounterOpts{
			Name: "envelopes_replayed",
			Help: "Number of inbound envelopes rejected as already delivered",
		}),
		handlerFailures: metric.NewCounter(metric.CounterOpts{
			Name: "handler_failures",
			Help: "Number of handler failures on delivered envelopes",
		}),
	}

	apiRequestMetrics, err := utilmetric.NewAPIInterceptor(registerer)
	errs := wrappers.Errs{Err: err}
	m.APIInterceptor = apiRequestMetrics
	m.batchSize = utilmetric.NewAveragerWithErrs(
		"batch_size",
		"proofs per verification batch",
		registerer,
		&errs,
	)
	m.batchDuration = utilmetric.NewAveragerWithErrs(
		"batch_duration",
		"time (in ns) spent verifying a batch",
		registerer,
		&errs,
	)
	errs.Add(
		registerer.Register(metric.AsCollector(m.epoch)),
		registerer.Register(metric.AsCollector(m.validators)),
		registerer.Register(metric.AsCollector(m.totalWeight)),
		registerer.Register(metric.AsCollector(m.threshold)),
		registerer.Register(metric.AsCollector(m.rotations)),
		registerer.Register(metric.AsCollector(m.verifications)),
		registerer.Register(metric.AsCollector(m.recoveries)),
		registerer.Register(metric.AsCollector(m.sent)),
		registerer.Register(metric.AsCollector(m.delivered)),
		registerer.Register(metric.AsCollector(m.replays)),
		registerer.Register(metric.AsCollector(m.handlerFailures)),
	)
	return m, errs.Err
}

type metricsImpl struct {
	utilmetric.APIInterceptor

	epoch       metric.Gauge
	validators  metric.Gauge
	totalWeight metric.Gauge
	threshold   metric.Gauge
	rotations   metric.Counter

	verifications metric.CounterVec
	recoveries    metric.Counter
	batchSize     utilmetric.Averager
	batchDuration utilmetric.Averager

	sent            metric.Counter
	delivered       metric.Counter
	replays         metric.Counter
	handlerFailures metric.Counter
}

func (m *metricsImpl) SetValidatorSet(epoch uint64, size int, totalWeight, threshold uint64) {
	m.epoch.Set(float64(epoch))
	m.validators.Set(float64(size))
	m.totalWeight.Set(float64(totalWeight))
	m.threshold.Set(float64(threshold))
}

func (m *metricsImpl) IncRotations() {
	m.rotations.Inc()
}

func (m *metricsImpl) MarkVerification(result string) {
	m.verifications.With(metric.Labels{
		resultLabel: result,
	}).Inc()
}

func (m *metricsImpl) AddRecoveries(n int) {
	m.recoveries.Add(float64(n))
}

func (m *metricsImpl) ObserveBatch(size int, d time.Duration) {
	m.batchSize.Observe(float64(size))
	m.batchDuration.Observe(float64(d))
}

func (m *metricsImpl) IncSent() {
	m.sent.Inc()
}

func (m *metricsImpl) IncDelivered() {
	m.delivered.Inc()
}

func (m *metricsImpl) IncReplays() {
	m.replays.Inc()
}

func (m *metricsImpl) IncHandlerFailures() {
	m.handlerFailures.Inc()
}
