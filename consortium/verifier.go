// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consortium

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/consortium/envelope"
	"github.com/luxfi/consortium/metrics"
	"github.com/luxfi/consortium/validators"

	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/luxfi/consortium/consortium"

	DefaultMaxBatchWorkers = 8
)

// BatchItem is a single proof of a batch.
type BatchItem struct {
	ID    ids.ID
	Proof Proof
}

// BatchResult is index aligned to the verified BatchItems. Exactly one of
// Result and Err is set.
type BatchResult struct {
	Result *Result
	Err    error
}

// Verifier checks proofs against the sets of a validator registry.
type Verifier struct {
	registry   validators.Reader
	log        log.Logger
	metrics    metrics.Metrics
	tracer     oteltrace.Tracer
	maxWorkers int
}

// NewVerifier returns a Verifier reading sets from [registry]. Batches are
// verified by at most [maxWorkers] goroutines.
func NewVerifier(
	registry validators.Reader,
	maxWorkers int,
	logger log.Logger,
	verifierMetrics metrics.Metrics,
) *Verifier {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxBatchWorkers
	}
	return &Verifier{
		registry:   registry,
		log:        logger,
		metrics:    verifierMetrics,
		tracer:     otel.Tracer(tracerName),
		maxWorkers: maxWorkers,
	}
}

// Verify checks [proof] over the id of [env] against the active set.
func (v *Verifier) Verify(ctx context.Context, env *envelope.Envelope, proof Proof) (*Result, error) {
	return v.VerifyID(ctx, env.ID(), proof)
}

// VerifyID checks [proof] over [id] against the active set.
func (v *Verifier) VerifyID(ctx context.Context, id ids.ID, proof Proof) (*Result, error) {
	_, span := v.tracer.Start(ctx, "Verifier.VerifyID", oteltrace.WithAttributes(
		attribute.Stringer("id", id),
	))
	defer span.End()

	set, err := v.registry.Current()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return v.verify(set, id, proof)
}

// VerifyAt checks [proof] over [id] against the set of [epoch], which must
// be the active set or within the retention window of the registry.
func (v *Verifier) VerifyAt(ctx context.Context, epoch uint64, id ids.ID, proof Proof) (*Result, error) {
	_, span := v.tracer.Start(ctx, "Verifier.VerifyAt", oteltrace.WithAttributes(
		attribute.Stringer("id", id),
		attribute.Int64("epoch", int64(epoch)),
	))
	defer span.End()

	set, err := v.registry.SetAt(epoch)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return v.verify(set, id, proof)
}

// VerifyBatch verifies every item against the same set. The returned error
// is only set if no item could be verified, for instance because the
// registry is uninitialized or [ctx] was cancelled.
func (v *Verifier) VerifyBatch(ctx context.Context, items []BatchItem) ([]BatchResult, error) {
	ctx, span := v.tracer.Start(ctx, "Verifier.VerifyBatch", oteltrace.WithAttributes(
		attribute.Int("size", len(items)),
	))
	defer span.End()

	set, err := v.registry.Current()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var (
		start   = time.Now()
		results = make([]BatchResult, len(items))
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(v.maxWorkers)
	for i, item := range items {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			result, err := v.verify(set, item.ID, item.Proof)
			results[i] = BatchResult{
				Result: result,
				Err:    err,
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	v.metrics.ObserveBatch(len(items), time.Since(start))
	v.log.Debug("verified batch",
		log.Uint64("epoch", set.Epoch),
		log.Int("size", len(items)),
	)
	return results, nil
}

func (v *Verifier) verify(set *validators.Set, id ids.ID, proof Proof) (*Result, error) {
	result, recovered, err := verify(set, id, proof)
	v.metrics.AddRecoveries(recovered)
	switch {
	case errors.Is(err, ErrMalformedProof):
		v.metrics.MarkVerification(metrics.MalformedResult)
		v.log.Debug("rejected malformed proof",
			log.Stringer("id", id),
			log.Err(err),
		)
		return nil, err
	case err != nil:
		return nil, err
	case result.Accepted:
		v.metrics.MarkVerification(metrics.AcceptedResult)
	default:
		v.metrics.MarkVerification(metrics.RejectedResult)
		v.log.Debug("proof below threshold",
			log.Stringer("id", id),
			log.Uint64("epoch", result.Epoch),
			log.Uint64("weight", result.TotalWeight),
			log.Uint64("threshold", result.Threshold),
		)
	}
	return result, nil
}
