// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mailbox dispatches envelopes between chains. Outbound envelopes
// get a per path nonce; inbound envelopes are verified, delivered at most
// once and handed to the handler of their action.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/consortium/action"
	"github.com/luxfi/consortium/consortium"
	"github.com/luxfi/consortium/envelope"
	"github.com/luxfi/consortium/metrics"
)

var (
	ErrPathDisabled       = errors.New("path disabled")
	ErrWrongDirection     = errors.New("path does not allow this direction")
	ErrWrongDestination   = errors.New("envelope is not destined to this chain")
	ErrUnauthorizedCaller = errors.New("caller is not the destination caller")
	ErrNoHandler          = errors.New("no handler registered")
	ErrHandlerFailed      = errors.New("handler failed")
	ErrAlreadyHandled     = errors.New("message already handled")
	ErrHandlerInFlight    = errors.New("message is being handled")

	noncePrefix = []byte("nonce")
)

type Direction uint8

const (
	Inbound Direction = iota + 1
	Outbound
)

func (d Direction) String() string {
	switch d {
	case Inbound:
		return "inbound"
	case Outbound:
		return "outbound"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(d))
	}
}

// PathConfig is the policy of a single path.
type PathConfig struct {
	Enabled   bool
	Direction Direction
	// MaxBodySize of 0 means unlimited.
	MaxBodySize uint32
}

// ProofVerifier checks the proof of an envelope.
type ProofVerifier interface {
	Verify(ctx context.Context, env *envelope.Envelope, proof consortium.Proof) (*consortium.Result, error)
}

// Handler executes the action of a delivered envelope.
type Handler interface {
	Handle(ctx context.Context, env *envelope.Envelope, a action.Action) error
}

type Config struct {
	// Address is the mailbox address on the local chain.
	Address envelope.Word
	ChainID envelope.Word
}

// Receipt describes a delivered message.
type Receipt struct {
	ID      ids.ID             `json:"id"`
	Kind    action.Kind        `json:"kind"`
	Result  *consortium.Result `json:"result"`
	Handled bool               `json:"handled"`
}

type Mailbox struct {
	config    Config
	verifier  ProofVerifier
	delivered DeliveredStore
	log       log.Logger
	metrics   metrics.Metrics

	lock     sync.Mutex
	paths    map[ids.ID]PathConfig
	handlers map[action.Kind]Handler
	nonceDB  database.Database
}

func New(
	config Config,
	verifier ProofVerifier,
	delivered DeliveredStore,
	db database.Database,
	logger log.Logger,
	mailboxMetrics metrics.Metrics,
) *Mailbox {
	return &Mailbox{
		config:    config,
		verifier:  verifier,
		delivered: delivered,
		log:       logger,
		metrics:   mailboxMetrics,
		paths:     make(map[ids.ID]PathConfig),
		handlers:  make(map[action.Kind]Handler),
		nonceDB:   prefixdb.New(noncePrefix, db),
	}
}

// RegisterHandler routes actions of [kind] to [handler], replacing any
// previous handler.
func (m *Mailbox) RegisterHandler(kind action.Kind, handler Handler) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.handlers[kind] = handler
}

// OutboundPath is the path of envelopes sent from this mailbox to
// [destinationChainID].
func (m *Mailbox) OutboundPath(destinationChainID envelope.Word) ids.ID {
	return envelope.PathHash(m.config.Address, m.config.ChainID, destinationChainID)
}

// InboundPath is the path of envelopes sent by [sourceMailbox] on
// [sourceChainID] to this chain.
func (m *Mailbox) InboundPath(sourceMailbox, sourceChainID envelope.Word) ids.ID {
	return envelope.PathHash(sourceMailbox, sourceChainID, m.config.ChainID)
}

// SetPath installs the policy of [path].
func (m *Mailbox) SetPath(path ids.ID, config PathConfig) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.paths[path] = config
	m.log.Info("updated path",
		log.Stringer("path", path),
		log.Bool("enabled", config.Enabled),
		log.Stringer("direction", config.Direction),
	)
}

// Path returns the policy of [path]. Unknown paths are disabled.
func (m *Mailbox) Path(path ids.ID) PathConfig {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.paths[path]
}

func (m *Mailbox) checkPath(path ids.ID, direction Direction) (PathConfig, error) {
	config := m.Path(path)
	switch {
	case !config.Enabled:
		return config, fmt.Errorf("%w: %s", ErrPathDisabled, path)
	case config.Direction != direction:
		return config, fmt.Errorf("%w: %s is %s", ErrWrongDirection, path, config.Direction)
	default:
		return config, nil
	}
}

// Send builds the next outbound envelope to [destinationChainID]. Nonces
// are strictly increasing per path, starting at 0.
func (m *Mailbox) Send(
	_ context.Context,
	destinationChainID envelope.Word,
	recipient envelope.Word,
	destinationCaller envelope.Word,
	sender envelope.Word,
	body []byte,
) (*envelope.Envelope, ids.ID, error) {
	path := m.OutboundPath(destinationChainID)
	config, err := m.checkPath(path, Outbound)
	if err != nil {
		return nil, ids.Empty, err
	}

	env := &envelope.Envelope{
		SourceMailbox:      m.config.Address,
		SourceChainID:      m.config.ChainID,
		DestinationChainID: destinationChainID,
		Sender:             sender,
		Recipient:          recipient,
		DestinationCaller:  destinationCaller,
		Body:               body,
	}
	if err := env.Verify(config.MaxBodySize); err != nil {
		return nil, ids.Empty, err
	}

	m.lock.Lock()
	nonce, err := database.GetUInt64(m.nonceDB, path[:])
	switch {
	case errors.Is(err, database.ErrNotFound):
		nonce = 0
	case err != nil:
		m.lock.Unlock()
		return nil, ids.Empty, err
	}
	err = database.PutUInt64(m.nonceDB, path[:], nonce+1)
	m.lock.Unlock()
	if err != nil {
		return nil, ids.Empty, err
	}

	env.Nonce.SetUint64(nonce)
	id := env.ID()
	m.metrics.IncSent()
	m.log.Debug("sent envelope",
		log.Stringer("id", id),
		log.Stringer("path", path),
		log.Uint64("nonce", nonce),
	)
	return env, id, nil
}

// Deliver verifies [proof] over [env] and runs the handler of its action.
// Nothing is recorded unless the proof is accepted. If the handler fails,
// the message stays delivered and can be retried with Retry. If a
// concurrent Retry handled the message first, the handler is not run again
// and the receipt reports it as handled.
func (m *Mailbox) Deliver(
	ctx context.Context,
	env *envelope.Envelope,
	proof consortium.Proof,
	caller envelope.Word,
) (*Receipt, error) {
	if env.DestinationChainID != m.config.ChainID {
		return nil, fmt.Errorf("%w: %s", ErrWrongDestination, env.DestinationChainID)
	}
	config, err := m.checkPath(env.Path(), Inbound)
	if err != nil {
		return nil, err
	}
	if !env.DestinationCaller.IsZero() && env.DestinationCaller != caller {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorizedCaller, caller)
	}
	if err := env.Verify(config.MaxBodySize); err != nil {
		return nil, err
	}

	a, err := action.Parse(env.Body)
	if err != nil {
		return nil, err
	}
	handler, err := m.handler(a.Kind())
	if err != nil {
		return nil, err
	}

	result, err := m.verifier.Verify(ctx, env, proof)
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		return nil, err
	}

	id := env.ID()
	if err := m.delivered.Put(ctx, id, env.Encode()); err != nil {
		if errors.Is(err, ErrAlreadyDelivered) {
			m.metrics.IncReplays()
		}
		return nil, err
	}
	m.metrics.IncDelivered()

	receipt := &Receipt{
		ID:     id,
		Kind:   a.Kind(),
		Result: result,
	}
	err = m.handle(ctx, id, env, a, handler)
	switch {
	case errors.Is(err, ErrAlreadyHandled):
		m.log.Debug("message handled concurrently",
			log.Stringer("id", id),
		)
	case err != nil:
		return receipt, err
	}
	receipt.Handled = true
	return receipt, nil
}

// Retry runs the handler of a delivered but unhandled message again. The
// proof is not verified again.
func (m *Mailbox) Retry(ctx context.Context, id ids.ID) (*Receipt, error) {
	record, err := m.delivered.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Handled {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyHandled, id)
	}

	env, err := envelope.Parse(record.Envelope)
	if err != nil {
		return nil, err
	}
	a, err := action.Parse(env.Body)
	if err != nil {
		return nil, err
	}
	handler, err := m.handler(a.Kind())
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		ID:   id,
		Kind: a.Kind(),
	}
	if err := m.handle(ctx, id, env, a, handler); err != nil {
		return receipt, err
	}
	receipt.Handled = true
	return receipt, nil
}

// Status returns the delivery record of [id].
func (m *Mailbox) Status(ctx context.Context, id ids.ID) (*Record, error) {
	return m.delivered.Get(ctx, id)
}

func (m *Mailbox) handler(kind action.Kind) (Handler, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	handler, ok := m.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, kind)
	}
	return handler, nil
}

func (m *Mailbox) handle(
	ctx context.Context,
	id ids.ID,
	env *envelope.Envelope,
	a action.Action,
	handler Handler,
) error {
	if err := m.delivered.Claim(ctx, id); err != nil {
		return err
	}
	defer func() {
		// The claim must be released even if [ctx] was cancelled.
		if err := m.delivered.Release(context.WithoutCancel(ctx), id); err != nil {
			m.log.Warn("failed to release handler claim",
				log.Stringer("id", id),
				log.Err(err),
			)
		}
	}()

	if err := handler.Handle(ctx, env, a); err != nil {
		m.metrics.IncHandlerFailures()
		m.log.Warn("handler failed",
			log.Stringer("id", id),
			log.Stringer("kind", a.Kind()),
			log.Err(err),
		)
		return fmt.Errorf("%w: %w", ErrHandlerFailed, err)
	}
	if err := m.delivered.MarkHandled(ctx, id); err != nil {
		return err
	}

	m.log.Info("handled message",
		log.Stringer("id", id),
		log.Stringer("kind", a.Kind()),
	)
	return nil
}
