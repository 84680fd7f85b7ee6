// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mailbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/luxfi/ids"
)

// claimTTL bounds how long a crashed relayer blocks the handler of a
// message.
const claimTTL = 10 * time.Minute

var _ DeliveredStore = (*redisDeliveredStore)(nil)

// redisDeliveredStore lets several relayers share one delivery table.
// SETNX makes the first writer of an id the only one to deliver it, and
// the first claimer of an id the only one to run its handler.
type redisDeliveredStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisDeliveredStore returns a DeliveredStore keeping its records in
// redis under [keyPrefix].
func NewRedisDeliveredStore(client *redis.Client, keyPrefix string) DeliveredStore {
	return &redisDeliveredStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (s *redisDeliveredStore) key(id ids.ID) string {
	return s.keyPrefix + ":delivered:" + id.String()
}

func (s *redisDeliveredStore) claimKey(id ids.ID) string {
	return s.keyPrefix + ":handling:" + id.String()
}

func (s *redisDeliveredStore) Put(ctx context.Context, id ids.ID, encodedEnvelope []byte) error {
	b, err := Codec.Marshal(CodecVersion, &Record{
		Envelope: encodedEnvelope,
	})
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.key(id), b, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAlreadyDelivered, id)
	}
	return nil
}

func (s *redisDeliveredStore) Get(ctx context.Context, id ids.ID) (*Record, error) {
	b, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, id)
	}
	if err != nil {
		return nil, err
	}
	return parseRecord(b)
}

func (s *redisDeliveredStore) Claim(ctx context.Context, id ids.ID) error {
	ok, err := s.client.SetNX(ctx, s.claimKey(id), 1, claimTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrHandlerInFlight, id)
	}

	// The record is read under the claim so that a handler that finished
	// before the claim was taken is observed.
	record, err := s.Get(ctx, id)
	if err == nil && record.Handled {
		err = fmt.Errorf("%w: %s", ErrAlreadyHandled, id)
	}
	if err != nil {
		if releaseErr := s.Release(ctx, id); releaseErr != nil {
			return errors.Join(err, releaseErr)
		}
		return err
	}
	return nil
}

func (s *redisDeliveredStore) Release(ctx context.Context, id ids.ID) error {
	return s.client.Del(ctx, s.claimKey(id)).Err()
}

func (s *redisDeliveredStore) MarkHandled(ctx context.Context, id ids.ID) error {
	record, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	record.Handled = true

	b, err := Codec.Marshal(CodecVersion, record)
	if err != nil {
		return err
	}
	ok, err := s.client.SetXX(ctx, s.key(id), b, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMessage, id)
	}
	return nil
}
