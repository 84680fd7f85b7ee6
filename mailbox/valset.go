// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mailbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/log"

	"github.com/luxfi/consortium/action"
	"github.com/luxfi/consortium/envelope"
)

var (
	errUnexpectedAction = errors.New("unexpected action")

	_ Handler = (*ValsetHandler)(nil)
)

// Rotator installs new validator sets.
type Rotator interface {
	Rotate(publicKeys [][]byte, weights []uint64, threshold uint64, epoch uint64) error
}

// ValsetHandler applies ValsetRotation actions to a validator registry.
type ValsetHandler struct {
	rotator Rotator
	log     log.Logger
}

func NewValsetHandler(rotator Rotator, logger log.Logger) *ValsetHandler {
	return &ValsetHandler{
		rotator: rotator,
		log:     logger,
	}
}

func (h *ValsetHandler) Handle(_ context.Context, env *envelope.Envelope, a action.Action) error {
	rotation, ok := a.(*action.ValsetRotation)
	if !ok {
		return fmt.Errorf("%w: %s", errUnexpectedAction, a.Kind())
	}
	if err := h.rotator.Rotate(
		rotation.Validators,
		rotation.Weights,
		rotation.Threshold,
		rotation.Epoch,
	); err != nil {
		return err
	}

	h.log.Info("applied validator set rotation",
		log.Stringer("envelopeID", env.ID()),
		log.Uint64("epoch", rotation.Epoch),
		log.Uint64("height", rotation.Height),
	)
	return nil
}
