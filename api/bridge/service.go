// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge serves the consortium JSON-RPC API.
package bridge

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/rpc/v2"
	"github.com/holiman/uint256"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/utils/json"

	"github.com/luxfi/consortium/consortium"
	"github.com/luxfi/consortium/envelope"
	"github.com/luxfi/consortium/mailbox"
	"github.com/luxfi/consortium/metrics"
	"github.com/luxfi/consortium/validators"
)

const serviceName = "bridge"

type Service struct {
	log      log.Logger
	registry validators.Reader
	verifier *consortium.Verifier
	mailbox  *mailbox.Mailbox
}

// NewService returns the bridge API handler. Request metrics are recorded
// through [apiMetrics].
func NewService(
	logger log.Logger,
	registry validators.Reader,
	verifier *consortium.Verifier,
	mb *mailbox.Mailbox,
	apiMetrics metrics.Metrics,
) (http.Handler, error) {
	server := rpc.NewServer()
	codec := json.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	server.RegisterInterceptFunc(apiMetrics.InterceptRequest)
	server.RegisterAfterFunc(apiMetrics.AfterRequest)
	return server, server.RegisterService(
		&Service{
			log:      logger,
			registry: registry,
			verifier: verifier,
			mailbox:  mb,
		},
		serviceName,
	)
}

// EnvelopeArgs is the JSON form of an envelope.
type EnvelopeArgs struct {
	SourceMailbox      envelope.Word `json:"sourceMailbox"`
	SourceChainID      envelope.Word `json:"sourceChainID"`
	DestinationChainID envelope.Word `json:"destinationChainID"`
	Nonce              uint256.Int   `json:"nonce"`
	Sender             envelope.Word `json:"sender"`
	Recipient          envelope.Word `json:"recipient"`
	DestinationCaller  envelope.Word `json:"destinationCaller"`
	Body               hexutil.Bytes `json:"body"`
}

func (a *EnvelopeArgs) envelope() *envelope.Envelope {
	return &envelope.Envelope{
		SourceMailbox:      a.SourceMailbox,
		SourceChainID:      a.SourceChainID,
		DestinationChainID: a.DestinationChainID,
		Nonce:              a.Nonce,
		Sender:             a.Sender,
		Recipient:          a.Recipient,
		DestinationCaller:  a.DestinationCaller,
		Body:               a.Body,
	}
}

type APIValidator struct {
	Address   common.Address `json:"address"`
	PublicKey hexutil.Bytes  `json:"publicKey"`
	Weight    json.Uint64    `json:"weight"`
}

type GetValidatorSetArgs struct {
	// Epoch defaults to the active set.
	Epoch *json.Uint64 `json:"epoch"`
}

type GetValidatorSetReply struct {
	Epoch       json.Uint64    `json:"epoch"`
	Validators  []APIValidator `json:"validators"`
	TotalWeight json.Uint64    `json:"totalWeight"`
	Threshold   json.Uint64    `json:"threshold"`
}

// GetValidatorSet returns the active validator set, or a retained set if an
// epoch is given.
func (s *Service) GetValidatorSet(_ *http.Request, args *GetValidatorSetArgs, reply *GetValidatorSetReply) error {
	s.log.Debug("API called",
		log.String("service", serviceName),
		log.String("method", "getValidatorSet"),
	)

	var (
		set *validators.Set
		err error
	)
	if args.Epoch == nil {
		set, err = s.registry.Current()
	} else {
		set, err = s.registry.SetAt(uint64(*args.Epoch))
	}
	if err != nil {
		return err
	}

	reply.Epoch = json.Uint64(set.Epoch)
	reply.TotalWeight = json.Uint64(set.TotalWeight)
	reply.Threshold = json.Uint64(set.Threshold)
	reply.Validators = make([]APIValidator, len(set.Validators))
	for i, vdr := range set.Validators {
		reply.Validators[i] = APIValidator{
			Address:   vdr.Address,
			PublicKey: vdr.PublicKey,
			Weight:    json.Uint64(vdr.Weight),
		}
	}
	return nil
}

type EncodeEnvelopeReply struct {
	Bytes hexutil.Bytes `json:"bytes"`
	ID    ids.ID        `json:"id"`
	Path  ids.ID        `json:"path"`
}

// EncodeEnvelope returns the canonical encoding of an envelope with its id
// and path hash.
func (s *Service) EncodeEnvelope(_ *http.Request, args *EnvelopeArgs, reply *EncodeEnvelopeReply) error {
	s.log.Debug("API called",
		log.String("service", serviceName),
		log.String("method", "encodeEnvelope"),
	)

	env := args.envelope()
	reply.Bytes = env.Encode()
	reply.ID = env.ID()
	reply.Path = env.Path()
	return nil
}

type VerifyArgs struct {
	// Envelope is the canonical encoding of the signed envelope.
	Envelope hexutil.Bytes   `json:"envelope"`
	Proof    []hexutil.Bytes `json:"proof"`
	// Epoch defaults to the active set.
	Epoch *json.Uint64 `json:"epoch"`
}

type VerifyReply struct {
	ID          ids.ID            `json:"id"`
	Epoch       json.Uint64       `json:"epoch"`
	Accepted    bool              `json:"accepted"`
	TotalWeight json.Uint64       `json:"totalWeight"`
	Threshold   json.Uint64       `json:"threshold"`
	Shortfall   json.Uint64       `json:"shortfall"`
	Signers     []*common.Address `json:"signers"`
}

func (r *VerifyReply) set(id ids.ID, result *consortium.Result) {
	r.ID = id
	r.Epoch = json.Uint64(result.Epoch)
	r.Accepted = result.Accepted
	r.TotalWeight = json.Uint64(result.TotalWeight)
	r.Threshold = json.Uint64(result.Threshold)
	r.Shortfall = json.Uint64(result.Shortfall())
	r.Signers = result.Signers
}

// Verify checks a proof over an envelope. A proof below the threshold is
// reported in the reply, not as an error.
func (s *Service) Verify(r *http.Request, args *VerifyArgs, reply *VerifyReply) error {
	s.log.Debug("API called",
		log.String("service", serviceName),
		log.String("method", "verify"),
	)

	env, err := envelope.Parse(args.Envelope)
	if err != nil {
		return err
	}
	proof, err := parseProof(args.Proof)
	if err != nil {
		return err
	}

	var result *consortium.Result
	id := env.ID()
	if args.Epoch == nil {
		result, err = s.verifier.VerifyID(r.Context(), id, proof)
	} else {
		result, err = s.verifier.VerifyAt(r.Context(), uint64(*args.Epoch), id, proof)
	}
	if err != nil {
		return err
	}
	reply.set(id, result)
	return nil
}

type VerifyBatchArgs struct {
	Items []VerifyArgs `json:"items"`
}

type VerifyBatchReply struct {
	Results []VerifyReply `json:"results"`
	// Errors is index aligned to Results. An empty string means the item was
	// verified.
	Errors []string `json:"errors"`
}

// VerifyBatch checks every item against the active set. Epochs of the items
// are ignored.
func (s *Service) VerifyBatch(r *http.Request, args *VerifyBatchArgs, reply *VerifyBatchReply) error {
	s.log.Debug("API called",
		log.String("service", serviceName),
		log.String("method", "verifyBatch"),
		log.Int("items", len(args.Items)),
	)

	reply.Results = make([]VerifyReply, len(args.Items))
	reply.Errors = make([]string, len(args.Items))

	var (
		items   = make([]consortium.BatchItem, 0, len(args.Items))
		indices = make([]int, 0, len(args.Items))
	)
	for i, item := range args.Items {
		env, err := envelope.Parse(item.Envelope)
		if err != nil {
			reply.Errors[i] = err.Error()
			continue
		}
		proof, err := parseProof(item.Proof)
		if err != nil {
			reply.Errors[i] = err.Error()
			continue
		}
		items = append(items, consortium.BatchItem{
			ID:    env.ID(),
			Proof: proof,
		})
		indices = append(indices, i)
	}

	results, err := s.verifier.VerifyBatch(r.Context(), items)
	if err != nil {
		return err
	}
	for j, result := range results {
		i := indices[j]
		if result.Err != nil {
			reply.Errors[i] = result.Err.Error()
			continue
		}
		reply.Results[i].set(items[j].ID, result.Result)
	}
	return nil
}

type SendArgs struct {
	DestinationChainID envelope.Word `json:"destinationChainID"`
	Recipient          envelope.Word `json:"recipient"`
	DestinationCaller  envelope.Word `json:"destinationCaller"`
	Sender             envelope.Word `json:"sender"`
	Body               hexutil.Bytes `json:"body"`
}

type SendReply struct {
	Envelope hexutil.Bytes `json:"envelope"`
	ID       ids.ID        `json:"id"`
	Nonce    *uint256.Int  `json:"nonce"`
}

// Send builds the next outbound envelope for notaries to sign.
func (s *Service) Send(r *http.Request, args *SendArgs, reply *SendReply) error {
	s.log.Debug("API called",
		log.String("service", serviceName),
		log.String("method", "send"),
		log.Stringer("destinationChainID", args.DestinationChainID),
	)

	env, id, err := s.mailbox.Send(
		r.Context(),
		args.DestinationChainID,
		args.Recipient,
		args.DestinationCaller,
		args.Sender,
		args.Body,
	)
	if err != nil {
		return err
	}
	reply.Envelope = env.Encode()
	reply.ID = id
	reply.Nonce = &env.Nonce
	return nil
}

type DeliverArgs struct {
	Envelope hexutil.Bytes   `json:"envelope"`
	Proof    []hexutil.Bytes `json:"proof"`
	Caller   envelope.Word   `json:"caller"`
}

type ReceiptReply struct {
	ID      ids.ID       `json:"id"`
	Kind    string       `json:"kind"`
	Handled bool         `json:"handled"`
	Result  *VerifyReply `json:"result,omitempty"`
	// HandlerError is set when the message was delivered but its handler
	// failed. The message can be retried.
	HandlerError string `json:"handlerError,omitempty"`
}

func (r *ReceiptReply) set(receipt *mailbox.Receipt, err error) error {
	if receipt == nil {
		return err
	}
	r.ID = receipt.ID
	r.Kind = receipt.Kind.String()
	r.Handled = receipt.Handled
	if receipt.Result != nil {
		r.Result = &VerifyReply{}
		r.Result.set(receipt.ID, receipt.Result)
	}
	if errors.Is(err, mailbox.ErrHandlerFailed) {
		r.HandlerError = err.Error()
		return nil
	}
	return err
}

// Deliver verifies and dispatches an inbound envelope.
func (s *Service) Deliver(r *http.Request, args *DeliverArgs, reply *ReceiptReply) error {
	s.log.Debug("API called",
		log.String("service", serviceName),
		log.String("method", "deliver"),
	)

	env, err := envelope.Parse(args.Envelope)
	if err != nil {
		return err
	}
	proof, err := parseProof(args.Proof)
	if err != nil {
		return err
	}
	return reply.set(s.mailbox.Deliver(r.Context(), env, proof, args.Caller))
}

type IDArgs struct {
	ID ids.ID `json:"id"`
}

// Retry runs the handler of a delivered but unhandled message again.
func (s *Service) Retry(r *http.Request, args *IDArgs, reply *ReceiptReply) error {
	s.log.Debug("API called",
		log.String("service", serviceName),
		log.String("method", "retry"),
		log.Stringer("id", args.ID),
	)

	return reply.set(s.mailbox.Retry(r.Context(), args.ID))
}

type GetStatusReply struct {
	Delivered bool          `json:"delivered"`
	Handled   bool          `json:"handled"`
	Envelope  hexutil.Bytes `json:"envelope,omitempty"`
}

// GetStatus reports whether a message was delivered and handled.
func (s *Service) GetStatus(r *http.Request, args *IDArgs, reply *GetStatusReply) error {
	s.log.Debug("API called",
		log.String("service", serviceName),
		log.String("method", "getStatus"),
		log.Stringer("id", args.ID),
	)

	record, err := s.mailbox.Status(r.Context(), args.ID)
	if errors.Is(err, mailbox.ErrUnknownMessage) {
		return nil
	}
	if err != nil {
		return err
	}
	reply.Delivered = true
	reply.Handled = record.Handled
	reply.Envelope = record.Envelope
	return nil
}

func parseProof(slots []hexutil.Bytes) (consortium.Proof, error) {
	raw := make([][]byte, len(slots))
	for i, slot := range slots {
		raw[i] = slot
	}
	return consortium.ParseProofSlots(raw)
}
