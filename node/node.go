// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package node wires a consortium node from its configuration.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/luxfi/utils/wrappers"
	"github.com/luxfi/version"

	"github.com/luxfi/consortium/action"
	"github.com/luxfi/consortium/api/bridge"
	"github.com/luxfi/consortium/api/health"
	"github.com/luxfi/consortium/api/server"
	"github.com/luxfi/consortium/config"
	"github.com/luxfi/consortium/consortium"
	"github.com/luxfi/consortium/mailbox"
	"github.com/luxfi/consortium/metrics"
	"github.com/luxfi/consortium/validators"

	apimetrics "github.com/luxfi/consortium/api/metrics"
)

const (
	bridgeEndpoint  = "bridge"
	metricsEndpoint = "metrics"
	healthEndpoint  = "health"
)

var (
	Version = &version.Semantic{
		Major: 1,
		Minor: 0,
		Patch: 0,
	}

	registryPrefix = []byte("registry")
	mailboxPrefix  = []byte("mailbox")
)

type Node struct {
	Config   *config.Config
	Log      log.Logger
	Registry *validators.Registry
	Verifier *consortium.Verifier
	Mailbox  *mailbox.Mailbox

	db      database.Database
	redis   *redis.Client
	metrics metric.Registry
	health  *health.Health
	server  server.Server
}

// New builds a node serving its API on [listener]. An empty registry is
// bootstrapped from the genesis set of [cfg], if any.
func New(cfg *config.Config, logger log.Logger, listener net.Listener) (*Node, error) {
	if err := cfg.Verify(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger.Info("initializing consortium node",
		log.Stringer("version", Version),
		log.Stringer("chainID", cfg.Mailbox.ChainID),
		log.Stringer("mailbox", cfg.Mailbox.Address),
	)

	db, err := openDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	n := &Node{
		Config:  cfg,
		Log:     logger,
		db:      db,
		metrics: metric.NewRegistry(),
	}
	if err := n.initialize(listener); err != nil {
		_ = n.close()
		return nil, err
	}
	return n, nil
}

func (n *Node) initialize(listener net.Listener) error {
	nodeMetrics, err := metrics.New(n.metrics)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	store := validators.NewStore(
		prefixdb.New(registryPrefix, n.db),
		n.Config.Registry.HistoricalEpochs,
	)
	n.Registry, err = validators.NewRegistry(n.Config.Registry, store, n.Log, nodeMetrics)
	if err != nil {
		return fmt.Errorf("failed to restore validator registry: %w", err)
	}
	if err := n.bootstrap(); err != nil {
		return err
	}

	n.Verifier = consortium.NewVerifier(n.Registry, n.Config.MaxBatchWorkers, n.Log, nodeMetrics)

	mailboxDB := prefixdb.New(mailboxPrefix, n.db)
	delivered := mailbox.NewDBDeliveredStore(mailboxDB)
	if addr := n.Config.Redis.Addr; addr != "" {
		n.redis = redis.NewClient(&redis.Options{Addr: addr})
		delivered = mailbox.NewRedisDeliveredStore(n.redis, n.Config.Redis.KeyPrefix)
	}
	n.Mailbox = mailbox.New(
		mailbox.Config{
			Address: n.Config.Mailbox.Address,
			ChainID: n.Config.Mailbox.ChainID,
		},
		n.Verifier,
		delivered,
		mailboxDB,
		n.Log,
		nodeMetrics,
	)
	paths, err := n.Config.Paths()
	if err != nil {
		return err
	}
	for path, pathConfig := range paths {
		n.Mailbox.SetPath(path, pathConfig)
	}
	n.Mailbox.RegisterHandler(action.KindValsetRotation, mailbox.NewValsetHandler(n.Registry, n.Log))

	if err := n.initHealth(); err != nil {
		return err
	}
	return n.initAPI(listener, nodeMetrics)
}

func (n *Node) bootstrap() error {
	genesis := n.Config.Genesis
	if genesis == nil {
		n.Log.Warn("no genesis validator set configured")
		return nil
	}

	_, err := n.Registry.Current()
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, validators.ErrUninitialized):
		return err
	}
	if err := genesis.Bootstrap(n.Registry); err != nil {
		return fmt.Errorf("failed to install genesis validator set: %w", err)
	}
	return nil
}

func (n *Node) initHealth() error {
	var err error
	n.health, err = health.New(n.Log, n.metrics)
	if err != nil {
		return err
	}

	errs := wrappers.Errs{}
	errs.Add(n.health.RegisterCheck("registry", health.CheckerFunc(func(context.Context) (interface{}, error) {
		set, err := n.Registry.Current()
		if err != nil {
			return nil, err
		}
		return map[string]uint64{
			"epoch":     set.Epoch,
			"threshold": set.Threshold,
		}, nil
	})))
	if n.redis != nil {
		errs.Add(n.health.RegisterCheck("redis", health.CheckerFunc(func(ctx context.Context) (interface{}, error) {
			return nil, n.redis.Ping(ctx).Err()
		})))
	}
	return errs.Err
}

func (n *Node) initAPI(listener net.Listener, nodeMetrics metrics.Metrics) error {
	var err error
	n.server, err = server.New(
		n.Log,
		listener,
		n.Config.HTTPAllowedOrigins,
		n.Config.HTTPShutdownTimeout,
		n.metrics,
		n.Config.HTTP,
	)
	if err != nil {
		return err
	}

	service, err := bridge.NewService(n.Log, n.Registry, n.Verifier, n.Mailbox, nodeMetrics)
	if err != nil {
		return err
	}

	errs := wrappers.Errs{}
	errs.Add(
		n.server.AddRoute(service, bridgeEndpoint),
		n.server.AddRoute(apimetrics.NewHandler(n.metrics, n.Log), metricsEndpoint),
		n.server.AddRoute(n.health, healthEndpoint),
	)
	return errs.Err
}

// Dispatch serves the API until Shutdown is called.
func (n *Node) Dispatch() error {
	n.Log.Info("serving API")
	err := n.server.Dispatch()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (n *Node) Shutdown() error {
	n.Log.Info("shutting down consortium node")

	errs := wrappers.Errs{}
	if n.server != nil {
		errs.Add(n.server.Shutdown())
	}
	errs.Add(n.close())
	return errs.Err
}

func (n *Node) close() error {
	errs := wrappers.Errs{}
	if n.redis != nil {
		errs.Add(n.redis.Close())
	}
	errs.Add(n.db.Close())
	return errs.Err
}

func openDB(cfg *config.Config) (database.Database, error) {
	switch cfg.DBType {
	case config.BadgerDB:
		db, err := badgerdb.New(
			cfg.DBDir,
			nil, // configBytes - use default
			"",  // namespace
			nil, // metrics
		)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return memdb.New(), nil
	}
}
