// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/luxfi/constants"
	"github.com/luxfi/ids"

	"github.com/luxfi/consortium/api/server"
	"github.com/luxfi/consortium/consortium"
	"github.com/luxfi/consortium/envelope"
	"github.com/luxfi/consortium/mailbox"
	"github.com/luxfi/consortium/validators"
)

const (
	MemDB    = "memdb"
	BadgerDB = "badgerdb"

	InboundDirection  = "inbound"
	OutboundDirection = "outbound"
)

var (
	errUnknownDBType     = errors.New("unknown database type")
	errMissingDBDir      = errors.New("database directory is required")
	errMissingChainID    = errors.New("mailbox chain id is required")
	errMissingAddress    = errors.New("mailbox address is required")
	errUnknownDirection  = errors.New("unknown path direction")
	errMissingRemote     = errors.New("path remote chain id is required")
	errMissingMailbox    = errors.New("inbound path remote mailbox is required")
	errDuplicatePath     = errors.New("duplicate path")
	errInvalidBatchLimit = errors.New("max batch workers must be positive")

	DefaultMaxBodySize = uint32(64 * constants.KiB)

	DefaultConfig = Config{
		HTTPHost:            "127.0.0.1",
		HTTPPort:            9660,
		HTTPAllowedOrigins:  []string{"*"},
		HTTPShutdownTimeout: 10 * time.Second,
		HTTP: server.HTTPConfig{
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		DBType: MemDB,
		Registry: validators.RegistryConfig{
			HistoricalEpochs: 0,
			HistoryCacheSize: 16,
		},
		MaxBatchWorkers: consortium.DefaultMaxBatchWorkers,
		Redis: RedisConfig{
			KeyPrefix: "consortium",
		},
	}
)

// Config is the configuration of a consortium node.
type Config struct {
	HTTPHost            string            `json:"http-host"`
	HTTPPort            uint16            `json:"http-port"`
	HTTPAllowedOrigins  []string          `json:"http-allowed-origins"`
	HTTPShutdownTimeout time.Duration     `json:"http-shutdown-timeout"`
	HTTP                server.HTTPConfig `json:"http"`

	DBType string `json:"db-type"`
	DBDir  string `json:"db-dir"`

	Mailbox  MailboxConfig            `json:"mailbox"`
	Registry validators.RegistryConfig `json:"registry"`
	// Genesis bootstraps an empty registry. It is ignored once the
	// registry holds a set.
	Genesis *GenesisConfig `json:"genesis"`

	MaxBatchWorkers int `json:"max-batch-workers"`

	// Redis is used for the delivered table when Addr is set.
	Redis RedisConfig `json:"redis"`
}

type MailboxConfig struct {
	Address envelope.Word `json:"address"`
	ChainID envelope.Word `json:"chain-id"`
	Paths   []PathConfig  `json:"paths"`
}

// PathConfig enables one path of the local mailbox. Outbound paths are
// identified by the remote chain only; inbound paths also need the remote
// mailbox.
type PathConfig struct {
	Direction     string        `json:"direction"`
	RemoteMailbox envelope.Word `json:"remote-mailbox"`
	RemoteChainID envelope.Word `json:"remote-chain-id"`
	// MaxBodySize defaults to DefaultMaxBodySize when 0.
	MaxBodySize uint32 `json:"max-body-size"`
	Disabled    bool   `json:"disabled"`
}

type RedisConfig struct {
	Addr      string `json:"addr"`
	KeyPrefix string `json:"key-prefix"`
}

type GenesisConfig struct {
	Epoch      uint64          `json:"epoch"`
	PublicKeys []hexutil.Bytes `json:"public-keys"`
	Weights    []uint64        `json:"weights"`
	Threshold  uint64          `json:"threshold"`
}

// GetConfig returns a Config
// input is unmarshalled into a Config previously
// initialized with default values
func GetConfig(b []byte) (*Config, error) {
	c := DefaultConfig
	c.HTTPAllowedOrigins = slices.Clone(DefaultConfig.HTTPAllowedOrigins)

	// if bytes are empty keep default values
	if len(b) == 0 {
		return &c, nil
	}

	return &c, json.Unmarshal(b, &c)
}

func (c *Config) Verify() error {
	switch c.DBType {
	case MemDB:
	case BadgerDB:
		if c.DBDir == "" {
			return errMissingDBDir
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownDBType, c.DBType)
	}
	if c.Mailbox.ChainID.IsZero() {
		return errMissingChainID
	}
	if c.Mailbox.Address.IsZero() {
		return errMissingAddress
	}
	if c.MaxBatchWorkers <= 0 {
		return errInvalidBatchLimit
	}
	if _, err := c.Paths(); err != nil {
		return err
	}
	if c.Genesis != nil {
		if _, err := c.Genesis.Set(); err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
	}
	return nil
}

// Paths returns the mailbox path policies keyed by path hash. Two entries
// resolving to the same path are rejected.
func (c *Config) Paths() (map[ids.ID]mailbox.PathConfig, error) {
	paths := make(map[ids.ID]mailbox.PathConfig, len(c.Mailbox.Paths))
	for i, p := range c.Mailbox.Paths {
		path, config, err := p.resolve(c.Mailbox)
		if err != nil {
			return nil, fmt.Errorf("path %d: %w", i, err)
		}
		if _, ok := paths[path]; ok {
			return nil, fmt.Errorf("path %d: %w: %s", i, errDuplicatePath, path)
		}
		paths[path] = config
	}
	return paths, nil
}

func (p PathConfig) resolve(local MailboxConfig) (ids.ID, mailbox.PathConfig, error) {
	if p.RemoteChainID.IsZero() {
		return ids.Empty, mailbox.PathConfig{}, errMissingRemote
	}
	config := mailbox.PathConfig{
		Enabled:     !p.Disabled,
		MaxBodySize: p.MaxBodySize,
	}
	if config.MaxBodySize == 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}

	switch p.Direction {
	case OutboundDirection:
		config.Direction = mailbox.Outbound
		return envelope.PathHash(local.Address, local.ChainID, p.RemoteChainID), config, nil
	case InboundDirection:
		if p.RemoteMailbox.IsZero() {
			return ids.Empty, mailbox.PathConfig{}, errMissingMailbox
		}
		config.Direction = mailbox.Inbound
		return envelope.PathHash(p.RemoteMailbox, p.RemoteChainID, local.ChainID), config, nil
	default:
		return ids.Empty, mailbox.PathConfig{}, fmt.Errorf("%w: %q", errUnknownDirection, p.Direction)
	}
}

// Set validates the genesis validator set.
func (g *GenesisConfig) Set() (*validators.Set, error) {
	return validators.NewSet(g.Epoch, g.keys(), g.Weights, g.Threshold)
}

func (g *GenesisConfig) keys() [][]byte {
	keys := make([][]byte, len(g.PublicKeys))
	for i, pk := range g.PublicKeys {
		keys[i] = pk
	}
	return keys
}

// Bootstrap installs the genesis set into an uninitialized registry.
func (g *GenesisConfig) Bootstrap(r *validators.Registry) error {
	return r.SetInitialValidatorSet(g.keys(), g.Weights, g.Threshold, g.Epoch)
}
