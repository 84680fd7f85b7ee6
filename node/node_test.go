// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/log"

	"github.com/luxfi/consortium/config"
	"github.com/luxfi/consortium/envelope"
	"github.com/luxfi/consortium/validators/validatorstest"
)

func newTestConfig(t *testing.T, epoch uint64) *config.Config {
	keys := validatorstest.NewKeys(t, 3)
	genesis := &config.GenesisConfig{
		Epoch:     epoch,
		Weights:   validatorstest.Weights(3, 1),
		Threshold: 2,
	}
	for _, pk := range validatorstest.PublicKeys(keys) {
		genesis.PublicKeys = append(genesis.PublicKeys, hexutil.Bytes(pk))
	}

	c := config.DefaultConfig
	c.Mailbox = config.MailboxConfig{
		Address: envelope.WordFromUint64(0x10),
		ChainID: envelope.WordFromUint64(1),
		Paths: []config.PathConfig{
			{
				Direction:     config.OutboundDirection,
				RemoteChainID: envelope.WordFromUint64(2),
			},
		},
	}
	c.Genesis = genesis
	return &c
}

func newTestNode(t *testing.T, c *config.Config) (*Node, string) {
	require := require.New(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)

	n, err := New(c, log.NewNoOpLogger(), listener)
	require.NoError(err)
	return n, "http://" + listener.Addr().String()
}

func TestNodeServesAPI(t *testing.T) {
	require := require.New(t)

	n, uri := newTestNode(t, newTestConfig(t, 1))

	dispatched := make(chan error, 1)
	go func() {
		dispatched <- n.Dispatch()
	}()

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"bridge.getValidatorSet","params":{}}`)
	resp, err := http.Post(uri+"/ext/bridge", "application/json", bytes.NewReader(body))
	require.NoError(err)
	reply, err := io.ReadAll(resp.Body)
	require.NoError(err)
	require.NoError(resp.Body.Close())
	require.Equal(http.StatusOK, resp.StatusCode)
	require.Contains(string(reply), `"epoch":"1"`)

	resp, err = http.Get(uri + "/ext/health")
	require.NoError(err)
	require.NoError(resp.Body.Close())
	require.Equal(http.StatusOK, resp.StatusCode)

	resp, err = http.Get(uri + "/ext/metrics")
	require.NoError(err)
	reply, err = io.ReadAll(resp.Body)
	require.NoError(err)
	require.NoError(resp.Body.Close())
	require.Contains(string(reply), "validator_set_epoch")

	require.NoError(n.Shutdown())
	require.NoError(<-dispatched)
}

func TestNodeRestoresRegistry(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	c := newTestConfig(t, 5)
	c.DBType = config.BadgerDB
	c.DBDir = dir

	n, _ := newTestNode(t, c)
	set, err := n.Registry.Current()
	require.NoError(err)
	require.Equal(uint64(5), set.Epoch)
	require.NoError(n.Shutdown())

	// A different genesis must not replace the persisted set.
	restarted := newTestConfig(t, 9)
	restarted.DBType = config.BadgerDB
	restarted.DBDir = dir

	n, _ = newTestNode(t, restarted)
	set, err = n.Registry.Current()
	require.NoError(err)
	require.Equal(uint64(5), set.Epoch)
	require.NoError(n.Shutdown())
}

func TestNodeInvalidConfig(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	c := newTestConfig(t, 1)
	c.Mailbox.ChainID = envelope.ZeroWord
	_, err = New(c, log.NewNoOpLogger(), listener)
	require.Error(t, err) //nolint:forbidigo // config errors are not exported
}
