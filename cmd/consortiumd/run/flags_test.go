// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/consortium/config"
)

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(flags)
	return flags
}

func TestParseFlagsDefaults(t *testing.T) {
	require := require.New(t)

	c, err := ParseFlags(newFlags(), nil)
	require.NoError(err)
	require.Equal(&config.DefaultConfig, c)
}

func TestParseFlagsOverridesConfigFile(t *testing.T) {
	require := require.New(t)

	configFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(os.WriteFile(configFile, []byte(`{"http-port":1000,"db-dir":"/from/file","max-batch-workers":3}`), 0o600))

	c, err := ParseFlags(newFlags(), []string{
		"--" + ConfigFileKey, configFile,
		"--" + HTTPPortKey, "2000",
		"--" + DBTypeKey, config.BadgerDB,
		"--" + RedisAddrKey, "localhost:6379",
	})
	require.NoError(err)
	require.Equal(uint16(2000), c.HTTPPort)
	require.Equal("/from/file", c.DBDir)
	require.Equal(config.BadgerDB, c.DBType)
	require.Equal(3, c.MaxBatchWorkers)
	require.Equal("localhost:6379", c.Redis.Addr)
	require.Equal(config.DefaultConfig.HTTPHost, c.HTTPHost)
}

func TestParseFlagsMissingConfigFile(t *testing.T) {
	_, err := ParseFlags(newFlags(), []string{
		"--" + ConfigFileKey, filepath.Join(t.TempDir(), "missing.json"),
	})
	require.ErrorIs(t, err, os.ErrNotExist)
}
