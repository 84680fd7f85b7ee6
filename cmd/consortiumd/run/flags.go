// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/luxfi/consortium/config"
)

const (
	ConfigFileKey = "config-file"
	HTTPHostKey   = "http-host"
	HTTPPortKey   = "http-port"
	DBTypeKey     = "db-type"
	DBDirKey      = "db-dir"
	RedisAddrKey  = "redis-addr"
)

func AddFlags(flags *pflag.FlagSet) {
	flags.String(ConfigFileKey, "", "JSON config file; flags override its values")
	flags.String(HTTPHostKey, config.DefaultConfig.HTTPHost, "Address of the HTTP server")
	flags.Uint16(HTTPPortKey, config.DefaultConfig.HTTPPort, "Port of the HTTP server")
	flags.String(DBTypeKey, config.DefaultConfig.DBType, fmt.Sprintf("Database type, %q or %q", config.MemDB, config.BadgerDB))
	flags.String(DBDirKey, "", "Database directory")
	flags.String(RedisAddrKey, "", "Redis address of the shared delivered table")
}

// ParseFlags loads the config file, if any, and applies the flags that were
// set explicitly.
func ParseFlags(flags *pflag.FlagSet, args []string) (*config.Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	configFile, err := flags.GetString(ConfigFileKey)
	if err != nil {
		return nil, err
	}
	var configBytes []byte
	if configFile != "" {
		configBytes, err = os.ReadFile(configFile)
		if err != nil {
			return nil, err
		}
	}
	c, err := config.GetConfig(configBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configFile, err)
	}

	if flags.Changed(HTTPHostKey) {
		if c.HTTPHost, err = flags.GetString(HTTPHostKey); err != nil {
			return nil, err
		}
	}
	if flags.Changed(HTTPPortKey) {
		if c.HTTPPort, err = flags.GetUint16(HTTPPortKey); err != nil {
			return nil, err
		}
	}
	if flags.Changed(DBTypeKey) {
		if c.DBType, err = flags.GetString(DBTypeKey); err != nil {
			return nil, err
		}
	}
	if flags.Changed(DBDirKey) {
		if c.DBDir, err = flags.GetString(DBDirKey); err != nil {
			return nil, err
		}
	}
	if flags.Changed(RedisAddrKey) {
		if c.Redis.Addr, err = flags.GetString(RedisAddrKey); err != nil {
			return nil, err
		}
	}

	return c, nil
}
