// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/luxfi/consortium/cmd/consortiumd/run"
	"github.com/luxfi/consortium/node"
)

func main() {
	cmd := run.Command()
	cmd.Version = node.Version.String()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "command failed %v\n", err)
		os.Exit(1)
	}
}
