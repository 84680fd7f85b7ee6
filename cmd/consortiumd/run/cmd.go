// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/luxfi/log"

	"github.com/luxfi/consortium/node"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "consortiumd",
		Short: "Runs a consortium mailbox node",
		RunE:  runFunc,
	}
	flags := c.Flags()
	AddFlags(flags)
	return c
}

func runFunc(c *cobra.Command, args []string) error {
	config, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", config.HTTPHost, config.HTTPPort))
	if err != nil {
		return err
	}

	logger := log.NewLogger("consortiumd")
	n, err := node.New(config, logger, listener)
	if err != nil {
		_ = listener.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatched := make(chan error, 1)
	go func() {
		dispatched <- n.Dispatch()
	}()

	select {
	case err := <-dispatched:
		_ = n.Shutdown()
		return err
	case <-ctx.Done():
	}

	logger.Info("received shutdown signal")
	if err := n.Shutdown(); err != nil {
		return err
	}
	return <-dispatched
}
