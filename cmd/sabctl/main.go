// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-sab/pkg/bridge"
	"github.com/dtn7/dtn7-sab/pkg/sab"
	"github.com/dtn7/dtn7-sab/pkg/session"
)

const connectTimeout = 30 * time.Second

// printUsage of sabctl and exit with an error code afterwards.
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage of %s config.toml command [args]:\n\n", os.Args[0])

	_, _ = fmt.Fprintf(os.Stderr, "%s config.toml send destination lifetime -|filename\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Sends a bundle with the stdin (-) or the given file as payload.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s config.toml fetch [-o directory]\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Fetches all queued bundles. Payloads are printed or, with -o, the bundles\n")
	_, _ = fmt.Fprintf(os.Stderr, "  are stored as CBOR files in the directory.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s config.toml registrations|neighbors|nodename\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Prints the registered endpoints, the daemon's neighbors or its node name.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s config.toml watch\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Prints notifications until interrupted.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s config.toml create destination lifetime -|filename bundle-name\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Creates an outgoing bundle file, to be sent by the exchange command.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s config.toml show filename\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Prints a human-readable version of a bundle file.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s config.toml exchange\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Sends bundle files dropped in the exchange.directory and stores received\n")
	_, _ = fmt.Fprintf(os.Stderr, "  bundles there.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s config.toml serve\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Serves the HTTP bridge on bridge.listen.\n\n")

	os.Exit(1)
}

// printFatal logs an error and exits.
func printFatal(err error, msg string) {
	log.WithError(err).Error(msg)
	os.Exit(1)
}

// interruptChan is notified on SIGINT.
func interruptChan() chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	return c
}

// readInput from stdin (-) or a file.
func readInput(input string) ([]byte, error) {
	if input == "-" {
		return ioutil.ReadAll(os.Stdin)
	}
	return ioutil.ReadFile(input)
}

// client is a connection to the daemon, either a single session.Session or a reconnecting session.Manager.
type client interface {
	bridge.Client
	io.Closer

	Notifications() <-chan sab.Notice
	Done() <-chan struct{}
}

type sessionClient struct {
	*session.Session
}

func (sc sessionClient) Close() error {
	return sc.Disconnect()
}

// connectSession establishes a single Session.
func connectSession(conf tomlConfig, handler session.Handler) (*session.Session, error) {
	config, err := conf.sessionConfig(handler)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	s := session.NewSession(config)
	if err := s.Connect(ctx); err != nil {
		_ = s.Disconnect()
		return nil, err
	}

	log.WithFields(log.Fields{
		"daemon":   conf.Daemon.Address,
		"endpoint": s.LocalEndpoint(),
	}).Debug("Connected to daemon")
	return s, nil
}

// connectClient for long-running commands, reconnecting if enabled.
func connectClient(conf tomlConfig, handler session.Handler) (client, error) {
	if !conf.Reconnect.Enabled {
		s, err := connectSession(conf, handler)
		if err != nil {
			return nil, err
		}
		return sessionClient{s}, nil
	}

	config, err := conf.sessionConfig(handler)
	if err != nil {
		return nil, err
	}
	policy, err := conf.reconnectPolicy()
	if err != nil {
		return nil, err
	}
	return session.NewManager(config, policy), nil
}

func main() {
	if len(os.Args) < 3 {
		printUsage()
	}

	conf, err := parseConfig(os.Args[1])
	if err != nil {
		printFatal(err, "Failed to parse config")
	}

	args := os.Args[3:]

	switch os.Args[2] {
	case "send":
		sendBundle(conf, args)

	case "fetch":
		fetchBundles(conf, args)

	case "registrations", "neighbors", "nodename":
		query(conf, os.Args[2], args)

	case "watch":
		watch(conf, args)

	case "create":
		createBundle(args)

	case "show":
		showBundle(args)

	case "exchange":
		startExchange(conf, args)

	case "serve":
		serve(conf, args)

	default:
		printUsage()
	}
}
