// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-sab/pkg/sab"
	"github.com/dtn7/dtn7-sab/pkg/session"
)

// sendBundle for the "send" CLI option.
func sendBundle(conf tomlConfig, args []string) {
	if len(args) != 3 {
		printUsage()
	}

	lifetime, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		printFatal(err, "Parsing lifetime errored")
	}

	payload, err := readInput(args[2])
	if err != nil {
		printFatal(err, "Reading input errored")
	}

	s, err := connectSession(conf, nil)
	if err != nil {
		printFatal(err, "Connecting to daemon errored")
	}
	defer func() { _ = s.Disconnect() }()

	o := sab.Outgoing{Destination: args[0], Lifetime: lifetime, Payload: payload}
	if err := s.SendBundle(o); err != nil {
		printFatal(err, "Sending bundle errored")
	}
}

// bundleFilename within a directory, derived from the bundle's ID.
func bundleFilename(directory string, id sab.BundleID) string {
	return filepath.Join(directory, hex.EncodeToString([]byte(id.String())))
}

// storeBundle as a CBOR file within the directory.
func storeBundle(directory string, b *sab.Bundle) (filename string, err error) {
	filename = bundleFilename(directory, b.ID())

	f, err := os.Create(filename)
	if err != nil {
		return
	}
	if err = b.MarshalCbor(f); err != nil {
		_ = f.Close()
		return
	}
	err = f.Close()
	return
}

// fetchBundles for the "fetch" CLI option.
func fetchBundles(conf tomlConfig, args []string) {
	flags := flag.NewFlagSet("fetch", flag.ExitOnError)
	directory := flags.String("o", "", "directory to store fetched bundles in")
	_ = flags.Parse(args)

	if flags.NArg() != 0 {
		printUsage()
	}

	s, err := connectSession(conf, nil)
	if err != nil {
		printFatal(err, "Connecting to daemon errored")
	}
	defer func() { _ = s.Disconnect() }()

	for {
		b, err := s.FetchNext()
		if errors.Is(err, session.ErrNoneAvailable) {
			return
		} else if err != nil {
			printFatal(err, "Fetching bundle errored")
		}

		if *directory == "" {
			fmt.Printf("%v from %s\n%s\n", b.ID(), b.Source, b.Payload())
		} else if filename, err := storeBundle(*directory, b); err != nil {
			printFatal(err, "Storing bundle errored")
		} else {
			log.WithFields(log.Fields{
				"bundle": b.ID(),
				"file":   filename,
			}).Info("Stored fetched bundle")
		}

		if err := s.MarkDelivered(b.ID()); err != nil {
			printFatal(err, "Marking bundle as delivered errored")
		}
	}
}

// query for the "registrations", "neighbors" and "nodename" CLI options.
func query(conf tomlConfig, command string, args []string) {
	if len(args) != 0 {
		printUsage()
	}

	s, err := connectSession(conf, nil)
	if err != nil {
		printFatal(err, "Connecting to daemon errored")
	}
	defer func() { _ = s.Disconnect() }()

	var items []string
	switch command {
	case "registrations":
		items, err = s.ListRegistrations()
	case "neighbors":
		items, err = s.ListNeighbors()
	case "nodename":
		var name string
		name, err = s.NodeName()
		items = []string{name}
	}
	if err != nil {
		printFatal(err, "Querying daemon errored")
	}

	for _, item := range items {
		fmt.Println(item)
	}
}

// watch for the "watch" CLI option.
func watch(conf tomlConfig, args []string) {
	if len(args) != 0 {
		printUsage()
	}

	c, err := connectClient(conf, nil)
	if err != nil {
		printFatal(err, "Connecting to daemon errored")
	}
	defer func() { _ = c.Close() }()

	interrupt := interruptChan()
	for {
		select {
		case <-interrupt:
			log.Info("Received interrupt signal")
			return

		case <-c.Done():
			log.Warn("Connection to daemon ended")
			return

		case notice, ok := <-c.Notifications():
			if !ok {
				return
			}
			fmt.Printf("%d %v\n", notice.NotificationCode(), notice)
		}
	}
}
