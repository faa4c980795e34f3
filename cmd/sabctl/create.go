// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"os"
	"strconv"

	"github.com/dtn7/dtn7-sab/pkg/sab"
)

// createBundle for the "create" CLI option.
func createBundle(args []string) {
	if len(args) != 4 {
		printUsage()
	}

	var (
		destination = args[0]
		dataInput   = args[2]
		outName     = args[3]
	)

	lifetime, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		printFatal(err, "Parsing lifetime errored")
	}

	data, err := readInput(dataInput)
	if err != nil {
		printFatal(err, "Reading input errored")
	}

	o := sab.Outgoing{Destination: destination, Lifetime: lifetime, Payload: data}

	f, err := os.Create(outName)
	if err != nil {
		printFatal(err, "Creating file errored")
	}
	if err = o.MarshalCbor(f); err != nil {
		printFatal(err, "Writing bundle errored")
	}
	if err = f.Close(); err != nil {
		printFatal(err, "Closing file errored")
	}
}
