// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"github.com/dtn7/dtn7-sab/pkg/sab"
)

// showBundle for the "show" CLI options. Both received bundle files and outgoing bundle files are supported.
func showBundle(args []string) {
	if len(args) != 1 {
		printUsage()
	}

	data, err := readInput(args[0])
	if err != nil {
		printFatal(err, "Reading input errored")
	}

	var b sab.Bundle
	if err := b.UnmarshalCbor(bytes.NewReader(data)); err == nil {
		printBundle(b)
		return
	}

	var o sab.Outgoing
	if err := o.UnmarshalCbor(bytes.NewReader(data)); err != nil {
		printFatal(err, "Unmarshaling bundle errored")
	}

	w := bufio.NewWriter(os.Stdout)
	if err := o.WritePlain(w); err != nil {
		printFatal(err, "Printing bundle errored")
	}
	if err := w.Flush(); err != nil {
		printFatal(err, "Printing bundle errored")
	}
}

func printBundle(b sab.Bundle) {
	fmt.Printf("Bundle:      %v\n", b.ID())
	fmt.Printf("Destination: %s\n", b.Destination)
	fmt.Printf("Report-To:   %s\n", b.ReportTo)
	fmt.Printf("Custodian:   %s\n", b.Custodian)
	fmt.Printf("Lifetime:    %d\n", b.Lifetime)
	fmt.Printf("Flags:       %d\n", uint64(b.ProcessingFlags))

	for _, block := range b.Blocks {
		fmt.Printf("\nBlock %d, %d bytes, flags %v\n", block.Type, block.Length, block.Flags)
		if block.Type == sab.PayloadBlockType {
			fmt.Printf("%s\n", block.Data)
		}
	}
}
