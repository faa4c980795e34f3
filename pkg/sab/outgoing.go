// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sab

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
)

// base64LineLength of the payload lines of an Outgoing bundle. It is a multiple of four, so each line can be
// decoded on its own.
const base64LineLength = 76

// Outgoing is a bundle to be sent. It consists of a primary block and a single payload block.
type Outgoing struct {
	Destination string
	// Group destinations are not flagged as singleton endpoints.
	Group bool
	// Lifetime in seconds.
	Lifetime uint64
	// Flags are added to the processing flags; FlagDestinationIsSingleton is derived from Group.
	Flags   ProcessingFlags
	Payload []byte
}

// ProcessingFlags to be announced to the daemon.
func (o Outgoing) ProcessingFlags() ProcessingFlags {
	flags := o.Flags &^ FlagDestinationIsSingleton
	if !o.Group {
		flags |= FlagDestinationIsSingleton
	}
	return flags
}

func (o Outgoing) String() string {
	return fmt.Sprintf("outgoing bundle to %s with %d bytes payload", o.Destination, len(o.Payload))
}

// WritePlain writes the Outgoing bundle in the daemon's plain format, as expected after "bundle put plain".
func (o Outgoing) WritePlain(w io.Writer) error {
	bw := bufio.NewWriter(w)

	lines := []string{
		fmt.Sprintf("Destination: %s", o.Destination),
		fmt.Sprintf("Lifetime: %d", o.Lifetime),
		fmt.Sprintf("Processing flags: %d", uint64(o.ProcessingFlags())),
		"Blocks: 1",
		"",
		fmt.Sprintf("Block: %d", PayloadBlockType),
		"Flags: " + lastBlockFlag,
		fmt.Sprintf("Length: %d", len(o.Payload)),
		"",
	}
	for _, line := range lines {
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}

	encoded := base64.StdEncoding.EncodeToString(o.Payload)
	if encoded == "" {
		// An empty data section still consists of one (empty) line.
		if _, err := bw.WriteString("\n"); err != nil {
			return err
		}
	}
	for len(encoded) > 0 {
		n := base64LineLength
		if n > len(encoded) {
			n = len(encoded)
		}

		if _, err := bw.WriteString(encoded[:n] + "\n"); err != nil {
			return err
		}
		encoded = encoded[n:]
	}

	if _, err := bw.WriteString("\n"); err != nil {
		return err
	}

	return bw.Flush()
}
