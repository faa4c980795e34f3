// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sab

import (
	"fmt"
	"strconv"
	"strings"
)

// BundleID identifies a bundle by its source endpoint, creation timestamp and sequence number. The fragment offset
// is only present if the bundle is a fragment.
type BundleID struct {
	Source    string
	Timestamp uint64
	Sequence  uint64
	Fragment  *uint64
}

// IsFragment reports if this BundleID references a fragment.
func (bid BundleID) IsFragment() bool {
	return bid.Fragment != nil
}

// String returns the daemon's textual representation: "<timestamp> <sequence> [<offset>] <source>".
func (bid BundleID) String() string {
	var bldr strings.Builder

	_, _ = fmt.Fprintf(&bldr, "%d %d ", bid.Timestamp, bid.Sequence)
	if bid.Fragment != nil {
		_, _ = fmt.Fprintf(&bldr, "%d ", *bid.Fragment)
	}
	bldr.WriteString(bid.Source)

	return bldr.String()
}

// ParseBundleID from its textual representation, as created by String.
func ParseBundleID(s string) (bid BundleID, err error) {
	fields := strings.Fields(s)
	if len(fields) != 3 && len(fields) != 4 {
		err = fmt.Errorf("bundle id %q has %d fields, expected three or four", s, len(fields))
		return
	}

	if bid.Timestamp, err = strconv.ParseUint(fields[0], 10, 64); err != nil {
		err = fmt.Errorf("bundle id %q has an invalid timestamp: %v", s, err)
		return
	}
	if bid.Sequence, err = strconv.ParseUint(fields[1], 10, 64); err != nil {
		err = fmt.Errorf("bundle id %q has an invalid sequence number: %v", s, err)
		return
	}

	if len(fields) == 4 {
		offset, offErr := strconv.ParseUint(fields[2], 10, 64)
		if offErr != nil {
			err = fmt.Errorf("bundle id %q has an invalid fragment offset: %v", s, offErr)
			return
		}
		bid.Fragment = &offset
	}

	bid.Source = fields[len(fields)-1]
	return
}
