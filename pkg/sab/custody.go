// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sab

import (
	"fmt"
	"regexp"
	"strconv"
)

// CustodyReason explains why custody was refused. Its values are the RFC 5050 reason codes, while a custody
// notification names the reason by its position in custodyReasonOrdinals.
type CustodyReason int

const (
	CustodyNoInformation             CustodyReason = 0
	CustodyRedundantReception        CustodyReason = 3
	CustodyDepletedStorage           CustodyReason = 4
	CustodyDestinationUnintelligible CustodyReason = 5
	CustodyNoKnownRoute              CustodyReason = 6
	CustodyNoTimelyContact           CustodyReason = 7
	CustodyBlockUnintelligible       CustodyReason = 8
)

var custodyReasonNames = map[CustodyReason]string{
	CustodyNoInformation:             "no additional information",
	CustodyRedundantReception:        "redundant reception",
	CustodyDepletedStorage:           "depleted storage",
	CustodyDestinationUnintelligible: "destination endpoint ID unintelligible",
	CustodyNoKnownRoute:              "no known route to destination",
	CustodyNoTimelyContact:           "no timely contact with next node on route",
	CustodyBlockUnintelligible:       "block unintelligible",
}

// custodyReasonOrdinals maps the reason ordinal of a custody notification to its CustodyReason.
var custodyReasonOrdinals = []CustodyReason{
	CustodyNoInformation,
	CustodyRedundantReception,
	CustodyDepletedStorage,
	CustodyDestinationUnintelligible,
	CustodyNoKnownRoute,
	CustodyNoTimelyContact,
	CustodyBlockUnintelligible,
}

func (r CustodyReason) String() string {
	if name, ok := custodyReasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("unknown reason %d", int(r))
}

// CustodyStatus is either CustodyAccepted or CustodyRejected.
type CustodyStatus int

const (
	CustodyAccepted CustodyStatus = iota
	CustodyRejected
)

func (s CustodyStatus) String() string {
	switch s {
	case CustodyAccepted:
		return "ACCEPTED"
	case CustodyRejected:
		return "REJECTED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// Custody is the decoded text of a "604 NOTIFY CUSTODY" notification. Reason is only present for rejections which
// carry a reason code.
type Custody struct {
	Source    string
	Timestamp uint64
	Sequence  uint64
	Fragment  *Fragment
	Status    CustodyStatus
	Reason    *CustodyReason
}

func (Custody) NotificationCode() int { return NotifyCustody }

// BundleID of the bundle this custody signal refers to.
func (c Custody) BundleID() BundleID {
	return bundleIDOf(c.Source, c.Timestamp, c.Sequence, c.Fragment)
}

func (c Custody) String() string {
	if c.Reason != nil {
		return fmt.Sprintf("custody %v for %v: %v", c.Status, c.BundleID(), *c.Reason)
	}
	return fmt.Sprintf("custody %v for %v", c.Status, c.BundleID())
}

// NOTIFY CUSTODY <src> <ts>.<seq>[.<offset>:<length>] <dst> <ACCEPTED|REJECTED[(<reason>)]> [<ts>.<nanos>]
var custodyRegexp = regexp.MustCompile(
	`NOTIFY\sCUSTODY` +
		`\s` + endpointPattern +
		`\s` + bundleRefPattern +
		`\s` + endpointPattern +
		`\s(\w+)\b` +
		`(?:\((\d+)\))?` +
		`(?:\s(\d+)\.(\d+))?`)

// DecodeCustody parses the text of a "604 NOTIFY CUSTODY" notification. The destination endpoint and the trailing
// timestamp are validated but not retained; the trailing timestamp may be missing.
func DecodeCustody(text string) (c Custody, err error) {
	m := custodyRegexp.FindStringSubmatch(text)
	if m == nil {
		err = newDecodeError(text, "text does not match a custody signal")
		return
	}

	c.Source = m[1]
	if c.Timestamp, c.Sequence, c.Fragment, err = parseBundleRef(text, m[2:6]); err != nil {
		return
	}

	switch m[7] {
	case "ACCEPTED":
		c.Status = CustodyAccepted
	case "REJECTED":
		c.Status = CustodyRejected
	default:
		err = newDecodeError(text, "unknown custody status %q", m[7])
		return
	}

	if m[8] == "" {
		return
	} else if c.Status == CustodyAccepted {
		err = newDecodeError(text, "accepted custody carries a reason (%s)", m[8])
		return
	}

	ordinal, convErr := strconv.Atoi(m[8])
	if convErr != nil || ordinal < 0 || ordinal >= len(custodyReasonOrdinals) {
		err = newDecodeError(text, "%w: %s", ErrUnknownReasonCode, m[8])
		return
	}
	reason := custodyReasonOrdinals[ordinal]
	c.Reason = &reason

	return
}
