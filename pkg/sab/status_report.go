// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sab

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ReportReason is the reason code of a StatusReport.
type ReportReason int

const (
	ReasonNoInformation ReportReason = iota
	ReasonLifetimeExpired
	ReasonUnidirectionalForward
	ReasonTransmissionCanceled
	ReasonDepletedStorage
	ReasonDestinationUnintelligible
	ReasonNoKnownRoute
	ReasonNoTimelyContact
	ReasonBlockUnintelligible
)

func (r ReportReason) String() string {
	switch r {
	case ReasonNoInformation:
		return "no additional information"
	case ReasonLifetimeExpired:
		return "lifetime expired"
	case ReasonUnidirectionalForward:
		return "forwarded over unidirectional link"
	case ReasonTransmissionCanceled:
		return "transmission canceled"
	case ReasonDepletedStorage:
		return "depleted storage"
	case ReasonDestinationUnintelligible:
		return "destination endpoint ID unintelligible"
	case ReasonNoKnownRoute:
		return "no known route to destination"
	case ReasonNoTimelyContact:
		return "no timely contact with next node on route"
	case ReasonBlockUnintelligible:
		return "block unintelligible"
	default:
		return fmt.Sprintf("unknown reason %d", int(r))
	}
}

func reportReasonFromOrdinal(n int) (ReportReason, bool) {
	if n < int(ReasonNoInformation) || n > int(ReasonBlockUnintelligible) {
		return 0, false
	}
	return ReportReason(n), true
}

// ReportStatus is the kind of event a StatusReport informs about.
type ReportStatus int

const (
	StatusReceipt ReportStatus = iota
	StatusCustodyAcceptance
	StatusForwarding
	StatusDelivery
	StatusDeletion
)

var reportStatusNames = map[ReportStatus]string{
	StatusReceipt:           "RECEIPT",
	StatusCustodyAcceptance: "CUSTODY_ACCEPTANCE",
	StatusForwarding:        "FORWARDING",
	StatusDelivery:          "DELIVERY",
	StatusDeletion:          "DELETION",
}

func (s ReportStatus) String() string {
	if name, ok := reportStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(s))
}

func reportStatusFromName(name string) (ReportStatus, bool) {
	name = strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	for status, statusName := range reportStatusNames {
		if statusName == name {
			return status, true
		}
	}
	return 0, false
}

// Fragment describes the position of a fragment inside its original bundle.
type Fragment struct {
	Offset uint64
	Length uint64
}

// StatusReport is the decoded text of a "603 NOTIFY REPORT" notification.
type StatusReport struct {
	Source    string
	Timestamp uint64
	Sequence  uint64
	Fragment  *Fragment
	Reason    ReportReason
	Status    ReportStatus
}

func (StatusReport) NotificationCode() int { return NotifyReport }

// BundleID of the bundle this StatusReport refers to.
func (sr StatusReport) BundleID() BundleID {
	return bundleIDOf(sr.Source, sr.Timestamp, sr.Sequence, sr.Fragment)
}

func (sr StatusReport) String() string {
	return fmt.Sprintf("status report %v for %v: %v", sr.Status, sr.BundleID(), sr.Reason)
}

const (
	endpointPattern  = `(\b(?:dtn|ipn):[-a-zA-Z0-9+&@#/%?=~_|!:,.;]*[-a-zA-Z0-9+&@#/%=~_|])`
	bundleRefPattern = `(\d+)\.(\d+)(?:\.(\d+):(\d+))?`
)

// NOTIFY REPORT <src> <ts>.<seq>[.<offset>:<length>] <dst> <reason> <STATUS> [<ts>.<nanos>]
var statusReportRegexp = regexp.MustCompile(
	`NOTIFY\sREPORT` +
		`\s` + endpointPattern +
		`\s` + bundleRefPattern +
		`\s` + endpointPattern +
		`\s(\d+)` +
		`\s([A-Za-z_-]+)` +
		`(?:\s(\d+)\.(\d+))?`)

// DecodeStatusReport parses the text of a "603 NOTIFY REPORT" notification. The destination endpoint and the
// trailing timestamp are validated but not retained; the trailing timestamp may be missing.
func DecodeStatusReport(text string) (sr StatusReport, err error) {
	m := statusReportRegexp.FindStringSubmatch(text)
	if m == nil {
		err = newDecodeError(text, "text does not match a status report")
		return
	}

	sr.Source = m[1]
	if sr.Timestamp, sr.Sequence, sr.Fragment, err = parseBundleRef(text, m[2:6]); err != nil {
		return
	}

	reasonOrdinal, convErr := strconv.Atoi(m[7])
	if convErr != nil {
		err = newDecodeError(text, "%w: %s", ErrUnknownReasonCode, m[7])
		return
	}
	reason, ok := reportReasonFromOrdinal(reasonOrdinal)
	if !ok {
		err = newDecodeError(text, "%w: %d", ErrUnknownReasonCode, reasonOrdinal)
		return
	}
	sr.Reason = reason

	status, ok := reportStatusFromName(m[8])
	if !ok {
		err = newDecodeError(text, "unknown status %q", m[8])
		return
	}
	sr.Status = status

	return
}

// parseBundleRef converts the four submatches of bundleRefPattern.
func parseBundleRef(text string, m []string) (timestamp, sequence uint64, frag *Fragment, err error) {
	if timestamp, err = strconv.ParseUint(m[0], 10, 64); err != nil {
		err = newDecodeError(text, "invalid timestamp: %v", err)
		return
	}
	if sequence, err = strconv.ParseUint(m[1], 10, 64); err != nil {
		err = newDecodeError(text, "invalid sequence number: %v", err)
		return
	}

	if m[2] == "" {
		return
	}

	frag = new(Fragment)
	if frag.Offset, err = strconv.ParseUint(m[2], 10, 64); err != nil {
		err = newDecodeError(text, "invalid fragment offset: %v", err)
		return
	}
	if frag.Length, err = strconv.ParseUint(m[3], 10, 64); err != nil {
		err = newDecodeError(text, "invalid fragment length: %v", err)
		return
	}
	return
}

func bundleIDOf(source string, timestamp, sequence uint64, frag *Fragment) BundleID {
	bid := BundleID{Source: source, Timestamp: timestamp, Sequence: sequence}
	if frag != nil {
		offset := frag.Offset
		bid.Fragment = &offset
	}
	return bid
}
