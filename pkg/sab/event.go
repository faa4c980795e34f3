// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sab

import (
	"fmt"
	"strings"
)

// EventKind identifies the kind of an Event.
type EventKind int

const (
	ResponseEvent EventKind = iota
	ListEvent
	BundleStartEvent
	BundleAttributeEvent
	BlockStartEvent
	BlockAttributeEvent
	PayloadLineEvent
	BlockEndEvent
	BundleEndEvent
	NotificationEvent
	PayloadStartEvent
	PayloadAttributeEvent
	PayloadEndEvent
)

func (k EventKind) String() string {
	switch k {
	case ResponseEvent:
		return "response"
	case ListEvent:
		return "list"
	case BundleStartEvent:
		return "bundle start"
	case BundleAttributeEvent:
		return "bundle attribute"
	case BlockStartEvent:
		return "block start"
	case BlockAttributeEvent:
		return "block attribute"
	case PayloadLineEvent:
		return "payload line"
	case BlockEndEvent:
		return "block end"
	case BundleEndEvent:
		return "bundle end"
	case NotificationEvent:
		return "notification"
	case PayloadStartEvent:
		return "payload start"
	case PayloadAttributeEvent:
		return "payload attribute"
	case PayloadEndEvent:
		return "payload end"
	default:
		return fmt.Sprintf("unknown (%d)", int(k))
	}
}

// Event is produced by the Parser, one at a time. The concrete types are listed below.
type Event interface {
	Kind() EventKind
}

// Response is a plain "<code> <text>" reply to a command.
type Response struct {
	Code int
	Text string
}

func (Response) Kind() EventKind { return ResponseEvent }

func (r Response) String() string { return fmt.Sprintf("%d %s", r.Code, r.Text) }

// IsSuccess for 2xx codes.
func (r Response) IsSuccess() bool { return r.Code >= 200 && r.Code < 300 }

// List is the complete reply to a list producing command, e.g., "registration list". Marker is the text of the
// introducing response line.
type List struct {
	Marker string
	Items  []string
}

func (List) Kind() EventKind { return ListEvent }

func (l List) String() string { return fmt.Sprintf("%s [%s]", l.Marker, strings.Join(l.Items, ", ")) }

// BundleStart introduces a bundle transfer. Text is the text of the introducing response line, e.g.,
// "BUNDLE GET 712345 1 dtn://a/app".
type BundleStart struct {
	Text string
}

func (BundleStart) Kind() EventKind { return BundleStartEvent }

// Info reports if this transfer is the reply to "bundle info", i.e., no block carries payload.
func (bs BundleStart) Info() bool { return strings.HasPrefix(bs.Text, markerBundleInfo) }

// ID parses the transferred bundle's identifier from the introducing line.
func (bs BundleStart) ID() (BundleID, error) {
	text := strings.TrimPrefix(bs.Text, markerBundleGet)
	text = strings.TrimPrefix(text, markerBundleInfo)
	return ParseBundleID(text)
}

// BundleAttribute is a "key: value" pair of the bundle's primary header.
type BundleAttribute struct {
	Key   string
	Value string
}

func (BundleAttribute) Kind() EventKind { return BundleAttributeEvent }

// BlockStart introduces a block of the given type.
type BlockStart struct {
	Type int
}

func (BlockStart) Kind() EventKind { return BlockStartEvent }

// BlockAttribute is a "key: value" pair of the current block's header.
type BlockAttribute struct {
	Key   string
	Value string
}

func (BlockAttribute) Kind() EventKind { return BlockAttributeEvent }

// PayloadLine is one line of a block's or a payload's data, without its line delimiter.
type PayloadLine struct {
	Line string
}

func (PayloadLine) Kind() EventKind { return PayloadLineEvent }

// BlockEnd terminates the current block.
type BlockEnd struct{}

func (BlockEnd) Kind() EventKind { return BlockEndEvent }

// BundleEnd terminates the current bundle transfer.
type BundleEnd struct{}

func (BundleEnd) Kind() EventKind { return BundleEndEvent }

// Notification is an asynchronous message, identified by a code of 600 or above.
type Notification struct {
	Code int
	Text string
}

func (Notification) Kind() EventKind { return NotificationEvent }

func (n Notification) String() string { return fmt.Sprintf("%d %s", n.Code, n.Text) }

// PayloadStart introduces the reply to "payload <n> get".
type PayloadStart struct {
	Text string
}

func (PayloadStart) Kind() EventKind { return PayloadStartEvent }

// PayloadAttribute is a "key: value" pair preceding the data of a "payload <n> get" reply.
type PayloadAttribute struct {
	Key   string
	Value string
}

func (PayloadAttribute) Kind() EventKind { return PayloadAttributeEvent }

// PayloadEnd terminates the reply to "payload <n> get".
type PayloadEnd struct{}

func (PayloadEnd) Kind() EventKind { return PayloadEndEvent }
