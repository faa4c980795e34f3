// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sab

import (
	"fmt"
	"strings"
)

// Notice is a decoded notification: StatusReport, Custody, BundleNotification or GenericNotification.
type Notice interface {
	NotificationCode() int
}

// BundleNotification announces a new bundle in the registration's queue.
type BundleNotification struct {
	ID BundleID
}

func (BundleNotification) NotificationCode() int { return NotifyBundle }

func (bn BundleNotification) String() string {
	return fmt.Sprintf("new bundle %v", bn.ID)
}

// GenericNotification is any other notification, e.g., a neighbour notification, passed through as is.
type GenericNotification struct {
	Code int
	Text string
}

func (gn GenericNotification) NotificationCode() int { return gn.Code }

func (gn GenericNotification) String() string {
	return fmt.Sprintf("notification %d %s", gn.Code, gn.Text)
}

const notifyBundlePrefix = "NOTIFY BUNDLE"

// DecodeBundleNotification parses the text of a "602 NOTIFY BUNDLE" notification.
func DecodeBundleNotification(text string) (bn BundleNotification, err error) {
	if !strings.HasPrefix(text, notifyBundlePrefix) {
		err = newDecodeError(text, "missing %q prefix", notifyBundlePrefix)
		return
	}

	if bn.ID, err = ParseBundleID(strings.TrimPrefix(text, notifyBundlePrefix)); err != nil {
		err = &DecodeError{Text: text, Cause: err}
	}
	return
}

// DecodeNotification dispatches a Notification to its decoder, based on the code.
func DecodeNotification(n Notification) (notice Notice, err error) {
	switch n.Code {
	case NotifyBundle:
		notice, err = DecodeBundleNotification(n.Text)
	case NotifyReport:
		notice, err = DecodeStatusReport(n.Text)
	case NotifyCustody:
		notice, err = DecodeCustody(n.Text)
	default:
		notice = GenericNotification{Code: n.Code, Text: n.Text}
	}

	if err != nil {
		notice = nil
	}
	return
}
