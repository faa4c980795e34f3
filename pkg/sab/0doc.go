// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sab implements the client side of the Simple API for Bundles (SAB), the line-oriented text protocol
// spoken by a DTN daemon's extended API.
//
// The Parser consumes the daemon's byte stream and produces Events: responses, lists, bundle and block transfers,
// and asynchronous notifications. Notification texts are turned into typed records by DecodeNotification,
// DecodeStatusReport and DecodeCustody.
//
//	p := sab.NewParser(conn)
//	err := p.Run(func(ev sab.Event) error {
//	  log.WithField("event", ev).Debug("SAB event")
//	  return nil
//	})
//
// Received bundles can be assembled from the event stream by a BundleBuilder, outgoing bundles are serialized in
// the daemon's plain format by Outgoing.
package sab
