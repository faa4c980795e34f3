// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package bridge exposes a session to HTTP clients.
//
// Commands are mapped to JSON endpoints, e.g., POST /send or GET /fetch. Notifications are streamed to WebSocket
// clients of GET /notifications, each one encoded by MarshalNotice as a CBOR binary message.
package bridge
