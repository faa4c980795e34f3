// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"io"
	"time"

	"github.com/dtn7/dtn7-sab/pkg/transport"
)

// Dialer establishes the byte stream to the daemon.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// DialURI creates a Dialer for transport.Dial.
func DialURI(uri string, opts transport.Options) Dialer {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		return transport.Dial(ctx, uri, opts)
	}
}

// Config of a Session.
type Config struct {
	// Dial is used by Connect to establish the stream.
	Dial Dialer

	// Endpoint is the application's name, appended to the node's endpoint, e.g., "chat" for "dtn://node/chat".
	// No endpoint is set if empty.
	Endpoint string

	// Groups are additional endpoints to register, e.g., group endpoints.
	Groups []string

	// CommandTimeout limits the wait for a command's reply. A timeout terminates the connection, since later
	// replies could not be correlated anymore. Zero disables the timeout.
	CommandTimeout time.Duration

	// Handler receives bundle transfers and notifications. Nil defaults to a NopHandler.
	Handler Handler
}

func (config Config) handler() Handler {
	if config.Handler == nil {
		return NopHandler{}
	}
	return config.Handler
}
