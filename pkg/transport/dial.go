// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !linux
// +build !linux

package transport

import (
	"context"
	"net"
	"time"
)

// dialTCP with Go's portable keepalive setting, if enabled.
func dialTCP(ctx context.Context, address string, opts Options) (net.Conn, error) {
	dialer := &net.Dialer{}
	if opts.KeepAlive {
		dialer.KeepAlive = 10 * time.Second
	}
	return dialer.DialContext(ctx, "tcp", address)
}
