// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux
// +build linux

package transport

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// Linux-specific socket options to detect a vanished daemon, e.g., after the host's network changed, faster than
// the kernel's defaults would. See tcp(7).

// keepAliveControl is the net.Dialer's Control function to set the socket options.
func keepAliveControl(_, _ string, rawConn syscall.RawConn) (err error) {
	const (
		// tcpKeepCnt sets TCP_KEEPCNT, the maximum number of keepalive probes before dropping the connection.
		tcpKeepCnt int = 3

		// tcpKeepIdle sets TCP_KEEPIDLE, the idle time in seconds before keepalive probes are sent.
		tcpKeepIdle int = 10

		// tcpKeepIntvl sets TCP_KEEPINTVL, the time in seconds between keepalive probes.
		tcpKeepIntvl int = 5

		// tcpUserTimeout sets TCP_USER_TIMEOUT, the time in milliseconds transmitted data may remain
		// unacknowledged.
		tcpUserTimeout int = 10000
	)

	opts := map[int]int{
		unix.TCP_KEEPCNT:      tcpKeepCnt,
		unix.TCP_KEEPIDLE:     tcpKeepIdle,
		unix.TCP_KEEPINTVL:    tcpKeepIntvl,
		unix.TCP_USER_TIMEOUT: tcpUserTimeout,
	}

	ctrlErr := rawConn.Control(func(fd uintptr) {
		if err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
			return
		}

		for opt, value := range opts {
			if err = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, opt, value); err != nil {
				return
			}
		}
	})
	if ctrlErr != nil {
		err = ctrlErr
	}

	return
}

// dialTCP with optional keepalive socket options.
func dialTCP(ctx context.Context, address string, opts Options) (net.Conn, error) {
	dialer := &net.Dialer{}
	if opts.KeepAlive {
		dialer.Control = keepAliveControl
	}
	return dialer.DialContext(ctx, "tcp", address)
}
