// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package transport establishes the byte stream to a DTN daemon's API.
//
// The daemon is addressed by an URI, whose scheme selects the transport:
//
//	tcp://localhost:4550       plain TCP, the daemon's default API port
//	unix:///run/dtnd.sock      Unix domain socket
//	ws://localhost:8080/sab    the stream tunnelled through a WebSocket; wss for TLS
//	quic://localhost:4551      a single bidirectional QUIC stream
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrUnsupportedScheme is returned by Dial for an unknown URI scheme.
var ErrUnsupportedScheme = errors.New("transport: unsupported scheme")

// DefaultPort of the daemon's API, used for tcp and quic URIs without a port.
const DefaultPort = "4550"

// ALPN is the application protocol announced for QUIC connections.
const ALPN = "sab"

// Options for Dial. The zero value is usable.
type Options struct {
	// Timeout for establishing the connection. Zero defaults to five seconds.
	Timeout time.Duration

	// KeepAlive enables aggressive TCP keepalive settings to detect connection losses early.
	KeepAlive bool

	// InsecureSkipVerify disables certificate verification for wss and quic.
	InsecureSkipVerify bool
}

func (opts Options) timeout() time.Duration {
	if opts.Timeout <= 0 {
		return 5 * time.Second
	}
	return opts.Timeout
}

func (opts Options) tlsConfig(serverName string, nextProtos ...string) *tls.Config {
	return &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: opts.InsecureSkipVerify,
		NextProtos:         nextProtos,
		MinVersion:         tls.VersionTLS12,
	}
}

// hostPort returns the URI's host, completed with DefaultPort if necessary.
func hostPort(u *url.URL) string {
	if u.Port() == "" {
		return net.JoinHostPort(u.Hostname(), DefaultPort)
	}
	return u.Host
}

// Dial the daemon at the given URI. The returned stream must be closed by the caller.
func Dial(ctx context.Context, uri string, opts Options) (io.ReadWriteCloser, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid URI %q: %w", uri, err)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	var conn io.ReadWriteCloser
	switch u.Scheme {
	case "tcp":
		conn, err = dialTCP(ctx, hostPort(u), opts)
	case "unix":
		conn, err = dialUnix(ctx, u.Path)
	case "ws", "wss":
		conn, err = dialWebSocket(ctx, u, opts)
	case "quic":
		conn, err = dialQUIC(ctx, hostPort(u), opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"uri":       uri,
		"keepalive": opts.KeepAlive,
	}).Debug("Connected to daemon")

	return conn, nil
}

// dialUnix connects to a Unix domain socket.
func dialUnix(ctx context.Context, path string) (net.Conn, error) {
	var dialer net.Dialer
	return dialer.DialContext(ctx, "unix", path)
}
