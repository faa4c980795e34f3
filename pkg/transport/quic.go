// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"context"
	"net"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/quic-go/quic-go"
)

// quicShutdown is the application error code sent when the client closes its connection.
const quicShutdown quic.ApplicationErrorCode = 0

// quicStream is a QUIC connection carrying exactly one bidirectional stream.
type quicStream struct {
	quic.Stream
	conn quic.Connection
}

func quicConfig() *quic.Config {
	return &quic.Config{
		KeepAlivePeriod: 5 * time.Second,
		MaxIdleTimeout:  30 * time.Second,
		EnableDatagrams: false,
	}
}

func dialQUIC(ctx context.Context, address string, opts Options) (*quicStream, error) {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}

	conn, err := quic.DialAddr(ctx, address, opts.tlsConfig(host, ALPN), quicConfig())
	if err != nil {
		return nil, err
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(quicShutdown, "opening stream failed")
		return nil, err
	}

	return &quicStream{Stream: stream, conn: conn}, nil
}

// Close both the stream and the connection.
func (qs *quicStream) Close() (err error) {
	if streamErr := qs.Stream.Close(); streamErr != nil {
		err = multierror.Append(err, streamErr)
	}
	if connErr := qs.conn.CloseWithError(quicShutdown, "client shutdown"); connErr != nil {
		err = multierror.Append(err, connErr)
	}
	return
}
