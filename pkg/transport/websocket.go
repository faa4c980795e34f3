// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"context"
	"io"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketStream exposes a WebSocket as a byte stream. Each Write is sent as one text message; Read
// concatenates the received messages.
type WebSocketStream struct {
	conn *websocket.Conn

	readMutex sync.Mutex
	reader    io.Reader

	writeMutex sync.Mutex
}

// NewWebSocketStream wraps an established WebSocket connection, e.g., on the server side after an upgrade.
func NewWebSocketStream(conn *websocket.Conn) *WebSocketStream {
	return &WebSocketStream{conn: conn}
}

func dialWebSocket(ctx context.Context, u *url.URL, opts Options) (*WebSocketStream, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: opts.timeout(),
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = opts.tlsConfig(u.Hostname())
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return NewWebSocketStream(conn), nil
}

// Read from the current message, continuing with the next one when it is exhausted.
func (ws *WebSocketStream) Read(p []byte) (n int, err error) {
	ws.readMutex.Lock()
	defer ws.readMutex.Unlock()

	for {
		if ws.reader == nil {
			_, r, nextErr := ws.conn.NextReader()
			if nextErr != nil {
				if websocket.IsCloseError(nextErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, nextErr
			}
			ws.reader = r
		}

		n, err = ws.reader.Read(p)
		if err == io.EOF {
			ws.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return
	}
}

// Write p as a single text message.
func (ws *WebSocketStream) Write(p []byte) (int, error) {
	ws.writeMutex.Lock()
	defer ws.writeMutex.Unlock()

	if err := ws.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a close message and closes the underlying connection.
func (ws *WebSocketStream) Close() error {
	ws.writeMutex.Lock()
	_ = ws.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	ws.writeMutex.Unlock()

	return ws.conn.Close()
}
