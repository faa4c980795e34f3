// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bridge

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-sab/pkg/sab"
)

const (
	feedBuffer       = 32
	feedCloseTimeout = time.Second
)

// feed of notifications to one WebSocket client.
type feed struct {
	conn  *websocket.Conn
	queue chan sab.Notice

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newFeed(conn *websocket.Conn) *feed {
	return &feed{
		conn:  conn,
		queue: make(chan sab.Notice, feedBuffer),
		done:  make(chan struct{}),
	}
}

// writer sends queued notifications until the feed is closed.
func (f *feed) writer() {
	for {
		select {
		case <-f.done:
			return

		case notice := <-f.queue:
			if err := f.write(notice); err != nil {
				log.WithError(err).WithField("remote", f.conn.RemoteAddr()).Warn("Writing notification to WebSocket errored")
				_ = f.close()
				return
			}
		}
	}
}

func (f *feed) write(notice sab.Notice) error {
	wc, err := f.conn.NextWriter(websocket.BinaryMessage)
	if err != nil {
		return err
	}

	if err := MarshalNotice(notice, wc); err != nil {
		_ = wc.Close()
		return err
	}
	return wc.Close()
}

// reader discards incoming messages until the connection fails, e.g., by the client's close message.
func (f *feed) reader() {
	for {
		if _, _, err := f.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *feed) close() error {
	f.closeOnce.Do(func() {
		close(f.done)

		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
		_ = f.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(feedCloseTimeout))

		f.closeErr = f.conn.Close()
	})
	return f.closeErr
}
