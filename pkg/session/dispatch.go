// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"encoding/base64"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-sab/pkg/sab"
)

// transfer is the state of the reader goroutine, never touched by command goroutines.
type transfer struct {
	handler Handler
	builder *sab.BundleBuilder

	// info is set for "bundle info" transfers, which are not passed to the handler.
	info bool
	mode TransferMode

	payload *payloadTransfer
}

// payloadTransfer collects the lines of a "payload get" reply.
type payloadTransfer struct {
	raw   bool
	lines []string
}

func (pt *payloadTransfer) bytes() ([]byte, error) {
	if pt.raw {
		return []byte(strings.Join(pt.lines, "\n")), nil
	}
	return base64.StdEncoding.DecodeString(strings.Join(pt.lines, ""))
}

// dispatch an event from the parser.
func (s *Session) dispatch(t *transfer, ev sab.Event) {
	switch ev := ev.(type) {
	case sab.Notification:
		s.notify(t, ev)

	case sab.Response:
		s.resolve(reply{value: ev})

	case sab.List:
		s.resolve(reply{value: ev})

	case sab.PayloadStart:
		t.payload = &payloadTransfer{}

	case sab.PayloadAttribute:
		if t.payload != nil && strings.EqualFold(ev.Key, "encoding") {
			t.payload.raw = strings.EqualFold(ev.Value, "raw")
		}

	case sab.PayloadEnd:
		if t.payload == nil {
			return
		}
		data, err := t.payload.bytes()
		t.payload = nil
		s.resolve(reply{value: data, err: err})

	case sab.PayloadLine:
		if t.payload != nil {
			t.payload.lines = append(t.payload.lines, ev.Line)
		} else {
			s.bundleEvent(t, ev)
		}

	default:
		s.bundleEvent(t, ev)
	}
}

// bundleEvent feeds the BundleBuilder and invokes the Handler's callbacks.
func (s *Session) bundleEvent(t *transfer, ev sab.Event) {
	b, err := t.builder.Apply(ev)

	if end, isEnd := ev.(sab.BundleEnd); isEnd {
		if !t.info && b != nil {
			t.handler.OnBundleEnd(b)
		}
		if err != nil {
			log.WithError(err).WithField("event", end.Kind()).Warn("Session received a malformed bundle")
		}
		s.resolve(reply{value: b, err: err})
		return
	} else if err != nil {
		log.WithError(err).WithField("event", ev.Kind()).Warn("Session dropped an event outside of a bundle transfer")
		return
	}

	switch ev := ev.(type) {
	case sab.BundleStart:
		t.info = ev.Info()
		if t.info {
			return
		}

		id, idErr := ev.ID()
		if idErr != nil {
			log.WithError(idErr).WithField("text", ev.Text).Debug("Session cannot identify the transferred bundle")
		}
		t.handler.OnBundleStart(id)

	case sab.BlockStart:
		t.mode = TransferSkip
		if !t.info {
			t.mode = t.handler.OnBlockStart(ev.Type)
		}

	case sab.PayloadLine:
		switch t.mode {
		case TransferDecode:
			if chunk := t.builder.Chunk(); len(chunk) > 0 {
				t.handler.OnPayloadChunk(chunk)
			}
		case TransferRaw:
			if ev.Line != "" {
				t.handler.OnPayloadChunk([]byte(ev.Line))
			}
		}

	case sab.BlockEnd:
		if t.info {
			return
		}
		if chunk := t.builder.Chunk(); t.mode == TransferDecode && len(chunk) > 0 {
			t.handler.OnPayloadChunk(chunk)
		}
		t.handler.OnBlockEnd()
	}
}

// notify decodes a notification, passes it to the Handler and publishes it. Undecodable notifications are dropped.
func (s *Session) notify(t *transfer, n sab.Notification) {
	notice, err := sab.DecodeNotification(n)
	if err != nil {
		log.WithError(err).WithField("notification", n.String()).Warn("Session dropped an undecodable notification")
		return
	}

	switch notice := notice.(type) {
	case sab.StatusReport:
		t.handler.OnStatusReport(notice)
	case sab.Custody:
		t.handler.OnCustody(notice)
	}

	select {
	case s.notifications <- notice:
	default:
		log.WithField("notification", notice).Warn("Session's notification channel is full, dropping notification")
	}
}
