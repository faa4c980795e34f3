// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sab

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"
	"time"
)

// collect all Events of a transcript until the Parser stops.
func collect(t *testing.T, p *Parser) (evs []Event, err error) {
	t.Helper()

	for {
		ev, nextErr := p.Next()
		if nextErr != nil {
			err = nextErr
			return
		}
		evs = append(evs, ev)
	}
}

// parserScenarios are complete transcripts, each ending with a closed stream.
var parserScenarios = []struct {
	name       string
	transcript string
	events     []Event
}{
	{
		name:       "registration list",
		transcript: "200 REGISTRATION LIST\nfoo\nbar\n\n",
		events:     []Event{List{Marker: "REGISTRATION LIST", Items: []string{"foo", "bar"}}},
	},
	{
		name:       "neighbor list without separator",
		transcript: "200 NEIGHBOR LIST\ndtn://a\ndtn://b\n\n200 OK\n",
		events: []Event{
			List{Marker: "NEIGHBOR LIST", Items: []string{"dtn://a", "dtn://b"}},
			Response{Code: 200, Text: "OK"},
		},
	},
	{
		name:       "empty list",
		transcript: "200 NEIGHBOR LIST\n\n200 OK\n",
		events: []Event{
			List{Marker: "NEIGHBOR LIST", Items: []string{}},
			Response{Code: 200, Text: "OK"},
		},
	},
	{
		name:       "single block bundle",
		transcript: "200 BUNDLE GET\nsource: dtn://a\n\nblock: 1\nflags: LAST_BLOCK\n\nhello\n\n",
		events: []Event{
			BundleStart{Text: "BUNDLE GET"},
			BundleAttribute{Key: "source", Value: "dtn://a"},
			BlockStart{Type: 1},
			BlockAttribute{Key: "flags", Value: "LAST_BLOCK"},
			PayloadLine{Line: "hello"},
			BlockEnd{},
			BundleEnd{},
		},
	},
	{
		name: "two blocks and crlf",
		transcript: "200 BUNDLE GET 1 2 dtn://a/app\r\nSource: dtn://a/app\r\nBlocks: 2\r\n\r\n" +
			"Block: 10\r\nLength: 0\r\n\r\n\r\n\r\n" +
			"Block: 1\r\nFlags: LAST_BLOCK\r\nLength: 5\r\n\r\naGVsbG8=\r\n\r\n" +
			"\r\n201 NEXT\r\n",
		events: []Event{
			BundleStart{Text: "BUNDLE GET 1 2 dtn://a/app"},
			BundleAttribute{Key: "Source", Value: "dtn://a/app"},
			BundleAttribute{Key: "Blocks", Value: "2"},
			BlockStart{Type: 10},
			BlockAttribute{Key: "Length", Value: "0"},
			PayloadLine{Line: ""},
			BlockEnd{},
			BlockStart{Type: 1},
			BlockAttribute{Key: "Flags", Value: "LAST_BLOCK"},
			BlockAttribute{Key: "Length", Value: "5"},
			PayloadLine{Line: "aGVsbG8="},
			BlockEnd{},
			BundleEnd{},
			Response{Code: 201, Text: "NEXT"},
		},
	},
	{
		name: "bundle info",
		transcript: "200 BUNDLE INFO 1 2 dtn://a/app\nSource: dtn://a/app\n\n" +
			"Block: 20\nLength: 3\n\nBlock: 1\nFlags: LAST_BLOCK\nLength: 5\n\n200 OK\n",
		events: []Event{
			BundleStart{Text: "BUNDLE INFO 1 2 dtn://a/app"},
			BundleAttribute{Key: "Source", Value: "dtn://a/app"},
			BlockStart{Type: 20},
			BlockAttribute{Key: "Length", Value: "3"},
			BlockEnd{},
			BlockStart{Type: 1},
			BlockAttribute{Key: "Flags", Value: "LAST_BLOCK"},
			BlockAttribute{Key: "Length", Value: "5"},
			BlockEnd{},
			BundleEnd{},
			Response{Code: 200, Text: "OK"},
		},
	},
	{
		name:       "payload get",
		transcript: "200 PAYLOAD GET\nLength: 5\nEncoding: base64\n\naGVsbG8=\n\n",
		events: []Event{
			PayloadStart{Text: "PAYLOAD GET"},
			PayloadAttribute{Key: "Length", Value: "5"},
			PayloadAttribute{Key: "Encoding", Value: "base64"},
			PayloadLine{Line: "aGVsbG8="},
			PayloadEnd{},
		},
	},
	{
		name:       "notifications and responses",
		transcript: "\n602 NOTIFY BUNDLE 1 2 dtn://a\n404 BUNDLE NOT FOUND\n601 NOTIFY NEIGHBOR AVAILABLE dtn://b\n200 \n",
		events: []Event{
			Notification{Code: 602, Text: "NOTIFY BUNDLE 1 2 dtn://a"},
			Response{Code: 404, Text: "BUNDLE NOT FOUND"},
			Notification{Code: 601, Text: "NOTIFY NEIGHBOR AVAILABLE dtn://b"},
			Response{Code: 200, Text: ""},
		},
	},
	{
		name:       "empty payload get",
		transcript: "200 PAYLOAD GET\nLength: 0\n\n\n\n200 OK\n",
		events: []Event{
			PayloadStart{Text: "PAYLOAD GET"},
			PayloadAttribute{Key: "Length", Value: "0"},
			PayloadLine{Line: ""},
			PayloadEnd{},
			Response{Code: 200, Text: "OK"},
		},
	},
}

func TestParserScenarios(t *testing.T) {
	for _, test := range parserScenarios {
		t.Run(test.name, func(t *testing.T) {
			p := NewParser(strings.NewReader(test.transcript))

			evs, err := collect(t, p)
			if !errors.Is(err, ErrStreamClosed) {
				t.Fatalf("expected ErrStreamClosed, got %v", err)
			}
			if !reflect.DeepEqual(evs, test.events) {
				t.Fatalf("Events differ:\n%#v\n%#v", evs, test.events)
			}
		})
	}
}

func TestParserScenariosByteByByte(t *testing.T) {
	for _, test := range parserScenarios {
		t.Run(test.name, func(t *testing.T) {
			whole, wholeErr := collect(t, NewParser(strings.NewReader(test.transcript)))
			bytewise, bytewiseErr := collect(t, NewParser(iotest.OneByteReader(strings.NewReader(test.transcript))))

			if !errors.Is(wholeErr, ErrStreamClosed) || !errors.Is(bytewiseErr, ErrStreamClosed) {
				t.Fatalf("expected ErrStreamClosed, got %v and %v", wholeErr, bytewiseErr)
			}
			if !reflect.DeepEqual(whole, bytewise) {
				t.Fatalf("Events depend on the read size:\n%#v\n%#v", whole, bytewise)
			}
		})
	}
}

func TestParserListEndsAtFirstBlankLine(t *testing.T) {
	transcript := "200 REGISTRATION LIST\n\nfoo\n"

	for _, r := range []io.Reader{
		strings.NewReader(transcript),
		iotest.OneByteReader(strings.NewReader(transcript)),
	} {
		p := NewParser(r)

		ev, err := p.Next()
		if err != nil {
			t.Fatal(err)
		} else if !reflect.DeepEqual(ev, List{Marker: "REGISTRATION LIST", Items: []string{}}) {
			t.Fatalf("expected an empty list, got %#v", ev)
		}

		if _, err := p.Next(); !errors.Is(err, ErrInvalidResponse) {
			t.Fatalf("expected ErrInvalidResponse for the trailing item, got %v", err)
		}
	}
}

func TestParserListMarkerIsNoResponse(t *testing.T) {
	p := NewParser(strings.NewReader("200 REGISTRATION LIST\nfoo\nbar\n\n"))

	evs, _ := collect(t, p)
	for _, ev := range evs {
		if _, isResponse := ev.(Response); isResponse {
			t.Fatalf("list marker was emitted as a response: %v", ev)
		}
	}
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		err        error
		state      State
	}{
		{"invalid response", "OK 200\n", ErrInvalidResponse, StateResponse},
		{"code without text delimiter", "200\n", ErrInvalidResponse, StateResponse},
		{"signed code", "+200 OK\n", ErrInvalidResponse, StateResponse},
		{"negative code", "-1 OK\n", ErrInvalidResponse, StateResponse},
		{"empty code", " OK\n", ErrInvalidResponse, StateResponse},
		{"bundle attribute without delimiter", "200 BUNDLE GET\nsource dtn-a\n", ErrMalformedAttribute, StateBundle},
		{"block attribute without delimiter", "200 BUNDLE GET\n\nblock 1\n", ErrMalformedAttribute, StateBlock},
		{"invalid block type", "200 BUNDLE GET\n\nblock: one\n", ErrMalformedAttribute, StateBlock},
		{"block started twice", "200 BUNDLE GET\n\nblock: 1\nblock: 2\n", ErrMalformedAttribute, StateBlock},
		{"payload attribute without delimiter", "200 PAYLOAD GET\nLength 5\n", ErrMalformedAttribute, StatePayloadHeader},
		{"closed in data", "200 BUNDLE GET\n\nblock: 1\n\nhello\n", ErrStreamClosed, StateData},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := NewParser(strings.NewReader(test.transcript))

			_, err := collect(t, p)
			if !errors.Is(err, test.err) {
				t.Fatalf("expected %v, got %v", test.err, err)
			}
			if p.State() != test.state {
				t.Fatalf("expected state %v, got %v", test.state, p.State())
			}

			var frameErr *FrameError
			if test.err != ErrStreamClosed && !errors.As(err, &frameErr) {
				t.Fatalf("expected a FrameError, got %T", err)
			}
		})
	}
}

func TestParserAbandonment(t *testing.T) {
	transcript := "200 BUNDLE GET\nsource: dtn://a\n\nblock: 1\nflags: LAST_BLOCK\n\nhel"
	p := NewParser(strings.NewReader(transcript))

	evs, err := collect(t, p)
	if !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("expected ErrStreamClosed, got %v", err)
	}

	sawStart := false
	for _, ev := range evs {
		switch ev.(type) {
		case BundleStart:
			sawStart = true
		case BundleEnd:
			t.Fatal("BundleEnd of an abandoned transfer was emitted")
		}
	}
	if !sawStart {
		t.Fatal("BundleStart is missing")
	}

	p.Reset(strings.NewReader("200 OK\n"))
	if p.State() != StateResponse {
		t.Fatalf("expected state RESPONSE after reset, got %v", p.State())
	}

	if ev, err := p.Next(); err != nil {
		t.Fatal(err)
	} else if ev != (Response{Code: 200, Text: "OK"}) {
		t.Fatalf("unexpected event after reset: %#v", ev)
	}
}

func TestParserDeterminism(t *testing.T) {
	transcript := "200 OK\n603 NOTIFY REPORT dtn://a 1.2 dtn://b 0 DELIVERY\n" +
		"200 BUNDLE GET\nsource: dtn://a\n\nblock: 1\nflags: LAST_BLOCK\n\nhello\n\n" +
		"200 NEIGHBOR LIST\ndtn://x\n\n" +
		"200 BUNDLE GET\n\nblock: 1\n"

	p := NewParser(strings.NewReader(transcript))
	first, err1 := collect(t, p)

	for i := 0; i < 3; i++ {
		p.Reset(strings.NewReader(transcript))
		again, err2 := collect(t, p)

		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs:\n%v\n%v", i, first, again)
		}
		if !errors.Is(err1, ErrStreamClosed) || !errors.Is(err2, ErrStreamClosed) {
			t.Fatalf("expected ErrStreamClosed, got %v and %v", err1, err2)
		}
	}
}

func TestParserBlockOrdering(t *testing.T) {
	transcript := "200 BUNDLE GET\n\n" +
		"block: 2\n\nAAAA\n\n" +
		"block: 3\nlength: 0\n\n\n\n" +
		"block: 1\nflags: REPLICATE LAST_BLOCK\n\naGVsbG8=\n\n"

	p := NewParser(strings.NewReader(transcript))
	evs, _ := collect(t, p)

	open := false
	blocks := 0
	for _, ev := range evs {
		switch ev.(type) {
		case BlockStart:
			if open {
				t.Fatal("BlockStart before the previous BlockEnd")
			}
			open = true
			blocks++
		case BlockEnd:
			if !open {
				t.Fatal("BlockEnd without BlockStart")
			}
			open = false
		}
	}

	if blocks != 3 || open {
		t.Fatalf("expected three closed blocks, got %d (open: %t)", blocks, open)
	}
	if _, isEnd := evs[len(evs)-1].(BundleEnd); !isEnd {
		t.Fatalf("last event is not BundleEnd: %v", evs[len(evs)-1])
	}
}

func TestParserRun(t *testing.T) {
	p := NewParser(strings.NewReader("200 OK\n201 CREATED\n202 ACCEPTED\n"))

	var codes []int
	err := p.Run(func(ev Event) error {
		codes = append(codes, ev.(Response).Code)
		if len(codes) == 2 {
			p.Abort()
		}
		return nil
	})

	if err != nil {
		t.Fatalf("aborted Run returned %v", err)
	}
	if !reflect.DeepEqual(codes, []int{200, 201}) {
		t.Fatalf("unexpected codes %v", codes)
	}

	stop := errors.New("stop")
	p.Reset(strings.NewReader("200 OK\n"))
	if err := p.Run(func(Event) error { return stop }); err != stop {
		t.Fatalf("expected callback error, got %v", err)
	}
}

func TestParserAbortBlockedRead(t *testing.T) {
	r, w := io.Pipe()
	p := NewParser(r)

	done := make(chan error)
	go func() { done <- p.Run(func(Event) error { return nil }) }()

	if _, err := w.Write([]byte("200 OK\n")); err != nil {
		t.Fatal(err)
	}

	p.Abort()
	_ = w.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected a clean exit, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after abort")
	}
}
