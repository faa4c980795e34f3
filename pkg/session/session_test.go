// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/dtn7/dtn7-sab/pkg/sab"
)

// recordingHandler logs each callback.
type recordingHandler struct {
	sync.Mutex
	NopHandler

	calls   []string
	payload []byte
	reports []sab.StatusReport
}

func (rh *recordingHandler) record(call string) {
	rh.Lock()
	defer rh.Unlock()

	rh.calls = append(rh.calls, call)
}

func (rh *recordingHandler) OnBundleStart(id sab.BundleID) { rh.record("bundle start " + id.String()) }
func (rh *recordingHandler) OnBundleEnd(*sab.Bundle) { rh.record("bundle end") }
func (rh *recordingHandler) OnBlockEnd() { rh.record("block end") }

func (rh *recordingHandler) OnBlockStart(blockType int) TransferMode {
	rh.record(fmt.Sprintf("block start %d", blockType))
	if blockType == sab.PayloadBlockType {
		return TransferDecode
	}
	return TransferSkip
}

func (rh *recordingHandler) OnPayloadChunk(chunk []byte) {
	rh.Lock()
	defer rh.Unlock()

	rh.payload = append(rh.payload, chunk...)
}

func (rh *recordingHandler) OnStatusReport(report sab.StatusReport) {
	rh.Lock()
	defer rh.Unlock()

	rh.reports = append(rh.reports, report)
}

func (rh *recordingHandler) snapshot() (calls []string, payload []byte, reports []sab.StatusReport) {
	rh.Lock()
	defer rh.Unlock()

	return append([]string{}, rh.calls...), append([]byte{}, rh.payload...), append([]sab.StatusReport{}, rh.reports...)
}

var bundleTranscript = []string{
	"200 BUNDLE GET 712345 3 dtn://a/app",
	"Processing flags: 144", "Timestamp: 712345", "Sequencenumber: 3", "Source: dtn://a/app",
	"Destination: dtn://node/app", "Reportto: dtn:none", "Custodian: dtn:none", "Lifetime: 3600", "Blocks: 2",
	"",
	"Block: 20", "Flags: REPLICATE_IN_EVERY_FRAGMENT", "Length: 3", "Encoding: base64", "", "AQID", "",
	"Block: 1", "Flags: LAST_BLOCK", "Length: 11", "Encoding: base64", "", "aGVsbG8g", "d29ybGQ=", "",
}

func fetchDaemon(d *fakeDaemon, command string) bool {
	switch command {
	case "bundle load queue":
		d.write("200 BUNDLE LOADED 712345 3 dtn://a/app")
	case "bundle get":
		d.write(bundleTranscript...)
	default:
		return false
	}
	return true
}

func TestSessionConnect(t *testing.T) {
	d, dialer := newFakeDaemon(t, nil)
	defer d.close()

	s := NewSession(Config{
		Dial:     dialer,
		Endpoint: "app",
		Groups:   []string{"dtn://group/news"},
	})

	if state := s.State(); state != Disconnected {
		t.Fatalf("new session is %v", state)
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, command := range []string{"protocol extended", "set endpoint app", "registration add dtn://group/news", "nodename"} {
		d.awaitCommand(command)
	}

	if state := s.State(); state != Ready {
		t.Fatalf("connected session is %v", state)
	}
	if endpoint := s.LocalEndpoint(); endpoint != "dtn://node/app" {
		t.Fatalf("local endpoint is %q", endpoint)
	}

	if err := s.Connect(context.Background()); err == nil {
		t.Fatal("connecting a connected session succeeded")
	}

	if err := s.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if state := s.State(); state != Disconnected {
		t.Fatalf("disconnected session is %v", state)
	}
	if _, ok := <-s.Notifications(); ok {
		t.Fatal("notification channel is still open")
	}
}

func TestSessionConnectRejected(t *testing.T) {
	d, dialer := newFakeDaemon(t, func(d *fakeDaemon, command string) bool {
		if command == "set endpoint bad" {
			d.write("406 INVALID ENDPOINT")
			return true
		}
		return false
	})
	defer d.close()

	s := NewSession(Config{Dial: dialer, Endpoint: "bad"})

	err := s.Connect(context.Background())

	var regErr *RegistrationError
	var cmdErr *CommandError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected a RegistrationError, got %v", err)
	} else if !errors.As(err, &cmdErr) || cmdErr.Code != sab.StatusNotAcceptable {
		t.Fatalf("expected a CommandError with code 406, got %v", err)
	}

	if state := s.State(); state != Disconnected {
		t.Fatalf("rejected session is %v", state)
	}
}

func TestSessionConnectDialFailure(t *testing.T) {
	dialErr := errors.New("connection refused")
	s := NewSession(Config{Dial: func(context.Context) (io.ReadWriteCloser, error) {
		return nil, dialErr
	}})

	if err := s.Connect(context.Background()); !errors.Is(err, dialErr) {
		t.Fatalf("expected the dial error, got %v", err)
	}
	if state := s.State(); state != Disconnected {
		t.Fatalf("session is %v", state)
	}
}

func TestSessionSendBundle(t *testing.T) {
	s, d := connectedSession(t, Config{Endpoint: "app"}, nil)
	defer d.close()
	defer s.Disconnect()

	err := s.SendBundle(sab.Outgoing{Destination: "dtn://b/app", Lifetime: 3600, Payload: []byte("hello world")})
	if err != nil {
		t.Fatal(err)
	}

	for _, command := range []string{"bundle clear", "bundle put plain", "bundle send"} {
		d.awaitCommand(command)
	}
}

func TestSessionSendBundleRejected(t *testing.T) {
	s, d := connectedSession(t, Config{}, func(d *fakeDaemon, command string) bool {
		if command != "bundle put plain" {
			return false
		}

		d.write("100 PUT BUNDLE PLAIN")
		if _, err := d.readPlain(); err == nil {
			d.write("406 PUT FAILED")
		}
		return true
	})
	defer d.close()
	defer s.Disconnect()

	err := s.SendBundle(sab.Outgoing{Destination: "dtn://b/app", Lifetime: 60, Payload: []byte("x")})

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) || cmdErr.Code != sab.StatusNotAcceptable {
		t.Fatalf("expected a CommandError with code 406, got %v", err)
	}

	// The session stays usable.
	if _, err := s.NodeName(); err != nil {
		t.Fatal(err)
	}
}

func TestSessionSendSerialized(t *testing.T) {
	release := make(chan struct{})
	firstSend := make(chan struct{})
	var sends int

	s, d := connectedSession(t, Config{}, func(d *fakeDaemon, command string) bool {
		if command != "bundle send" {
			return false
		}

		sends++
		if sends == 1 {
			close(firstSend)
			go func() {
				<-release
				d.write("200 BUNDLE SENT")
			}()
			return true
		}
		return false
	})
	defer d.close()
	defer s.Disconnect()

	outgoing := sab.Outgoing{Destination: "dtn://b/app", Lifetime: 60, Payload: []byte("hello")}

	results := make(chan error, 2)
	go func() { results <- s.SendBundle(outgoing) }()

	select {
	case <-firstSend:
	case <-time.After(time.Second):
		t.Fatal("first bundle was not sent")
	}

	go func() { results <- s.SendBundle(outgoing) }()

	// Drain the first send's commands; no command of the second send may arrive.
	for _, command := range []string{"bundle clear", "bundle put plain", "bundle send"} {
		d.awaitCommand(command)
	}
	select {
	case command := <-d.commands:
		t.Fatalf("command %q was written while another command was outstanding", command)
	case err := <-results:
		t.Fatalf("a send finished before the response arrived: %v", err)
	case <-time.After(250 * time.Millisecond):
	}

	close(release)

	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			if err != nil {
				t.Fatal(err)
			}
		case <-time.After(time.Second):
			t.Fatalf("send %d did not finish", i+1)
		}
	}

	for _, command := range []string{"bundle clear", "bundle put plain", "bundle send"} {
		d.awaitCommand(command)
	}
}

func TestSessionFetchNext(t *testing.T) {
	handler := &recordingHandler{}
	s, d := connectedSession(t, Config{Handler: handler}, fetchDaemon)
	defer d.close()
	defer s.Disconnect()

	b, err := s.FetchNext()
	if err != nil {
		t.Fatal(err)
	}

	if payload := string(b.Payload()); payload != "hello world" {
		t.Fatalf("payload is %q", payload)
	}
	if id := b.ID(); id.String() != "712345 3 dtn://a/app" {
		t.Fatalf("bundle id is %v", id)
	}

	calls, payload, _ := handler.snapshot()
	expected := []string{
		"bundle start 712345 3 dtn://a/app",
		"block start 20", "block end",
		"block start 1", "block end",
		"bundle end",
	}
	if !reflect.DeepEqual(calls, expected) {
		t.Fatalf("expected callbacks %q, got %q", expected, calls)
	}
	if string(payload) != "hello world" {
		t.Fatalf("handler received payload %q", payload)
	}

	if err := s.MarkDelivered(b.ID()); err != nil {
		t.Fatal(err)
	}
	for _, command := range []string{"bundle load queue", "bundle get", "bundle delivered 712345 3 dtn://a/app"} {
		d.awaitCommand(command)
	}
}

func TestSessionFetchNextNoneAvailable(t *testing.T) {
	s, d := connectedSession(t, Config{}, nil)
	defer d.close()
	defer s.Disconnect()

	if b, err := s.FetchNext(); !errors.Is(err, ErrNoneAvailable) {
		t.Fatalf("expected ErrNoneAvailable, got %v", err)
	} else if b != nil {
		t.Fatalf("received bundle %v", b)
	}

	if state := s.State(); state != Ready {
		t.Fatalf("session is %v", state)
	}
}

func TestSessionBundleInfoAndPayload(t *testing.T) {
	s, d := connectedSession(t, Config{}, func(d *fakeDaemon, command string) bool {
		switch command {
		case "bundle info":
			d.write("200 BUNDLE INFO 712345 3 dtn://a/app",
				"Source: dtn://a/app", "Lifetime: 3600", "Blocks: 1", "",
				"Block: 1", "Flags: LAST_BLOCK", "Length: 11", "")
		case "payload get":
			d.write("200 PAYLOAD GET", "Length: 11", "Encoding: base64", "", "aGVsbG8gd29ybGQ=", "")
		default:
			return false
		}
		return true
	})
	defer d.close()
	defer s.Disconnect()

	if err := s.LoadBundle(sab.BundleID{Source: "dtn://a/app", Timestamp: 712345, Sequence: 3}); err != nil {
		t.Fatal(err)
	}
	d.awaitCommand("bundle load 712345 3 dtn://a/app")

	if err := s.LoadBundle(sab.BundleID{Source: "dtn://a/gone", Timestamp: 1, Sequence: 1}); err == nil {
		t.Fatal("loading a missing bundle succeeded")
	}

	b, err := s.BundleInfo()
	if err != nil {
		t.Fatal(err)
	}
	if b.Source != "dtn://a/app" || b.Lifetime != 3600 || len(b.Blocks) != 1 || b.Blocks[0].Length != 11 {
		t.Fatalf("unexpected bundle info %#v", b)
	}

	payload, err := s.FetchPayload()
	if err != nil {
		t.Fatal(err)
	} else if string(payload) != "hello world" {
		t.Fatalf("payload is %q", payload)
	}

	if err := s.FreeBundle(); err != nil {
		t.Fatal(err)
	}
}

func TestSessionEmptyPayload(t *testing.T) {
	s, d := connectedSession(t, Config{}, func(d *fakeDaemon, command string) bool {
		if command != "payload get" {
			return false
		}
		d.write("200 PAYLOAD GET", "Length: 0", "Encoding: base64", "", "", "")
		return true
	})
	defer d.close()
	defer s.Disconnect()

	payload, err := s.FetchPayload()
	if err != nil {
		t.Fatal(err)
	} else if len(payload) != 0 {
		t.Fatalf("payload is %q", payload)
	}

	if name, err := s.NodeName(); err != nil {
		t.Fatal(err)
	} else if name != testNodeName {
		t.Fatalf("node name is %q", name)
	}
}

func TestSessionLists(t *testing.T) {
	s, d := connectedSession(t, Config{}, nil)
	defer d.close()
	defer s.Disconnect()

	registrations, err := s.ListRegistrations()
	if err != nil {
		t.Fatal(err)
	} else if expected := []string{"dtn://node/app", "dtn://group/news"}; !reflect.DeepEqual(registrations, expected) {
		t.Fatalf("expected registrations %v, got %v", expected, registrations)
	}

	neighbors, err := s.ListNeighbors()
	if err != nil {
		t.Fatal(err)
	} else if len(neighbors) != 0 {
		t.Fatalf("expected no neighbors, got %v", neighbors)
	}

	if name, err := s.NodeName(); err != nil {
		t.Fatal(err)
	} else if name != testNodeName {
		t.Fatalf("node name is %q", name)
	}

	if err := s.AddRegistration("dtn://group/sports"); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveRegistration("dtn://group/sports"); err != nil {
		t.Fatal(err)
	}
}

func TestSessionNotifications(t *testing.T) {
	handler := &recordingHandler{}
	s, d := connectedSession(t, Config{Handler: handler}, nil)
	defer d.close()
	defer s.Disconnect()

	d.write(
		"603 NOTIFY REPORT dtn://a/app 712345.3 dtn://b/app 0 DELIVERY",
		"603 NOTIFY REPORT dtn://a/app 712345.3 dtn://b/app 99 DELIVERY",
		"604 NOTIFY CUSTODY dtn://a/app 712345.3 dtn://b/app ACCEPTED 712399.1234",
		"602 NOTIFY BUNDLE 712345 4 dtn://a/app")

	var notices []sab.Notice
	for len(notices) < 3 {
		select {
		case notice := <-s.Notifications():
			notices = append(notices, notice)
		case <-time.After(time.Second):
			t.Fatalf("received only %d notifications: %v", len(notices), notices)
		}
	}

	if report, ok := notices[0].(sab.StatusReport); !ok || report.Status != sab.StatusDelivery {
		t.Fatalf("first notification is %v", notices[0])
	}
	if custody, ok := notices[1].(sab.Custody); !ok || custody.Status != sab.CustodyAccepted {
		t.Fatalf("second notification is %v", notices[1])
	}
	if bn, ok := notices[2].(sab.BundleNotification); !ok || bn.ID.Sequence != 4 {
		t.Fatalf("third notification is %v", notices[2])
	}

	// The undecodable report was dropped without affecting the session.
	if state := s.State(); state != Ready {
		t.Fatalf("session is %v", state)
	}
	if _, err := s.NodeName(); err != nil {
		t.Fatal(err)
	}

	if _, _, reports := handler.snapshot(); len(reports) != 1 {
		t.Fatalf("handler received %d status reports", len(reports))
	}
}

func TestSessionDisconnectCancels(t *testing.T) {
	s, d := connectedSession(t, Config{}, func(d *fakeDaemon, command string) bool {
		// Never answer.
		return command == "neighbor list"
	})
	defer d.close()

	result := make(chan error, 1)
	go func() {
		_, err := s.ListNeighbors()
		result <- err
	}()

	d.awaitCommand("neighbor list")

	if err := s.Disconnect(); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-result:
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pending command was not cancelled")
	}

	if state := s.State(); state != Disconnected {
		t.Fatalf("session is %v", state)
	}
	if _, err := s.NodeName(); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled after disconnect, got %v", err)
	}
	if err := s.Disconnect(); err != nil {
		t.Fatalf("second disconnect errored: %v", err)
	}
}

func TestSessionFramingFailure(t *testing.T) {
	handler := &recordingHandler{}
	s, d := connectedSession(t, Config{Handler: handler}, func(d *fakeDaemon, command string) bool {
		switch command {
		case "bundle load queue":
			d.write("200 BUNDLE LOADED 712345 3 dtn://a/app")
		case "bundle get":
			d.write("200 BUNDLE GET 712345 3 dtn://a/app", "Source: dtn://a/app", "", "Block: 1", "garbage")
		default:
			return false
		}
		return true
	})
	defer d.close()
	defer s.Disconnect()

	if _, err := s.FetchNext(); !errors.Is(err, sab.ErrMalformedAttribute) {
		t.Fatalf("expected ErrMalformedAttribute, got %v", err)
	}

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("connection was not terminated")
	}

	if state := s.State(); state != Disconnected {
		t.Fatalf("session is %v", state)
	}
	if err := s.Err(); !errors.Is(err, sab.ErrMalformedAttribute) {
		t.Fatalf("expected ErrMalformedAttribute as cause, got %v", err)
	}

	calls, _, _ := handler.snapshot()
	if expected := []string{"bundle start 712345 3 dtn://a/app", "block start 1"}; !reflect.DeepEqual(calls, expected) {
		t.Fatalf("expected callbacks %q, got %q", expected, calls)
	}

	if _, err := s.NodeName(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestSessionCommandTimeout(t *testing.T) {
	s, d := connectedSession(t, Config{CommandTimeout: 100 * time.Millisecond}, func(d *fakeDaemon, command string) bool {
		return command == "neighbor list"
	})
	defer d.close()
	defer s.Disconnect()

	if _, err := s.ListNeighbors(); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("connection was not terminated")
	}

	if state := s.State(); state != Disconnected {
		t.Fatalf("session is %v", state)
	}
}

func TestSessionDaemonVanishes(t *testing.T) {
	s, d := connectedSession(t, Config{}, nil)
	defer s.Disconnect()

	d.close()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("connection was not terminated")
	}

	if err := s.Err(); !errors.Is(err, sab.ErrStreamClosed) {
		t.Fatalf("expected ErrStreamClosed, got %v", err)
	}
}
