// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

const testNodeName = "dtn://node"

// fakeDaemon mimics a daemon's API handler on one end of a net.Pipe.
type fakeDaemon struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader

	writeMutex sync.Mutex

	// commands receives every command line, plain bundle bodies excluded.
	commands chan string

	// custom handles commands before the default behaviour; it returns true for handled commands.
	custom func(d *fakeDaemon, command string) bool

	closed chan struct{}
}

// newFakeDaemon returns a fakeDaemon and a Dialer returning the client's end of its pipe.
func newFakeDaemon(t *testing.T, custom func(d *fakeDaemon, command string) bool) (*fakeDaemon, Dialer) {
	client, server := net.Pipe()

	d := &fakeDaemon{
		t:        t,
		conn:     server,
		reader:   bufio.NewReader(server),
		commands: make(chan string, 64),
		custom:   custom,
		closed:   make(chan struct{}),
	}
	go d.serve()

	dialer := func(context.Context) (io.ReadWriteCloser, error) {
		return client, nil
	}
	return d, dialer
}

func (d *fakeDaemon) write(lines ...string) {
	d.writeMutex.Lock()
	defer d.writeMutex.Unlock()

	for _, line := range lines {
		if _, err := io.WriteString(d.conn, line+"\n"); err != nil {
			return
		}
	}
}

func (d *fakeDaemon) close() {
	_ = d.conn.Close()
}

// readPlain consumes a plain bundle body up to its final blank line.
func (d *fakeDaemon) readPlain() ([]string, error) {
	var lines []string
	for blanks := 0; blanks < 3; {
		line, err := d.reader.ReadString('\n')
		if err != nil {
			return lines, err
		}

		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			blanks++
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (d *fakeDaemon) serve() {
	defer close(d.closed)

	d.write("IBR-DTN 1.0.1 (build test) API 1.0.1")

	for {
		line, err := d.reader.ReadString('\n')
		if err != nil {
			return
		}

		command := strings.TrimSuffix(line, "\n")
		d.commands <- command

		if d.custom != nil && d.custom(d, command) {
			continue
		}
		d.standard(command)
	}
}

func (d *fakeDaemon) standard(command string) {
	switch {
	case command == "protocol extended":
		d.write("200 SWITCHED TO EXTENDED")

	case strings.HasPrefix(command, "set endpoint "):
		d.write("200 OK")

	case strings.HasPrefix(command, "registration add "), strings.HasPrefix(command, "registration del "):
		d.write("200 OK")

	case command == "registration list":
		d.write("200 REGISTRATION LIST", testNodeName+"/app", "dtn://group/news", "")

	case command == "neighbor list":
		d.write("200 NEIGHBOR LIST", "")

	case command == "nodename":
		d.write("200 NODENAME " + testNodeName)

	case command == "bundle clear":
		d.write("200 BUNDLE CLEARED")

	case command == "bundle put plain":
		d.write("100 PUT BUNDLE PLAIN")
		if _, err := d.readPlain(); err != nil {
			return
		}
		d.write("200 BUNDLE IN REGISTER")

	case command == "bundle send":
		d.write("200 BUNDLE SENT")

	case command == "bundle load queue":
		d.write("400 ERROR")

	case strings.HasPrefix(command, "bundle load "):
		if strings.HasSuffix(command, "dtn://a/gone") {
			d.write("404 BUNDLE NOT FOUND")
		} else {
			d.write("200 BUNDLE LOADED " + strings.TrimPrefix(command, "bundle load "))
		}

	case command == "bundle free":
		d.write("200 BUNDLE FREE SUCCESSFUL")

	case strings.HasPrefix(command, "bundle delivered "):
		d.write("200 BUNDLE DELIVERED ACCEPTED")

	default:
		d.write("400 UNKNOWN COMMAND")
	}
}

// awaitCommand expects the next command line within a second.
func (d *fakeDaemon) awaitCommand(expected string) {
	d.t.Helper()

	select {
	case command := <-d.commands:
		if command != expected {
			d.t.Fatalf("expected command %q, got %q", expected, command)
		}
	case <-time.After(time.Second):
		d.t.Fatalf("command %q was not received", expected)
	}
}

// connectedSession creates a Session, connected to a fakeDaemon.
func connectedSession(t *testing.T, config Config, custom func(d *fakeDaemon, command string) bool) (*Session, *fakeDaemon) {
	t.Helper()

	d, dialer := newFakeDaemon(t, custom)
	config.Dial = dialer

	s := NewSession(config)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Drain the registration commands.
	for drained := false; !drained; {
		select {
		case <-d.commands:
		default:
			drained = true
		}
	}

	return s, d
}
