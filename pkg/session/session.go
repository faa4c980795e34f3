// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-sab/pkg/sab"
)

// notificationBuffer is the capacity of a Session's notification channel.
const notificationBuffer = 64

// connection is one established stream together with its parser. Its reader goroutine closes done after the
// connection was terminated; err reports the cause.
type connection struct {
	stream io.ReadWriteCloser
	reader *bufio.Reader
	parser *sab.Parser

	shutdownOnce sync.Once
	closeErr     error

	causeMutex sync.Mutex
	cause      error

	done chan struct{}
}

func newConnection(stream io.ReadWriteCloser) *connection {
	reader := bufio.NewReader(stream)

	return &connection{
		stream: stream,
		reader: reader,
		// The parser continues on the same buffered reader, after the banner was consumed.
		parser: sab.NewParser(reader),
		done:   make(chan struct{}),
	}
}

// shutdown aborts the parser and closes the stream. Only the first call's cause is kept.
func (c *connection) shutdown(cause error) error {
	c.shutdownOnce.Do(func() {
		c.causeMutex.Lock()
		c.cause = cause
		c.causeMutex.Unlock()

		c.parser.Abort()
		c.closeErr = c.stream.Close()
	})
	return c.closeErr
}

func (c *connection) err() error {
	c.causeMutex.Lock()
	defer c.causeMutex.Unlock()

	return c.cause
}

// reply is the outcome of a command, delivered by the reader goroutine. Its value is a sab.Response, sab.List,
// *sab.Bundle or []byte for a payload.
type reply struct {
	value interface{}
	err   error
}

type pendingCommand struct {
	command string
	replies chan reply
}

// Session to a DTN daemon. All methods are safe for concurrent use.
type Session struct {
	config Config

	// stateMutex protects the fields below.
	stateMutex    sync.RWMutex
	state         State
	conn          *connection
	closed        bool
	localEndpoint string

	// cmdMutex is the single in-flight command slot.
	cmdMutex sync.Mutex

	pendingMutex sync.Mutex
	pending      *pendingCommand

	notifications chan sab.Notice
}

// NewSession creates a disconnected Session.
func NewSession(config Config) *Session {
	return &Session{
		config:        config,
		state:         Disconnected,
		notifications: make(chan sab.Notice, notificationBuffer),
	}
}

// State returns the Session's current State.
func (s *Session) State() State {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	return s.state
}

// LocalEndpoint returns the endpoint registered by Connect, e.g., "dtn://node/chat".
func (s *Session) LocalEndpoint() string {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	return s.localEndpoint
}

// Notifications returns the channel of decoded notifications: sab.StatusReport, sab.Custody,
// sab.BundleNotification and sab.GenericNotification. Notifications are dropped while the channel is full. The
// channel is closed by Disconnect.
func (s *Session) Notifications() <-chan sab.Notice {
	return s.notifications
}

// Done is closed after the current connection was terminated.
func (s *Session) Done() <-chan struct{} {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	if s.conn == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return s.conn.done
}

// Err returns the cause of the last connection's termination, or nil while it is alive.
func (s *Session) Err() error {
	s.stateMutex.RLock()
	c := s.conn
	s.stateMutex.RUnlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.done:
		return c.err()
	default:
		return nil
	}
}

// setStateLocked changes the state. The caller must hold stateMutex.
func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}

	log.WithFields(log.Fields{
		"endpoint": s.config.Endpoint,
		"from":     s.state,
		"to":       state,
	}).Info("Session changed state")

	s.state = state
}

func (s *Session) setState(state State) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	s.setStateLocked(state)
}

// Connect dials the daemon, switches to the extended protocol and registers the configured endpoint and groups.
// On failure, a RegistrationError is returned and the Session remains Disconnected.
func (s *Session) Connect(ctx context.Context) error {
	regErr := func(cause error) error {
		return &RegistrationError{Endpoint: s.config.Endpoint, Cause: cause}
	}

	s.stateMutex.Lock()
	if s.closed {
		s.stateMutex.Unlock()
		return regErr(ErrCancelled)
	} else if s.state != Disconnected {
		state := s.state
		s.stateMutex.Unlock()
		return regErr(fmt.Errorf("session is %v", state))
	}
	s.setStateLocked(Connecting)
	s.stateMutex.Unlock()

	if s.config.Dial == nil {
		s.setState(Disconnected)
		return regErr(errors.New("no dialer configured"))
	}

	stream, err := s.config.Dial(ctx)
	if err != nil {
		s.setState(Disconnected)
		return regErr(err)
	}

	c := newConnection(stream)

	s.stateMutex.Lock()
	if s.closed {
		s.setStateLocked(Disconnected)
		s.stateMutex.Unlock()

		_ = c.shutdown(ErrCancelled)
		return regErr(ErrCancelled)
	}
	s.conn = c
	s.setStateLocked(Registering)
	go s.handler(c)
	s.stateMutex.Unlock()

	s.cmdMutex.Lock()
	localEndpoint, err := s.register(ctx, c)
	s.cmdMutex.Unlock()

	if err != nil {
		_ = c.shutdown(err)
		<-c.done
		return regErr(err)
	}

	s.stateMutex.Lock()
	ready := s.conn == c && s.state == Registering
	if ready {
		s.localEndpoint = localEndpoint
		s.setStateLocked(Ready)
	}
	s.stateMutex.Unlock()

	if !ready {
		<-c.done
		return regErr(c.err())
	}
	return nil
}

// register the configured endpoint and groups. The caller must hold cmdMutex.
func (s *Session) register(ctx context.Context, c *connection) (localEndpoint string, err error) {
	if _, err = s.expect(ctx, c, "protocol extended", sab.StatusOK); err != nil {
		return
	}

	if s.config.Endpoint != "" {
		if _, err = s.expect(ctx, c, "set endpoint "+s.config.Endpoint, sab.StatusOK); err != nil {
			return
		}
	}

	for _, group := range s.config.Groups {
		if _, err = s.expect(ctx, c, "registration add "+group, sab.StatusOK); err != nil {
			return
		}
	}

	nodeName, err := s.nodeName(ctx, c)
	if err != nil {
		return
	}

	localEndpoint = nodeName
	if s.config.Endpoint != "" {
		localEndpoint = strings.TrimSuffix(nodeName, "/") + "/" + s.config.Endpoint
	}

	log.WithFields(log.Fields{
		"endpoint": localEndpoint,
		"groups":   s.config.Groups,
	}).Info("Session registered at daemon")
	return
}

// Disconnect cancels the reader, closes the stream and closes the Notifications channel. Commands awaiting a reply
// fail with ErrCancelled. A disconnected Session cannot be connected again.
func (s *Session) Disconnect() error {
	s.stateMutex.Lock()
	if s.closed {
		s.stateMutex.Unlock()
		return nil
	}
	s.closed = true

	c := s.conn
	if c != nil && (s.state == Registering || s.state == Ready) {
		s.setStateLocked(Closing)
	}
	s.stateMutex.Unlock()

	var err error
	if c != nil {
		err = c.shutdown(ErrCancelled)
		<-c.done
	}

	close(s.notifications)
	return err
}

// handler is the reader goroutine of a connection.
func (s *Session) handler(c *connection) {
	t := &transfer{
		handler: s.config.handler(),
		builder: sab.NewBundleBuilder(),
	}

	err := s.readLoop(c, t)
	_ = c.shutdown(err)

	if t.builder.InProgress() {
		t.builder.Discard()
		log.Debug("Session abandoned an incomplete bundle transfer")
	}

	cause := c.err()
	if cause == nil || errors.Is(cause, ErrCancelled) {
		log.WithField("endpoint", s.config.Endpoint).Debug("Session reader finished")
	} else {
		log.WithError(cause).WithField("endpoint", s.config.Endpoint).Warn("Session connection failed")
	}

	s.stateMutex.Lock()
	if s.conn == c {
		s.setStateLocked(Closing)
		s.setStateLocked(Disconnected)
	}
	s.stateMutex.Unlock()

	close(c.done)
}

func (s *Session) readLoop(c *connection, t *transfer) error {
	banner, err := c.reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("%w: awaiting banner: %v", sab.ErrStreamClosed, err)
	}
	log.WithField("banner", strings.TrimSpace(banner)).Debug("Session received daemon's banner")

	err = c.parser.Run(func(ev sab.Event) error {
		s.dispatch(t, ev)
		return nil
	})
	if err == nil {
		// The parser was aborted; shutdown has already stored the cause.
		return ErrCancelled
	}
	return err
}

// resolve the pending command with its reply.
func (s *Session) resolve(r reply) {
	s.pendingMutex.Lock()
	p := s.pending
	s.pending = nil
	s.pendingMutex.Unlock()

	if p == nil {
		log.WithField("reply", r.value).Warn("Session dropped an unsolicited reply")
		return
	}
	p.replies <- r
}

func (s *Session) dropPending(p *pendingCommand) {
	s.pendingMutex.Lock()
	if s.pending == p {
		s.pending = nil
	}
	s.pendingMutex.Unlock()
}

// exchange writes a command and awaits its reply. The caller must hold cmdMutex. If the reply does not arrive, the
// connection is terminated.
func (s *Session) exchange(ctx context.Context, c *connection, command string, write func(io.Writer) error) (reply, error) {
	p := &pendingCommand{command: command, replies: make(chan reply, 1)}

	s.pendingMutex.Lock()
	s.pending = p
	s.pendingMutex.Unlock()

	log.WithField("command", command).Debug("Session sends command")

	if err := write(c.stream); err != nil {
		s.dropPending(p)
		_ = c.shutdown(err)
		return reply{}, &CommandError{Command: command, Cause: err}
	}

	var timeout <-chan time.Time
	if s.config.CommandTimeout > 0 {
		timer := time.NewTimer(s.config.CommandTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var err error
	select {
	case r := <-p.replies:
		return r, nil

	case <-c.done:
		select {
		case r := <-p.replies:
			return r, nil
		default:
			return reply{}, &CommandError{Command: command, Cause: c.err()}
		}

	case <-timeout:
		err = ErrTimeout

	case <-ctx.Done():
		err = ctx.Err()
	}

	s.dropPending(p)
	_ = c.shutdown(err)
	return reply{}, &CommandError{Command: command, Cause: err}
}

// writeLine returns a write function for a single command line.
func writeLine(line string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, line+"\n")
		return err
	}
}

// query writes a single line command and expects a plain response.
func (s *Session) query(ctx context.Context, c *connection, command string) (sab.Response, error) {
	return s.queryWith(ctx, c, command, writeLine(command))
}

func (s *Session) queryWith(ctx context.Context, c *connection, command string, write func(io.Writer) error) (sab.Response, error) {
	r, err := s.exchange(ctx, c, command, write)
	if err != nil {
		return sab.Response{}, err
	}

	resp, ok := r.value.(sab.Response)
	if !ok {
		return sab.Response{}, &CommandError{Command: command, Cause: fmt.Errorf("%w: %T", ErrUnexpectedReply, r.value)}
	}
	return resp, nil
}

// expect a response with one of the given status codes.
func (s *Session) expect(ctx context.Context, c *connection, command string, codes ...int) (sab.Response, error) {
	return s.expectWith(ctx, c, command, writeLine(command), codes...)
}

func (s *Session) expectWith(ctx context.Context, c *connection, command string, write func(io.Writer) error, codes ...int) (sab.Response, error) {
	resp, err := s.queryWith(ctx, c, command, write)
	if err != nil {
		return resp, err
	}

	for _, code := range codes {
		if resp.Code == code {
			return resp, nil
		}
	}
	return resp, &CommandError{Command: command, Code: resp.Code, Text: resp.Text}
}

// command runs f in the command slot, if the Session is Ready.
func (s *Session) command(name string, f func(ctx context.Context, c *connection) error) error {
	s.cmdMutex.Lock()
	defer s.cmdMutex.Unlock()

	s.stateMutex.RLock()
	state, c, closed := s.state, s.conn, s.closed
	s.stateMutex.RUnlock()

	if closed {
		return &CommandError{Command: name, Cause: ErrCancelled}
	} else if state != Ready {
		return &CommandError{Command: name, Cause: ErrNotConnected}
	}

	return f(context.Background(), c)
}
