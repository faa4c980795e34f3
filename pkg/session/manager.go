// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-sab/pkg/sab"
)

// ErrGaveUp is returned by Manager.Err after the configured number of connection attempts failed.
var ErrGaveUp = errors.New("session: giving up reconnecting")

// ReconnectPolicy of a Manager.
type ReconnectPolicy struct {
	// Interval between two connection attempts. Zero defaults to ten seconds.
	Interval time.Duration

	// MaxAttempts of consecutive failed connection attempts before giving up. Zero means unbounded.
	MaxAttempts int
}

func (policy ReconnectPolicy) interval() time.Duration {
	if policy.Interval <= 0 {
		return 10 * time.Second
	}
	return policy.Interval
}

// Manager supervises Sessions to one daemon. After a connection loss, a new Session is connected and registered,
// again. The notifications of all Sessions are forwarded to the Manager's channel, which must always be read.
type Manager struct {
	config Config
	policy ReconnectPolicy

	sessionMutex sync.RWMutex
	session      *Session
	err          error

	notifications chan sab.Notice

	ctx    context.Context
	cancel context.CancelFunc

	// stop{Syn,Ack} are used to supervise closing this Manager, see Close()
	stopSyn  chan struct{}
	stopAck  chan struct{}
	stopOnce sync.Once
}

// NewManager creates a Manager and starts connecting in the background.
func NewManager(config Config, policy ReconnectPolicy) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	manager := &Manager{
		config: config,
		policy: policy,

		notifications: make(chan sab.Notice, notificationBuffer),

		ctx:    ctx,
		cancel: cancel,

		stopSyn: make(chan struct{}),
		stopAck: make(chan struct{}),
	}

	go manager.handler()

	return manager
}

// handler is the internal goroutine for management.
func (manager *Manager) handler() {
	defer close(manager.stopAck)
	defer close(manager.notifications)

	var logger = log.WithField("endpoint", manager.config.Endpoint)

	attempts := 0
	for {
		s := NewSession(manager.config)

		if err := s.Connect(manager.ctx); err != nil {
			_ = s.Disconnect()
			attempts++

			logger.WithError(err).WithField("attempt", attempts).Warn("Manager failed to connect session")

			if manager.policy.MaxAttempts > 0 && attempts >= manager.policy.MaxAttempts {
				logger.WithField("attempts", attempts).Error("Manager gives up reconnecting")
				manager.setSession(nil, multierror.Append(ErrGaveUp, err))
				return
			}
		} else {
			attempts = 0
			manager.setSession(s, nil)

			stopped := manager.supervise(s)

			manager.setSession(nil, s.Err())
			if disconnectErr := s.Disconnect(); disconnectErr != nil {
				logger.WithError(disconnectErr).Debug("Manager's disconnect of the lost session errored")
			}

			if stopped {
				return
			}
			logger.WithError(s.Err()).Warn("Manager lost session, reconnecting")
		}

		select {
		case <-manager.stopSyn:
			logger.Debug("Manager received closing signal")
			return

		case <-time.After(manager.policy.interval()):
		}
	}
}

// supervise a connected Session until it fails or the Manager is closed, which is reported by stopped.
func (manager *Manager) supervise(s *Session) (stopped bool) {
	for {
		select {
		case <-manager.stopSyn:
			log.WithField("endpoint", manager.config.Endpoint).Debug("Manager received closing signal")
			return true

		case notice := <-s.Notifications():
			if !manager.forward(notice) {
				return true
			}

		case <-s.Done():
			// Pass on notifications which arrived before the connection was lost.
			for {
				select {
				case notice := <-s.Notifications():
					if !manager.forward(notice) {
						return true
					}
				default:
					return false
				}
			}
		}
	}
}

func (manager *Manager) forward(notice sab.Notice) bool {
	select {
	case manager.notifications <- notice:
		return true
	case <-manager.stopSyn:
		return false
	}
}

func (manager *Manager) setSession(s *Session, err error) {
	manager.sessionMutex.Lock()
	defer manager.sessionMutex.Unlock()

	manager.session = s
	manager.err = err
}

// Session returns the currently Ready Session.
func (manager *Manager) Session() (*Session, error) {
	manager.sessionMutex.RLock()
	defer manager.sessionMutex.RUnlock()

	if manager.session == nil {
		return nil, ErrNotConnected
	}
	return manager.session, nil
}

// Err returns the cause of the last connection loss or failed attempt. After giving up, it wraps ErrGaveUp.
func (manager *Manager) Err() error {
	manager.sessionMutex.RLock()
	defer manager.sessionMutex.RUnlock()

	return manager.err
}

// Notifications of all supervised Sessions. The channel is closed after the Manager stopped.
func (manager *Manager) Notifications() <-chan sab.Notice {
	return manager.notifications
}

// Done is closed after the Manager stopped, either by Close or after giving up.
func (manager *Manager) Done() <-chan struct{} {
	return manager.stopAck
}

// Close the Manager and its current Session.
func (manager *Manager) Close() error {
	manager.stopOnce.Do(func() {
		close(manager.stopSyn)
		manager.cancel()
	})
	<-manager.stopAck

	return nil
}

// SendBundle on the current Session.
func (manager *Manager) SendBundle(o sab.Outgoing) error {
	s, err := manager.Session()
	if err != nil {
		return err
	}
	return s.SendBundle(o)
}

// FetchNext on the current Session.
func (manager *Manager) FetchNext() (*sab.Bundle, error) {
	s, err := manager.Session()
	if err != nil {
		return nil, err
	}
	return s.FetchNext()
}

// MarkDelivered on the current Session.
func (manager *Manager) MarkDelivered(id sab.BundleID) error {
	s, err := manager.Session()
	if err != nil {
		return err
	}
	return s.MarkDelivered(id)
}

// ListRegistrations on the current Session.
func (manager *Manager) ListRegistrations() ([]string, error) {
	s, err := manager.Session()
	if err != nil {
		return nil, err
	}
	return s.ListRegistrations()
}

// ListNeighbors on the current Session.
func (manager *Manager) ListNeighbors() ([]string, error) {
	s, err := manager.Session()
	if err != nil {
		return nil, err
	}
	return s.ListNeighbors()
}

// NodeName on the current Session.
func (manager *Manager) NodeName() (string, error) {
	s, err := manager.Session()
	if err != nil {
		return "", err
	}
	return s.NodeName()
}
