// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-sab/pkg/sab"
)

// SendBundle transmits a bundle. The daemon's register is cleared, the bundle is put in plain format and sent.
func (s *Session) SendBundle(o sab.Outgoing) error {
	return s.command("bundle send", func(ctx context.Context, c *connection) error {
		if _, err := s.expect(ctx, c, "bundle clear", sab.StatusOK); err != nil {
			return err
		}

		if _, err := s.expect(ctx, c, "bundle put plain", sab.StatusContinue); err != nil {
			return err
		}
		if _, err := s.expectWith(ctx, c, "bundle put plain", o.WritePlain, sab.StatusOK); err != nil {
			return err
		}

		if _, err := s.expect(ctx, c, "bundle send", sab.StatusOK); err != nil {
			return err
		}

		log.WithField("bundle", o).Info("Session sent bundle")
		return nil
	})
}

// FetchNext loads the next queued bundle into the daemon's register and transfers it. Without any queued bundle, the
// returned error wraps ErrNoneAvailable.
func (s *Session) FetchNext() (b *sab.Bundle, err error) {
	err = s.command("bundle load queue", func(ctx context.Context, c *connection) error {
		resp, loadErr := s.expect(ctx, c, "bundle load queue", sab.StatusOK)
		if loadErr != nil {
			if resp.Code == sab.StatusBadRequest {
				return &CommandError{Command: "bundle load queue", Code: resp.Code, Text: resp.Text, Cause: ErrNoneAvailable}
			}
			return loadErr
		}

		var getErr error
		b, getErr = s.fetchBundle(ctx, c, "bundle get")
		return getErr
	})
	if err != nil {
		b = nil
	}
	return
}

// LoadBundle loads a specific bundle into the daemon's register.
func (s *Session) LoadBundle(id sab.BundleID) error {
	command := "bundle load " + id.String()
	return s.command(command, func(ctx context.Context, c *connection) error {
		_, err := s.expect(ctx, c, command, sab.StatusOK)
		return err
	})
}

// BundleInfo transfers the header and block headers of the bundle in the daemon's register, without payload.
func (s *Session) BundleInfo() (b *sab.Bundle, err error) {
	err = s.command("bundle info", func(ctx context.Context, c *connection) (infoErr error) {
		b, infoErr = s.fetchBundle(ctx, c, "bundle info")
		return
	})
	return
}

// fetchBundle issues a command answered by a bundle transfer.
func (s *Session) fetchBundle(ctx context.Context, c *connection, command string) (*sab.Bundle, error) {
	r, err := s.exchange(ctx, c, command, writeLine(command))
	if err != nil {
		return nil, err
	}

	switch value := r.value.(type) {
	case *sab.Bundle:
		if r.err != nil {
			return nil, &CommandError{Command: command, Cause: r.err}
		}
		return value, nil

	case sab.Response:
		return nil, &CommandError{Command: command, Code: value.Code, Text: value.Text}

	default:
		return nil, &CommandError{Command: command, Cause: fmt.Errorf("%w: %T", ErrUnexpectedReply, value)}
	}
}

// FetchPayload transfers the payload of the bundle in the daemon's register.
func (s *Session) FetchPayload() (payload []byte, err error) {
	const command = "payload get"

	err = s.command(command, func(ctx context.Context, c *connection) error {
		r, exErr := s.exchange(ctx, c, command, writeLine(command))
		if exErr != nil {
			return exErr
		}

		switch value := r.value.(type) {
		case []byte:
			if r.err != nil {
				return &CommandError{Command: command, Cause: r.err}
			}
			payload = value
			return nil

		case sab.Response:
			return &CommandError{Command: command, Code: value.Code, Text: value.Text}

		default:
			return &CommandError{Command: command, Cause: fmt.Errorf("%w: %T", ErrUnexpectedReply, value)}
		}
	})
	return
}

// FreeBundle removes the bundle in the daemon's register from its storage.
func (s *Session) FreeBundle() error {
	return s.simple("bundle free")
}

// MarkDelivered acknowledges a bundle's delivery, allowing the daemon to drop it.
func (s *Session) MarkDelivered(id sab.BundleID) error {
	return s.simple("bundle delivered " + id.String())
}

// AddRegistration subscribes to an additional endpoint, e.g., a group endpoint.
func (s *Session) AddRegistration(endpoint string) error {
	return s.simple("registration add " + endpoint)
}

// RemoveRegistration unsubscribes from an endpoint.
func (s *Session) RemoveRegistration(endpoint string) error {
	return s.simple("registration del " + endpoint)
}

// ListRegistrations returns all endpoints this Session is subscribed to.
func (s *Session) ListRegistrations() ([]string, error) {
	return s.list("registration list")
}

// ListNeighbors returns the endpoints of the daemon's current neighbours.
func (s *Session) ListNeighbors() ([]string, error) {
	return s.list("neighbor list")
}

// NodeName returns the daemon's node endpoint.
func (s *Session) NodeName() (name string, err error) {
	err = s.command("nodename", func(ctx context.Context, c *connection) (nameErr error) {
		name, nameErr = s.nodeName(ctx, c)
		return
	})
	return
}

func (s *Session) nodeName(ctx context.Context, c *connection) (string, error) {
	resp, err := s.expect(ctx, c, "nodename", sab.StatusOK)
	if err != nil {
		return "", err
	}

	name := strings.TrimSpace(strings.TrimPrefix(resp.Text, "NODENAME"))
	if name == "" {
		return "", &CommandError{Command: "nodename", Code: resp.Code, Text: resp.Text, Cause: ErrUnexpectedReply}
	}
	return name, nil
}

// simple issues a command expecting a 200 response.
func (s *Session) simple(command string) error {
	return s.command(command, func(ctx context.Context, c *connection) error {
		_, err := s.expect(ctx, c, command, sab.StatusOK)
		return err
	})
}

// list issues a command answered by a list.
func (s *Session) list(command string) (items []string, err error) {
	err = s.command(command, func(ctx context.Context, c *connection) error {
		r, exErr := s.exchange(ctx, c, command, writeLine(command))
		if exErr != nil {
			return exErr
		}

		switch value := r.value.(type) {
		case sab.List:
			items = value.Items
			return nil

		case sab.Response:
			return &CommandError{Command: command, Code: value.Code, Text: value.Text}

		default:
			return &CommandError{Command: command, Cause: fmt.Errorf("%w: %T", ErrUnexpectedReply, value)}
		}
	})
	return
}
