// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is the cause of commands aborted by Disconnect.
	ErrCancelled = errors.New("session: cancelled")

	// ErrNoneAvailable is the cause of a FetchNext without any queued bundle.
	ErrNoneAvailable = errors.New("session: no bundle available")

	// ErrNotConnected is returned for commands issued outside of the Ready state.
	ErrNotConnected = errors.New("session: not connected")

	// ErrTimeout is the cause of a command whose reply did not arrive within the CommandTimeout.
	ErrTimeout = errors.New("session: command timed out")

	// ErrUnexpectedReply is the cause of a command answered by a reply of the wrong kind.
	ErrUnexpectedReply = errors.New("session: unexpected reply")
)

// CommandError reports a failed command. Either the daemon replied with an unexpected status Code or the command
// could not be completed, as described by Cause.
type CommandError struct {
	Command string
	Code    int
	Text    string
	Cause   error
}

func (ce *CommandError) Error() string {
	if ce.Cause != nil {
		return fmt.Sprintf("command %q failed: %v", ce.Command, ce.Cause)
	}
	return fmt.Sprintf("command %q failed: %d %s", ce.Command, ce.Code, ce.Text)
}

func (ce *CommandError) Unwrap() error {
	return ce.Cause
}

// RegistrationError is returned by Connect if the connection could not be established or registered.
type RegistrationError struct {
	Endpoint string
	Cause    error
}

func (re *RegistrationError) Error() string {
	return fmt.Sprintf("registration of endpoint %q failed: %v", re.Endpoint, re.Cause)
}

func (re *RegistrationError) Unwrap() error {
	return re.Cause
}
