// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sab

import (
	"errors"
	"fmt"
)

// Framing errors, fatal to the connection.
var (
	// ErrStreamClosed is returned if the stream ended, regardless of the Parser's state.
	ErrStreamClosed = errors.New("sab: stream closed")

	// ErrInvalidResponse is returned for a line not matching "<code> <text>" while awaiting a response.
	ErrInvalidResponse = errors.New("sab: invalid response")

	// ErrMalformedAttribute is returned for an attribute line without a ':' delimiter.
	ErrMalformedAttribute = errors.New("sab: malformed attribute")

	// ErrAborted is returned by Parser.Next after Abort was called.
	ErrAborted = errors.New("sab: parser aborted")
)

// ErrUnknownReasonCode is returned while decoding a notification with an unknown reason code.
var ErrUnknownReasonCode = errors.New("sab: unknown reason code")

// FrameError wraps a framing error together with the offending line.
type FrameError struct {
	Err   error
	State State
	Line  string
}

func (fe *FrameError) Error() string {
	return fmt.Sprintf("%v in state %v: %q", fe.Err, fe.State, fe.Line)
}

func (fe *FrameError) Unwrap() error {
	return fe.Err
}

// DecodeError is returned by the notification decoders. Its cause is either ErrUnknownReasonCode or describes why the
// text did not match.
type DecodeError struct {
	Text  string
	Cause error
}

func newDecodeError(text string, format string, a ...interface{}) *DecodeError {
	return &DecodeError{Text: text, Cause: fmt.Errorf(format, a...)}
}

func (de *DecodeError) Error() string {
	return fmt.Sprintf("decoding notification %q failed: %v", de.Text, de.Cause)
}

func (de *DecodeError) Unwrap() error {
	return de.Cause
}
