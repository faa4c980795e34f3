// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import "fmt"

// State of a Session.
type State int

const (
	// Disconnected is the initial and final state.
	Disconnected State = iota
	// Connecting while the stream is being established.
	Connecting
	// Registering while the registration commands are exchanged.
	Registering
	// Ready to accept commands.
	Ready
	// Closing after Disconnect or an unrecoverable failure.
	Closing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Registering:
		return "registering"
	case Ready:
		return "ready"
	case Closing:
		return "closing"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}
