// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session orchestrates a client's conversation with a DTN daemon over the Simple API for Bundles.
//
// A Session owns one connection. A dedicated goroutine drives the sab.Parser and dispatches its events, while commands
// from arbitrary goroutines are serialized through a single in-flight command slot. The protocol correlates replies
// only by their position, so a command is not written before the previous one's reply was consumed.
//
//	s := session.NewSession(session.Config{
//		Dial:     session.DialURI("tcp://localhost:4550", transport.Options{}),
//		Endpoint: "chat",
//	})
//	if err := s.Connect(context.Background()); err != nil {
//		// ...
//	}
//	defer s.Disconnect()
//
//	err := s.SendBundle(sab.Outgoing{Destination: "dtn://other/chat", Lifetime: 3600, Payload: []byte("hello")})
//
// Notifications arrive independently of commands and are published on the Notifications channel. A Manager
// supervises Sessions and reconnects after a connection loss.
package session
