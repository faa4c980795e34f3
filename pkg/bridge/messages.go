// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bridge

import "github.com/dtn7/dtn7-sab/pkg/sab"

// SendRequest describes a JSON to be POSTed to /send.
type SendRequest struct {
	Destination string `json:"destination"`
	Lifetime    uint64 `json:"lifetime"`
	Group       bool   `json:"group"`
	Payload     []byte `json:"payload"`
}

func (req SendRequest) outgoing() sab.Outgoing {
	return sab.Outgoing{
		Destination: req.Destination,
		Lifetime:    req.Lifetime,
		Group:       req.Group,
		Payload:     req.Payload,
	}
}

// SendResponse describes a JSON response for /send.
type SendResponse struct {
	Error string `json:"error"`
}

// Bundle is the JSON representation of a received bundle.
type Bundle struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	ReportTo    string `json:"report_to"`
	Lifetime    uint64 `json:"lifetime"`
	Payload     []byte `json:"payload"`
}

func newBundle(b *sab.Bundle) *Bundle {
	return &Bundle{
		ID:          b.ID().String(),
		Source:      b.Source,
		Destination: b.Destination,
		ReportTo:    b.ReportTo,
		Lifetime:    b.Lifetime,
		Payload:     b.Payload(),
	}
}

// FetchResponse describes a JSON response for /fetch. Bundle is nil if no bundle is queued.
type FetchResponse struct {
	Error  string  `json:"error"`
	Bundle *Bundle `json:"bundle"`
}

// DeliveredRequest describes a JSON to be POSTed to /delivered.
type DeliveredRequest struct {
	BundleID string `json:"bundle_id"`
}

// DeliveredResponse describes a JSON response for /delivered.
type DeliveredResponse struct {
	Error string `json:"error"`
}

// ListResponse describes a JSON response for /registrations and /neighbors.
type ListResponse struct {
	Error     string   `json:"error"`
	Endpoints []string `json:"endpoints"`
}

// NodeNameResponse describes a JSON response for /nodename.
type NodeNameResponse struct {
	Error    string `json:"error"`
	NodeName string `json:"node_name"`
}
