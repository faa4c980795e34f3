// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import "github.com/dtn7/dtn7-sab/pkg/sab"

// TransferMode selects how a block's data is passed to Handler.OnPayloadChunk.
type TransferMode int

const (
	// TransferDecode passes the decoded block data.
	TransferDecode TransferMode = iota
	// TransferRaw passes the data lines as received.
	TransferRaw
	// TransferSkip passes nothing.
	TransferSkip
)

// Handler receives callbacks from a Session's reader goroutine. For each bundle transfer, the callbacks are invoked in
// the order OnBundleStart, {OnBlockStart, OnPayloadChunk*, OnBlockEnd}*, OnBundleEnd. A transfer interrupted by a
// connection loss ends without OnBundleEnd.
//
// Callbacks must not block and must not issue commands on the same Session.
type Handler interface {
	OnBundleStart(id sab.BundleID)
	OnBundleEnd(b *sab.Bundle)
	OnBlockStart(blockType int) TransferMode
	OnBlockEnd()
	OnPayloadChunk(chunk []byte)
	OnStatusReport(report sab.StatusReport)
	OnCustody(custody sab.Custody)
}

// NopHandler implements Handler by ignoring everything. It might be embedded to implement only some callbacks.
type NopHandler struct{}

func (NopHandler) OnBundleStart(sab.BundleID) {}
func (NopHandler) OnBundleEnd(*sab.Bundle) {}
func (NopHandler) OnBlockStart(int) TransferMode { return TransferSkip }
func (NopHandler) OnBlockEnd() {}
func (NopHandler) OnPayloadChunk([]byte) {}
func (NopHandler) OnStatusReport(sab.StatusReport) {}
func (NopHandler) OnCustody(sab.Custody) {}
