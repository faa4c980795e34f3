// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sab

// Status codes used by the daemon's API.
const (
	StatusContinue            = 100
	StatusOK                  = 200
	StatusCreated             = 201
	StatusAccepted            = 202
	StatusFound               = 302
	StatusBadRequest          = 400
	StatusUnauthorized        = 401
	StatusForbidden           = 403
	StatusNotFound            = 404
	StatusNotAllowed          = 405
	StatusNotAcceptable       = 406
	StatusConflict            = 409
	StatusInternalError       = 500
	StatusNotImplemented      = 501
	StatusServiceUnavailable  = 503
	StatusVersionNotSupported = 505

	NotifyCommon   = 600
	NotifyNeighbor = 601
	NotifyBundle   = 602
	NotifyReport   = 603
	NotifyCustody  = 604
)

// Texts of response lines which switch the Parser's state.
const (
	markerRegistrationList = "REGISTRATION LIST"
	markerNeighborList     = "NEIGHBOR LIST"
	markerBundleGet        = "BUNDLE GET"
	markerBundleInfo       = "BUNDLE INFO"
	markerPayloadGet       = "PAYLOAD GET"

	lastBlockFlag = "LAST_BLOCK"
)
