// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-sab/pkg/sab"
	"github.com/dtn7/dtn7-sab/pkg/session"
)

// Client is implemented by both session.Session and session.Manager.
type Client interface {
	SendBundle(o sab.Outgoing) error
	FetchNext() (*sab.Bundle, error)
	MarkDelivered(id sab.BundleID) error
	ListRegistrations() ([]string, error)
	ListNeighbors() ([]string, error)
	NodeName() (string, error)
}

// Bridge serves a Client's commands as JSON endpoints and streams its notifications to WebSocket clients.
type Bridge struct {
	router   *mux.Router
	client   Client
	upgrader websocket.Upgrader

	feedsMutex sync.Mutex
	feeds      map[*feed]struct{}

	// stop{Syn,Ack} are used to supervise closing this Bridge, see Close()
	stopSyn  chan struct{}
	stopAck  chan struct{}
	stopOnce sync.Once
}

// NewBridge registers its routes on the router and starts forwarding notifications.
func NewBridge(router *mux.Router, client Client, notifications <-chan sab.Notice) *Bridge {
	b := &Bridge{
		router: router,
		client: client,

		feeds: make(map[*feed]struct{}),

		stopSyn: make(chan struct{}),
		stopAck: make(chan struct{}),
	}

	b.router.HandleFunc("/send", b.handleSend).Methods(http.MethodPost)
	b.router.HandleFunc("/fetch", b.handleFetch).Methods(http.MethodGet)
	b.router.HandleFunc("/delivered", b.handleDelivered).Methods(http.MethodPost)
	b.router.HandleFunc("/registrations", b.handleRegistrations).Methods(http.MethodGet)
	b.router.HandleFunc("/neighbors", b.handleNeighbors).Methods(http.MethodGet)
	b.router.HandleFunc("/nodename", b.handleNodeName).Methods(http.MethodGet)
	b.router.HandleFunc("/notifications", b.handleNotifications).Methods(http.MethodGet)

	go b.handler(notifications)

	return b
}

// ServeHTTP is a http.Handler to be bound to a HTTP endpoint, e.g., /sab.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.router.ServeHTTP(w, r)
}

// handler distributes notifications to all feeds.
func (b *Bridge) handler(notifications <-chan sab.Notice) {
	defer close(b.stopAck)

	for {
		select {
		case <-b.stopSyn:
			log.Debug("Bridge received closing signal")
			return

		case notice, ok := <-notifications:
			if !ok {
				log.Debug("Bridge's notification channel was closed")
				notifications = nil
				continue
			}
			b.publish(notice)
		}
	}
}

func (b *Bridge) publish(notice sab.Notice) {
	b.feedsMutex.Lock()
	defer b.feedsMutex.Unlock()

	for f := range b.feeds {
		select {
		case f.queue <- notice:
		default:
			log.WithFields(log.Fields{
				"notice": notice,
				"remote": f.conn.RemoteAddr(),
			}).Warn("Bridge dropped notification for slow WebSocket client")
		}
	}
}

// Close all WebSocket clients and stop forwarding notifications.
func (b *Bridge) Close() error {
	b.stopOnce.Do(func() { close(b.stopSyn) })
	<-b.stopAck

	b.feedsMutex.Lock()
	defer b.feedsMutex.Unlock()

	var err error
	for f := range b.feeds {
		if closeErr := f.close(); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}
		delete(b.feeds, f)
	}
	return err
}

func (b *Bridge) writeResponse(w http.ResponseWriter, path string, response interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.WithError(err).WithField("path", path).Warn("Failed to write bridge response")
	}
}

// handleSend processes /send POST requests.
func (b *Bridge) handleSend(w http.ResponseWriter, r *http.Request) {
	var (
		sendRequest  SendRequest
		sendResponse SendResponse
	)

	if jsonErr := json.NewDecoder(r.Body).Decode(&sendRequest); jsonErr != nil {
		sendResponse.Error = jsonErr.Error()
	} else if sendRequest.Destination == "" {
		sendResponse.Error = "missing destination"
	} else if sendErr := b.client.SendBundle(sendRequest.outgoing()); sendErr != nil {
		sendResponse.Error = sendErr.Error()
	}

	log.WithFields(log.Fields{
		"destination": sendRequest.Destination,
		"payload":     len(sendRequest.Payload),
		"error":       sendResponse.Error,
	}).Info("Processing bridge send request")

	b.writeResponse(w, "/send", sendResponse)
}

// handleFetch processes /fetch GET requests.
func (b *Bridge) handleFetch(w http.ResponseWriter, _ *http.Request) {
	var fetchResponse FetchResponse

	if bndl, err := b.client.FetchNext(); errors.Is(err, session.ErrNoneAvailable) {
		log.Debug("Bridge fetch found no queued bundle")
	} else if err != nil {
		fetchResponse.Error = err.Error()
	} else {
		fetchResponse.Bundle = newBundle(bndl)
		log.WithField("bundle", bndl.ID()).Info("Bridge fetched bundle")
	}

	b.writeResponse(w, "/fetch", fetchResponse)
}

// handleDelivered processes /delivered POST requests.
func (b *Bridge) handleDelivered(w http.ResponseWriter, r *http.Request) {
	var (
		deliveredRequest  DeliveredRequest
		deliveredResponse DeliveredResponse
	)

	if jsonErr := json.NewDecoder(r.Body).Decode(&deliveredRequest); jsonErr != nil {
		deliveredResponse.Error = jsonErr.Error()
	} else if bid, bidErr := sab.ParseBundleID(deliveredRequest.BundleID); bidErr != nil {
		deliveredResponse.Error = bidErr.Error()
	} else if deliveredErr := b.client.MarkDelivered(bid); deliveredErr != nil {
		deliveredResponse.Error = deliveredErr.Error()
	}

	b.writeResponse(w, "/delivered", deliveredResponse)
}

func (b *Bridge) handleList(w http.ResponseWriter, path string, list func() ([]string, error)) {
	var listResponse ListResponse

	if endpoints, err := list(); err != nil {
		listResponse.Error = err.Error()
	} else {
		listResponse.Endpoints = endpoints
	}

	b.writeResponse(w, path, listResponse)
}

// handleRegistrations processes /registrations GET requests.
func (b *Bridge) handleRegistrations(w http.ResponseWriter, _ *http.Request) {
	b.handleList(w, "/registrations", b.client.ListRegistrations)
}

// handleNeighbors processes /neighbors GET requests.
func (b *Bridge) handleNeighbors(w http.ResponseWriter, _ *http.Request) {
	b.handleList(w, "/neighbors", b.client.ListNeighbors)
}

// handleNodeName processes /nodename GET requests.
func (b *Bridge) handleNodeName(w http.ResponseWriter, _ *http.Request) {
	var nodeNameResponse NodeNameResponse

	if name, err := b.client.NodeName(); err != nil {
		nodeNameResponse.Error = err.Error()
	} else {
		nodeNameResponse.NodeName = name
	}

	b.writeResponse(w, "/nodename", nodeNameResponse)
}

// handleNotifications upgrades /notifications GET requests to a WebSocket feed.
func (b *Bridge) handleNotifications(w http.ResponseWriter, r *http.Request) {
	conn, connErr := b.upgrader.Upgrade(w, r, nil)
	if connErr != nil {
		log.WithError(connErr).Warn("Upgrading HTTP request to WebSocket errored")
		return
	}

	f := newFeed(conn)

	b.feedsMutex.Lock()
	select {
	case <-b.stopSyn:
		b.feedsMutex.Unlock()
		_ = f.close()
		return
	default:
		b.feeds[f] = struct{}{}
	}
	b.feedsMutex.Unlock()

	log.WithField("remote", conn.RemoteAddr()).Info("Bridge accepted WebSocket client")

	go f.writer()
	f.reader()

	b.feedsMutex.Lock()
	delete(b.feeds, f)
	b.feedsMutex.Unlock()

	_ = f.close()
	log.WithField("remote", conn.RemoteAddr()).Info("Bridge's WebSocket client left")
}
