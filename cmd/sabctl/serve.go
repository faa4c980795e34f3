// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-sab/pkg/bridge"
)

// serve the HTTP bridge for the "serve" CLI option.
func serve(conf tomlConfig, args []string) {
	if len(args) != 0 || conf.Bridge.Listen == "" {
		printUsage()
	}

	c, err := connectClient(conf, nil)
	if err != nil {
		printFatal(err, "Connecting to daemon errored")
	}

	r := mux.NewRouter()
	b := bridge.NewBridge(r.PathPrefix("/sab").Subrouter(), c, c.Notifications())

	httpServer := &http.Server{
		Addr:    conf.Bridge.Listen,
		Handler: r,
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- httpServer.ListenAndServe() }()

	log.WithField("listen", conf.Bridge.Listen).Info("Serving bridge")

	select {
	case <-interruptChan():
		log.Info("Shutting down..")
	case <-c.Done():
		log.Error("Connection to daemon ended")
	case err := <-serveErr:
		log.WithError(err).Error("Serving bridge errored")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var closeErr error
	if err := b.Close(); err != nil {
		closeErr = multierror.Append(closeErr, err)
	}
	if err := httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		closeErr = multierror.Append(closeErr, err)
	}
	if err := c.Close(); err != nil {
		closeErr = multierror.Append(closeErr, err)
	}

	if closeErr != nil {
		printFatal(closeErr, "Shutting down errored")
	}
}
