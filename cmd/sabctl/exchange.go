// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-sab/pkg/sab"
	"github.com/dtn7/dtn7-sab/pkg/session"
)

// exchange bundles between an user and a daemon over the filesystem.
type exchange struct {
	directory  string
	knownFiles sync.Map
	client     client
	watcher    *fsnotify.Watcher

	closeChan chan os.Signal
}

// startExchange to exchange bundles between the exchange directory and a daemon.
func startExchange(conf tomlConfig, args []string) {
	if len(args) != 0 || conf.Exchange.Directory == "" {
		printUsage()
	}

	var err error

	ex := &exchange{
		directory: conf.Exchange.Directory,
		closeChan: interruptChan(),
	}

	if ex.client, err = connectClient(conf, nil); err != nil {
		printFatal(err, "Connecting to daemon errored")
	}

	if ex.watcher, err = fsnotify.NewWatcher(); err != nil {
		printFatal(err, "Starting file watcher errored")
	}
	if err = ex.watcher.Add(ex.directory); err != nil {
		printFatal(err, "Adding directory to file watcher errored")
	}

	ex.fetch()
	ex.handler()
}

// cleanFilepath creates a relative path from the exchange directory to a file's path.
func (ex *exchange) cleanFilepath(f string) string {
	if rel, err := filepath.Rel(ex.directory, f); err != nil {
		log.WithField("path", f).WithError(err).Warn("Failed to clean file path")
		return f
	} else {
		return rel
	}
}

func (ex *exchange) handler() {
	defer func() {
		_ = ex.watcher.Close()
		_ = ex.client.Close()
	}()

	for {
		select {
		case <-ex.closeChan:
			log.Info("Received interrupt signal")
			return

		case <-ex.client.Done():
			log.Error("Connection to daemon ended")
			return

		case e, ok := <-ex.watcher.Events:
			if !ok {
				log.Error("fsnotify's Event channel was closed")
				return
			}

			if _, ok := ex.knownFiles.Load(ex.cleanFilepath(e.Name)); ok {
				log.WithField("file", e.Name).Debug("Skipping file; already known")
				continue
			}

			if e.Op&fsnotify.Create == 0 {
				log.WithFields(log.Fields{
					"file":      e.Name,
					"operation": e.Op.String(),
				}).Debug("Ignoring fsnotify event")
				continue
			}

			ex.readNewFile(e)

		case err, ok := <-ex.watcher.Errors:
			if !ok {
				log.Error("fsnotify's Errors channel was closed")
				return
			}

			log.WithError(err).Error("fsnotify errored")
			return

		case notice, ok := <-ex.client.Notifications():
			if !ok {
				log.Error("Notification channel was closed")
				return
			}

			if _, isBundle := notice.(sab.BundleNotification); isBundle {
				ex.fetch()
			}
		}
	}
}

// readNewFile sends an outgoing bundle file. Files are retried with an exponential backoff, since they might still
// be written.
func (ex *exchange) readNewFile(e fsnotify.Event) {
	ex.knownFiles.Store(ex.cleanFilepath(e.Name), struct{}{})

	for i := 0; i < 5; i++ {
		var o sab.Outgoing

		if f, err := os.Open(e.Name); err != nil {
			log.WithError(err).WithField("file", e.Name).Warn("Opening file errored, retrying..")
		} else if err := o.UnmarshalCbor(f); err != nil {
			_ = f.Close()
			log.WithError(err).WithField("file", e.Name).Warn("Unmarshalling bundle errored, retrying..")
		} else if err := f.Close(); err != nil {
			log.WithError(err).WithField("file", e.Name).Warn("Closing file errored, retrying..")
		} else if err := ex.client.SendBundle(o); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"file":   e.Name,
				"bundle": o,
			}).Error("Sending bundle errored")
			return
		} else {
			log.WithFields(log.Fields{
				"file":   e.Name,
				"bundle": o,
			}).Info("Sent bundle")
			return
		}

		time.Sleep(time.Duration(math.Pow(2, float64(i))) * 100 * time.Millisecond)
	}

	log.WithField("file", e.Name).Error("Failed to process file, giving up.")
}

// fetch all queued bundles into the exchange directory.
func (ex *exchange) fetch() {
	for {
		b, err := ex.client.FetchNext()
		if errors.Is(err, session.ErrNoneAvailable) {
			return
		} else if err != nil {
			log.WithError(err).Warn("Fetching bundle errored")
			return
		}

		filename := bundleFilename(ex.directory, b.ID())
		ex.knownFiles.Store(ex.cleanFilepath(filename), struct{}{})

		logger := log.WithFields(log.Fields{
			"bundle": b.ID(),
			"file":   filename,
		})

		if _, err := storeBundle(ex.directory, b); err != nil {
			logger.WithError(err).Error("Storing bundle errored")
			return
		}

		if err := ex.client.MarkDelivered(b.ID()); err != nil {
			logger.WithError(err).Warn("Marking bundle as delivered errored")
			return
		}

		logger.Info("Saved received bundle")
	}
}
