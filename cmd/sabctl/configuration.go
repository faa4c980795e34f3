// SPDX-FileCopyrightText: 2026 The dtn7-sab Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-sab/pkg/session"
	"github.com/dtn7/dtn7-sab/pkg/transport"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Daemon    daemonConf
	Reconnect reconnectConf
	Logging   logConf
	Exchange  exchangeConf
	Bridge    bridgeConf
}

// daemonConf describes the Daemon-configuration block.
type daemonConf struct {
	Address            string
	Endpoint           string
	Groups             []string
	CommandTimeout     string `toml:"command-timeout"`
	DialTimeout        string `toml:"dial-timeout"`
	Keepalive          bool
	InsecureSkipVerify bool `toml:"insecure-skip-verify"`
}

// reconnectConf describes the Reconnect-configuration block.
type reconnectConf struct {
	Enabled     bool
	Interval    string
	MaxAttempts int `toml:"max-attempts"`
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// exchangeConf describes the Exchange-configuration block.
type exchangeConf struct {
	Directory string
}

// bridgeConf describes the Bridge-configuration block.
type bridgeConf struct {
	Listen string
}

// parseDuration of an optional configuration value.
func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// parseConfig reads the TOML configuration and sets up logging.
func parseConfig(filename string) (conf tomlConfig, err error) {
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	setupLogging(conf.Logging)

	if conf.Daemon.Address == "" {
		err = fmt.Errorf("daemon.address is empty")
	}
	return
}

func setupLogging(conf logConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.Warn("Unknown logging format")
	}
}

// sessionConfig creates a session.Config from the Daemon-configuration block.
func (conf tomlConfig) sessionConfig(handler session.Handler) (config session.Config, err error) {
	var opts transport.Options
	if opts.Timeout, err = parseDuration("daemon.dial-timeout", conf.Daemon.DialTimeout); err != nil {
		return
	}
	opts.KeepAlive = conf.Daemon.Keepalive
	opts.InsecureSkipVerify = conf.Daemon.InsecureSkipVerify

	config = session.Config{
		Dial:     session.DialURI(conf.Daemon.Address, opts),
		Endpoint: conf.Daemon.Endpoint,
		Groups:   conf.Daemon.Groups,
		Handler:  handler,
	}
	config.CommandTimeout, err = parseDuration("daemon.command-timeout", conf.Daemon.CommandTimeout)
	return
}

// reconnectPolicy creates a session.ReconnectPolicy from the Reconnect-configuration block.
func (conf tomlConfig) reconnectPolicy() (policy session.ReconnectPolicy, err error) {
	policy.MaxAttempts = conf.Reconnect.MaxAttempts
	policy.Interval, err = parseDuration("reconnect.interval", conf.Reconnect.Interval)
	return
}
