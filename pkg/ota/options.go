// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 ximing766

package ota

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/ximing766/dk6flash/pkg/dk6proto"
)

type config struct {
	transfer     dk6proto.TransferConfig
	timeout      time.Duration
	eraseTimeout time.Duration
	chunkDelay   time.Duration
	version      uint32
	progress     ProgressFunc
	logger       zerolog.Logger
}

func defaultConfig() config {
	return config{
		transfer:     dk6proto.TransferConfig{PagesPerTransfer: dk6proto.DefaultPagesPerTransfer},
		timeout:      5 * time.Second,
		eraseTimeout: 10 * time.Second,
		chunkDelay:   100 * time.Millisecond,
		version:      1,
		logger:       zerolog.Nop(),
	}
}

// Option configures a Flasher.
type Option func(*config)

// WithPagesPerTransfer sets how many pages each PROGRAM frame carries
// (1-3). Out-of-range values are clamped.
func WithPagesPerTransfer(pages int) Option {
	return func(c *config) {
		c.transfer.PagesPerTransfer = pages
	}
}

// WithTimeout sets the per-frame response timeout. Default 5s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithEraseTimeout sets the response timeout for ERASE, which the device
// services much more slowly than a page write. Default 10s.
func WithEraseTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.eraseTimeout = d
		}
	}
}

// WithChunkDelay sets the pause between PROGRAM frames, giving the device
// time to commit pages. Default 100ms.
func WithChunkDelay(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.chunkDelay = d
		}
	}
}

// WithVersion sets the version field written into the firmware header.
func WithVersion(v uint32) Option {
	return func(c *config) {
		c.version = v
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *config) {
		c.progress = fn
	}
}

// WithLogger sets the session logger. Logging is off by default.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}
