// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 ximing766

package ota

import (
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/ximing766/dk6flash/pkg/dk6proto"
)

// Conn is the byte stream to the device: an open serial port or any
// equivalent bridge. Reads are expected to return (0, nil) when no data is
// available within the port's read timeout, which drives the poll loop.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// Transceiver performs one half-duplex request/response exchange at a
// time. The protocol permits no pipelining: a request must fully resolve
// before the next is written.
type Transceiver struct {
	conn Conn

	// PollInterval is the sleep between read polls.
	PollInterval time.Duration

	// DesyncGrace is how long to keep draining after a header mismatch
	// before declaring the stream desynchronized. The threshold is a
	// tunable, not a protocol guarantee.
	DesyncGrace time.Duration

	busy atomic.Bool
}

// NewTransceiver wraps conn with default timings.
func NewTransceiver(conn Conn) *Transceiver {
	return &Transceiver{
		conn:         conn,
		PollInterval: 10 * time.Millisecond,
		DesyncGrace:  time.Second,
	}
}

// Exchange writes frame and waits up to timeout for a complete, valid
// response. The returned packet carries the device result code; a non-zero
// result yields both the packet and a *CommandError so callers that need
// the raw frame (READ_HEADER, READ_UUID) still get it.
//
// An in-flight exchange is never interrupted; cancellation is the caller's
// concern between exchanges.
func (t *Transceiver) Exchange(frame []byte, timeout time.Duration) (*dk6proto.Packet, error) {
	if !t.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer t.busy.Store(false)

	if _, err := t.conn.Write(frame); err != nil {
		return nil, err
	}
	if d, ok := t.conn.(interface{ Drain() error }); ok {
		if err := d.Drain(); err != nil {
			return nil, err
		}
	}

	parser := dk6proto.NewParser()
	buf := make([]byte, 512)
	deadline := time.Now().Add(timeout)
	var firstByteAt time.Time
	desynced := false

	for time.Now().Before(deadline) {
		n, err := t.conn.Read(buf)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			if firstByteAt.IsZero() {
				firstByteAt = time.Now()
			}
			pkt, perr := parser.Feed(buf[:n])
			switch {
			case perr == nil && pkt != nil:
				if !pkt.OK() {
					return pkt, &CommandError{Cmd: pkt.Cmd(), Result: pkt.Result()}
				}
				return pkt, nil
			case errors.Is(perr, dk6proto.ErrInvalidHeader):
				// Keep draining for the grace period so diagnostics
				// capture whatever the device is actually sending.
				desynced = true
			case perr != nil:
				return nil, &FrameError{Err: perr}
			}
		}
		if desynced && time.Since(firstByteAt) > t.DesyncGrace {
			return nil, &DesyncError{Bytes: append([]byte(nil), parser.Bytes()...)}
		}
		time.Sleep(t.PollInterval)
	}

	if parser.Len() == 0 {
		return nil, ErrNoResponse
	}
	return nil, &TimeoutError{Bytes: append([]byte(nil), parser.Bytes()...)}
}
