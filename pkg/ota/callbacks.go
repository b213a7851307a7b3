// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 ximing766

package ota

import "time"

// Phase identifies where a flashing session currently is. Phases advance
// strictly in order; any failure moves straight to done.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSetup
	PhaseErase
	PhaseProgram
	PhaseVerify
	PhaseConfig
	PhaseDone
)

// String returns the phase name used in errors and logs.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSetup:
		return "setup"
	case PhaseErase:
		return "erase"
	case PhaseProgram:
		return "program"
	case PhaseVerify:
		return "verify"
	case PhaseConfig:
		return "config-write"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Progress is a point-in-time snapshot delivered to the progress callback.
// Callbacks run on the session goroutine and must return quickly.
type Progress struct {
	Phase Phase

	// Percent is 0-100. Erase completion pins it to 10, programming scales
	// linearly up to 90, verification completes at 100.
	Percent int

	// Transfer and Transfers are the 1-based current chunk and the total,
	// valid during the programming phase.
	Transfer  int
	Transfers int

	BytesWritten int
	Elapsed      time.Duration
}

// ProgressFunc receives progress snapshots. It must not call back into the
// Flasher or mutate session state.
type ProgressFunc func(Progress)

// Result summarizes a completed session.
type Result struct {
	// BytesWritten counts everything sent to flash, header included.
	BytesWritten int

	// StartAddr and EndAddr bound the written region.
	StartAddr uint32
	EndAddr   uint32

	Elapsed time.Duration

	// Verified is true when the read-back header matched expectations.
	// When false, Warning holds the mismatch detail; the write itself
	// still completed.
	Verified bool
	Warning  error
}
