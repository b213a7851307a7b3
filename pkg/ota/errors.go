// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 ximing766

package ota

import (
	"errors"
	"fmt"

	"github.com/ximing766/dk6flash/pkg/dk6proto"
)

var (
	// ErrNoResponse means the device sent nothing before the timeout.
	ErrNoResponse = errors.New("ota: device unresponsive")

	// ErrCancelled means the caller cancelled the session at a chunk
	// boundary. The stream is closed; nothing was retried or rolled back.
	ErrCancelled = errors.New("ota: operation cancelled")

	// ErrBusy means an exchange was attempted while another was in flight.
	ErrBusy = errors.New("ota: request already in flight")
)

// TimeoutError means the timeout elapsed with a partial or invalid frame in
// the buffer. Bytes holds the raw data for diagnostics.
type TimeoutError struct {
	Bytes []byte
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("ota: response timeout with %d bytes buffered: % X", len(e.Bytes), e.Bytes)
}

// DesyncError means the response did not start with the frame header and
// the grace period elapsed. The stream cannot recover without a reset.
type DesyncError struct {
	Bytes []byte
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("ota: stream desynchronized, received % X", e.Bytes)
}

// FrameError wraps a frame that arrived complete but failed validation.
type FrameError struct {
	Err error
}

func (e *FrameError) Error() string { return "ota: " + e.Err.Error() }
func (e *FrameError) Unwrap() error { return e.Err }

// CommandError means the frame parsed cleanly but the device rejected the
// command. This is a device-level failure, not a transport one.
type CommandError struct {
	Cmd    dk6proto.Command
	Result byte
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("ota: %s failed: %s (result 0x%02X)", e.Cmd, e.reason(), e.Result)
}

func (e *CommandError) reason() string {
	switch e.Cmd {
	case dk6proto.CmdErase:
		return "device rejected block erase"
	case dk6proto.CmdProgram:
		return "device rejected page write"
	case dk6proto.CmdReset:
		return "device rejected reset"
	case dk6proto.CmdReadHeader:
		return "device could not read firmware header"
	case dk6proto.CmdReadUUID:
		return "device could not read UUID"
	default:
		return "device rejected command"
	}
}

// PhaseError tags any failure with the session phase it occurred in, and
// the 1-based transfer index for programming failures.
type PhaseError struct {
	Phase    Phase
	Transfer int
	Err      error
}

func (e *PhaseError) Error() string {
	if e.Transfer > 0 {
		return fmt.Sprintf("ota: %s failed at transfer %d: %v", e.Phase, e.Transfer, e.Err)
	}
	return fmt.Sprintf("ota: %s failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// VerifyError reports a mismatch between the header read back from flash
// and the locally computed expectations. It is attached to a successful
// result as a warning; the write itself already completed.
type VerifyError struct {
	Header dk6proto.FirmwareHeader
	Size   uint32
	CRC32  uint32
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("ota: header verification mismatch: device magic=0x%08X size=%d crc32=0x%08X, expected magic=0x%08X size=%d crc32=0x%08X",
		e.Header.Magic, e.Header.Size, e.Header.CRC32,
		uint32(dk6proto.FirmwareMagic), e.Size, e.CRC32)
}
