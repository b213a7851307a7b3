// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 ximing766

package dk6proto

import "errors"

// Frame validation errors returned by the Parser. ErrInvalidHeader means
// the stream is desynchronized; the remaining errors mean a complete frame
// arrived but failed an invariant.
var (
	ErrInvalidHeader = errors.New("dk6proto: response header mismatch")
	ErrBadTerminator = errors.New("dk6proto: missing frame terminator")
	ErrChecksum      = errors.New("dk6proto: DCS checksum failed")
	ErrShortPayload  = errors.New("dk6proto: payload shorter than fixed prefix")
)
