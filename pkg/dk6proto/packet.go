// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 ximing766

package dk6proto

import "time"

// ResultOK is the result code reported for a successful command.
const ResultOK = 0x00

// Packet is a decoded protocol frame.
type Packet struct {
	payload   []byte
	dcs       byte
	timestamp time.Time
}

// Payload returns the full payload, prefix included.
func (p *Packet) Payload() []byte {
	return p.payload
}

// Cmd returns the command byte echoed in the payload prefix.
func (p *Packet) Cmd() Command {
	return Command(p.payload[OffsetCmd])
}

// Result returns the device result code. Zero means success.
func (p *Packet) Result() byte {
	return p.payload[OffsetResult]
}

// OK reports whether the device accepted the command.
func (p *Packet) OK() bool {
	return p.Result() == ResultOK
}

// Data returns the command-specific bytes after the 16-byte prefix.
func (p *Packet) Data() []byte {
	return p.payload[PayloadPrefixSize:]
}

// DCS returns the frame's checksum byte.
func (p *Packet) DCS() byte {
	return p.dcs
}

// Timestamp returns the frame's decode time.
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}
