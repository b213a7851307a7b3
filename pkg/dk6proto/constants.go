// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 ximing766

// Package dk6proto implements the DK6 over-serial firmware update protocol:
// packet framing, command encoding, the streaming response parser, the
// firmware header format, and transfer planning over the external flash
// geometry.
//
// The wire format is a half-duplex request/response protocol. Each frame is
//
//	00 00 FF <len_lo> <len_hi> <payload...> <dcs> 00
//
// where the payload always begins with a fixed 16-byte addressing prefix and
// the DCS byte makes the payload sum to zero modulo 256.
package dk6proto

// Frame layout.
const (
	// FrameHeaderSize covers the 3 header bytes plus the 16-bit payload length.
	FrameHeaderSize = 5

	// FrameTrailerSize covers the DCS byte and the terminator.
	FrameTrailerSize = 2

	// Terminator closes every frame.
	Terminator = 0x00
)

// frameHeader is the fixed 3-byte frame preamble.
var frameHeader = [3]byte{0x00, 0x00, 0xFF}

// Command is a single-byte device operation code.
type Command byte

// Device commands.
const (
	CmdReset      Command = 0xCA // reset the MCU, no response expected
	CmdErase      Command = 0xCB // erase 64 KiB blocks
	CmdProgram    Command = 0xCC // program 1-3 flash pages
	CmdReadHeader Command = 0xCD // read back the 32-byte firmware header
	CmdReadUUID   Command = 0xCE // read the secure element UUID
)

// String returns the command mnemonic.
func (c Command) String() string {
	switch c {
	case CmdReset:
		return "RESET"
	case CmdErase:
		return "ERASE"
	case CmdProgram:
		return "PROGRAM"
	case CmdReadHeader:
		return "READ_HEADER"
	case CmdReadUUID:
		return "READ_UUID"
	default:
		return "UNKNOWN"
	}
}

// Payload prefix layout. Every payload starts with source and target
// addresses, a sequence byte, the command, and a 16-bit result field.
const (
	// PayloadPrefixSize is the fixed prefix before command-specific data.
	PayloadPrefixSize = 16

	// OffsetCmd is the payload offset of the command byte.
	OffsetCmd = 13

	// OffsetResult is the payload offset of the result code on responses.
	OffsetResult = 14
)

var (
	sourceAddr = [6]byte{0x05, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	targetAddr = [6]byte{0x06, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
)

// seqNum is the fixed SNQ byte; the protocol does not number frames.
const seqNum = 0x01

// W25Q32JV external flash geometry.
const (
	PageSize   = 256
	SectorSize = 4096
	BlockSize  = 65536
	FlashSize  = 4 * 1024 * 1024
)

// MaxFirmwareSize bounds the accepted firmware image.
const MaxFirmwareSize = 1024 * 1024

// Flash layout addresses.
const (
	// AppStartAddr is where the application image (header included) lives.
	AppStartAddr = 0x00280000

	// SR150StartAddr is where the SR150 UWB firmware is written, headerless.
	SR150StartAddr = 0x00300100

	// SR150ConfigAddr holds the one-page CRC/length record for the SR150
	// image. It sits in the same erase block as SR150StartAddr.
	SR150ConfigAddr = 0x00300000
)

// Pages-per-transfer bounds for PROGRAM frames.
const (
	MinPagesPerTransfer     = 1
	MaxPagesPerTransfer     = 3
	DefaultPagesPerTransfer = 3
)
