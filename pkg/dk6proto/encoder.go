// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 ximing766

package dk6proto

import (
	"encoding/binary"
	"fmt"
)

// PayloadData is the command-specific portion of a request payload. Exactly
// one concrete type exists per payload shape, so a command cannot be built
// with data it does not understand.
type PayloadData interface {
	isPayloadData()
}

// NoData is used for commands that carry nothing beyond the prefix
// (RESET, READ_UUID) and for READ_HEADER, which carries only the address.
type NoData struct{}

// BlockCount is the number of 64 KiB blocks an ERASE command covers.
type BlockCount uint8

// RawBytes is a PROGRAM command's firmware chunk. The caller pads the final
// chunk to a full page multiple with 0xFF before building the frame.
type RawBytes []byte

func (NoData) isPayloadData()     {}
func (BlockCount) isPayloadData() {}
func (RawBytes) isPayloadData()   {}

// BuildPacket builds a complete wire frame for cmd. addr is ignored by
// RESET and READ_UUID. data must match the command's payload shape; nil is
// treated as NoData, and ERASE with NoData defaults to a single block.
func BuildPacket(cmd Command, addr uint32, data PayloadData, cfg TransferConfig) ([]byte, error) {
	if data == nil {
		data = NoData{}
	}

	payload := make([]byte, 0, PayloadPrefixSize+8)
	payload = append(payload, sourceAddr[:]...)
	payload = append(payload, targetAddr[:]...)
	payload = append(payload, seqNum, byte(cmd), 0x00, 0x00)

	switch cmd {
	case CmdReset, CmdReadUUID:
		if _, ok := data.(NoData); !ok {
			return nil, fmt.Errorf("dk6proto: %s carries no payload data", cmd)
		}

	case CmdErase:
		blocks := BlockCount(1)
		switch d := data.(type) {
		case NoData:
		case BlockCount:
			blocks = d
		default:
			return nil, fmt.Errorf("dk6proto: %s requires a block count, got %T", cmd, data)
		}
		if blocks == 0 {
			return nil, fmt.Errorf("dk6proto: %s block count must be at least 1", cmd)
		}
		payload = binary.LittleEndian.AppendUint32(payload, addr)
		payload = append(payload, byte(blocks))

	case CmdProgram:
		raw, ok := data.(RawBytes)
		if !ok {
			return nil, fmt.Errorf("dk6proto: %s requires raw page data, got %T", cmd, data)
		}
		if len(raw) == 0 {
			return nil, fmt.Errorf("dk6proto: %s data cannot be empty", cmd)
		}
		cfg = cfg.normalized()
		if len(raw) > cfg.TransferSize() {
			return nil, fmt.Errorf("dk6proto: %s data is %d bytes, max %d per transfer",
				cmd, len(raw), cfg.TransferSize())
		}
		pages := (len(raw) + PageSize - 1) / PageSize
		payload = binary.LittleEndian.AppendUint32(payload, addr)
		payload = append(payload, byte(pages))
		payload = append(payload, raw...)

	case CmdReadHeader:
		if _, ok := data.(NoData); !ok {
			return nil, fmt.Errorf("dk6proto: %s carries only an address", cmd)
		}
		payload = binary.LittleEndian.AppendUint32(payload, addr)

	default:
		return nil, fmt.Errorf("dk6proto: unknown command 0x%02X", byte(cmd))
	}

	return frame(payload), nil
}

// BuildResponse builds a response frame as the device would emit it: the
// standard prefix with the result code set, followed by data. Used by
// device simulators and tests.
func BuildResponse(cmd Command, result byte, data []byte) []byte {
	payload := make([]byte, 0, PayloadPrefixSize+len(data))
	payload = append(payload, sourceAddr[:]...)
	payload = append(payload, targetAddr[:]...)
	payload = append(payload, seqNum, byte(cmd), result, 0x00)
	payload = append(payload, data...)
	return frame(payload)
}

// frame wraps a payload in the header, length, DCS and terminator.
func frame(payload []byte) []byte {
	pkt := make([]byte, 0, FrameHeaderSize+len(payload)+FrameTrailerSize)
	pkt = append(pkt, frameHeader[:]...)
	pkt = binary.LittleEndian.AppendUint16(pkt, uint16(len(payload)))
	pkt = append(pkt, payload...)
	pkt = append(pkt, dcs(payload), Terminator)
	return pkt
}
