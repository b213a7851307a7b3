// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 ximing766

package dk6proto

import (
	"encoding/binary"
	"fmt"
)

// FirmwareMagic identifies a valid firmware header.
const FirmwareMagic = 0x12345678

// FirmwareHeaderSize is the encoded header size in bytes.
const FirmwareHeaderSize = 32

// FirmwareHeader is the software-generated record prepended to the
// application image before transfer. All fields are little-endian on the
// wire; 3 alignment bytes follow UpdateFlag and 12 reserved bytes close
// the record.
type FirmwareHeader struct {
	Magic      uint32
	Version    uint32
	Size       uint32
	CRC32      uint32
	UpdateFlag uint8
}

// NewFirmwareHeader builds the header for a raw firmware image. Size and
// CRC32 cover the image only, never the header or any transfer padding.
func NewFirmwareHeader(firmware []byte, version uint32) FirmwareHeader {
	return FirmwareHeader{
		Magic:      FirmwareMagic,
		Version:    version,
		Size:       uint32(len(firmware)),
		CRC32:      CRC32(firmware),
		UpdateFlag: 1,
	}
}

// Encode returns the 32-byte wire form of the header.
func (h FirmwareHeader) Encode() []byte {
	buf := make([]byte, FirmwareHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.Size)
	binary.LittleEndian.PutUint32(buf[12:16], h.CRC32)
	buf[16] = h.UpdateFlag
	return buf
}

// ParseFirmwareHeader decodes a 32-byte header read back from flash.
func ParseFirmwareHeader(data []byte) (FirmwareHeader, error) {
	if len(data) < FirmwareHeaderSize {
		return FirmwareHeader{}, fmt.Errorf("dk6proto: firmware header truncated: %d bytes", len(data))
	}
	return FirmwareHeader{
		Magic:      binary.LittleEndian.Uint32(data[0:4]),
		Version:    binary.LittleEndian.Uint32(data[4:8]),
		Size:       binary.LittleEndian.Uint32(data[8:12]),
		CRC32:      binary.LittleEndian.Uint32(data[12:16]),
		UpdateFlag: data[16],
	}, nil
}
