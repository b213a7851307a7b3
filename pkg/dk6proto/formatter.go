// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 ximing766

package dk6proto

import "fmt"

// FormatPacket renders a decoded frame in human-readable form for the
// monitor output.
func FormatPacket(p *Packet) string {
	ts := p.Timestamp().Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s (0x%02X) result=0x%02X len=%d\n",
		ts, p.Cmd(), byte(p.Cmd()), p.Result(), len(p.Payload()))

	if data := p.Data(); len(data) > 0 {
		result += formatData(p.Cmd(), data)
	}
	return result
}

func formatData(cmd Command, data []byte) string {
	switch cmd {
	case CmdReadHeader:
		h, err := ParseFirmwareHeader(data)
		if err == nil {
			return fmt.Sprintf("  Magic: 0x%08X  Version: 0x%08X  Size: %d  CRC32: 0x%08X  Update: 0x%02X\n",
				h.Magic, h.Version, h.Size, h.CRC32, h.UpdateFlag)
		}
	case CmdReadUUID:
		return fmt.Sprintf("  UUID: %X\n", data)
	}

	// Default: hex dump
	result := "  Data: "
	for i, b := range data {
		if i > 0 && i%16 == 0 {
			result += "\n        "
		}
		result += fmt.Sprintf("%02X ", b)
	}
	return result + "\n"
}
