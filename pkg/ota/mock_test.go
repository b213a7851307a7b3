// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 ximing766

package ota

import (
	"bytes"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/ximing766/dk6flash/pkg/dk6proto"
)

// request is one decoded command as the mock device saw it.
type request struct {
	cmd  dk6proto.Command
	addr uint32
	data []byte
}

// mockDevice simulates the bootloader on the far end of the link. Writes
// are parsed as request frames and answered immediately; Read drains the
// queued response bytes or returns (0, nil) like a timed-out serial read.
type mockDevice struct {
	t        *testing.T
	mu       sync.Mutex
	parser   *dk6proto.Parser
	pending  bytes.Buffer
	flash    map[uint32]byte
	requests []request

	// failCmd, when set, makes the device answer that command with
	// failResult instead of OK.
	failCmd    dk6proto.Command
	failResult byte

	// mute, when set, swallows requests without answering.
	mute bool

	// garbage, when non-nil, is sent verbatim instead of a response.
	garbage []byte

	closed bool
}

func newMockDevice(t *testing.T) *mockDevice {
	return &mockDevice{
		t:      t,
		parser: dk6proto.NewParser(),
		flash:  make(map[uint32]byte),
	}
}

func (m *mockDevice) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending.Len() == 0 {
		return 0, nil
	}
	return m.pending.Read(p)
}

func (m *mockDevice) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pkt, err := m.parser.Feed(p)
	if err != nil {
		m.t.Errorf("mock device: bad request frame: %v", err)
		return len(p), nil
	}
	if pkt == nil {
		return len(p), nil // partial frame, wait for the rest
	}
	m.handle(pkt)
	return len(p), nil
}

func (m *mockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// requestCount is safe to call while an exchange is in flight.
func (m *mockDevice) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockDevice) handle(pkt *dk6proto.Packet) {
	cmd := pkt.Cmd()
	body := pkt.Data()

	req := request{cmd: cmd}
	switch cmd {
	case dk6proto.CmdErase:
		req.addr = binary.LittleEndian.Uint32(body[0:4])
	case dk6proto.CmdProgram:
		req.addr = binary.LittleEndian.Uint32(body[0:4])
		req.data = append([]byte(nil), body[5:]...)
	case dk6proto.CmdReadHeader:
		req.addr = binary.LittleEndian.Uint32(body[0:4])
	}
	m.requests = append(m.requests, req)

	if m.mute {
		return
	}
	if m.garbage != nil {
		m.pending.Write(m.garbage)
		return
	}
	if cmd == m.failCmd && m.failCmd != 0 {
		m.pending.Write(dk6proto.BuildResponse(cmd, m.failResult, nil))
		return
	}

	switch cmd {
	case dk6proto.CmdProgram:
		for i, b := range req.data {
			m.flash[req.addr+uint32(i)] = b
		}
		m.respond(cmd, nil)
	case dk6proto.CmdReadHeader:
		data := make([]byte, dk6proto.FirmwareHeaderSize)
		for i := range data {
			data[i] = m.flash[req.addr+uint32(i)]
		}
		m.respond(cmd, data)
	case dk6proto.CmdReadUUID:
		m.respond(cmd, []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88})
	case dk6proto.CmdReset:
		// Device reboots without answering.
	default:
		m.respond(cmd, nil)
	}
}

func (m *mockDevice) respond(cmd dk6proto.Command, data []byte) {
	m.pending.Write(dk6proto.BuildResponse(cmd, dk6proto.ResultOK, data))
}

// flashBytes reads n bytes of simulated flash starting at addr.
func (m *mockDevice) flashBytes(addr uint32, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = m.flash[addr+uint32(i)]
	}
	return out
}
