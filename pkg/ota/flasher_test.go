// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 ximing766

package ota

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/ximing766/dk6flash/pkg/dk6proto"
)

// fastOpts keeps the session snappy under test: no inter-chunk delay and
// short frame timeouts.
func fastOpts(extra ...Option) []Option {
	opts := []Option{
		WithChunkDelay(0),
		WithTimeout(time.Second),
		WithEraseTimeout(time.Second),
	}
	return append(opts, extra...)
}

func newTestFlasher(dev *mockDevice, extra ...Option) *Flasher {
	f := New(dev, fastOpts(extra...)...)
	f.tr.PollInterval = time.Millisecond
	return f
}

func TestFlash_EndToEnd(t *testing.T) {
	firmware := make([]byte, 1000)
	for i := range firmware {
		firmware[i] = byte(i * 7)
	}
	const base = uint32(dk6proto.AppStartAddr)

	var reports []Progress
	dev := newMockDevice(t)
	f := newTestFlasher(dev, WithVersion(3), WithProgress(func(p Progress) {
		reports = append(reports, p)
	}))

	result, err := f.Flash(context.Background(), firmware, base)
	if err != nil {
		t.Fatalf("Flash: %v", err)
	}

	// 1032-byte image in 768-byte transfers: erase, two programs, readback.
	wantCmds := []dk6proto.Command{
		dk6proto.CmdErase, dk6proto.CmdProgram, dk6proto.CmdProgram, dk6proto.CmdReadHeader,
	}
	if len(dev.requests) != len(wantCmds) {
		t.Fatalf("device saw %d requests, want %d", len(dev.requests), len(wantCmds))
	}
	for i, want := range wantCmds {
		if dev.requests[i].cmd != want {
			t.Errorf("request %d = %s, want %s", i, dev.requests[i].cmd, want)
		}
	}
	if dev.requests[1].addr != base || dev.requests[2].addr != base+768 {
		t.Errorf("program addresses = 0x%08X, 0x%08X", dev.requests[1].addr, dev.requests[2].addr)
	}

	// Flash contents: generated header, then the image, then 0xFF padding.
	header, err := dk6proto.ParseFirmwareHeader(dev.flashBytes(base, dk6proto.FirmwareHeaderSize))
	if err != nil {
		t.Fatalf("parse programmed header: %v", err)
	}
	if header.Magic != dk6proto.FirmwareMagic || header.Version != 3 {
		t.Errorf("programmed header = %+v", header)
	}
	if header.Size != 1000 || header.CRC32 != dk6proto.CRC32(firmware) {
		t.Errorf("header size/crc = %d/0x%08X", header.Size, header.CRC32)
	}
	if got := dev.flashBytes(base+dk6proto.FirmwareHeaderSize, len(firmware)); !bytes.Equal(got, firmware) {
		t.Error("programmed image does not match firmware")
	}
	if pad := dev.flashBytes(base+1032, 4); !bytes.Equal(pad, []byte{0xFF, 0xFF, 0xFF, 0xFF}) {
		t.Errorf("padding = % X, want FF FF FF FF", pad)
	}

	if !result.Verified {
		t.Errorf("result not verified: warning=%v", result.Warning)
	}
	if result.BytesWritten != 2*768 {
		t.Errorf("BytesWritten = %d, want %d", result.BytesWritten, 2*768)
	}
	if result.StartAddr != base || result.EndAddr != base+1032-1 {
		t.Errorf("address range = 0x%08X-0x%08X", result.StartAddr, result.EndAddr)
	}

	if !dev.closed {
		t.Error("connection not closed after session")
	}
	if len(reports) == 0 || reports[len(reports)-1].Percent != 100 {
		t.Errorf("final progress = %+v", reports[len(reports)-1])
	}
}

func TestFlash_EmptyFirmware(t *testing.T) {
	dev := newMockDevice(t)
	f := newTestFlasher(dev)

	_, err := f.Flash(context.Background(), nil, dk6proto.AppStartAddr)
	var pe *PhaseError
	if !errors.As(err, &pe) || pe.Phase != PhaseSetup {
		t.Fatalf("err = %v, want setup PhaseError", err)
	}
	if len(dev.requests) != 0 {
		t.Errorf("device saw %d requests, want 0", len(dev.requests))
	}
}

func TestFlash_OversizedFirmware(t *testing.T) {
	dev := newMockDevice(t)
	f := newTestFlasher(dev)

	_, err := f.Flash(context.Background(), make([]byte, dk6proto.MaxFirmwareSize+1), dk6proto.AppStartAddr)
	var pe *PhaseError
	if !errors.As(err, &pe) || pe.Phase != PhaseSetup {
		t.Fatalf("err = %v, want setup PhaseError", err)
	}
}

func TestFlash_EraseRejectionAborts(t *testing.T) {
	dev := newMockDevice(t)
	dev.failCmd = dk6proto.CmdErase
	dev.failResult = 0x01
	f := newTestFlasher(dev)

	_, err := f.Flash(context.Background(), make([]byte, 100), dk6proto.AppStartAddr)
	var pe *PhaseError
	if !errors.As(err, &pe) || pe.Phase != PhaseErase {
		t.Fatalf("err = %v, want erase PhaseError", err)
	}
	var ce *CommandError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want wrapped CommandError", err)
	}

	// Nothing must be written after the erase is rejected.
	if len(dev.requests) != 1 {
		t.Errorf("device saw %d requests, want 1", len(dev.requests))
	}
	if !dev.closed {
		t.Error("connection not closed after failure")
	}
}

func TestFlash_ProgramRejectionStopsAtFailedTransfer(t *testing.T) {
	dev := newMockDevice(t)
	dev.failCmd = dk6proto.CmdProgram
	dev.failResult = 0x04
	f := newTestFlasher(dev)

	// 1032-byte image would need two transfers; the first is rejected.
	_, err := f.Flash(context.Background(), make([]byte, 1000), dk6proto.AppStartAddr)
	var pe *PhaseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PhaseError", err)
	}
	if pe.Phase != PhaseProgram || pe.Transfer != 1 {
		t.Errorf("PhaseError = %+v, want program transfer 1", pe)
	}
	if got := len(dev.requests); got != 2 { // erase + one rejected program
		t.Errorf("device saw %d requests, want 2", got)
	}
}

func TestFlash_CancelBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dev := newMockDevice(t)
	f := newTestFlasher(dev, WithProgress(func(p Progress) {
		if p.Phase == PhaseProgram {
			cancel()
		}
	}))

	_, err := f.Flash(ctx, make([]byte, 1000), dk6proto.AppStartAddr)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	var pe *PhaseError
	if !errors.As(err, &pe) || pe.Transfer != 2 {
		t.Errorf("PhaseError = %+v, want cancellation before transfer 2", pe)
	}

	// The in-flight transfer completed; the next was never written.
	if got := len(dev.requests); got != 2 { // erase + first program
		t.Errorf("device saw %d requests, want 2", got)
	}
	if !dev.closed {
		t.Error("connection not closed after cancellation")
	}
}

func TestFlash_VerifyMismatchIsWarning(t *testing.T) {
	dev := newMockDevice(t)
	f := newTestFlasher(dev)

	firmware := make([]byte, 100)
	base := uint32(dk6proto.AppStartAddr)

	// Baseline: an honest device verifies cleanly.
	result, err := f.Flash(context.Background(), firmware, base)
	if err != nil {
		t.Fatalf("Flash: %v", err)
	}
	if !result.Verified {
		t.Fatalf("clean session not verified: %v", result.Warning)
	}

	// Second session against a device that zeroes header readbacks.
	dev2 := newMockDevice(t)
	dev2.failCmd = dk6proto.CmdReadHeader
	dev2.failResult = 0x05
	f2 := newTestFlasher(dev2)

	result, err = f2.Flash(context.Background(), firmware, base)
	if err != nil {
		t.Fatalf("Flash with failing readback: %v", err)
	}
	if result.Verified {
		t.Error("session verified despite failed readback")
	}
	if result.Warning == nil {
		t.Error("no warning attached for failed verification")
	}
}

func TestFlashSR150(t *testing.T) {
	firmware := make([]byte, 300)
	for i := range firmware {
		firmware[i] = byte(i)
	}

	dev := newMockDevice(t)
	f := newTestFlasher(dev)

	result, err := f.FlashSR150(context.Background(), firmware)
	if err != nil {
		t.Fatalf("FlashSR150: %v", err)
	}

	// Erase and image writes target the fixed SR150 address.
	if dev.requests[0].cmd != dk6proto.CmdErase || dev.requests[0].addr != dk6proto.SR150StartAddr {
		t.Errorf("first request = %+v, want erase at SR150 base", dev.requests[0])
	}
	if got := dev.flashBytes(dk6proto.SR150StartAddr, len(firmware)); !bytes.Equal(got, firmware) {
		t.Error("programmed SR150 image does not match")
	}

	// The final write is the one-page config record.
	last := dev.requests[len(dev.requests)-1]
	if last.cmd != dk6proto.CmdProgram || last.addr != dk6proto.SR150ConfigAddr {
		t.Fatalf("last request = %+v, want config record write", last)
	}
	if len(last.data) != dk6proto.PageSize {
		t.Fatalf("config record length = %d, want %d", len(last.data), dk6proto.PageSize)
	}
	if got := binary.LittleEndian.Uint16(last.data[0:2]); got != dk6proto.CRC16Xmodem(firmware) {
		t.Errorf("config crc16 = 0x%04X, want 0x%04X", got, dk6proto.CRC16Xmodem(firmware))
	}
	if got := binary.LittleEndian.Uint32(last.data[2:6]); got != uint32(len(firmware)) {
		t.Errorf("config length = %d, want %d", got, len(firmware))
	}
	for i := 6; i < len(last.data); i++ {
		if last.data[i] != 0xFF {
			t.Fatalf("config pad byte %d = 0x%02X, want 0xFF", i, last.data[i])
		}
	}

	if !result.Verified {
		t.Error("SR150 result not marked verified")
	}
	if result.StartAddr != dk6proto.SR150StartAddr {
		t.Errorf("StartAddr = 0x%08X", result.StartAddr)
	}
}

func TestReset_NoResponseExpected(t *testing.T) {
	dev := newMockDevice(t)
	f := newTestFlasher(dev)
	defer f.Close()

	if err := f.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(dev.requests) != 1 || dev.requests[0].cmd != dk6proto.CmdReset {
		t.Errorf("device requests = %+v", dev.requests)
	}
}

func TestReadUUID(t *testing.T) {
	dev := newMockDevice(t)
	f := newTestFlasher(dev)
	defer f.Close()

	uuid, err := f.ReadUUID()
	if err != nil {
		t.Fatalf("ReadUUID: %v", err)
	}
	want := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}
	if !bytes.Equal(uuid, want) {
		t.Errorf("uuid = % X, want % X", uuid, want)
	}
}

func TestClose_Idempotent(t *testing.T) {
	dev := newMockDevice(t)
	f := newTestFlasher(dev)

	if err := f.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !dev.closed {
		t.Error("device not closed")
	}
}
