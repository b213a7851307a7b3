// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 ximing766

// Package ota drives the DK6 over-serial firmware update: a transport
// correlator for the half-duplex request/response exchange, and the
// erase/program/verify session state machine on top of it.
package ota

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/ximing766/dk6flash/pkg/dk6proto"
)

// Flasher owns one device stream for the duration of a flashing session.
// It is not safe for concurrent use; the protocol is strictly half-duplex
// and the session runs on a single goroutine.
type Flasher struct {
	conn      Conn
	tr        *Transceiver
	cfg       config
	closeOnce sync.Once
	closeErr  error
}

// New wraps an open device stream. The Flasher takes ownership of conn:
// it is closed when a flashing session ends on any path, or via Close.
func New(conn Conn, opts ...Option) *Flasher {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Flasher{
		conn: conn,
		tr:   NewTransceiver(conn),
		cfg:  cfg,
	}
}

// Close releases the device stream. Safe to call more than once.
func (f *Flasher) Close() error {
	f.closeOnce.Do(func() {
		f.closeErr = f.conn.Close()
	})
	return f.closeErr
}

// Flash writes firmware to flash at baseAddr, preceded by a generated
// 32-byte header, then verifies the header by reading it back. The session
// runs erase, program, verify strictly in order with no retries: the first
// transport or command failure aborts, and the stream is closed on every
// exit path.
//
// ctx is checked at chunk boundaries only; an in-flight exchange always
// runs to completion or timeout first.
func (f *Flasher) Flash(ctx context.Context, firmware []byte, baseAddr uint32) (*Result, error) {
	defer f.Close()

	if err := validateSize(firmware); err != nil {
		return nil, &PhaseError{Phase: PhaseSetup, Err: err}
	}

	header := dk6proto.NewFirmwareHeader(firmware, f.cfg.version)
	image := append(header.Encode(), firmware...)
	plan := dk6proto.PlanTransfer(len(image), f.cfg.transfer)
	start := time.Now()

	f.cfg.logger.Info().
		Int("firmware_bytes", len(firmware)).
		Int("total_bytes", len(image)).
		Uint32("base_addr", baseAddr).
		Int("blocks", plan.BlocksToErase).
		Int("pages", plan.PagesToProgram).
		Int("transfers", plan.TransfersNeeded).
		Msg("starting OTA flash")

	f.report(Progress{Phase: PhaseSetup, Percent: 0, Transfers: plan.TransfersNeeded})

	if err := f.erase(baseAddr, plan.BlocksToErase); err != nil {
		return nil, err
	}
	f.report(Progress{Phase: PhaseErase, Percent: 10, Transfers: plan.TransfersNeeded, Elapsed: time.Since(start)})

	written, err := f.program(ctx, image, baseAddr, plan, 10, 80, start)
	if err != nil {
		return nil, err
	}

	result := &Result{
		BytesWritten: written,
		StartAddr:    baseAddr,
		EndAddr:      baseAddr + uint32(len(image)) - 1,
	}
	f.verify(firmware, baseAddr, result)
	result.Elapsed = time.Since(start)

	f.report(Progress{Phase: PhaseVerify, Percent: 100, Transfers: plan.TransfersNeeded,
		Transfer: plan.TransfersNeeded, BytesWritten: written, Elapsed: result.Elapsed})

	f.cfg.logger.Info().
		Int("bytes", result.BytesWritten).
		Dur("elapsed", result.Elapsed).
		Bool("verified", result.Verified).
		Msg("OTA flash complete")

	return result, nil
}

// FlashSR150 writes a headerless UWB firmware image at the fixed SR150
// address, then writes a one-page configuration record holding the image's
// CRC-16/XMODEM and length at the configuration address.
func (f *Flasher) FlashSR150(ctx context.Context, firmware []byte) (*Result, error) {
	defer f.Close()

	if err := validateSize(firmware); err != nil {
		return nil, &PhaseError{Phase: PhaseSetup, Err: err}
	}

	plan := dk6proto.PlanTransfer(len(firmware), f.cfg.transfer)
	start := time.Now()

	f.cfg.logger.Info().
		Int("firmware_bytes", len(firmware)).
		Int("transfers", plan.TransfersNeeded).
		Msg("starting SR150 flash")

	f.report(Progress{Phase: PhaseSetup, Percent: 0, Transfers: plan.TransfersNeeded})

	if err := f.erase(dk6proto.SR150StartAddr, plan.BlocksToErase); err != nil {
		return nil, err
	}
	f.report(Progress{Phase: PhaseErase, Percent: 10, Transfers: plan.TransfersNeeded, Elapsed: time.Since(start)})

	written, err := f.program(ctx, firmware, dk6proto.SR150StartAddr, plan, 30, 60, start)
	if err != nil {
		return nil, err
	}

	if err := f.writeSR150Config(firmware); err != nil {
		return nil, err
	}

	result := &Result{
		BytesWritten: written + dk6proto.PageSize,
		StartAddr:    dk6proto.SR150StartAddr,
		EndAddr:      dk6proto.SR150StartAddr + uint32(len(firmware)) - 1,
		Elapsed:      time.Since(start),
		Verified:     true,
	}

	f.report(Progress{Phase: PhaseConfig, Percent: 100, Transfers: plan.TransfersNeeded,
		Transfer: plan.TransfersNeeded, BytesWritten: result.BytesWritten, Elapsed: result.Elapsed})

	f.cfg.logger.Info().
		Int("bytes", result.BytesWritten).
		Dur("elapsed", result.Elapsed).
		Msg("SR150 flash complete")

	return result, nil
}

// Reset sends the reset command. The device reboots without answering, so
// no response is awaited.
func (f *Flasher) Reset() error {
	pkt, err := dk6proto.BuildPacket(dk6proto.CmdReset, 0, nil, f.cfg.transfer)
	if err != nil {
		return err
	}
	_, err = f.conn.Write(pkt)
	return err
}

// ReadUUID reads the secure element UUID.
func (f *Flasher) ReadUUID() ([]byte, error) {
	frame, err := dk6proto.BuildPacket(dk6proto.CmdReadUUID, 0, nil, f.cfg.transfer)
	if err != nil {
		return nil, err
	}
	pkt, err := f.tr.Exchange(frame, f.cfg.timeout)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), pkt.Data()...), nil
}

// ReadHeader reads back the 32-byte firmware header at addr.
func (f *Flasher) ReadHeader(addr uint32) (dk6proto.FirmwareHeader, error) {
	frame, err := dk6proto.BuildPacket(dk6proto.CmdReadHeader, addr, nil, f.cfg.transfer)
	if err != nil {
		return dk6proto.FirmwareHeader{}, err
	}
	pkt, err := f.tr.Exchange(frame, f.cfg.timeout)
	if err != nil {
		return dk6proto.FirmwareHeader{}, err
	}
	return dk6proto.ParseFirmwareHeader(pkt.Data())
}

func (f *Flasher) erase(addr uint32, blocks int) error {
	frame, err := dk6proto.BuildPacket(dk6proto.CmdErase, addr, dk6proto.BlockCount(blocks), f.cfg.transfer)
	if err != nil {
		return &PhaseError{Phase: PhaseErase, Err: err}
	}
	f.cfg.logger.Debug().Uint32("addr", addr).Int("blocks", blocks).Msg("erasing")
	if _, err := f.tr.Exchange(frame, f.cfg.eraseTimeout); err != nil {
		return &PhaseError{Phase: PhaseErase, Err: err}
	}
	return nil
}

// program sends every chunk of image starting at baseAddr, scaling progress
// linearly from pctBase over pctSpan. Chunk i+1 is never written before
// chunk i is acknowledged.
func (f *Flasher) program(ctx context.Context, image []byte, baseAddr uint32, plan dk6proto.TransferPlan, pctBase, pctSpan int, start time.Time) (int, error) {
	written := 0
	for i := 0; i < plan.TransfersNeeded; i++ {
		if ctx.Err() != nil {
			return written, &PhaseError{Phase: PhaseProgram, Transfer: i + 1, Err: ErrCancelled}
		}

		offset, chunk := plan.Chunk(image, i)
		addr := baseAddr + offset

		frame, err := dk6proto.BuildPacket(dk6proto.CmdProgram, addr, dk6proto.RawBytes(chunk), f.cfg.transfer)
		if err != nil {
			return written, &PhaseError{Phase: PhaseProgram, Transfer: i + 1, Err: err}
		}

		f.cfg.logger.Debug().
			Int("transfer", i+1).
			Int("transfers", plan.TransfersNeeded).
			Uint32("addr", addr).
			Int("bytes", len(chunk)).
			Msg("programming")

		if _, err := f.tr.Exchange(frame, f.cfg.timeout); err != nil {
			return written, &PhaseError{Phase: PhaseProgram, Transfer: i + 1, Err: err}
		}
		written += len(chunk)

		pct := pctBase + (i+1)*pctSpan/plan.TransfersNeeded
		if pct > 90 {
			pct = 90
		}
		f.report(Progress{
			Phase:        PhaseProgram,
			Percent:      pct,
			Transfer:     i + 1,
			Transfers:    plan.TransfersNeeded,
			BytesWritten: written,
			Elapsed:      time.Since(start),
		})

		if f.cfg.chunkDelay > 0 {
			time.Sleep(f.cfg.chunkDelay)
		}
	}
	return written, nil
}

// verify reads back the header and compares it against the raw firmware.
// A mismatch does not fail the session: the write already completed, so it
// is surfaced as a warning on the result.
func (f *Flasher) verify(firmware []byte, baseAddr uint32, result *Result) {
	header, err := f.ReadHeader(baseAddr)
	if err != nil {
		result.Warning = &PhaseError{Phase: PhaseVerify, Err: err}
		return
	}

	wantSize := uint32(len(firmware))
	wantCRC := dk6proto.CRC32(firmware)
	if header.Magic != dk6proto.FirmwareMagic || header.Size != wantSize || header.CRC32 != wantCRC {
		result.Warning = &VerifyError{Header: header, Size: wantSize, CRC32: wantCRC}
		return
	}
	result.Verified = true
}

// writeSR150Config programs the one-page record {crc16 LE, length u32 LE,
// 0xFF padding} that the bootloader uses to validate the SR150 image.
func (f *Flasher) writeSR150Config(firmware []byte) error {
	record := make([]byte, dk6proto.PageSize)
	binary.LittleEndian.PutUint16(record[0:2], dk6proto.CRC16Xmodem(firmware))
	binary.LittleEndian.PutUint32(record[2:6], uint32(len(firmware)))
	for i := 6; i < len(record); i++ {
		record[i] = 0xFF
	}

	frame, err := dk6proto.BuildPacket(dk6proto.CmdProgram, dk6proto.SR150ConfigAddr, dk6proto.RawBytes(record), f.cfg.transfer)
	if err != nil {
		return &PhaseError{Phase: PhaseConfig, Err: err}
	}
	f.cfg.logger.Debug().Int("bytes", len(record)).Msg("writing SR150 config record")
	if _, err := f.tr.Exchange(frame, f.cfg.timeout); err != nil {
		return &PhaseError{Phase: PhaseConfig, Err: err}
	}
	return nil
}

func validateSize(firmware []byte) error {
	if len(firmware) == 0 {
		return fmt.Errorf("firmware image is empty")
	}
	if len(firmware) > dk6proto.MaxFirmwareSize {
		return fmt.Errorf("firmware image is %d bytes, exceeds flash capacity of %d",
			len(firmware), dk6proto.MaxFirmwareSize)
	}
	return nil
}

func (f *Flasher) report(p Progress) {
	if f.cfg.progress != nil {
		f.cfg.progress(p)
	}
}
