// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 ximing766

package dk6proto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Parser accumulates response bytes from the serial stream and extracts the
// first complete frame. It moves through two states: waiting for the 5-byte
// header, then waiting for the body announced by the payload length.
//
// The protocol has no byte stuffing, so a header mismatch means the stream
// is desynchronized and cannot recover; the caller should drain and abort.
type Parser struct {
	buf []byte
}

// NewParser returns an empty Parser.
func NewParser() *Parser {
	return &Parser{buf: make([]byte, 0, FrameHeaderSize+PayloadPrefixSize+FrameTrailerSize)}
}

// Reset discards all accumulated bytes.
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
}

// Len returns the number of accumulated bytes.
func (p *Parser) Len() int {
	return len(p.buf)
}

// Bytes returns the accumulated raw bytes, for diagnostics.
func (p *Parser) Bytes() []byte {
	return p.buf
}

// Feed appends data and attempts to parse a frame. It returns (nil, nil)
// while the frame is incomplete, the decoded packet once a valid frame is
// seen, or an error when the accumulated bytes can never form a valid frame.
//
// On ErrInvalidHeader the buffer is left intact so the caller can report
// the offending bytes.
func (p *Parser) Feed(data []byte) (*Packet, error) {
	p.buf = append(p.buf, data...)

	if len(p.buf) < FrameHeaderSize {
		return nil, nil
	}
	if !bytes.Equal(p.buf[:len(frameHeader)], frameHeader[:]) {
		return nil, fmt.Errorf("%w: got % X", ErrInvalidHeader, p.buf[:len(frameHeader)])
	}

	payloadLen := int(binary.LittleEndian.Uint16(p.buf[3:5]))
	total := FrameHeaderSize + payloadLen + FrameTrailerSize
	if len(p.buf) < total {
		return nil, nil
	}

	payload := p.buf[FrameHeaderSize : FrameHeaderSize+payloadLen]
	dcsByte := p.buf[FrameHeaderSize+payloadLen]
	term := p.buf[total-1]

	if term != Terminator {
		return nil, fmt.Errorf("%w: got 0x%02X", ErrBadTerminator, term)
	}
	var sum byte
	for _, b := range payload {
		sum += b
	}
	if sum+dcsByte != 0 {
		return nil, fmt.Errorf("%w: payload sum 0x%02X, dcs 0x%02X", ErrChecksum, sum, dcsByte)
	}
	if payloadLen < PayloadPrefixSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortPayload, payloadLen)
	}

	pkt := &Packet{
		payload:   append([]byte(nil), payload...),
		dcs:       dcsByte,
		timestamp: time.Now(),
	}
	// Keep any bytes past the frame; back-to-back frames are rare but
	// legal on the wire.
	p.buf = append(p.buf[:0], p.buf[total:]...)
	return pkt, nil
}
