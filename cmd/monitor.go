// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 ximing766

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"

	"github.com/ximing766/dk6flash/pkg/dk6proto"
)

var monitorRecordPath string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Decode and print protocol frames from the device",
	Long: `Passively listen on the connection, decode every protocol frame and
print it with timestamp, command, result code and data. Bytes that do not
form a valid frame are resynchronized one byte at a time and reported.

With --record, each decoded frame is appended to a CBOR capture file for
later offline analysis.

Press Ctrl+C to stop.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorRecordPath, "record", "", "Append decoded frames to a CBOR capture file")
	rootCmd.AddCommand(monitorCmd)
}

// captureRecord is one decoded frame in a capture file. Records are
// written as a plain CBOR sequence.
type captureRecord struct {
	Time    time.Time `cbor:"time"`
	Cmd     byte      `cbor:"cmd"`
	Result  byte      `cbor:"result"`
	Payload []byte    `cbor:"payload"`
	DCS     byte      `cbor:"dcs"`
}

func runMonitor(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection(s)
	if err != nil {
		return err
	}
	defer conn.Close()
	fmt.Printf("Connection: %s\n", connInfo)

	var recorder *cbor.Encoder
	if monitorRecordPath != "" {
		file, err := os.OpenFile(monitorRecordPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open capture file: %w", err)
		}
		defer file.Close()
		recorder = cbor.NewEncoder(file)
		fmt.Printf("Recording to %s\n", monitorRecordPath)
	}

	fmt.Println("Monitoring (Ctrl+C to stop)...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	parser := dk6proto.NewParser()
	buf := make([]byte, 512)
	frames := 0

	for ctx.Err() == nil {
		n, err := conn.Read(buf)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			continue
		}

		data := buf[:n]
		for len(data) > 0 || parser.Len() > 0 {
			pkt, err := parser.Feed(data)
			data = nil
			if err != nil {
				// Drop one byte and retry so a corrupt stream
				// resynchronizes on the next frame header.
				fmt.Printf("! %v\n", err)
				rest := append([]byte(nil), parser.Bytes()...)
				parser.Reset()
				if len(rest) > 1 {
					data = rest[1:]
					continue
				}
				break
			}
			if pkt == nil {
				break
			}

			frames++
			fmt.Print(dk6proto.FormatPacket(pkt))
			if recorder != nil {
				rec := captureRecord{
					Time:    pkt.Timestamp(),
					Cmd:     byte(pkt.Cmd()),
					Result:  pkt.Result(),
					Payload: pkt.Payload(),
					DCS:     pkt.DCS(),
				}
				if err := recorder.Encode(rec); err != nil {
					return fmt.Errorf("write capture: %w", err)
				}
			}
		}
	}

	fmt.Printf("\n%d frames decoded\n", frames)
	return nil
}
