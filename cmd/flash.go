// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 ximing766

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ximing766/dk6flash/pkg/dk6proto"
	"github.com/ximing766/dk6flash/pkg/ota"
)

var (
	flashAddress string
	flashVersion uint32
	flashPlain   bool
)

var flashCmd = &cobra.Command{
	Use:   "flash <firmware.bin>",
	Short: "Flash application firmware over the serial OTA protocol",
	Long: `Flash an application firmware image to the external flash.

A 32-byte firmware header (magic, version, size, CRC-32) is generated and
prepended to the image. After programming, the header is read back from the
device and verified against the local image; a mismatch is reported as a
warning but does not undo the completed write.

Press Ctrl+C to cancel between transfers; the in-flight transfer always
completes first.`,
	Args: cobra.ExactArgs(1),
	RunE: runFlash,
}

func init() {
	flashCmd.Flags().StringVarP(&flashAddress, "address", "a", "", "Target base address (default from config, 0x00280000)")
	flashCmd.Flags().Uint32Var(&flashVersion, "fw-version", 1, "Version field for the generated firmware header")
	flashCmd.Flags().BoolVar(&flashPlain, "plain", false, "Log progress lines instead of the progress UI")
	rootCmd.AddCommand(flashCmd)
}

func runFlash(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}

	addr := s.AppAddress
	if flashAddress != "" {
		if addr, err = parseAddress(flashAddress); err != nil {
			return err
		}
	}

	firmware, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read firmware: %w", err)
	}
	if len(firmware) == 0 {
		return fmt.Errorf("firmware file %s is empty", args[0])
	}
	if len(firmware) > dk6proto.MaxFirmwareSize {
		return fmt.Errorf("firmware is %d bytes, exceeds flash capacity of %d bytes",
			len(firmware), dk6proto.MaxFirmwareSize)
	}

	totalSize := len(firmware) + dk6proto.FirmwareHeaderSize
	fmt.Printf("Firmware: %s (%d bytes, %d with header)\n", filepath.Base(args[0]), len(firmware), totalSize)
	fmt.Printf("Target:   0x%08X - 0x%08X\n", addr, addr+uint32(totalSize)-1)

	run := func(ctx context.Context, f *ota.Flasher) (*ota.Result, error) {
		return f.Flash(ctx, firmware, addr)
	}
	return runSession(s, "OTA Flash", run)
}

// runSession opens the connection and drives a flashing session through
// either the progress UI or plain log output. Shared by flash and sr150.
func runSession(s settings, title string, run func(context.Context, *ota.Flasher) (*ota.Result, error)) error {
	logger := newLogger()

	conn, connInfo, err := OpenConnection(s)
	if err != nil {
		return err
	}
	fmt.Printf("Connection: %s\n\n", connInfo)

	opts := []ota.Option{
		ota.WithPagesPerTransfer(s.PagesPerTransfer),
		ota.WithTimeout(s.FrameTimeout),
		ota.WithChunkDelay(s.ChunkDelay),
		ota.WithVersion(flashVersion),
		ota.WithLogger(logger),
	}

	if flashPlain {
		return runPlainSession(conn, opts, logger, run)
	}
	return runTUISession(conn, opts, title, run)
}

// runPlainSession logs progress lines; Ctrl+C cancels at the next
// transfer boundary.
func runPlainSession(conn Connection, opts []ota.Option, logger zerolog.Logger, run func(context.Context, *ota.Flasher) (*ota.Result, error)) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts = append(opts, ota.WithProgress(func(p ota.Progress) {
		ev := logger.Info().Str("phase", p.Phase.String()).Int("percent", p.Percent)
		if p.Transfers > 0 && p.Phase == ota.PhaseProgram {
			ev = ev.Int("transfer", p.Transfer).Int("transfers", p.Transfers)
		}
		ev.Msg("progress")
	}))

	flasher := ota.New(conn, opts...)
	result, err := run(ctx, flasher)
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

func printResult(r *ota.Result) {
	fmt.Printf("\nFlash complete: %d bytes written\n", r.BytesWritten)
	fmt.Printf("Address range:  0x%08X - 0x%08X\n", r.StartAddr, r.EndAddr)
	fmt.Printf("Elapsed:        %s\n", formatDuration(r.Elapsed))
	if r.Verified {
		fmt.Printf("Verification:   OK\n")
	} else if r.Warning != nil {
		fmt.Printf("Verification:   WARNING - %v\n", r.Warning)
	}
}
