// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 ximing766

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ximing766/dk6flash/pkg/dk6proto"
	"github.com/ximing766/dk6flash/pkg/ota"
)

var sr150Cmd = &cobra.Command{
	Use:   "sr150 <firmware.bin>",
	Short: "Flash SR150 UWB firmware",
	Long: `Flash an SR150 UWB firmware image.

The image is written headerless at the fixed SR150 region (0x00300100).
After programming, a one-page configuration record holding the image's
CRC-16/XMODEM and length is written at 0x00300000; the bootloader uses it
to validate the image on the next boot. No readback verification is
performed for this flow.`,
	Args: cobra.ExactArgs(1),
	RunE: runSR150,
}

func init() {
	sr150Cmd.Flags().BoolVar(&flashPlain, "plain", false, "Log progress lines instead of the progress UI")
	rootCmd.AddCommand(sr150Cmd)
}

func runSR150(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
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

	fmt.Printf("Firmware: %s (%d bytes)\n", filepath.Base(args[0]), len(firmware))
	fmt.Printf("Target:   0x%08X (config record at 0x%08X)\n",
		uint32(dk6proto.SR150StartAddr), uint32(dk6proto.SR150ConfigAddr))

	run := func(ctx context.Context, f *ota.Flasher) (*ota.Result, error) {
		return f.FlashSR150(ctx, firmware)
	}
	return runSession(s, "SR150 Flash", run)
}
