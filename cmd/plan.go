// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 ximing766

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ximing766/dk6flash/pkg/dk6proto"
)

var planHeaderless bool

var planCmd = &cobra.Command{
	Use:   "plan <firmware.bin>",
	Short: "Show the transfer plan for a firmware image",
	Long: `Compute and print the erase/program plan for a firmware image without
touching any device: blocks to erase, pages to program and the number of
PROGRAM transfers at the configured pages-per-transfer.

By default the 32-byte application header is included in the total, as it
would be for the flash command; --headerless plans the raw image (the
SR150 flow).`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planHeaderless, "headerless", false, "Plan the raw image without an application header")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
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

	total := len(firmware)
	if !planHeaderless {
		total += dk6proto.FirmwareHeaderSize
	}

	cfg := dk6proto.TransferConfig{PagesPerTransfer: s.PagesPerTransfer}
	plan := dk6proto.PlanTransfer(total, cfg)

	fmt.Printf("Firmware:           %s\n", filepath.Base(args[0]))
	fmt.Printf("Image size:         %d bytes", total)
	if !planHeaderless {
		fmt.Printf(" (%d + %d header)", len(firmware), dk6proto.FirmwareHeaderSize)
	}
	fmt.Println()
	fmt.Printf("Blocks to erase:    %d (%d KiB)\n", plan.BlocksToErase, plan.BlocksToErase*dk6proto.BlockSize/1024)
	fmt.Printf("Pages to program:   %d\n", plan.PagesToProgram)
	fmt.Printf("Transfers:          %d x %d bytes\n", plan.TransfersNeeded, plan.TransferSize)
	return nil
}
