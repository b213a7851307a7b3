// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 ximing766

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ximing766/dk6flash/pkg/dk6proto"
	"github.com/ximing766/dk6flash/pkg/ota"
)

var headerAddress string

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the device",
	Long: `Send the reset command. The device reboots immediately and does not
answer, so no response is awaited.`,
	RunE: runReset,
}

var uuidCmd = &cobra.Command{
	Use:   "uuid",
	Short: "Read the secure element UUID",
	RunE:  runUUID,
}

var headerCmd = &cobra.Command{
	Use:   "header",
	Short: "Read back a firmware header from flash",
	Long: `Read the 32-byte firmware header stored at the given flash address and
print its fields. Useful to check what is currently programmed without
reflashing.`,
	RunE: runHeader,
}

func init() {
	headerCmd.Flags().StringVarP(&headerAddress, "address", "a", "", "Header address (default from config, 0x00280000)")
	rootCmd.AddCommand(resetCmd, uuidCmd, headerCmd)
}

// openFlasher resolves settings, opens the connection and wraps it. The
// caller owns the Flasher and must Close it.
func openFlasher(cmd *cobra.Command) (*ota.Flasher, settings, error) {
	s, err := resolveSettings(cmd)
	if err != nil {
		return nil, settings{}, err
	}
	conn, connInfo, err := OpenConnection(s)
	if err != nil {
		return nil, settings{}, err
	}
	fmt.Printf("Connection: %s\n", connInfo)

	f := ota.New(conn,
		ota.WithPagesPerTransfer(s.PagesPerTransfer),
		ota.WithTimeout(s.FrameTimeout),
		ota.WithLogger(newLogger()),
	)
	return f, s, nil
}

func runReset(cmd *cobra.Command, args []string) error {
	f, _, err := openFlasher(cmd)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Reset(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	fmt.Println("Reset sent")
	return nil
}

func runUUID(cmd *cobra.Command, args []string) error {
	f, _, err := openFlasher(cmd)
	if err != nil {
		return err
	}
	defer f.Close()

	uuid, err := f.ReadUUID()
	if err != nil {
		return fmt.Errorf("read UUID: %w", err)
	}
	fmt.Printf("UUID: %X\n", uuid)
	return nil
}

func runHeader(cmd *cobra.Command, args []string) error {
	f, s, err := openFlasher(cmd)
	if err != nil {
		return err
	}
	defer f.Close()

	addr := s.AppAddress
	if headerAddress != "" {
		if addr, err = parseAddress(headerAddress); err != nil {
			return err
		}
	}

	h, err := f.ReadHeader(addr)
	if err != nil {
		return fmt.Errorf("read header at 0x%08X: %w", addr, err)
	}

	fmt.Printf("Header at 0x%08X:\n", addr)
	fmt.Printf("  Magic:       0x%08X", h.Magic)
	if h.Magic != dk6proto.FirmwareMagic {
		fmt.Printf("  (expected 0x%08X)", uint32(dk6proto.FirmwareMagic))
	}
	fmt.Println()
	fmt.Printf("  Version:     %d\n", h.Version)
	fmt.Printf("  Size:        %d bytes\n", h.Size)
	fmt.Printf("  CRC-32:      0x%08X\n", h.CRC32)
	fmt.Printf("  Update flag: %d\n", h.UpdateFlag)
	return nil
}
