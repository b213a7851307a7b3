// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 ximing766

package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Transfer flags
	pagesPerTransfer int
	configPath       string
	verbose          bool
)

var rootCmd = &cobra.Command{
	Use:   "dk6flash",
	Short: "DK6 serial OTA flashing tool",
	Long: `dk6flash - OTA firmware flashing for DK6 devices over a serial link.

Provides commands for flashing application firmware (with generated header
and CRC-32 verification), flashing the SR150 UWB firmware with its CRC-16
configuration record, and basic device operations (reset, UUID, header
readback).

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 460800]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the DK6FLASH_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Defaults for port, baud and pages-per-transfer can be stored in a TOML
config file (see --config).`,
	Version: "1.2.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 460800, "Baud rate (serial only)")

	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().IntVar(&pagesPerTransfer, "pages", 3, "Pages per PROGRAM transfer (1-3)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/dk6flash/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// newLogger builds the CLI logger; debug level only with --verbose.
func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
