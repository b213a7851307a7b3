// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 ximing766

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/ximing766/dk6flash/pkg/dk6proto"
)

// settings are the resolved connection and transfer parameters for one
// invocation: built-in defaults, overlaid by the config file, overlaid by
// any flag the user actually set.
type settings struct {
	Port             string
	Baud             int
	URL              string
	PagesPerTransfer int
	AppAddress       uint32
	FrameTimeout     time.Duration
	ChunkDelay       time.Duration
}

// fileConfig is the on-disk TOML shape.
type fileConfig struct {
	Port             string `toml:"port"`
	Baud             int    `toml:"baud"`
	URL              string `toml:"url"`
	PagesPerTransfer int    `toml:"pages_per_transfer"`
	AppAddress       string `toml:"app_address"`
	FrameTimeoutMS   int    `toml:"frame_timeout_ms"`
	ChunkDelayMS     int    `toml:"chunk_delay_ms"`
}

func defaultSettings() settings {
	return settings{
		Baud:             460800,
		PagesPerTransfer: dk6proto.DefaultPagesPerTransfer,
		AppAddress:       dk6proto.AppStartAddr,
		FrameTimeout:     5 * time.Second,
		ChunkDelay:       100 * time.Millisecond,
	}
}

// defaultConfigPath returns the conventional config location, or "" when
// the user config dir cannot be determined.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "dk6flash", "config.toml")
}

// overlayFile applies values present in the TOML file onto s. A missing
// file is not an error unless the path was given explicitly.
func overlayFile(s *settings, path string, explicit bool) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("port") {
		s.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("baud") {
		s.Baud = raw.Baud
	}
	if meta.IsDefined("url") {
		s.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("pages_per_transfer") {
		s.PagesPerTransfer = raw.PagesPerTransfer
	}
	if meta.IsDefined("app_address") {
		addr, err := parseAddress(raw.AppAddress)
		if err != nil {
			return fmt.Errorf("load config: app_address: %w", err)
		}
		s.AppAddress = addr
	}
	if meta.IsDefined("frame_timeout_ms") {
		s.FrameTimeout = time.Duration(raw.FrameTimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("chunk_delay_ms") {
		s.ChunkDelay = time.Duration(raw.ChunkDelayMS) * time.Millisecond
	}
	return nil
}

// resolveSettings merges defaults, the config file, and explicit flags.
func resolveSettings(cmd *cobra.Command) (settings, error) {
	s := defaultSettings()

	path := configPath
	explicit := path != ""
	if path == "" {
		path = defaultConfigPath()
	}
	if path != "" {
		if err := overlayFile(&s, path, explicit); err != nil {
			return settings{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		s.Port = portName
	}
	if flags.Changed("baud") {
		s.Baud = baudRate
	}
	if flags.Changed("url") {
		s.URL = wsURL
	}
	if flags.Changed("pages") {
		s.PagesPerTransfer = pagesPerTransfer
	}

	if s.PagesPerTransfer < dk6proto.MinPagesPerTransfer || s.PagesPerTransfer > dk6proto.MaxPagesPerTransfer {
		return settings{}, fmt.Errorf("pages per transfer must be %d-%d, got %d",
			dk6proto.MinPagesPerTransfer, dk6proto.MaxPagesPerTransfer, s.PagesPerTransfer)
	}
	return s, nil
}

// parseAddress accepts decimal or 0x-prefixed hex flash addresses.
func parseAddress(v string) (uint32, error) {
	v = strings.TrimSpace(v)
	n, err := strconv.ParseUint(v, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid flash address %q", v)
	}
	return uint32(n), nil
}
