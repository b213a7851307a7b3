// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 ximing766

package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestOverlayFile_AppliesOnlyDefinedKeys(t *testing.T) {
	path := writeConfig(t, `
port = "/dev/ttyUSB1"
pages_per_transfer = 2
`)

	s := defaultSettings()
	if err := overlayFile(&s, path, true); err != nil {
		t.Fatalf("overlayFile: %v", err)
	}

	if s.Port != "/dev/ttyUSB1" {
		t.Errorf("Port = %q", s.Port)
	}
	if s.PagesPerTransfer != 2 {
		t.Errorf("PagesPerTransfer = %d, want 2", s.PagesPerTransfer)
	}

	// Keys absent from the file keep their defaults.
	if s.Baud != 460800 {
		t.Errorf("Baud = %d, want default 460800", s.Baud)
	}
	if s.FrameTimeout != 5*time.Second {
		t.Errorf("FrameTimeout = %v, want default 5s", s.FrameTimeout)
	}
}

func TestOverlayFile_FullConfig(t *testing.T) {
	path := writeConfig(t, `
port = "/dev/ttyACM0"
baud = 115200
url = "ws://bridge.local/serial"
pages_per_transfer = 1
app_address = "0x00300000"
frame_timeout_ms = 2000
chunk_delay_ms = 50
`)

	s := defaultSettings()
	if err := overlayFile(&s, path, true); err != nil {
		t.Fatalf("overlayFile: %v", err)
	}

	if s.Baud != 115200 {
		t.Errorf("Baud = %d", s.Baud)
	}
	if s.URL != "ws://bridge.local/serial" {
		t.Errorf("URL = %q", s.URL)
	}
	if s.AppAddress != 0x00300000 {
		t.Errorf("AppAddress = 0x%08X", s.AppAddress)
	}
	if s.FrameTimeout != 2*time.Second {
		t.Errorf("FrameTimeout = %v", s.FrameTimeout)
	}
	if s.ChunkDelay != 50*time.Millisecond {
		t.Errorf("ChunkDelay = %v", s.ChunkDelay)
	}
}

func TestOverlayFile_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")

	s := defaultSettings()
	// Implicit default path: a missing file is fine.
	if err := overlayFile(&s, missing, false); err != nil {
		t.Errorf("implicit missing file: %v", err)
	}
	// Explicit --config path: the user asked for it, so it must exist.
	if err := overlayFile(&s, missing, true); err == nil {
		t.Error("explicit missing file did not fail")
	}
}

func TestOverlayFile_BadAddress(t *testing.T) {
	path := writeConfig(t, `app_address = "not-an-address"`)
	s := defaultSettings()
	if err := overlayFile(&s, path, true); err == nil {
		t.Error("invalid app_address accepted")
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{in: "0x00280000", want: 0x00280000},
		{in: "2621440", want: 0x00280000},
		{in: " 0x10 ", want: 0x10},
		{in: "", wantErr: true},
		{in: "zzz", wantErr: true},
		{in: "0x1FFFFFFFF", wantErr: true}, // overflows 32 bits
	}

	for _, tt := range tests {
		got, err := parseAddress(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseAddress(%q) succeeded, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseAddress(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseAddress(%q) = 0x%X, want 0x%X", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{3 * time.Second, "3s"},
		{59 * time.Second, "59s"},
		{60 * time.Second, "1m00s"},
		{95 * time.Second, "1m35s"},
		{10 * time.Minute, "10m00s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
