// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 ximing766
//
// dk6flash - DK6 serial OTA firmware flashing tool.

package main

import (
	"os"

	"github.com/ximing766/dk6flash/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
