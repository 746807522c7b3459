// Copyright (C) 2023 - Tillitis AB
// SPDX-License-Identifier: GPL-2.0-only

//go:build unix

package util

import (
	"fmt"
	"os"

	"github.com/gen2brain/beeep"
)

// Notify pops up a desktop notification with the outcome of a
// programming run, which can take a minute for a full flash.
func Notify(progname string, runErr error) {
	msg := NotifyMessage(runErr)
	if err := beeep.Notify(progname, msg, ""); err != nil {
		fmt.Fprintf(os.Stderr, "Notify message %q failed: %s\n", msg, err)
	}
}
