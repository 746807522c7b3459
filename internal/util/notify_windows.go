// Copyright (C) 2023 - Tillitis AB
// SPDX-License-Identifier: GPL-2.0-only

//go:build windows

package util

import (
	"fmt"
	"os"

	"github.com/gen2brain/beeep"
	"github.com/go-toast/toast"
	"golang.org/x/sys/windows"
)

var isWindows10 bool

func init() {
	maj, _, _ := windows.RtlGetNtVersionNumbers()
	isWindows10 = (maj >= 10)
}

// Notify pops up a desktop notification with the outcome of a
// programming run.
func Notify(progname string, runErr error) {
	msg := NotifyMessage(runErr)

	// beeep can't set the AppID shown on a win10+ toast
	if isWindows10 {
		notification := toast.Notification{
			AppID:   progname,
			Message: msg,
		}
		if err := notification.Push(); err != nil {
			fmt.Fprintf(os.Stderr, "toastNotify message %q failed: %s\n", msg, err)
		}
		return
	}

	if err := beeep.Notify(progname, msg, ""); err != nil {
		fmt.Fprintf(os.Stderr, "Notify message %q failed: %s\n", msg, err)
	}
}
